package client

import (
	"github.com/firasghr/GoStealthClient/config"
	"github.com/firasghr/GoStealthClient/proxy"
	"github.com/firasghr/GoStealthClient/ratelimit"
)

// NewFromConfig builds a client from a loaded configuration, constructing
// the rate limiters and proxy rotation the config describes.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	opts := Options{
		Impersonate:        cfg.Impersonate,
		Timeout:            cfg.RequestTimeout,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MaxPerHost:         cfg.MaxPerHost,
		MaxRetries:         cfg.MaxRetries,
		HTTP3:              cfg.HTTP3,
	}
	if cfg.RatePerSecond > 0 {
		opts.RateLimiter = ratelimit.NewTokenBucket(cfg.RatePerSecond, cfg.Burst, true)
	}
	if cfg.HostRatePerSecond > 0 {
		opts.HostLimiter = ratelimit.NewPerHost(cfg.HostRatePerSecond, cfg.HostBurst, true)
	}
	if cfg.ProxyFile != "" {
		proxies, err := proxy.LoadList(cfg.ProxyFile)
		if err != nil {
			return nil, err
		}
		opts.Proxies = proxies
	}
	return New(opts)
}
