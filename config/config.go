// Package config provides JSON-based configuration for the client with safe
// defaults, so deployments can tune impersonation, timeouts, retries, rate
// limits, and proxies without code changes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds the tunable parameters for a client.  The struct is loaded
// once at startup and then shared as a read-only value, making it
// inherently thread-safe after initialization.
type Config struct {
	// Impersonate is the browser profile or alias name.
	Impersonate string `json:"impersonate"`

	// RequestTimeout bounds connect, TLS handshake, the whole
	// request/response exchange (one socket deadline, not renewed per
	// read/write), and H3 completion per request.
	RequestTimeout time.Duration `json:"request_timeout"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	// MaxRetries is the number of re-executions after a failed attempt.
	MaxRetries int `json:"max_retries"`

	// MaxPerHost caps idle pooled connections per pool key.
	MaxPerHost int `json:"max_per_host"`

	// ProxyFile is a newline-delimited file of proxy URLs; empty runs
	// direct.
	ProxyFile string `json:"proxy_file"`

	// HTTP3 attempts QUIC first for eligible requests.
	HTTP3 bool `json:"http3"`

	// RatePerSecond and Burst configure the global token bucket; a zero
	// rate disables it.
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`

	// HostRatePerSecond and HostBurst configure the per-host buckets.
	HostRatePerSecond float64 `json:"host_rate_per_second"`
	HostBurst         int     `json:"host_burst"`
}

// Load reads a JSON file into a Config.  Unknown fields are rejected so
// typos in config files surface early.
func Load(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 – filename is a caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return &cfg, nil
}

// Default returns a Config pre-filled with the shipped defaults.  Each call
// returns a fresh independent copy callers may mutate.
func Default() *Config {
	return &Config{
		Impersonate:    "chrome_120",
		RequestTimeout: 10 * time.Second,
		MaxRetries:     0,
		MaxPerHost:     4,
	}
}
