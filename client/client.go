// Package client implements the request executor: the orchestration layer
// that resolves a profile, canonicalizes headers, encodes the body, applies
// rate limits and retries, negotiates the HTTP version, and drives the
// connection pool.
package client

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/firasghr/GoStealthClient/compression"
	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/headers"
	"github.com/firasghr/GoStealthClient/metrics"
	"github.com/firasghr/GoStealthClient/payload"
	"github.com/firasghr/GoStealthClient/profile"
	"github.com/firasghr/GoStealthClient/proxy"
	"github.com/firasghr/GoStealthClient/ratelimit"
	"github.com/firasghr/GoStealthClient/retry"
	"github.com/firasghr/GoStealthClient/transport"
)

// Options configures a Client.  The zero value is usable: chrome_120,
// 10 second timeout, certificate verification on, automatic decompression
// on, no proxies, no retries, no rate limits.
type Options struct {
	// Impersonate names the browser profile or alias.  Default chrome_120.
	Impersonate string

	// Timeout bounds TCP connect, the TLS handshake, each request/response
	// exchange on a connection, and H3 response completion, independently.
	// The exchange bound is one socket deadline set when the request starts
	// and not renewed per read or write; a streamed body is under it too.
	// Default 10s.
	Timeout time.Duration

	// InsecureSkipVerify disables certificate and hostname verification.
	InsecureSkipVerify bool

	// MaxPerHost bounds idle pooled connections per (scheme, host, port,
	// proxy) key.  Default 4.
	MaxPerHost int

	// Proxies is rotated round-robin when a request does not pin its own.
	Proxies []string

	// JA3 and TLSOptions overlay the resolved profile before any
	// connection is opened.
	JA3        *profile.JA3
	TLSOptions *profile.TLSOptions

	// ForceHTTP1 pins ALPN to http/1.1 (ignored while HTTP3 is on, where
	// the QUIC side negotiates h3 independently).
	ForceHTTP1 bool

	// HTTP3 attempts QUIC first for eligible requests (https, no proxy,
	// host not previously failed).
	HTTP3 bool

	// NoHTTP3Fallback propagates H3 errors instead of retrying over TCP.
	NoHTTP3Fallback bool

	// DisableDecompression turns off transparent content decoding; the
	// request then advertises Accept-Encoding: identity.
	DisableDecompression bool

	// UseNative routes proxyless http-scheme requests through the direct
	// bytes-in/bytes-out fast path, bypassing pool bookkeeping.
	UseNative bool

	// MaxRetries re-executions after the first attempt (0 = run once).
	// RetryPolicy, when set, overrides MaxRetries and the backoff shape.
	MaxRetries  int
	RetryPolicy *retry.Policy

	// RateLimiter gates every request; HostLimiter additionally gates per
	// target host.  A retry re-acquires tokens.
	RateLimiter *ratelimit.TokenBucket
	HostLimiter *ratelimit.PerHost

	// Logger receives debug request/response lines.  Nil is silent.
	Logger *log.Logger

	// ChunkSize is the streaming read granularity.  Default 8192.
	ChunkSize int
}

// RequestOptions carries the per-call inputs.
type RequestOptions struct {
	// Headers are merged over the profile defaults under the profile's
	// header order.  Entries keep their insertion order, so use one entry
	// per name.
	Headers []profile.Header

	// Body selects the request body kind (raw / text / form / JSON /
	// multipart files).
	Body payload.Options

	// Proxy pins a proxy URL for this call, overriding the rotation pool.
	Proxy string

	// ForceHTTP3 attempts QUIC for this call even if the client default is
	// off.
	ForceHTTP3 bool
}

// Client executes requests under a frozen browser-profile contract.  It is
// safe for concurrent use; the pool and limiters serialise their own state.
type Client struct {
	// Profile is the resolved, overlaid profile.  Treat as read-only.
	Profile *profile.Profile

	opts    Options
	pool    *transport.Pool
	h3      *transport.H3Transport
	rotator *proxy.Rotator
	policy  retry.Policy
	logger  *log.Logger
	stats   *metrics.Metrics

	mu       sync.Mutex
	h3Failed map[string]struct{}
	closed   bool
}

// New resolves the impersonation profile, applies overlays, and builds the
// executor.
func New(opts Options) (*Client, error) {
	if opts.Impersonate == "" {
		opts.Impersonate = "chrome_120"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = transport.DefaultChunkSize
	}

	p, err := profile.Get(opts.Impersonate)
	if err != nil {
		return nil, err
	}
	if opts.ForceHTTP1 && !opts.HTTP3 {
		profile.ForceHTTP1(p)
	}
	profile.ApplyTLSOptions(p, opts.TLSOptions)
	profile.ApplyJA3(p, opts.JA3)

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	policy := retry.Policy{
		MaxRetries:      opts.MaxRetries,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		Jitter:          true,
		RetryableStatus: retry.DefaultRetryableStatusCodes(),
	}
	if opts.RetryPolicy != nil {
		policy = *opts.RetryPolicy
	}

	var rotator *proxy.Rotator
	if len(opts.Proxies) > 0 {
		rotator = proxy.NewRotator(opts.Proxies)
	}

	return &Client{
		Profile:  p,
		opts:     opts,
		pool:     transport.NewPool(opts.MaxPerHost),
		h3:       transport.NewH3Transport(!opts.InsecureSkipVerify, logger),
		rotator:  rotator,
		policy:   policy,
		logger:   logger,
		stats:    metrics.New(),
		h3Failed: make(map[string]struct{}),
	}, nil
}

// Metrics exposes the client's request counters.
func (c *Client) Metrics() *metrics.Metrics { return c.stats }

// Request executes one HTTP request.  The retry controller wraps the inner
// execution, so rate-limit tokens are re-acquired on every attempt.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts *RequestOptions) (*transport.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method = strings.ToUpper(method)
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	c.stats.IncrementTotal()
	start := time.Now()

	var resp *transport.Response
	if c.policy.MaxRetries > 0 {
		attempts := 0
		resp, err = retry.Do(ctx, c.policy,
			func(r *transport.Response) int { return r.StatusCode },
			func(ctx context.Context) (*transport.Response, error) {
				attempts++
				return c.execute(ctx, method, rawURL, u, opts)
			})
		c.stats.AddRetried(attempts - 1)
	} else {
		resp, err = c.execute(ctx, method, rawURL, u, opts)
	}

	if err != nil {
		c.stats.IncrementFailed()
		c.logger.Debug("request failed",
			"method", method, "url", rawURL,
			"error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	c.stats.IncrementSucceeded()
	c.logger.Debug("request completed",
		"method", method, "url", rawURL,
		"status", resp.StatusCode, "http_version", resp.HTTPVersion,
		"response_size", len(resp.Body),
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// execute is the inner single attempt the retry controller re-runs.
func (c *Client) execute(ctx context.Context, method, rawURL string, u ParsedURL, opts *RequestOptions) (*transport.Response, error) {
	if err := c.acquireLimiters(ctx, u.Host); err != nil {
		return nil, err
	}

	encoded, err := payload.Encode(method, opts.Body)
	if err != nil {
		return nil, err
	}
	merged := c.buildHeaders(u.Host, encoded, opts.Headers)
	autoDecompress := !c.opts.DisableDecompression

	proxyURL := opts.Proxy
	if proxyURL == "" && c.rotator != nil {
		proxyURL = c.rotator.Next()
	}

	if (c.opts.HTTP3 || opts.ForceHTTP3) && u.Scheme == "https" && proxyURL == "" && !c.h3HasFailed(u.Host) {
		resp, err := c.h3.RoundTrip(ctx, method, rawURL, u.Host, u.Port, merged, encoded.Body, c.Profile, c.opts.Timeout, autoDecompress)
		if err == nil {
			return resp, nil
		}
		if c.opts.NoHTTP3Fallback {
			return nil, err
		}
		c.markH3Failed(u.Host)
		c.stats.IncrementH3Fallbacks()
		c.logger.Debug("h3 failed, falling back to tcp", "host", u.Host, "error", err)
	}

	target := u.Target
	var via *proxy.Proxy
	if proxyURL != "" {
		via, err = proxy.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if via.Scheme == proxy.SchemeHTTP {
			if u.Scheme == "https" {
				// CONNECT tunnelling is not implemented; fail loudly
				// instead of sending plaintext through the proxy.
				return nil, &gerrors.UnsupportedSchemeError{Scheme: "https via http proxy"}
			}
			target = rawURL // absolute-form request-target
		}
	}

	if c.opts.UseNative && u.Scheme == "http" && via == nil {
		return c.nativeRoundTrip(ctx, method, u, merged, encoded.Body, autoDecompress)
	}

	conn, err := c.acquireConn(ctx, u, via)
	if err != nil {
		return nil, err
	}
	resp, err := conn.RoundTrip(ctx, method, target, merged, encoded.Body, autoDecompress)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.pool.Put(conn) // discarded when Connection: close already shut it
	return resp, nil
}

// Stream sends a request and returns a streaming response that owns its
// socket until closed.  Streaming rides HTTP/1.1; the connection is never
// pooled afterwards.
func (c *Client) Stream(ctx context.Context, method, rawURL string, opts *RequestOptions) (*transport.StreamingResponse, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method = strings.ToUpper(method)
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.acquireLimiters(ctx, u.Host); err != nil {
		return nil, err
	}

	encoded, err := payload.Encode(method, opts.Body)
	if err != nil {
		return nil, err
	}
	merged := c.buildHeaders(u.Host, encoded, opts.Headers)

	target := u.Target
	var via *proxy.Proxy
	proxyURL := opts.Proxy
	if proxyURL == "" && c.rotator != nil {
		proxyURL = c.rotator.Next()
	}
	if proxyURL != "" {
		via, err = proxy.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if via.Scheme == proxy.SchemeHTTP {
			if u.Scheme == "https" {
				return nil, &gerrors.UnsupportedSchemeError{Scheme: "https via http proxy"}
			}
			target = rawURL
		}
	}

	conn, err := c.dialFresh(ctx, u, via)
	if err != nil {
		return nil, err
	}
	stream, err := conn.Stream(ctx, method, target, merged, encoded.Body, !c.opts.DisableDecompression, c.opts.ChunkSize)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return stream, nil
}

// nativeRoundTrip is the pool-free fast path: dial, one exchange, close.
// Decompression runs here rather than in the transport, mirroring the
// executor's contract for the native path.
func (c *Client) nativeRoundTrip(ctx context.Context, method string, u ParsedURL, hdrs []profile.Header, body []byte, autoDecompress bool) (*transport.Response, error) {
	conn, err := c.dialFresh(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	resp, err := conn.RoundTrip(ctx, method, u.Target, hdrs, body, false)
	if err != nil {
		return nil, err
	}
	if autoDecompress {
		resp.Body = compression.DecodeBody(resp.Body, resp.Header("Content-Encoding"))
	}
	return resp, nil
}

func (c *Client) acquireLimiters(ctx context.Context, host string) error {
	if c.opts.RateLimiter != nil {
		if err := c.opts.RateLimiter.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if c.opts.HostLimiter != nil {
		if err := c.opts.HostLimiter.Acquire(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) acquireConn(ctx context.Context, u ParsedURL, via *proxy.Proxy) (*transport.Conn, error) {
	key := transport.Key{Scheme: u.Scheme, Host: u.Host, Port: u.Port, Proxy: via.Key()}
	if conn := c.pool.Get(key); conn != nil {
		return conn, nil
	}
	return c.dialFresh(ctx, u, via)
}

func (c *Client) dialFresh(ctx context.Context, u ParsedURL, via *proxy.Proxy) (*transport.Conn, error) {
	return transport.Dial(ctx, u.Scheme, u.Host, u.Port, transport.DialOptions{
		Profile: c.Profile,
		Proxy:   via,
		Timeout: c.opts.Timeout,
		Verify:  !c.opts.InsecureSkipVerify,
		Logger:  c.logger,
	})
}

// buildHeaders merges profile defaults, executor-computed headers, and the
// caller's headers under the profile order, then, when no Connection header
// is present, inserts Connection: keep-alive right after Host.
func (c *Client) buildHeaders(host string, encoded payload.Encoded, user []profile.Header) []profile.Header {
	computed := []profile.Header{
		{Name: "Host", Value: host},
		{Name: "Accept-Encoding", Value: compression.AcceptEncoding(c.Profile, !c.opts.DisableDecompression)},
	}
	if encoded.ContentType != "" {
		computed = append(computed, profile.Header{Name: "Content-Type", Value: encoded.ContentType})
	}
	if encoded.HasBody {
		computed = append(computed, profile.Header{Name: "Content-Length", Value: strconv.Itoa(len(encoded.Body))})
	}

	merged := headers.Canonicalize(c.Profile.Headers.Default, append(computed, user...), c.Profile.Headers.Order)
	oh := headers.FromList(merged)
	if !oh.Has("Connection") {
		oh.Insert(1, "Connection", "keep-alive")
	}
	return oh.Entries()
}

func (c *Client) h3HasFailed(host string) bool {
	c.mu.Lock()
	_, failed := c.h3Failed[host]
	c.mu.Unlock()
	return failed
}

func (c *Client) markH3Failed(host string) {
	c.mu.Lock()
	c.h3Failed[host] = struct{}{}
	c.mu.Unlock()
}

// Close releases pooled connections and cached H3 sessions.  The client
// must not be used afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.h3Failed = make(map[string]struct{})
	c.mu.Unlock()

	c.pool.Close()
	return c.h3.Close()
}

// Get issues a GET with background context.
func (c *Client) Get(rawURL string, opts *RequestOptions) (*transport.Response, error) {
	return c.Request(context.Background(), "GET", rawURL, opts)
}

// Post issues a POST with background context.
func (c *Client) Post(rawURL string, opts *RequestOptions) (*transport.Response, error) {
	return c.Request(context.Background(), "POST", rawURL, opts)
}

// Put issues a PUT with background context.
func (c *Client) Put(rawURL string, opts *RequestOptions) (*transport.Response, error) {
	return c.Request(context.Background(), "PUT", rawURL, opts)
}

// Delete issues a DELETE with background context.
func (c *Client) Delete(rawURL string, opts *RequestOptions) (*transport.Response, error) {
	return c.Request(context.Background(), "DELETE", rawURL, opts)
}

// Head issues a HEAD with background context.
func (c *Client) Head(rawURL string, opts *RequestOptions) (*transport.Response, error) {
	return c.Request(context.Background(), "HEAD", rawURL, opts)
}
