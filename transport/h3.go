package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/firasghr/GoStealthClient/compression"
	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

// H3Transport runs requests over QUIC, caching one http3 transport per
// (host, port) so the QUIC session is reused across requests.  Used only for
// https targets without a proxy.
type H3Transport struct {
	Verify bool
	Logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*http3.Transport
}

// NewH3Transport creates the per-client H3 session cache.
func NewH3Transport(verify bool, logger *log.Logger) *H3Transport {
	return &H3Transport{
		Verify:   verify,
		Logger:   logger,
		sessions: make(map[string]*http3.Transport),
	}
}

// quicConfigFor translates the profile's HTTP/3 block into QUIC transport
// parameters.  A profile without an http3 block gets library defaults.
func quicConfigFor(p *profile.Profile) *quic.Config {
	cfg := &quic.Config{}
	if p == nil || p.HTTP3 == nil {
		return cfg
	}
	h3 := p.HTTP3
	if h3.MaxStreamData > 0 {
		cfg.InitialStreamReceiveWindow = h3.MaxStreamData
		cfg.MaxStreamReceiveWindow = h3.MaxStreamData
	}
	if h3.MaxData > 0 {
		cfg.InitialConnectionReceiveWindow = h3.MaxData
		cfg.MaxConnectionReceiveWindow = h3.MaxData
	}
	if h3.IdleTimeout > 0 {
		cfg.MaxIdleTimeout = h3.IdleTimeout
	}
	if h3.MaxStreamsBidi > 0 {
		cfg.MaxIncomingStreams = h3.MaxStreamsBidi
	}
	return cfg
}

func (t *H3Transport) session(host string, port int, p *profile.Profile) *http3.Transport {
	key := fmt.Sprintf("%s:%d", host, port)
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[key]; ok {
		return s
	}
	s := &http3.Transport{
		TLSClientConfig: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: !t.Verify, // #nosec G402 – caller-controlled verify switch
		},
		QUICConfig: quicConfigFor(p),
		// The client advertises its own Accept-Encoding and decodes bodies
		// itself, so the library must not inject gzip handling.
		DisableCompression: true,
	}
	t.sessions[key] = s
	return s
}

// RoundTrip performs one request over HTTP/3.  Headers travel minus Host,
// Connection and Transfer-Encoding (the authority is a pseudo-header and
// HTTP/3 has no connection-scoped headers).
func (t *H3Transport) RoundTrip(ctx context.Context, method, rawURL, host string, port int, hdrs []profile.Header, body []byte, p *profile.Profile, timeout time.Duration, autoDecompress bool) (*Response, error) {
	session := t.session(host, port, p)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("transport: build h3 request: %w", err)
	}
	for _, h := range hdrs {
		switch strings.ToLower(h.Name) {
		case "host", "connection", "transfer-encoding":
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	start := time.Now()
	resp, err := session.RoundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &gerrors.TimeoutError{Op: "http/3 request", After: timeout}
		}
		return nil, &gerrors.ProtocolError{Op: "http/3 round trip", Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &gerrors.ProtocolError{Op: "reading h3 body", Cause: err}
	}
	if autoDecompress {
		respBody = compression.DecodeBody(respBody, resp.Header.Get("Content-Encoding"))
	}

	if t.Logger != nil {
		t.Logger.Debug("h3 request completed",
			"method", method,
			"url", rawURL,
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		Reason:      strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprintf("%d", resp.StatusCode))),
		HTTPVersion: "3",
		RawHeaders:  headerMapToList(resp.Header),
		Body:        respBody,
	}, nil
}

// headerMapToList flattens an http.Header into our ordered list shape.  The
// QPACK layer does not expose wire order, so keys are emitted sorted for
// determinism.
func headerMapToList(h http.Header) []profile.Header {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []profile.Header
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, profile.Header{Name: k, Value: v})
		}
	}
	return out
}

// Close shuts every cached QUIC session.
func (t *H3Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for key, s := range t.sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(t.sessions, key)
	}
	return firstErr
}
