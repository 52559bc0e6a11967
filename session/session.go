// Package session provides the stateful layer over the client: a host-scoped
// cookie jar and automatic Referer tracking across sequential requests.
//
// Both behaviors are per-session, not per-client; a new session starts
// empty.  Sessions are single-owner: they are not intended for concurrent
// use from multiple goroutines.
package session

import (
	"context"
	"strings"

	"github.com/firasghr/GoStealthClient/client"
	"github.com/firasghr/GoStealthClient/profile"
	"github.com/firasghr/GoStealthClient/transport"
)

// Session wraps a Client with cookie persistence and auto-Referer.
type Session struct {
	// Client is the underlying executor.  It may be shared state-wise with
	// nothing: the session owns it and closes it.
	Client *client.Client

	// Cookies is the session's jar, populated from Set-Cookie response
	// headers and replayed as a single Cookie header per request host.
	Cookies *Jar

	// AutoReferer inserts a Referer header carrying the previous request's
	// URL.  On by default.
	AutoReferer bool

	prevURL string
}

// New builds a session with a fresh client.
func New(opts client.Options) (*Session, error) {
	c, err := client.New(opts)
	if err != nil {
		return nil, err
	}
	return FromClient(c), nil
}

// FromClient wraps an existing client.
func FromClient(c *client.Client) *Session {
	return &Session{Client: c, Cookies: NewJar(), AutoReferer: true}
}

// Request executes one request with session state applied: the jar's Cookie
// header (unless the caller provided one) and the auto-Referer (same rule)
// go in before the call; Set-Cookie headers and the previous-URL marker are
// captured after.
func (s *Session) Request(ctx context.Context, method, rawURL string, opts *client.RequestOptions) (*transport.Response, error) {
	if opts == nil {
		opts = &client.RequestOptions{}
	}
	u, err := client.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	hdrs := append([]profile.Header(nil), opts.Headers...)
	if cookie := s.Cookies.CookieHeader(u.Host); cookie != "" && !hasHeader(hdrs, "Cookie") {
		hdrs = append(hdrs, profile.Header{Name: "Cookie", Value: cookie})
	}
	if s.AutoReferer && s.prevURL != "" && !hasHeader(hdrs, "Referer") {
		hdrs = append(hdrs, profile.Header{Name: "Referer", Value: s.prevURL})
	}

	callOpts := *opts
	callOpts.Headers = hdrs
	resp, err := s.Client.Request(ctx, method, rawURL, &callOpts)
	if err != nil {
		return nil, err
	}

	s.Cookies.SetFromHeaders(resp.RawHeaders, u.Host)
	s.prevURL = rawURL
	return resp, nil
}

// Get issues a GET with background context.
func (s *Session) Get(rawURL string, opts *client.RequestOptions) (*transport.Response, error) {
	return s.Request(context.Background(), "GET", rawURL, opts)
}

// Post issues a POST with background context.
func (s *Session) Post(rawURL string, opts *client.RequestOptions) (*transport.Response, error) {
	return s.Request(context.Background(), "POST", rawURL, opts)
}

// Close releases the underlying client.
func (s *Session) Close() error {
	return s.Client.Close()
}

func hasHeader(hdrs []profile.Header, name string) bool {
	for _, h := range hdrs {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}
