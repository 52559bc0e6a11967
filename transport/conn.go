package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
	"github.com/firasghr/GoStealthClient/proxy"
)

// Conn is a single live TCP/TLS connection usable for one request at a time.
//
// Unique-ownership discipline: the pool hands a Conn to at most one caller;
// the caller either returns it (on success with reusable state) or closes it
// (on error, Connection: close, or after surrendering the socket to a
// StreamingResponse).
type Conn struct {
	Host   string
	Port   int
	Scheme string
	Proxy  *proxy.Proxy

	Profile        *profile.Profile
	NegotiatedALPN string
	CreatedAt      time.Time

	Timeout time.Duration
	Logger  *log.Logger

	sock   net.Conn
	br     *bufio.Reader
	h2     *h2Conn
	closed bool
}

// DialOptions configures Dial.
type DialOptions struct {
	Profile *profile.Profile
	Proxy   *proxy.Proxy
	Timeout time.Duration
	Verify  bool
	Logger  *log.Logger
}

// Dial opens a connection to host:port, traversing the configured proxy and,
// for https, performing the profile-shaped TLS handshake.  The negotiated
// ALPN selects the request engine on first use.
func Dial(ctx context.Context, scheme, host string, port int, opts DialOptions) (*Conn, error) {
	dialer := &proxy.Dialer{Timeout: opts.Timeout}
	raw, err := dialer.Dial(ctx, host, port, opts.Proxy)
	if err != nil {
		return nil, err
	}

	conn := &Conn{
		Host:      host,
		Port:      port,
		Scheme:    scheme,
		Proxy:     opts.Proxy,
		Profile:   opts.Profile,
		CreatedAt: time.Now(),
		Timeout:   opts.Timeout,
		Logger:    opts.Logger,
	}

	if scheme == "https" {
		redial := func() (net.Conn, error) {
			return dialer.Dial(ctx, host, port, opts.Proxy)
		}
		tlsConn, alpn, err := shapeTLS(ctx, raw, redial, host, opts.Profile, opts.Verify, opts.Timeout)
		if err != nil {
			return nil, err
		}
		conn.sock = tlsConn
		conn.NegotiatedALPN = alpn
	} else {
		conn.sock = raw
	}

	conn.br = bufio.NewReader(conn.sock)
	return conn, nil
}

// RoundTrip sends one request and reads the full response, dispatching on
// the negotiated ALPN.  target is the request-target (origin-form, or
// absolute-form when traversing an HTTP proxy).
func (c *Conn) RoundTrip(ctx context.Context, method, target string, hdrs []profile.Header, body []byte, autoDecompress bool) (*Response, error) {
	if c.closed || c.sock == nil {
		return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: net.ErrClosed}
	}
	c.armDeadline(ctx)
	sock := c.sock
	defer sock.SetDeadline(time.Time{}) // no-op error once the conn is closed

	if c.NegotiatedALPN == "h2" {
		return c.roundTripH2(ctx, method, target, hdrs, body, autoDecompress)
	}
	return c.roundTripH1(method, target, hdrs, body, autoDecompress)
}

// Stream sends one request and returns a streaming reader that owns the
// socket until closed.  HTTP/1.1 only; the connection is marked closed so
// the pool never re-issues it.
func (c *Conn) Stream(ctx context.Context, method, target string, hdrs []profile.Header, body []byte, autoDecompress bool, chunkSize int) (*StreamingResponse, error) {
	if c.closed || c.sock == nil {
		return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: net.ErrClosed}
	}
	if c.NegotiatedALPN == "h2" {
		return nil, &gerrors.ProtocolError{Op: "streaming is not supported on HTTP/2 connections"}
	}
	c.armDeadline(ctx)
	return c.streamH1(method, target, hdrs, body, autoDecompress, chunkSize)
}

// armDeadline applies the per-call timeout (and any earlier context
// deadline) to the socket so every read and write is bounded.
func (c *Conn) armDeadline(ctx context.Context) {
	deadline := time.Time{}
	if c.Timeout > 0 {
		deadline = time.Now().Add(c.Timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if !deadline.IsZero() {
		_ = c.sock.SetDeadline(deadline)
	}
}

// Closed reports whether the connection can no longer be used.
func (c *Conn) Closed() bool { return c.closed }

// Close shuts the socket.  Safe to call twice.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sock != nil {
		err := c.sock.Close()
		c.sock = nil
		return err
	}
	return nil
}

// surrender hands the socket to a streaming reader and bars the connection
// from the pool.
func (c *Conn) surrender() (net.Conn, *bufio.Reader) {
	sock, br := c.sock, c.br
	c.sock, c.br = nil, nil
	c.closed = true
	return sock, br
}
