// Package gerrors defines the structured error types shared by the client,
// transport, and proxy layers.
//
// Callers (and the retry controller) classify transport failures by type
// rather than by string matching; IsRetriable below does this with
// errors.As.  Types that represent transient transport conditions also
// implement a Temporary method returning true.
package gerrors

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// UnknownProfileError is returned when an impersonation profile or alias is
// not present in the catalog.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown impersonation profile %q", e.Name)
}

// UnsupportedSchemeError is returned for URLs or proxy URLs whose scheme the
// client does not speak.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme %q: only http and https are supported", e.Scheme)
}

// ConnectError wraps a failed TCP connect to the target or proxy.
type ConnectError struct {
	Host  string
	Port  int
	Cause error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("tcp connect %s:%d: %v", e.Host, e.Port, e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// Temporary marks connect failures as retriable.
func (e *ConnectError) Temporary() bool { return true }

// TLSNegotiationError is returned when the TLS handshake failed even after
// the one degraded-context retry the shaper performs.
type TLSNegotiationError struct {
	Host  string
	Cause error
}

func (e *TLSNegotiationError) Error() string {
	return fmt.Sprintf("tls handshake with %s: %v", e.Host, e.Cause)
}

func (e *TLSNegotiationError) Unwrap() error { return e.Cause }

// Temporary marks handshake failures as retriable; the retry controller
// retries them on a fresh connection like any other retriable error.
func (e *TLSNegotiationError) Temporary() bool { return true }

// ProxyNegotiationError is returned when the SOCKS5 greeting, authentication
// or CONNECT exchange fails, or when an HTTP proxy rejects the request.
type ProxyNegotiationError struct {
	Stage  string // "greeting", "auth", "connect", "reply"
	Reason string
	Cause  error
}

func (e *ProxyNegotiationError) Error() string {
	msg := fmt.Sprintf("proxy negotiation failed at %s: %s", e.Stage, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProxyNegotiationError) Unwrap() error { return e.Cause }

// ProtocolError is returned for malformed wire data: bad status lines,
// header lines, chunk sizes, H2 stream resets, or H3 framing problems.
type ProtocolError struct {
	Op    string
	Cause error
}

func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Op, e.Cause)
	}
	return "protocol error: " + e.Op
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// TimeoutError is returned when any configured per-call timeout elapsed.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s did not complete within %s", e.Op, e.After)
}

// Timeout satisfies net.Error-style checks.
func (e *TimeoutError) Timeout() bool   { return true }
func (e *TimeoutError) Temporary() bool { return true }

// HTTP3NotAvailableError is returned when HTTP/3 was requested but no QUIC
// backend is usable for the request (for example a proxy is configured, or
// the scheme is not https).
type HTTP3NotAvailableError struct {
	Reason string
}

func (e *HTTP3NotAvailableError) Error() string {
	return "http/3 not available: " + e.Reason
}

// IsRetriable reports whether err belongs to a failure class the retry
// controller should back off and re-execute: connect failures, timeouts,
// TLS handshake failures, and OS-level I/O errors.  Protocol, profile,
// scheme, and proxy-negotiation errors are terminal.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var (
		connErr *ConnectError
		tlsErr  *TLSNegotiationError
		toErr   *TimeoutError
	)
	if errors.As(err, &connErr) || errors.As(err, &tlsErr) || errors.As(err, &toErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
