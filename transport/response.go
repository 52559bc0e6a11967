// Package transport implements the version-specific request engines
// (HTTP/1.1, HTTP/2 over TCP+TLS, HTTP/3 over QUIC), the TLS shaper that
// imprints the profile's ClientHello, the host-keyed connection pool, and
// the streaming response reader.
package transport

import (
	"encoding/json"
	"strings"

	"github.com/firasghr/GoStealthClient/profile"
)

// Response is the lightweight result every transport returns.  Headers are
// preserved in wire order (needed for round-tripping and cookie extraction);
// lookup helpers provide the case-insensitive view.
type Response struct {
	StatusCode  int
	Reason      string
	HTTPVersion string // "1.1", "2" or "3"
	RawHeaders  []profile.Header
	// Body holds the payload after any automatic decompression.
	Body []byte
}

// Header returns the value of the last header matching name
// case-insensitively, or "".
func (r *Response) Header(name string) string {
	value := ""
	for _, h := range r.RawHeaders {
		if strings.EqualFold(h.Name, name) {
			value = h.Value
		}
	}
	return value
}

// HeaderValues returns every value for name in wire order.
func (r *Response) HeaderValues(name string) []string {
	var out []string
	for _, h := range r.RawHeaders {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// HeaderMap returns a lower-cased last-write-wins view of the headers.
func (r *Response) HeaderMap() map[string]string {
	out := make(map[string]string, len(r.RawHeaders))
	for _, h := range r.RawHeaders {
		out[strings.ToLower(h.Name)] = h.Value
	}
	return out
}

// Text decodes the body as UTF-8 text.
func (r *Response) Text() string { return string(r.Body) }

// JSON unmarshals the body into v.
func (r *Response) JSON(v any) error { return json.Unmarshal(r.Body, v) }
