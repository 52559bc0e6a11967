package session

import (
	"sort"
	"strings"

	"github.com/firasghr/GoStealthClient/profile"
)

// Jar is a minimal host-scoped cookie store.  Only the name=value of each
// Set-Cookie is kept; attributes (Path, Expires, HttpOnly, Secure, Domain,
// SameSite) are discarded on ingest.  Do not extend this without revisiting
// the session tests that depend on the simple semantics.
type Jar struct {
	store map[string]map[string]string
}

// NewJar creates an empty jar.
func NewJar() *Jar {
	return &Jar{store: make(map[string]map[string]string)}
}

// SetFromHeaders upserts every Set-Cookie found in hdrs under host.
func (j *Jar) SetFromHeaders(hdrs []profile.Header, host string) {
	for _, h := range hdrs {
		if !strings.EqualFold(h.Name, "Set-Cookie") {
			continue
		}
		// Everything past the first ';' is attribute metadata.
		pair, _, _ := strings.Cut(h.Value, ";")
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		if j.store[host] == nil {
			j.store[host] = make(map[string]string)
		}
		j.store[host][name] = value
	}
}

// Set stores one cookie directly.
func (j *Jar) Set(host, name, value string) {
	if j.store[host] == nil {
		j.store[host] = make(map[string]string)
	}
	j.store[host][name] = value
}

// Get returns the value of one cookie, or "".
func (j *Jar) Get(host, name string) string {
	return j.store[host][name]
}

// CookieHeader renders the host's cookies as "k=v; k=v", or "" when none
// are stored.  Names are sorted so the header is deterministic.
func (j *Jar) CookieHeader(host string) string {
	cookies := j.store[host]
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}

// Clear drops every stored cookie.
func (j *Jar) Clear() {
	j.store = make(map[string]map[string]string)
}
