// Package headers implements the deterministic header canonicalizer.
//
// Servers that profile client fingerprints inspect both the capitalisation
// (e.g. "sec-ch-ua-platform" vs "Sec-Ch-Ua-Platform") and the ordering of
// request headers, so the merge of profile defaults with caller headers must
// be reproducible byte for byte.  Canonicalize implements that merge under a
// profile-defined order and silently strips the bytes that enable header
// injection (CR, LF, NUL) from every name and value.
package headers

import (
	"strings"

	"github.com/firasghr/GoStealthClient/profile"
)

// Sanitize removes CR, LF and NUL from s.  Stripping rather than rejecting
// keeps a benign-looking value with an embedded newline from crashing the
// caller while still closing the response-splitting and cookie/host
// smuggling classes.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n\x00") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\r', '\n', 0x00:
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Canonicalize merges defaults with user headers under order.
//
// Both sources are sanitized, then inserted into a working set keyed by the
// lower-cased name: defaults first, user entries after, last write winning
// while retaining the casing of the last source.  Headers whose lower-cased
// name appears in order are emitted first, in order's sequence; the rest
// follow in their original insertion order.
func Canonicalize(defaults []profile.Header, user []profile.Header, order []string) []profile.Header {
	type slot struct {
		header profile.Header
		live   bool
	}
	index := make(map[string]int, len(defaults)+len(user))
	slots := make([]slot, 0, len(defaults)+len(user))

	insert := func(h profile.Header) {
		h.Name = Sanitize(h.Name)
		h.Value = Sanitize(h.Value)
		key := strings.ToLower(h.Name)
		if i, ok := index[key]; ok {
			slots[i].header = h
			return
		}
		index[key] = len(slots)
		slots = append(slots, slot{header: h, live: true})
	}
	for _, h := range defaults {
		insert(h)
	}
	for _, h := range user {
		insert(h)
	}

	out := make([]profile.Header, 0, len(slots))
	for _, name := range order {
		if i, ok := index[strings.ToLower(name)]; ok && slots[i].live {
			out = append(out, slots[i].header)
			slots[i].live = false
		}
	}
	for i := range slots {
		if slots[i].live {
			out = append(out, slots[i].header)
		}
	}
	return out
}

// OrderedHeader is a small companion to the canonicalizer that preserves the
// exact capitalisation and insertion order of HTTP headers, unlike the
// standard library's map-backed http.Header.
//
// OrderedHeader is not safe for concurrent use; each request plan owns
// exactly one.
type OrderedHeader struct {
	entries []profile.Header
}

// FromList wraps a canonicalized header list.  The slice is copied.
func FromList(list []profile.Header) *OrderedHeader {
	return &OrderedHeader{entries: append([]profile.Header(nil), list...)}
}

// Add appends a header, preserving the exact casing of name.
func (h *OrderedHeader) Add(name, value string) {
	h.entries = append(h.entries, profile.Header{Name: Sanitize(name), Value: Sanitize(value)})
}

// Set replaces the first entry matching name case-insensitively, removing
// later duplicates; if absent it behaves like Add.  The surviving entry
// adopts name's casing.
func (h *OrderedHeader) Set(name, value string) {
	key := strings.ToLower(name)
	replaced := false
	out := h.entries[:0]
	for _, e := range h.entries {
		if strings.ToLower(e.Name) == key {
			if !replaced {
				out = append(out, profile.Header{Name: Sanitize(name), Value: Sanitize(value)})
				replaced = true
			}
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, profile.Header{Name: Sanitize(name), Value: Sanitize(value)})
	}
	h.entries = out
}

// Insert places a header at position i, shifting later entries.  An index
// past the end appends.
func (h *OrderedHeader) Insert(i int, name, value string) {
	if i < 0 {
		i = 0
	}
	if i >= len(h.entries) {
		h.Add(name, value)
		return
	}
	entry := profile.Header{Name: Sanitize(name), Value: Sanitize(value)}
	h.entries = append(h.entries[:i], append([]profile.Header{entry}, h.entries[i:]...)...)
}

// Del removes every entry matching name case-insensitively.
func (h *OrderedHeader) Del(name string) {
	key := strings.ToLower(name)
	out := h.entries[:0]
	for _, e := range h.entries {
		if strings.ToLower(e.Name) != key {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the first value matching name case-insensitively, or "".
func (h *OrderedHeader) Get(name string) string {
	key := strings.ToLower(name)
	for _, e := range h.entries {
		if strings.ToLower(e.Name) == key {
			return e.Value
		}
	}
	return ""
}

// Has reports whether an entry matching name exists.
func (h *OrderedHeader) Has(name string) bool {
	key := strings.ToLower(name)
	for _, e := range h.entries {
		if strings.ToLower(e.Name) == key {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (h *OrderedHeader) Len() int { return len(h.entries) }

// Entries returns the backing slice in insertion order.  Callers must not
// mutate it.
func (h *OrderedHeader) Entries() []profile.Header { return h.entries }

// Clone returns an independent copy.
func (h *OrderedHeader) Clone() *OrderedHeader {
	c := &OrderedHeader{entries: make([]profile.Header, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}
