// Package profile holds the static browser impersonation catalog and the
// overlay machinery that customises a profile for a single client.
//
// A Profile bundles every correlated fingerprint signal a detection system
// inspects: the TLS ClientHello shape (ciphers, ALPN, curves, signature
// algorithms), the HTTP/2 SETTINGS frame and pseudo-header order, the QUIC
// transport parameters for HTTP/3, and the HTTP header order and defaults.
// A mismatch between any of these signals is a reliable automation
// indicator, so they are always handed out together.
//
// Profiles are immutable after construction: Get returns a deep copy, and
// overlays mutate only that copy.
package profile

import "time"

// H2SettingID identifies an HTTP/2 SETTINGS parameter (RFC 7540 §6.5.2).
type H2SettingID uint16

const (
	H2SettingHeaderTableSize      H2SettingID = 0x1
	H2SettingEnablePush           H2SettingID = 0x2
	H2SettingMaxConcurrentStreams H2SettingID = 0x3
	H2SettingInitialWindowSize    H2SettingID = 0x4
	H2SettingMaxFrameSize         H2SettingID = 0x5
	H2SettingMaxHeaderListSize    H2SettingID = 0x6
)

// H2Setting is a single SETTINGS entry.  Settings are kept as an ordered
// slice, not a map: the order the browser writes them in is itself part of
// the fingerprint (the akamai_str first field).
type H2Setting struct {
	ID    H2SettingID
	Value uint32
}

// TLS describes the ClientHello shape for the profile.
type TLS struct {
	// Ciphers is a colon-joined, ordered cipher suite list using IANA
	// TLS_* names or OpenSSL short names (as the libressl profile does).
	Ciphers string
	// ALPN protocols offered in the TLS extension, in order.
	ALPN []string
	// Curves (supported groups), in order.
	Curves []string
	// SigAlgs (signature algorithms), in order.
	SigAlgs []string
}

// HTTP2 describes the HTTP/2 connection fingerprint.
type HTTP2 struct {
	Settings          []H2Setting
	PseudoHeaderOrder []string
	ALPN              []string
}

// HTTP3 carries the QUIC transport parameters used when the caller enables
// HTTP/3.  Profiles that predate H3 leave this nil.
type HTTP3 struct {
	MaxStreamData  uint64
	MaxData        uint64
	IdleTimeout    time.Duration
	MaxStreamsBidi int64
}

// Header is an ordered name/value pair preserving exact casing.
type Header struct {
	Name  string
	Value string
}

// Headers bundles the default request headers and the order every request's
// headers are emitted in.  Order entries are matched case-insensitively.
type Headers struct {
	Order   []string
	Default []Header
}

// ExtraFingerprints carries additional fingerprint material supplied by the
// caller (curl-style extra_fp).  It is stored on the profile and consumed by
// the TLS shaper where the local stack can express it.
type ExtraFingerprints struct {
	ALPN       []string
	Ciphers    []string
	Curves     []string
	SigAlgs    []string
	Extensions []string
}

// Profile is one browser identity.  All slices and maps are owned by the
// profile; Get hands out deep copies so callers can mutate freely.
type Profile struct {
	Name  string
	TLS   TLS
	HTTP2 HTTP2
	HTTP3 *HTTP3

	Headers Headers

	// ClientHints and CanvasWebGL are telemetry values carried verbatim.
	// They have no transport semantics; callers surface them through
	// non-HTTP channels.
	ClientHints map[string]string
	CanvasWebGL map[string]string

	// Overlay metadata recorded by ApplyTLSOptions.
	JA3Str    string
	AkamaiStr string
	ExtraFP   *ExtraFingerprints
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.TLS.ALPN = cloneStrings(p.TLS.ALPN)
	c.TLS.Curves = cloneStrings(p.TLS.Curves)
	c.TLS.SigAlgs = cloneStrings(p.TLS.SigAlgs)
	c.HTTP2.Settings = append([]H2Setting(nil), p.HTTP2.Settings...)
	c.HTTP2.PseudoHeaderOrder = cloneStrings(p.HTTP2.PseudoHeaderOrder)
	c.HTTP2.ALPN = cloneStrings(p.HTTP2.ALPN)
	if p.HTTP3 != nil {
		h3 := *p.HTTP3
		c.HTTP3 = &h3
	}
	c.Headers.Order = cloneStrings(p.Headers.Order)
	c.Headers.Default = append([]Header(nil), p.Headers.Default...)
	c.ClientHints = cloneMap(p.ClientHints)
	c.CanvasWebGL = cloneMap(p.CanvasWebGL)
	if p.ExtraFP != nil {
		fp := ExtraFingerprints{
			ALPN:       cloneStrings(p.ExtraFP.ALPN),
			Ciphers:    cloneStrings(p.ExtraFP.Ciphers),
			Curves:     cloneStrings(p.ExtraFP.Curves),
			SigAlgs:    cloneStrings(p.ExtraFP.SigAlgs),
			Extensions: cloneStrings(p.ExtraFP.Extensions),
		}
		c.ExtraFP = &fp
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
