package profile

import "strings"

// JA3 carries per-client ClientHello overrides.  Empty fields leave the
// profile value untouched.
type JA3 struct {
	Ciphers []string
	ALPN    []string
	Curves  []string
	SigAlgs []string
}

// TLSOptions carries curl-style TLS configuration: raw ja3/akamai strings
// preserved for the shapers, plus extra fingerprint material.
type TLSOptions struct {
	JA3Str    string
	AkamaiStr string
	ExtraFP   *ExtraFingerprints
}

// ApplyJA3 overwrites the profile's TLS shape with the non-empty JA3 fields.
// ALPN overrides are mirrored into the HTTP/2 block so the two layers never
// disagree about the offered protocols.
func ApplyJA3(p *Profile, ja3 *JA3) {
	if ja3 == nil {
		return
	}
	if len(ja3.Ciphers) > 0 {
		p.TLS.Ciphers = strings.Join(ja3.Ciphers, ":")
	}
	if len(ja3.ALPN) > 0 {
		p.TLS.ALPN = append([]string(nil), ja3.ALPN...)
		p.HTTP2.ALPN = append([]string(nil), ja3.ALPN...)
	}
	if len(ja3.Curves) > 0 {
		p.TLS.Curves = append([]string(nil), ja3.Curves...)
	}
	if len(ja3.SigAlgs) > 0 {
		p.TLS.SigAlgs = append([]string(nil), ja3.SigAlgs...)
	}
}

// ApplyTLSOptions records ja3_str/akamai_str verbatim on the profile and
// folds ExtraFP material into the TLS (and, for ALPN, HTTP/2) blocks.
func ApplyTLSOptions(p *Profile, opts *TLSOptions) {
	if opts == nil {
		return
	}
	if opts.JA3Str != "" {
		p.JA3Str = opts.JA3Str
	}
	if opts.AkamaiStr != "" {
		p.AkamaiStr = opts.AkamaiStr
	}
	fp := opts.ExtraFP
	if fp == nil {
		return
	}
	p.ExtraFP = &ExtraFingerprints{
		ALPN:       append([]string(nil), fp.ALPN...),
		Ciphers:    append([]string(nil), fp.Ciphers...),
		Curves:     append([]string(nil), fp.Curves...),
		SigAlgs:    append([]string(nil), fp.SigAlgs...),
		Extensions: append([]string(nil), fp.Extensions...),
	}
	if len(fp.ALPN) > 0 {
		p.TLS.ALPN = append([]string(nil), fp.ALPN...)
		p.HTTP2.ALPN = append([]string(nil), fp.ALPN...)
	}
	if len(fp.Ciphers) > 0 {
		p.TLS.Ciphers = strings.Join(fp.Ciphers, ":")
	}
	if len(fp.Curves) > 0 {
		p.TLS.Curves = append([]string(nil), fp.Curves...)
	}
	if len(fp.SigAlgs) > 0 {
		p.TLS.SigAlgs = append([]string(nil), fp.SigAlgs...)
	}
}

// ForceHTTP1 pins both the TLS and HTTP/2 ALPN lists to http/1.1.  The
// client applies this before any connection is opened when the caller
// disabled HTTP/3 and asked for HTTP/1.1 only; the H3 transport offers "h3"
// on the QUIC side independently, so this never affects it.
func ForceHTTP1(p *Profile) {
	p.TLS.ALPN = []string{"http/1.1"}
	p.HTTP2.ALPN = []string{"http/1.1"}
}
