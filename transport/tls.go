package transport

import (
	"context"
	"net"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

// cipherIDs maps both IANA long names and OpenSSL short names onto suite
// identifiers, so profiles written for either naming convention shape the
// same ClientHello.
var cipherIDs = map[string]uint16{
	// TLS 1.3
	"TLS_AES_128_GCM_SHA256":       utls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":       utls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256": utls.TLS_CHACHA20_POLY1305_SHA256,
	// ECDHE
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256":       utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":         utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256": utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256":   utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384":       utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":         utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA":          utls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA":            utls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA":          utls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA":            utls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	// Plain RSA
	"TLS_RSA_WITH_AES_128_GCM_SHA256": utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_RSA_WITH_AES_256_GCM_SHA384": utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_RSA_WITH_AES_128_CBC_SHA":    utls.TLS_RSA_WITH_AES_128_CBC_SHA,
	"TLS_RSA_WITH_AES_256_CBC_SHA":    utls.TLS_RSA_WITH_AES_256_CBC_SHA,
	// OpenSSL short names
	"ECDHE-ECDSA-AES128-GCM-SHA256": utls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES128-GCM-SHA256":   utls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-CHACHA20-POLY1305": utls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	"ECDHE-RSA-CHACHA20-POLY1305":   utls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": utls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-AES256-GCM-SHA384":   utls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-ECDSA-AES128-SHA":        utls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	"ECDHE-RSA-AES128-SHA":          utls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"ECDHE-ECDSA-AES256-SHA":        utls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA,
	"ECDHE-RSA-AES256-SHA":          utls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	"AES128-GCM-SHA256":             utls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"AES256-GCM-SHA384":             utls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"AES128-SHA":                    utls.TLS_RSA_WITH_AES_128_CBC_SHA,
	"AES256-SHA":                    utls.TLS_RSA_WITH_AES_256_CBC_SHA,
}

var curveIDs = map[string]utls.CurveID{
	"X25519":     utls.X25519,
	"x25519":     utls.X25519,
	"prime256v1": utls.CurveP256,
	"secp256r1":  utls.CurveP256,
	"secp384r1":  utls.CurveP384,
	"secp521r1":  utls.CurveP521,
}

var sigSchemes = map[string]utls.SignatureScheme{
	"ecdsa_secp256r1_sha256": utls.ECDSAWithP256AndSHA256,
	"ecdsa_secp384r1_sha384": utls.ECDSAWithP384AndSHA384,
	"ecdsa_secp521r1_sha512": utls.ECDSAWithP521AndSHA512,
	"rsa_pss_rsae_sha256":    utls.PSSWithSHA256,
	"rsa_pss_rsae_sha384":    utls.PSSWithSHA384,
	"rsa_pss_rsae_sha512":    utls.PSSWithSHA512,
	"rsa_pkcs1_sha256":       utls.PKCS1WithSHA256,
	"rsa_pkcs1_sha384":       utls.PKCS1WithSHA384,
	"rsa_pkcs1_sha512":       utls.PKCS1WithSHA512,
	"ed25519":                utls.Ed25519,
}

// helloIDFor picks the parrot family the custom spec is derived from.  The
// family determines everything the profile does not express: extension set
// and order, GREASE placement, compression, key shares.
func helloIDFor(name string) utls.ClientHelloID {
	switch {
	case strings.HasPrefix(name, "firefox"), strings.HasPrefix(name, "tor"):
		return utls.HelloFirefox_120
	case strings.HasPrefix(name, "safari") && strings.Contains(name, "ios"):
		return utls.HelloIOS_14
	case strings.HasPrefix(name, "safari"):
		return utls.HelloSafari_16_0
	case strings.HasPrefix(name, "edge"):
		return utls.HelloEdge_106
	case strings.HasPrefix(name, "chrome"), strings.HasPrefix(name, "opera"), strings.HasPrefix(name, "brave"):
		return utls.HelloChrome_120
	default:
		return utls.HelloChrome_Auto
	}
}

func parseCiphers(list string) []uint16 {
	var out []uint16
	for _, name := range strings.Split(list, ":") {
		if id, ok := cipherIDs[strings.TrimSpace(name)]; ok {
			out = append(out, id)
		}
	}
	return out
}

// buildSpec derives a ClientHelloSpec for the profile: the parrot preset for
// the profile's browser family, with the cipher list, ALPN, curves and
// signature algorithms overridden from the profile where they parse.  Names
// the local stack does not know are skipped rather than fatal, giving the
// reproducible approximation the overlays are defined in terms of.
func buildSpec(p *profile.Profile, alpn []string) (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(helloIDFor(p.Name))
	if err != nil {
		return spec, err
	}

	if ids := parseCiphers(p.TLS.Ciphers); len(ids) > 0 {
		// Chromium presets lead with a GREASE placeholder; keep it so the
		// override does not change the hello's shape class.
		if len(spec.CipherSuites) > 0 && spec.CipherSuites[0] == utls.GREASE_PLACEHOLDER {
			ids = append([]uint16{utls.GREASE_PLACEHOLDER}, ids...)
		}
		spec.CipherSuites = ids
	}

	var curves []utls.CurveID
	for _, name := range p.TLS.Curves {
		if id, ok := curveIDs[name]; ok {
			curves = append(curves, id)
		}
	}
	var sigs []utls.SignatureScheme
	for _, name := range p.TLS.SigAlgs {
		if id, ok := sigSchemes[name]; ok {
			sigs = append(sigs, id)
		}
	}

	for _, ext := range spec.Extensions {
		switch e := ext.(type) {
		case *utls.ALPNExtension:
			if len(alpn) > 0 {
				e.AlpnProtocols = append([]string(nil), alpn...)
			}
		case *utls.SupportedCurvesExtension:
			if len(curves) > 0 {
				if len(e.Curves) > 0 && e.Curves[0] == utls.CurveID(utls.GREASE_PLACEHOLDER) {
					curves = append([]utls.CurveID{utls.CurveID(utls.GREASE_PLACEHOLDER)}, curves...)
				}
				e.Curves = curves
			}
		case *utls.SignatureAlgorithmsExtension:
			if len(sigs) > 0 {
				e.SupportedSignatureAlgorithms = sigs
			}
		}
	}
	return spec, nil
}

// shapeTLS wraps raw in a profile-shaped TLS session.  On any failure of the
// custom hello (spec construction, preset application, or the handshake
// itself) it closes the socket, dials a fresh one, and retries exactly once
// with an unmodified parrot preset; a second failure surfaces
// TLSNegotiationError.  Returns the wrapped connection and negotiated ALPN.
func shapeTLS(ctx context.Context, raw net.Conn, redial func() (net.Conn, error), host string, p *profile.Profile, verify bool, timeout time.Duration) (net.Conn, string, error) {
	alpn := p.TLS.ALPN
	if len(alpn) == 0 {
		alpn = p.HTTP2.ALPN
	}
	cfg := &utls.Config{
		ServerName:         host,
		MinVersion:         utls.VersionTLS12,
		NextProtos:         append([]string(nil), alpn...),
		InsecureSkipVerify: !verify, // #nosec G402 – caller-controlled verify switch
	}

	uconn := utls.UClient(raw, cfg, utls.HelloCustom)
	spec, err := buildSpec(p, alpn)
	if err == nil {
		err = uconn.ApplyPreset(&spec)
	}
	if err == nil {
		err = handshake(ctx, uconn, raw, timeout)
	}
	if err == nil {
		return uconn, uconn.ConnectionState().NegotiatedProtocol, nil
	}
	raw.Close()

	fresh, dialErr := redial()
	if dialErr != nil {
		return nil, "", dialErr
	}
	fallback := utls.UClient(fresh, cfg.Clone(), utls.HelloChrome_Auto)
	if err := handshake(ctx, fallback, fresh, timeout); err != nil {
		fresh.Close()
		return nil, "", &gerrors.TLSNegotiationError{Host: host, Cause: err}
	}
	return fallback, fallback.ConnectionState().NegotiatedProtocol, nil
}

func handshake(ctx context.Context, uconn *utls.UConn, raw net.Conn, timeout time.Duration) error {
	if timeout > 0 {
		_ = raw.SetDeadline(time.Now().Add(timeout))
		defer raw.SetDeadline(time.Time{})
	}
	return uconn.HandshakeContext(ctx)
}
