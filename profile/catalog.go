package profile

import (
	"sort"
	"sync"
	"time"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// chromeCiphers is the Chrome 120 cipher suite order, shared by every
// Chromium-derived profile (Edge, Opera, Brave, Android Chrome).
const chromeCiphers = "TLS_AES_128_GCM_SHA256:" +
	"TLS_AES_256_GCM_SHA384:" +
	"TLS_CHACHA20_POLY1305_SHA256:" +
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:" +
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:" +
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:" +
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:" +
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:" +
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:" +
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA:" +
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:" +
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA:" +
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA:" +
	"TLS_RSA_WITH_AES_128_GCM_SHA256:" +
	"TLS_RSA_WITH_AES_256_GCM_SHA384:" +
	"TLS_RSA_WITH_AES_128_CBC_SHA:" +
	"TLS_RSA_WITH_AES_256_CBC_SHA"

// firefoxCiphers is the Firefox cipher order (ChaCha20 promoted above
// AES-256-GCM in the TLS 1.3 block, no plain-RSA suites).
const firefoxCiphers = "TLS_AES_128_GCM_SHA256:" +
	"TLS_CHACHA20_POLY1305_SHA256:" +
	"TLS_AES_256_GCM_SHA384:" +
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:" +
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:" +
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256:" +
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:" +
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:" +
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:" +
	"TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA:" +
	"TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:" +
	"TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA:" +
	"TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA"

// libresslCiphers uses OpenSSL short names for builds whose TLS stack does
// not accept IANA long names.
const libresslCiphers = "ECDHE-ECDSA-AES128-GCM-SHA256:" +
	"ECDHE-RSA-AES128-GCM-SHA256:" +
	"ECDHE-ECDSA-CHACHA20-POLY1305:" +
	"ECDHE-RSA-CHACHA20-POLY1305:" +
	"ECDHE-ECDSA-AES256-GCM-SHA384:" +
	"ECDHE-RSA-AES256-GCM-SHA384:" +
	"ECDHE-ECDSA-AES128-SHA:" +
	"ECDHE-RSA-AES128-SHA:" +
	"ECDHE-ECDSA-AES256-SHA:" +
	"ECDHE-RSA-AES256-SHA:" +
	"AES128-GCM-SHA256:" +
	"AES256-GCM-SHA384:" +
	"AES128-SHA:" +
	"AES256-SHA"

var chromeSigAlgs = []string{
	"ecdsa_secp256r1_sha256",
	"rsa_pss_rsae_sha256",
	"rsa_pkcs1_sha256",
	"ecdsa_secp384r1_sha384",
	"rsa_pss_rsae_sha384",
	"rsa_pkcs1_sha384",
	"rsa_pss_rsae_sha512",
	"rsa_pkcs1_sha512",
}

func chromeTLS() TLS {
	return TLS{
		Ciphers: chromeCiphers,
		ALPN:    []string{"h2", "http/1.1"},
		Curves:  []string{"X25519", "prime256v1", "secp521r1", "secp384r1"},
		SigAlgs: append([]string(nil), chromeSigAlgs...),
	}
}

func firefoxTLS() TLS {
	return TLS{
		Ciphers: firefoxCiphers,
		ALPN:    []string{"h2", "http/1.1"},
		Curves:  []string{"X25519", "secp256r1", "secp384r1"},
		SigAlgs: append([]string(nil), chromeSigAlgs...),
	}
}

func chromeHTTP2() HTTP2 {
	return HTTP2{
		Settings: []H2Setting{
			{H2SettingHeaderTableSize, 65536},
			{H2SettingEnablePush, 0},
			{H2SettingMaxConcurrentStreams, 1000},
			{H2SettingInitialWindowSize, 6291456},
			{H2SettingMaxHeaderListSize, 262144},
		},
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		ALPN:              []string{"h2", "http/1.1"},
	}
}

func firefoxHTTP2() HTTP2 {
	return HTTP2{
		Settings: []H2Setting{
			{H2SettingHeaderTableSize, 65536},
			{H2SettingEnablePush, 0},
			{H2SettingMaxConcurrentStreams, 256},
			{H2SettingInitialWindowSize, 131072},
			{H2SettingMaxHeaderListSize, 8000},
		},
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		ALPN:              []string{"h2", "http/1.1"},
	}
}

func safariHTTP2() HTTP2 {
	return HTTP2{
		Settings: []H2Setting{
			{H2SettingHeaderTableSize, 65536},
			{H2SettingEnablePush, 0},
			{H2SettingMaxConcurrentStreams, 100},
			{H2SettingInitialWindowSize, 1048576},
			{H2SettingMaxHeaderListSize, 262144},
		},
		PseudoHeaderOrder: []string{":method", ":path", ":authority", ":scheme"},
		ALPN:              []string{"h2", "http/1.1"},
	}
}

func chromeHTTP3() *HTTP3 {
	return &HTTP3{
		MaxStreamData:  1048576,
		MaxData:        10485760,
		IdleTimeout:    30 * time.Second,
		MaxStreamsBidi: 100,
	}
}

func firefoxHTTP3() *HTTP3 {
	return &HTTP3{
		MaxStreamData:  262144,
		MaxData:        1048576,
		IdleTimeout:    30 * time.Second,
		MaxStreamsBidi: 100,
	}
}

var chromeHeaderOrder = []string{
	"Host",
	"Connection",
	"Pragma",
	"Cache-Control",
	"Upgrade-Insecure-Requests",
	"User-Agent",
	"Accept",
	"Sec-Fetch-Site",
	"Sec-Fetch-Mode",
	"Sec-Fetch-User",
	"Sec-Fetch-Dest",
	"Accept-Encoding",
	"Accept-Language",
}

var firefoxHeaderOrder = []string{
	"Host",
	"User-Agent",
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
	"Connection",
	"Upgrade-Insecure-Requests",
	"Pragma",
	"Cache-Control",
}

var safariHeaderOrder = []string{
	"Host",
	"Connection",
	"Upgrade-Insecure-Requests",
	"User-Agent",
	"Accept",
	"Accept-Language",
	"Accept-Encoding",
}

const (
	chromeAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	firefoxAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// chromeHeaders builds the Chromium default header block with the given
// User-Agent and Accept values.
func chromeHeaders(userAgent, accept string) Headers {
	return Headers{
		Order: append([]string(nil), chromeHeaderOrder...),
		Default: []Header{
			{"Connection", "keep-alive"},
			{"Pragma", "no-cache"},
			{"Cache-Control", "no-cache"},
			{"Upgrade-Insecure-Requests", "1"},
			{"User-Agent", userAgent},
			{"Accept", accept},
			{"Sec-Fetch-Site", "none"},
			{"Sec-Fetch-Mode", "navigate"},
			{"Sec-Fetch-User", "?1"},
			{"Sec-Fetch-Dest", "document"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Accept-Language", "en-US,en;q=0.9"},
		},
	}
}

func firefoxHeaders(userAgent string) Headers {
	return Headers{
		Order: append([]string(nil), firefoxHeaderOrder...),
		Default: []Header{
			{"User-Agent", userAgent},
			{"Accept", firefoxAccept},
			{"Accept-Language", "en-US,en;q=0.5"},
			{"Accept-Encoding", "gzip, deflate, br"},
			{"Connection", "keep-alive"},
			{"Upgrade-Insecure-Requests", "1"},
			{"Pragma", "no-cache"},
			{"Cache-Control", "no-cache"},
		},
	}
}

func safariHeaders(userAgent string) Headers {
	return Headers{
		Order: append([]string(nil), safariHeaderOrder...),
		Default: []Header{
			{"Connection", "keep-alive"},
			{"Upgrade-Insecure-Requests", "1"},
			{"User-Agent", userAgent},
			{"Accept", firefoxAccept},
			{"Accept-Language", "en-US,en;q=0.9"},
			{"Accept-Encoding", "gzip, deflate, br"},
		},
	}
}

func chromiumClientHints(brand, version string) map[string]string {
	return map[string]string{
		"Sec-CH-UA":          GenerateSecCHUA(brand, version, ""),
		"Sec-CH-UA-Mobile":   "?0",
		"Sec-CH-UA-Platform": `"macOS"`,
	}
}

// buildCatalog constructs every shipped profile.  Base Chromium/Gecko/WebKit
// identities come first; the remaining entries are variations on those three
// engines with their own User-Agent and, where the real browser differs,
// their own SETTINGS or header blocks.
func buildCatalog() map[string]*Profile {
	catalog := map[string]*Profile{}
	add := func(p *Profile) { catalog[p.Name] = p }

	add(&Profile{
		Name:    "chrome_120",
		TLS:     chromeTLS(),
		HTTP2:   chromeHTTP2(),
		HTTP3:   chromeHTTP3(),
		Headers: chromeHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", chromeAccept),
		ClientHints: chromiumClientHints("Google Chrome", "120"),
	})

	add(&Profile{
		Name: "chrome_120_macos_libressl",
		TLS: TLS{
			Ciphers: libresslCiphers,
			ALPN:    []string{"h2", "http/1.1"},
			Curves:  []string{"X25519", "prime256v1", "secp384r1"},
			SigAlgs: append([]string(nil), chromeSigAlgs...),
		},
		HTTP2:   chromeHTTP2(),
		Headers: chromeHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", chromeAccept),
	})

	android := &Profile{
		Name:    "chrome_120_android",
		TLS:     chromeTLS(),
		HTTP2:   chromeHTTP2(),
		Headers: chromeHeaders("Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"),
		ClientHints: map[string]string{
			"Sec-CH-UA":          GenerateSecCHUA("Google Chrome", "120", ""),
			"Sec-CH-UA-Mobile":   "?1",
			"Sec-CH-UA-Platform": `"Android"`,
		},
	}
	add(android)

	add(&Profile{
		Name:    "firefox_120",
		TLS:     firefoxTLS(),
		HTTP2:   firefoxHTTP2(),
		HTTP3:   firefoxHTTP3(),
		Headers: firefoxHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:120.0) Gecko/20100101 Firefox/120.0"),
	})

	add(&Profile{
		Name:    "firefox_133",
		TLS:     firefoxTLS(),
		HTTP2:   firefoxHTTP2(),
		Headers: firefoxHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0"),
	})

	add(&Profile{
		Name:    "firefox_135_android",
		TLS:     firefoxTLS(),
		HTTP2:   firefoxHTTP2(),
		Headers: firefoxHeaders("Mozilla/5.0 (Android 14; Mobile; rv:135.0) Gecko/135.0 Firefox/135.0"),
	})

	add(&Profile{
		Name:    "safari_170",
		TLS:     chromeTLS(),
		HTTP2:   safariHTTP2(),
		HTTP3:   chromeHTTP3(),
		Headers: safariHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"),
	})

	add(&Profile{
		Name:    "safari_170_ios",
		TLS:     chromeTLS(),
		HTTP2:   safariHTTP2(),
		Headers: safariHeaders("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"),
	})

	add(&Profile{
		Name:    "edge_101",
		TLS:     chromeTLS(),
		HTTP2:   chromeHTTP2(),
		Headers: chromeHeaders("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.4951.64 Safari/537.36 Edg/101.0.1210.47", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"),
		ClientHints: map[string]string{
			"Sec-CH-UA":          GenerateSecCHUA("Microsoft Edge", "101", "101"),
			"Sec-CH-UA-Mobile":   "?0",
			"Sec-CH-UA-Platform": `"Windows"`,
		},
	})

	add(&Profile{
		Name:    "opera_117",
		TLS:     chromeTLS(),
		HTTP2:   chromeHTTP2(),
		HTTP3:   chromeHTTP3(),
		Headers: chromeHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36 OPR/117.0.0.0", chromeAccept),
		ClientHints: chromiumClientHints("Opera", "117"),
	})

	add(&Profile{
		Name:    "brave_133",
		TLS:     chromeTLS(),
		HTTP2:   chromeHTTP2(),
		HTTP3:   chromeHTTP3(),
		Headers: chromeHeaders("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36", chromeAccept),
		ClientHints: chromiumClientHints("Brave", "133"),
	})

	add(&Profile{
		Name:    "tor_145",
		TLS:     firefoxTLS(),
		HTTP2:   firefoxHTTP2(),
		Headers: firefoxHeaders("Mozilla/5.0 (Windows NT 10.0; rv:115.0) Gecko/20100101 Firefox/115.0"),
	})

	return catalog
}

// aliases maps the many version labels callers pass in (matching the naming
// used by other impersonation clients) onto the smaller set of base profiles.
var aliases = map[string]string{
	// Chrome desktop
	"chrome99":  "chrome_120",
	"chrome100": "chrome_120",
	"chrome101": "chrome_120",
	"chrome104": "chrome_120",
	"chrome107": "chrome_120",
	"chrome110": "chrome_120",
	"chrome116": "chrome_120",
	"chrome119": "chrome_120",
	"chrome120": "chrome_120",
	"chrome123": "chrome_120",
	"chrome124": "chrome_120",
	"chrome131": "chrome_120",
	"chrome132": "chrome_120",
	"chrome133a": "chrome_120",
	"chrome134": "chrome_120",
	"chrome135": "chrome_120",
	"chrome136": "chrome_120",
	// Chrome Android
	"chrome99_android":  "chrome_120_android",
	"chrome131_android": "chrome_120_android",
	"chrome132_android": "chrome_120_android",
	"chrome133_android": "chrome_120_android",
	"chrome134_android": "chrome_120_android",
	"chrome135_android": "chrome_120_android",
	// Safari desktop
	"safari153": "safari_170",
	"safari155": "safari_170",
	"safari170": "safari_170",
	"safari180": "safari_170",
	"safari184": "safari_170",
	"safari260": "safari_170",
	// Safari iOS
	"safari172_ios": "safari_170_ios",
	"safari180_ios": "safari_170_ios",
	"safari184_ios": "safari_170_ios",
	"safari260_ios": "safari_170_ios",
	// Firefox
	"firefox133": "firefox_133",
	"firefox135": "firefox_133",
	// Firefox Android
	"firefox135_android": "firefox_135_android",
	// Tor
	"tor145": "tor_145",
	// Edge
	"edge99":  "edge_101",
	"edge101": "edge_101",
	"edge133": "edge_101",
	"edge135": "edge_101",
	// Opera
	"opera117": "opera_117",
	"opera119": "opera_117",
	// Brave
	"brave133": "brave_133",
	"brave135": "brave_133",
}

var catalogOnce = sync.OnceValue(buildCatalog)

// Get returns a deep copy of the named profile, resolving aliases.  Returns
// *gerrors.UnknownProfileError if the name is in neither table.
func Get(name string) (*Profile, error) {
	catalog := catalogOnce()
	if base, ok := aliases[name]; ok {
		name = base
	}
	p, ok := catalog[name]
	if !ok {
		return nil, &gerrors.UnknownProfileError{Name: name}
	}
	return p.Clone(), nil
}

// Has reports whether name resolves to a shipped profile or alias.
func Has(name string) bool {
	if _, ok := aliases[name]; ok {
		return true
	}
	_, ok := catalogOnce()[name]
	return ok
}

// List returns the sorted base profile names (aliases excluded).
func List() []string {
	catalog := catalogOnce()
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aliases returns a copy of the alias table.
func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for alias, base := range aliases {
		out[alias] = base
	}
	return out
}
