package profile

import (
	"fmt"
	"strconv"
	"strings"
)

// GenerateSecCHUA builds a Sec-CH-UA header value for a Chromium-derived
// browser.  chromiumVersion may be empty when it matches the browser's own
// major version.
func GenerateSecCHUA(browser, version, chromiumVersion string) string {
	if chromiumVersion == "" {
		chromiumVersion = version
	}
	return fmt.Sprintf(`"Not_A Brand";v=%q, "Chromium";v=%q, %q;v=%q`,
		notABrandVersion(version), chromiumVersion, browser, version)
}

// GenerateSecCHUAFullVersionList builds a Sec-CH-UA-Full-Version-List value
// from full (dotted) version strings.
func GenerateSecCHUAFullVersionList(browser, fullVersion, chromiumFullVersion string) string {
	if chromiumFullVersion == "" {
		chromiumFullVersion = fullVersion
	}
	major := fullVersion
	if i := strings.IndexByte(fullVersion, '.'); i >= 0 {
		major = fullVersion[:i]
	}
	return fmt.Sprintf(`"Not_A Brand";v=%q, "Chromium";v=%q, %q;v=%q`,
		notABrandVersion(major)+".0.0.0", chromiumFullVersion, browser, fullVersion)
}

// notABrandVersion derives the "Not A Brand" placeholder version the way
// Chromium does: it varies with the browser's major version.
func notABrandVersion(version string) string {
	if n, err := strconv.Atoi(version); err == nil {
		return strconv.Itoa(n % 24)
	}
	return "8"
}

// lowEntropyHints are sent by browsers on every request without a server
// opt-in; the remainder require Accept-CH.
var lowEntropyHints = []string{"Sec-CH-UA", "Sec-CH-UA-Mobile", "Sec-CH-UA-Platform"}

var highEntropyHints = []string{
	"Sec-CH-UA-Platform-Version",
	"Sec-CH-UA-Full-Version-List",
	"Sec-CH-UA-Arch",
	"Sec-CH-UA-Bitness",
	"Sec-CH-UA-Model",
}

// ClientHintHeaders extracts the client-hint headers a browser with this
// profile would transmit.  High-entropy hints are included only when the
// server requested them via Accept-CH.
func (p *Profile) ClientHintHeaders(includeHighEntropy bool) []Header {
	if len(p.ClientHints) == 0 {
		return nil
	}
	var out []Header
	for _, name := range lowEntropyHints {
		if v, ok := p.ClientHints[name]; ok {
			out = append(out, Header{Name: name, Value: v})
		}
	}
	if includeHighEntropy {
		for _, name := range highEntropyHints {
			if v, ok := p.ClientHints[name]; ok {
				out = append(out, Header{Name: name, Value: v})
			}
		}
	}
	return out
}
