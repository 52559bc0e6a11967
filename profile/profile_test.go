package profile_test

import (
	"errors"
	"testing"

	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

func TestGet_UnknownProfile(t *testing.T) {
	_, err := profile.Get("netscape_4")
	if err == nil {
		t.Fatal("expected error for unknown profile")
	}
	var unknown *gerrors.UnknownProfileError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownProfileError, got %T", err)
	}
	if unknown.Name != "netscape_4" {
		t.Errorf("error names %q, want netscape_4", unknown.Name)
	}
}

func TestGet_ProfileIsolation(t *testing.T) {
	p1, err := profile.Get("chrome_120")
	if err != nil {
		t.Fatal(err)
	}
	p1.TLS.ALPN[0] = "mutated"
	p1.Headers.Default[0].Value = "mutated"
	p1.HTTP2.Settings[0].Value = 1
	p1.HTTP3.MaxData = 1
	p1.ClientHints["Sec-CH-UA"] = "mutated"

	p2, err := profile.Get("chrome_120")
	if err != nil {
		t.Fatal(err)
	}
	if p2.TLS.ALPN[0] == "mutated" {
		t.Error("TLS.ALPN leaked between copies")
	}
	if p2.Headers.Default[0].Value == "mutated" {
		t.Error("Headers.Default leaked between copies")
	}
	if p2.HTTP2.Settings[0].Value == 1 {
		t.Error("HTTP2.Settings leaked between copies")
	}
	if p2.HTTP3.MaxData == 1 {
		t.Error("HTTP3 leaked between copies")
	}
	if p2.ClientHints["Sec-CH-UA"] == "mutated" {
		t.Error("ClientHints leaked between copies")
	}
}

func TestGet_AliasResolvesToBase(t *testing.T) {
	base, err := profile.Get("chrome_120")
	if err != nil {
		t.Fatal(err)
	}
	aliased, err := profile.Get("chrome131")
	if err != nil {
		t.Fatal(err)
	}
	if aliased.Name != base.Name {
		t.Errorf("alias resolved to %q, want %q", aliased.Name, base.Name)
	}
	ua := func(p *profile.Profile) string {
		for _, h := range p.Headers.Default {
			if h.Name == "User-Agent" {
				return h.Value
			}
		}
		return ""
	}
	if ua(aliased) != ua(base) {
		t.Error("alias User-Agent differs from base")
	}
}

func TestCatalog_Invariants(t *testing.T) {
	validALPN := map[string]bool{"http/1.1": true, "h2": true, "h3": true}
	for _, name := range profile.List() {
		p, err := profile.Get(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for _, s := range p.HTTP2.Settings {
			if s.ID == profile.H2SettingEnablePush && s.Value != 0 {
				t.Errorf("%s: ENABLE_PUSH = %d, want 0", name, s.Value)
			}
		}
		for _, token := range p.TLS.ALPN {
			if !validALPN[token] {
				t.Errorf("%s: unexpected ALPN token %q", name, token)
			}
		}
		if len(p.Headers.Order) == 0 || len(p.Headers.Default) == 0 {
			t.Errorf("%s: missing header order or defaults", name)
		}
	}
}

func TestApplyJA3_OverridesAndMirrorsALPN(t *testing.T) {
	p, _ := profile.Get("chrome_120")
	profile.ApplyJA3(p, &profile.JA3{
		Ciphers: []string{"TLS_AES_128_GCM_SHA256", "TLS_AES_256_GCM_SHA384"},
		ALPN:    []string{"http/1.1"},
		Curves:  []string{"X25519"},
	})
	if p.TLS.Ciphers != "TLS_AES_128_GCM_SHA256:TLS_AES_256_GCM_SHA384" {
		t.Errorf("ciphers not overridden: %q", p.TLS.Ciphers)
	}
	if len(p.TLS.ALPN) != 1 || p.TLS.ALPN[0] != "http/1.1" {
		t.Errorf("TLS ALPN not overridden: %v", p.TLS.ALPN)
	}
	if len(p.HTTP2.ALPN) != 1 || p.HTTP2.ALPN[0] != "http/1.1" {
		t.Errorf("HTTP2 ALPN not mirrored: %v", p.HTTP2.ALPN)
	}
	if len(p.TLS.Curves) != 1 {
		t.Errorf("curves not overridden: %v", p.TLS.Curves)
	}
	// SigAlgs were not supplied and must survive.
	if len(p.TLS.SigAlgs) == 0 {
		t.Error("sig_algs should be untouched")
	}
}

func TestApplyTLSOptions_ExtraFP(t *testing.T) {
	p, _ := profile.Get("firefox_120")
	profile.ApplyTLSOptions(p, &profile.TLSOptions{
		JA3Str:    "771,4865,0-23,29,0",
		AkamaiStr: "1:65536;4:131072|12517377|0|m,p,a,s",
		ExtraFP: &profile.ExtraFingerprints{
			ALPN:    []string{"h2"},
			Ciphers: []string{"TLS_AES_128_GCM_SHA256", "TLS_CHACHA20_POLY1305_SHA256"},
		},
	})
	if p.JA3Str == "" || p.AkamaiStr == "" {
		t.Error("ja3_str/akamai_str not recorded")
	}
	if p.TLS.Ciphers != "TLS_AES_128_GCM_SHA256:TLS_CHACHA20_POLY1305_SHA256" {
		t.Errorf("extra_fp ciphers not colon-joined: %q", p.TLS.Ciphers)
	}
	if len(p.HTTP2.ALPN) != 1 || p.HTTP2.ALPN[0] != "h2" {
		t.Errorf("extra_fp ALPN not mirrored into http2: %v", p.HTTP2.ALPN)
	}
}

func TestForceHTTP1(t *testing.T) {
	p, _ := profile.Get("chrome_120")
	profile.ForceHTTP1(p)
	if len(p.TLS.ALPN) != 1 || p.TLS.ALPN[0] != "http/1.1" {
		t.Errorf("TLS ALPN = %v, want [http/1.1]", p.TLS.ALPN)
	}
	if len(p.HTTP2.ALPN) != 1 || p.HTTP2.ALPN[0] != "http/1.1" {
		t.Errorf("HTTP2 ALPN = %v, want [http/1.1]", p.HTTP2.ALPN)
	}
}

func TestGenerateSecCHUA(t *testing.T) {
	got := profile.GenerateSecCHUA("Google Chrome", "120", "")
	want := `"Not_A Brand";v="0", "Chromium";v="120", "Google Chrome";v="120"`
	if got != want {
		t.Errorf("GenerateSecCHUA = %s, want %s", got, want)
	}
}

func TestParseAltSvc(t *testing.T) {
	svcs := profile.ParseAltSvc(`h3=":443"; ma=86400, h3-29="alt.example.com:8443", clear`)
	if ep, ok := svcs["h3"]; !ok || ep.Port != 443 || ep.Host != "" {
		t.Errorf("h3 endpoint = %+v", svcs["h3"])
	}
	if ep := svcs["h3-29"]; ep.Host != "alt.example.com" || ep.Port != 8443 {
		t.Errorf("h3-29 endpoint = %+v", ep)
	}
	if len(profile.ParseAltSvc("clear")) != 0 {
		t.Error("clear should yield no endpoints")
	}
}
