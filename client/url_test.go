package client_test

import (
	"errors"
	"testing"

	"github.com/firasghr/GoStealthClient/client"
	"github.com/firasghr/GoStealthClient/gerrors"
)

func TestParseURL_RejectsNonHTTPSchemes(t *testing.T) {
	for _, raw := range []string{
		"ftp://example.com/file",
		"ws://example.com/socket",
		"file:///etc/passwd",
		"gopher://example.com",
		"example.com/no-scheme",
	} {
		_, err := client.ParseURL(raw)
		var unsupported *gerrors.UnsupportedSchemeError
		if !errors.As(err, &unsupported) {
			t.Errorf("%q: expected UnsupportedSchemeError, got %v", raw, err)
		}
	}
}

func TestParseURL_Defaults(t *testing.T) {
	u, err := client.ParseURL("https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.Port != 443 {
		t.Errorf("https default port = %d, want 443", u.Port)
	}
	if u.Target != "/" {
		t.Errorf("empty path target = %q, want /", u.Target)
	}

	u, err = client.ParseURL("http://example.com:8080/a/b?x=1&y=2#frag")
	if err != nil {
		t.Fatal(err)
	}
	if u.Port != 8080 {
		t.Errorf("explicit port = %d, want 8080", u.Port)
	}
	if u.Target != "/a/b?x=1&y=2" {
		t.Errorf("target = %q: query must be re-attached and the fragment dropped", u.Target)
	}
	if u.Host != "example.com" {
		t.Errorf("host = %q", u.Host)
	}
}
