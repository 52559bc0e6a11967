package headers_test

import (
	"strings"
	"testing"

	"github.com/firasghr/GoStealthClient/headers"
	"github.com/firasghr/GoStealthClient/profile"
)

func names(list []profile.Header) []string {
	out := make([]string, len(list))
	for i, h := range list {
		out[i] = h.Name
	}
	return out
}

func TestCanonicalize_OrderStability(t *testing.T) {
	defaults := []profile.Header{
		{Name: "User-Agent", Value: "browser"},
		{Name: "Accept", Value: "*/*"},
		{Name: "Accept-Language", Value: "en-US"},
	}
	user := []profile.Header{
		{Name: "X-Custom", Value: "1"},
		{Name: "accept", Value: "text/html"},
		{Name: "X-Other", Value: "2"},
	}
	order := []string{"Host", "User-Agent", "Accept", "Accept-Language"}

	got := names(headers.Canonicalize(defaults, user, order))
	want := []string{"User-Agent", "accept", "Accept-Language", "X-Custom", "X-Other"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestCanonicalize_LastWriteWinsCasing(t *testing.T) {
	defaults := []profile.Header{{Name: "User-Agent", Value: "default"}}
	user := []profile.Header{{Name: "user-agent", Value: "override"}}

	merged := headers.Canonicalize(defaults, user, nil)
	if len(merged) != 1 {
		t.Fatalf("expected 1 header, got %d", len(merged))
	}
	if merged[0].Name != "user-agent" || merged[0].Value != "override" {
		t.Errorf("got %+v, want the user's casing and value", merged[0])
	}
}

func TestCanonicalize_InjectionImmunity(t *testing.T) {
	defaults := []profile.Header{{Name: "Accept", Value: "*/*"}}
	user := []profile.Header{
		{Name: "X-Evil\r\nInjected", Value: "x"},
		{Name: "X-Value", Value: "a\r\nSet-Cookie: pwned=1"},
		{Name: "X-Null", Value: "a\x00b"},
	}

	merged := headers.Canonicalize(defaults, user, nil)
	if len(merged) != 4 {
		t.Fatalf("expected 4 headers (no new headers created), got %d", len(merged))
	}
	for _, h := range merged {
		if strings.ContainsAny(h.Name, "\r\n\x00") || strings.ContainsAny(h.Value, "\r\n\x00") {
			t.Errorf("forbidden byte survived in %q: %q", h.Name, h.Value)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := headers.Sanitize("a\r\nb\x00c"); got != "abc" {
		t.Errorf("Sanitize = %q, want abc", got)
	}
	if got := headers.Sanitize("clean"); got != "clean" {
		t.Errorf("Sanitize mangled a clean string: %q", got)
	}
}

func TestOrderedHeader_SetReplaces(t *testing.T) {
	oh := headers.FromList(nil)
	oh.Add("User-Agent", "old")
	oh.Add("Accept", "*/*")
	oh.Set("user-agent", "new")

	if got := oh.Get("User-Agent"); got != "new" {
		t.Errorf("after Set: got %q, want new", got)
	}
	if oh.Len() != 2 {
		t.Errorf("expected 2 entries after Set, got %d", oh.Len())
	}
	// Casing of the surviving entry follows the Set call.
	if oh.Entries()[0].Name != "user-agent" {
		t.Errorf("surviving casing = %q, want user-agent", oh.Entries()[0].Name)
	}
}

func TestOrderedHeader_Insert(t *testing.T) {
	oh := headers.FromList([]profile.Header{
		{Name: "Host", Value: "example.com"},
		{Name: "Accept", Value: "*/*"},
	})
	oh.Insert(1, "Connection", "keep-alive")

	got := names(oh.Entries())
	want := []string{"Host", "Connection", "Accept"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("after Insert: %v, want %v", got, want)
	}
}

func TestOrderedHeader_DelAndHas(t *testing.T) {
	oh := headers.FromList(nil)
	oh.Add("X-Foo", "bar")
	oh.Add("X-Baz", "qux")
	oh.Del("x-foo")

	if oh.Has("X-Foo") {
		t.Error("X-Foo should be gone after Del")
	}
	if !oh.Has("x-baz") {
		t.Error("X-Baz lookup should be case-insensitive")
	}
	if oh.Len() != 1 {
		t.Errorf("expected 1 entry after Del, got %d", oh.Len())
	}
}

func TestOrderedHeader_Clone(t *testing.T) {
	oh := headers.FromList([]profile.Header{{Name: "A", Value: "1"}})
	c := oh.Clone()
	c.Add("B", "2")

	if oh.Len() != 1 {
		t.Error("Clone should not affect original length")
	}
	if c.Len() != 2 {
		t.Error("cloned header should have 2 entries")
	}
}
