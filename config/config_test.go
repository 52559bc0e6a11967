package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/firasghr/GoStealthClient/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeFile(t, `{
		"impersonate": "firefox_133",
		"request_timeout": 5000000000,
		"max_retries": 2,
		"max_per_host": 8,
		"http3": true,
		"rate_per_second": 10,
		"burst": 20
	}`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Impersonate != "firefox_133" {
		t.Errorf("impersonate = %q", cfg.Impersonate)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 2 || cfg.MaxPerHost != 8 || !cfg.HTTP3 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RatePerSecond != 10 || cfg.Burst != 20 {
		t.Errorf("rate config = %v/%v", cfg.RatePerSecond, cfg.Burst)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeFile(t, `{"impersonate": "chrome_120", "typo_field": true}`)
	if _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load("/nonexistent/client.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefault_IndependentCopies(t *testing.T) {
	a := config.Default()
	a.Impersonate = "mutated"
	b := config.Default()
	if b.Impersonate != "chrome_120" {
		t.Errorf("defaults leaked between copies: %q", b.Impersonate)
	}
	if b.RequestTimeout != 10*time.Second {
		t.Errorf("default timeout = %s", b.RequestTimeout)
	}
	if b.MaxPerHost != 4 {
		t.Errorf("default max_per_host = %d", b.MaxPerHost)
	}
}
