// Package proxy provides proxy URL parsing, the socket-opening dialer
// (direct, HTTP proxy, SOCKS5/SOCKS5h), and thread-safe proxy rotation.
package proxy

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// Scheme is a supported proxy protocol.
type Scheme string

const (
	SchemeHTTP Scheme = "http"
	// SchemeSOCKS5 resolves the target hostname locally and sends an IP
	// address in the CONNECT request.
	SchemeSOCKS5 Scheme = "socks5"
	// SchemeSOCKS5H delegates hostname resolution to the proxy by sending
	// the domain name itself.
	SchemeSOCKS5H Scheme = "socks5h"
)

// Proxy is a parsed proxy specification.
type Proxy struct {
	Scheme   Scheme
	Host     string
	Port     int
	Username string
	Password string
}

// Parse validates a proxy URL.  Userinfo supplies optional SOCKS5
// credentials; a missing port defaults to 80 for http and 1080 for the
// SOCKS5 variants.
func Parse(rawURL string) (*Proxy, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse %q: %w", rawURL, err)
	}
	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeHTTP, SchemeSOCKS5, SchemeSOCKS5H:
	default:
		return nil, &gerrors.UnsupportedSchemeError{Scheme: u.Scheme}
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy: %q has no host", rawURL)
	}
	p := &Proxy{Scheme: scheme, Host: u.Hostname()}
	if port := u.Port(); port != "" {
		p.Port, err = strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("proxy: invalid port in %q: %w", rawURL, err)
		}
	} else if scheme == SchemeHTTP {
		p.Port = 80
	} else {
		p.Port = 1080
	}
	if u.User != nil {
		p.Username = u.User.Username()
		p.Password, _ = u.User.Password()
	}
	return p, nil
}

// Address returns the proxy's host:port endpoint.
func (p *Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// Key returns a stable identity for pool keying: the proxy URL without
// credentials, or "" for a direct connection.
func (p *Proxy) Key() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%s://%s:%d", p.Scheme, p.Host, p.Port)
}

// Rotator holds a list of proxy URLs and rotates through them round-robin.
//
// Thread-safety: a sync.Mutex serialises all mutations of index, so Next may
// be called from any number of goroutines simultaneously without data races.
type Rotator struct {
	proxies []string
	index   int
	mu      sync.Mutex
}

// NewRotator creates a rotator over the given proxy URLs.
func NewRotator(proxies []string) *Rotator {
	return &Rotator{proxies: append([]string(nil), proxies...)}
}

// LoadList reads a newline-delimited list of proxy URLs.  Blank lines and
// lines beginning with '#' are ignored.
func LoadList(filename string) ([]string, error) {
	f, err := os.Open(filename) // #nosec G304 – filename is an operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("proxy: open %q: %w", filename, err)
	}
	defer f.Close()

	var loaded []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		loaded = append(loaded, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("proxy: read %q: %w", filename, err)
	}
	return loaded, nil
}

// Load replaces the rotation set with the contents of filename.
func (r *Rotator) Load(filename string) error {
	loaded, err := LoadList(filename)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.proxies = loaded
	r.index = 0
	r.mu.Unlock()
	return nil
}

// Next returns the next proxy URL in the rotation, or "" when none are
// loaded (signalling a direct connection).
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return ""
	}
	p := r.proxies[r.index]
	r.index = (r.index + 1) % len(r.proxies)
	return p
}

// Count returns the number of loaded proxies.
func (r *Rotator) Count() int {
	r.mu.Lock()
	n := len(r.proxies)
	r.mu.Unlock()
	return n
}
