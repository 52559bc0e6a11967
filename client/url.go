package client

import (
	"net/url"
	"strconv"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// ParsedURL is the executor's view of a request URL.
type ParsedURL struct {
	Scheme string
	Host   string
	Port   int
	// Target is the origin-form request-target: the path (defaulting to
	// "/") with the query string re-attached.  The fragment is discarded.
	Target string
}

// ParseURL validates and splits a request URL.  Only http and https are
// accepted; the port defaults to the scheme's well-known port.
func ParseURL(raw string) (ParsedURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}, &gerrors.UnsupportedSchemeError{Scheme: raw}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ParsedURL{}, &gerrors.UnsupportedSchemeError{Scheme: u.Scheme}
	}

	out := ParsedURL{Scheme: u.Scheme, Host: u.Hostname()}
	if portStr := u.Port(); portStr != "" {
		out.Port, err = strconv.Atoi(portStr)
		if err != nil {
			return ParsedURL{}, &gerrors.UnsupportedSchemeError{Scheme: u.Scheme}
		}
	} else if u.Scheme == "https" {
		out.Port = 443
	} else {
		out.Port = 80
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	out.Target = path
	return out, nil
}
