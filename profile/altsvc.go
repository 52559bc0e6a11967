package profile

import (
	"strconv"
	"strings"
)

// AltSvcEndpoint is one alternative service advertised by a server.  An
// empty Host means "same host, different port".
type AltSvcEndpoint struct {
	Host string
	Port int
}

// ParseAltSvc parses an Alt-Svc response header into protocol → endpoint,
// e.g. `h3=":443"; ma=86400, h3-29=":443"` yields {"h3": {"", 443}, ...}.
// Malformed entries are skipped; "clear" yields an empty map.
func ParseAltSvc(value string) map[string]AltSvcEndpoint {
	services := map[string]AltSvcEndpoint{}
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" || entry == "clear" {
			continue
		}
		proto, rest, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		proto = strings.TrimSpace(proto)
		// Drop parameters (ma=, persist=) and surrounding quotes.
		rest, _, _ = strings.Cut(strings.TrimSpace(rest), ";")
		rest = strings.Trim(rest, `"`)
		if strings.HasPrefix(rest, ":") {
			port, err := strconv.Atoi(rest[1:])
			if err != nil {
				continue
			}
			services[proto] = AltSvcEndpoint{Port: port}
			continue
		}
		host, portStr, ok := cutLast(rest, ':')
		if !ok {
			services[proto] = AltSvcEndpoint{Host: rest, Port: 443}
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		services[proto] = AltSvcEndpoint{Host: host, Port: port}
	}
	return services
}

func cutLast(s string, sep byte) (before, after string, found bool) {
	i := strings.LastIndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
