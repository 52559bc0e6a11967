package proxy

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// RFC 1928 wire constants.
const (
	socksVersion     = 0x05
	authVersion      = 0x01
	cmdConnect       = 0x01
	methodNoAuth     = 0x00
	methodUserPass   = 0x02
	methodNoneUsable = 0xFF

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04
)

// repErrors maps the non-zero REP codes of the CONNECT reply to their RFC
// 1928 names.
var repErrors = map[byte]string{
	0x01: "general SOCKS server failure",
	0x02: "connection not allowed by ruleset",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// socks5Handshake runs the full RFC 1928 exchange over a connection that is
// already open to the proxy: method negotiation, optional RFC 1929
// username/password sub-negotiation, and the CONNECT request for
// targetHost:targetPort.  For socks5h the domain name goes to the proxy; for
// socks5 the target is resolved locally and sent as an IPv4/IPv6 address.
func socks5Handshake(conn net.Conn, via *Proxy, targetHost string, targetPort int) error {
	if err := negotiateMethod(conn, via); err != nil {
		return err
	}
	return socks5Connect(conn, targetHost, targetPort, via.Scheme == SchemeSOCKS5H)
}

func negotiateMethod(conn net.Conn, via *Proxy) error {
	var greeting []byte
	if via.Username != "" {
		greeting = []byte{socksVersion, 2, methodNoAuth, methodUserPass}
	} else {
		greeting = []byte{socksVersion, 1, methodNoAuth}
	}
	if _, err := conn.Write(greeting); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "greeting", Reason: "write failed", Cause: err}
	}

	var reply [2]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "greeting", Reason: "short reply", Cause: err}
	}
	if reply[0] != socksVersion {
		return &gerrors.ProxyNegotiationError{Stage: "greeting", Reason: fmt.Sprintf("bad version 0x%02x", reply[0])}
	}
	switch reply[1] {
	case methodNoAuth:
		return nil
	case methodUserPass:
		if via.Username == "" {
			return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: "server requires credentials but none configured"}
		}
		return userPassAuth(conn, via.Username, via.Password)
	case methodNoneUsable:
		return &gerrors.ProxyNegotiationError{Stage: "greeting", Reason: "server rejected all offered auth methods"}
	default:
		return &gerrors.ProxyNegotiationError{Stage: "greeting", Reason: fmt.Sprintf("server selected unoffered method 0x%02x", reply[1])}
	}
}

// userPassAuth performs the RFC 1929 sub-negotiation.
func userPassAuth(conn net.Conn, username, password string) error {
	user, pass := []byte(username), []byte(password)
	if len(user) > 255 || len(pass) > 255 {
		return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: "credentials exceed 255 bytes"}
	}
	msg := make([]byte, 0, 3+len(user)+len(pass))
	msg = append(msg, authVersion, byte(len(user)))
	msg = append(msg, user...)
	msg = append(msg, byte(len(pass)))
	msg = append(msg, pass...)
	if _, err := conn.Write(msg); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: "write failed", Cause: err}
	}

	var reply [2]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: "short reply", Cause: err}
	}
	if reply[0] != authVersion {
		return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: fmt.Sprintf("bad sub-negotiation version 0x%02x", reply[0])}
	}
	if reply[1] != 0x00 {
		return &gerrors.ProxyNegotiationError{Stage: "auth", Reason: "credentials rejected"}
	}
	return nil
}

func socks5Connect(conn net.Conn, targetHost string, targetPort int, proxyResolves bool) error {
	req := []byte{socksVersion, cmdConnect, 0x00}

	if proxyResolves {
		host := []byte(targetHost)
		if len(host) > 255 {
			return &gerrors.ProxyNegotiationError{Stage: "connect", Reason: "hostname exceeds 255 bytes"}
		}
		req = append(req, atypDomain, byte(len(host)))
		req = append(req, host...)
	} else {
		ip := net.ParseIP(targetHost)
		if ip == nil {
			ips, err := net.LookupIP(targetHost)
			if err != nil || len(ips) == 0 {
				return &gerrors.ProxyNegotiationError{Stage: "connect", Reason: "resolve " + targetHost, Cause: err}
			}
			// Prefer IPv4; fall back to whatever came first.
			ip = ips[0]
			for _, candidate := range ips {
				if candidate.To4() != nil {
					ip = candidate
					break
				}
			}
		}
		if v4 := ip.To4(); v4 != nil {
			req = append(req, atypIPv4)
			req = append(req, v4...)
		} else {
			req = append(req, atypIPv6)
			req = append(req, ip.To16()...)
		}
	}
	req = binary.BigEndian.AppendUint16(req, uint16(targetPort))

	if _, err := conn.Write(req); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "connect", Reason: "write failed", Cause: err}
	}
	return readConnectReply(conn)
}

// readConnectReply parses VER REP RSV ATYP BND.ADDR BND.PORT.  The bound
// address is discarded but must be fully consumed so the stream is aligned
// for the tunnelled protocol.
func readConnectReply(conn net.Conn) error {
	var head [4]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: "short reply header", Cause: err}
	}
	if head[0] != socksVersion {
		return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: fmt.Sprintf("bad version 0x%02x", head[0])}
	}
	if rep := head[1]; rep != 0x00 {
		reason, ok := repErrors[rep]
		if !ok {
			reason = fmt.Sprintf("error code 0x%02x", rep)
		}
		return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: reason}
	}

	var addrLen int
	switch head[3] {
	case atypIPv4:
		addrLen = 4
	case atypIPv6:
		addrLen = 16
	case atypDomain:
		var l [1]byte
		if _, err := io.ReadFull(conn, l[:]); err != nil {
			return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: "short domain length", Cause: err}
		}
		addrLen = int(l[0])
	default:
		return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: fmt.Sprintf("unknown address type 0x%02x", head[3])}
	}
	discard := make([]byte, addrLen+2) // bound address + port
	if _, err := io.ReadFull(conn, discard); err != nil {
		return &gerrors.ProxyNegotiationError{Stage: "reply", Reason: "short bound address", Cause: err}
	}
	return nil
}
