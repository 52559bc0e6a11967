package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/firasghr/GoStealthClient/gerrors"
)

// Dialer opens the raw socket a transport runs over.  Direct connections go
// straight to the target; HTTP proxies are dialed instead of the target (the
// HTTP/1.1 transport then uses absolute-form request targets); SOCKS5
// proxies are dialed and the RFC 1928 handshake is performed before the
// socket is handed back.
//
// The zero value dials with no timeout; set Timeout to bound the TCP
// connect.  The context cancels an in-flight dial in either case.
type Dialer struct {
	Timeout time.Duration
}

// Dial opens a connection that subsequently carries traffic for
// targetHost:targetPort.  For HTTP proxies the returned connection is to the
// proxy itself; it is the transport's job to speak absolute-form.  For SOCKS5
// proxies the returned connection is already CONNECTed to the target.
func (d *Dialer) Dial(ctx context.Context, targetHost string, targetPort int, via *Proxy) (net.Conn, error) {
	if via == nil {
		return d.dialTCP(ctx, targetHost, targetPort)
	}
	conn, err := d.dialTCP(ctx, via.Host, via.Port)
	if err != nil {
		return nil, err
	}
	switch via.Scheme {
	case SchemeHTTP:
		// Nothing more to do at the socket level; requests travel through
		// the proxy in absolute-URI form on this same TCP stream.
		return conn, nil
	case SchemeSOCKS5, SchemeSOCKS5H:
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}
		if err := socks5Handshake(conn, via, targetHost, targetPort); err != nil {
			conn.Close()
			return nil, err
		}
		_ = conn.SetDeadline(time.Time{})
		return conn, nil
	}
	conn.Close()
	return nil, &gerrors.UnsupportedSchemeError{Scheme: string(via.Scheme)}
}

func (d *Dialer) dialTCP(ctx context.Context, host string, port int) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, &gerrors.ConnectError{Host: host, Port: port, Cause: err}
	}
	return conn, nil
}
