package proxy_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/proxy"
)

// socksFixture runs a scripted SOCKS5 server for one connection and records
// everything the client sent.
type socksFixture struct {
	listener net.Listener
	received chan []byte
}

// startSOCKSServer accepts one connection and plays handler over it.
func startSOCKSServer(t *testing.T, handler func(conn net.Conn, recorded *bytes.Buffer)) *socksFixture {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &socksFixture{listener: ln, received: make(chan []byte, 1)}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var recorded bytes.Buffer
		handler(conn, &recorded)
		f.received <- recorded.Bytes()
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *socksFixture) url() string {
	return "socks5://" + f.listener.Addr().String()
}

func readN(conn net.Conn, recorded *bytes.Buffer, n int) []byte {
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil
	}
	recorded.Write(buf)
	return buf
}

func TestSOCKS5_ConnectIPv4(t *testing.T) {
	f := startSOCKSServer(t, func(conn net.Conn, recorded *bytes.Buffer) {
		readN(conn, recorded, 3)                                                    // greeting: VER NMETHODS METHOD
		conn.Write([]byte{0x05, 0x00})                                              // no auth
		readN(conn, recorded, 10)                                                   // CONNECT with IPv4
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0x7f, 0x00, 0x00, 0x01, 0x00, 0x50}) // success
	})

	via, err := proxy.Parse(f.url())
	require.NoError(t, err)

	d := &proxy.Dialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "127.0.0.1", 80, via)
	require.NoError(t, err)
	conn.Close()

	sent := <-f.received
	// Greeting offers exactly the no-auth method.
	assert.Equal(t, []byte{0x05, 0x01, 0x00}, sent[:3])
	// CONNECT: VER CMD RSV ATYP=IPv4 127.0.0.1 port 0x0050.
	assert.Equal(t, []byte{0x05, 0x01, 0x00, 0x01, 0x7f, 0x00, 0x00, 0x01, 0x00, 0x50}, sent[3:13])
}

func TestSOCKS5H_SendsDomain(t *testing.T) {
	target := "internal.example"
	f := startSOCKSServer(t, func(conn net.Conn, recorded *bytes.Buffer) {
		readN(conn, recorded, 3)
		conn.Write([]byte{0x05, 0x00})
		readN(conn, recorded, 4+1+len(target)+2) // head + len + domain + port
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	})

	via, err := proxy.Parse("socks5h://" + f.listener.Addr().String())
	require.NoError(t, err)

	d := &proxy.Dialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), target, 443, via)
	require.NoError(t, err)
	conn.Close()

	sent := <-f.received
	connect := sent[3:]
	assert.Equal(t, byte(0x03), connect[3], "socks5h must use ATYP=DOMAINNAME")
	assert.Equal(t, byte(len(target)), connect[4])
	assert.Equal(t, target, string(connect[5:5+len(target)]))
	assert.Equal(t, []byte{0x01, 0xbb}, connect[5+len(target):7+len(target)], "port must be network-order 443")
}

func TestSOCKS5_UsernamePassword(t *testing.T) {
	f := startSOCKSServer(t, func(conn net.Conn, recorded *bytes.Buffer) {
		readN(conn, recorded, 4)       // greeting offers no-auth + user/pass
		conn.Write([]byte{0x05, 0x02}) // pick user/pass
		readN(conn, recorded, 2+5+1+6) // VER ULEN "alice" PLEN "secret"
		conn.Write([]byte{0x01, 0x00}) // auth ok
		readN(conn, recorded, 10)
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	})

	via, err := proxy.Parse("socks5://alice:secret@" + f.listener.Addr().String())
	require.NoError(t, err)

	d := &proxy.Dialer{Timeout: 2 * time.Second}
	conn, err := d.Dial(context.Background(), "127.0.0.1", 80, via)
	require.NoError(t, err)
	conn.Close()

	sent := <-f.received
	assert.Equal(t, []byte{0x05, 0x02, 0x00, 0x02}, sent[:4], "greeting must offer no-auth and user/pass")
	auth := sent[4:]
	assert.Equal(t, byte(0x01), auth[0])
	assert.Equal(t, byte(5), auth[1])
	assert.Equal(t, "alice", string(auth[2:7]))
	assert.Equal(t, byte(6), auth[7])
	assert.Equal(t, "secret", string(auth[8:14]))
}

func TestSOCKS5_ServerRejectsAllMethods(t *testing.T) {
	f := startSOCKSServer(t, func(conn net.Conn, recorded *bytes.Buffer) {
		readN(conn, recorded, 3)
		conn.Write([]byte{0x05, 0xFF})
	})

	via, _ := proxy.Parse(f.url())
	d := &proxy.Dialer{Timeout: 2 * time.Second}
	_, err := d.Dial(context.Background(), "127.0.0.1", 80, via)

	var negErr *gerrors.ProxyNegotiationError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, "greeting", negErr.Stage)
}

func TestSOCKS5_ConnectionRefusedReply(t *testing.T) {
	f := startSOCKSServer(t, func(conn net.Conn, recorded *bytes.Buffer) {
		readN(conn, recorded, 3)
		conn.Write([]byte{0x05, 0x00})
		readN(conn, recorded, 10)
		conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0}) // REP=refused
	})

	via, _ := proxy.Parse(f.url())
	d := &proxy.Dialer{Timeout: 2 * time.Second}
	_, err := d.Dial(context.Background(), "127.0.0.1", 80, via)

	var negErr *gerrors.ProxyNegotiationError
	require.ErrorAs(t, err, &negErr)
	assert.Equal(t, "reply", negErr.Stage)
	assert.Contains(t, negErr.Reason, "connection refused")
}
