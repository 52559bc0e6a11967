package session_test

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasghr/GoStealthClient/client"
	"github.com/firasghr/GoStealthClient/profile"
	"github.com/firasghr/GoStealthClient/session"
)

type sessionServer struct {
	host      string
	port      int
	requests  chan []byte
	responses chan []byte
}

func startSessionServer(t *testing.T) *sessionServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := &sessionServer{requests: make(chan []byte, 8), responses: make(chan []byte, 8)}
	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	s.host = host
	s.port, _ = strconv.Atoi(portStr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				br := bufio.NewReader(conn)
				var buf bytes.Buffer
				for {
					line, err := br.ReadString('\n')
					if err != nil {
						return
					}
					buf.WriteString(line)
					if line == "\r\n" {
						break
					}
				}
				s.requests <- buf.Bytes()
				conn.Write(<-s.responses)
			}(conn)
		}
	}()
	return s
}

func (s *sessionServer) url(path string) string {
	return fmt.Sprintf("http://%s:%d%s", s.host, s.port, path)
}

func (s *sessionServer) respond(body string, extraHeaders ...string) {
	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nConnection: close\r\n", len(body))
	for _, h := range extraHeaders {
		resp += h + "\r\n"
	}
	resp += "\r\n" + body
	s.responses <- []byte(resp)
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.New(client.Options{Timeout: 3 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

// The second request carries Referer: <previous URL>; the first carries
// none.
func TestSession_AutoReferer(t *testing.T) {
	s := startSessionServer(t)
	sess := newSession(t)

	s.respond("first")
	_, err := sess.Request(context.Background(), "GET", s.url("/p1"), nil)
	require.NoError(t, err)
	first := string(<-s.requests)
	assert.NotContains(t, first, "Referer:")

	s.respond("second")
	_, err = sess.Request(context.Background(), "GET", s.url("/p2"), nil)
	require.NoError(t, err)
	second := string(<-s.requests)
	assert.Contains(t, second, "Referer: "+s.url("/p1")+"\r\n")
}

func TestSession_AutoRefererDisabled(t *testing.T) {
	s := startSessionServer(t)
	sess := newSession(t)
	sess.AutoReferer = false

	s.respond("first")
	_, err := sess.Request(context.Background(), "GET", s.url("/p1"), nil)
	require.NoError(t, err)
	<-s.requests

	s.respond("second")
	_, err = sess.Request(context.Background(), "GET", s.url("/p2"), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(<-s.requests), "Referer:")
}

func TestSession_CallerRefererWins(t *testing.T) {
	s := startSessionServer(t)
	sess := newSession(t)

	s.respond("first")
	_, err := sess.Request(context.Background(), "GET", s.url("/p1"), nil)
	require.NoError(t, err)
	<-s.requests

	s.respond("second")
	_, err = sess.Request(context.Background(), "GET", s.url("/p2"), &client.RequestOptions{
		Headers: []profile.Header{{Name: "Referer", Value: "https://elsewhere.test/"}},
	})
	require.NoError(t, err)
	second := string(<-s.requests)
	assert.Contains(t, second, "Referer: https://elsewhere.test/\r\n")
	assert.NotContains(t, second, "Referer: "+s.url("/p1"))
}

// Set-Cookie values persist per host and replay on the next request;
// attributes are discarded.
func TestSession_CookiePersistence(t *testing.T) {
	s := startSessionServer(t)
	sess := newSession(t)

	s.respond("login", "Set-Cookie: sid=abc123; Path=/; HttpOnly", "Set-Cookie: theme=dark")
	_, err := sess.Request(context.Background(), "GET", s.url("/login"), nil)
	require.NoError(t, err)
	first := string(<-s.requests)
	assert.NotContains(t, first, "Cookie:")

	s.respond("home")
	_, err = sess.Request(context.Background(), "GET", s.url("/home"), nil)
	require.NoError(t, err)
	second := string(<-s.requests)
	assert.Contains(t, second, "Cookie: sid=abc123; theme=dark\r\n")
}

func TestSession_CookieUpsert(t *testing.T) {
	jar := session.NewJar()
	jar.SetFromHeaders([]profile.Header{
		{Name: "Set-Cookie", Value: "sid=old; Secure"},
	}, "h.test")
	jar.SetFromHeaders([]profile.Header{
		{Name: "Set-Cookie", Value: "sid=new"},
	}, "h.test")

	assert.Equal(t, "new", jar.Get("h.test", "sid"))
	assert.Equal(t, "sid=new", jar.CookieHeader("h.test"))
	assert.Empty(t, jar.CookieHeader("other.test"), "cookies are host-scoped")
}

func TestSession_CallerCookieHeaderWins(t *testing.T) {
	s := startSessionServer(t)
	sess := newSession(t)
	sess.Cookies.Set(s.host, "sid", "from-jar")

	s.respond("ok")
	_, err := sess.Request(context.Background(), "GET", s.url("/"), &client.RequestOptions{
		Headers: []profile.Header{{Name: "Cookie", Value: "sid=explicit"}},
	})
	require.NoError(t, err)
	sent := string(<-s.requests)
	assert.Contains(t, sent, "Cookie: sid=explicit\r\n")
	assert.NotContains(t, sent, "from-jar")
}

func TestSession_StartsEmpty(t *testing.T) {
	sess := newSession(t)
	assert.Empty(t, sess.Cookies.CookieHeader("any.host"))
	assert.True(t, sess.AutoReferer, "auto-referer defaults on")
}
