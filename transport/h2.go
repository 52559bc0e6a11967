package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/firasghr/GoStealthClient/compression"
	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

// clientPreface is the fixed byte sequence a client sends before any frame.
const clientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// connWindowIncrement grows the connection-level flow-control window right
// after the preface, matching the WINDOW_UPDATE increment Chrome emits
// (15 663 105, which takes the 65 535 initial window to 15 728 640).
const connWindowIncrement = 15663105

// h2Conn holds the per-connection HTTP/2 state: framer, HPACK encoder and
// the next client stream id.  It is created lazily on the first h2 request
// over a pooled connection and survives for the connection's lifetime.
type h2Conn struct {
	framer       *http2.Framer
	henc         *hpack.Encoder
	hbuf         bytes.Buffer
	nextStreamID uint32
}

// initH2 sends the connection preface and the SETTINGS frame derived from
// the profile, preserving the profile's setting order.
func (c *Conn) initH2() error {
	if _, err := c.sock.Write([]byte(clientPreface)); err != nil {
		return &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}

	framer := http2.NewFramer(c.sock, c.br)
	framer.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	var settings []http2.Setting
	for _, s := range c.Profile.HTTP2.Settings {
		settings = append(settings, http2.Setting{ID: http2.SettingID(s.ID), Val: s.Value})
	}
	if err := framer.WriteSettings(settings...); err != nil {
		return &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}
	if err := framer.WriteWindowUpdate(0, connWindowIncrement); err != nil {
		return &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}

	h2 := &h2Conn{framer: framer, nextStreamID: 1}
	h2.henc = hpack.NewEncoder(&h2.hbuf)
	c.h2 = h2
	return nil
}

// h2ForbiddenHeaders are connection-specific HTTP/1.1 headers that must not
// appear in an HTTP/2 header block (RFC 7540 §8.1.2.2).  Host travels as
// :authority.
var h2ForbiddenHeaders = map[string]bool{
	"host":              true,
	"connection":        true,
	"keep-alive":        true,
	"proxy-connection":  true,
	"transfer-encoding": true,
	"upgrade":           true,
}

func (c *Conn) roundTripH2(ctx context.Context, method, path string, hdrs []profile.Header, body []byte, autoDecompress bool) (*Response, error) {
	if c.h2 == nil {
		if err := c.initH2(); err != nil {
			c.Close()
			return nil, err
		}
	}
	h2 := c.h2

	streamID := h2.nextStreamID
	h2.nextStreamID += 2

	// Pseudo-headers first, in the profile's order; any the profile omits
	// follow in the RFC's conventional order so the block is always valid.
	pseudo := map[string]string{
		":method":    method,
		":path":      path,
		":authority": c.Host,
		":scheme":    c.Scheme,
	}
	h2.hbuf.Reset()
	emitted := map[string]bool{}
	order := c.Profile.HTTP2.PseudoHeaderOrder
	if len(order) == 0 {
		order = []string{":method", ":path", ":authority", ":scheme"}
	}
	for _, name := range order {
		if v, ok := pseudo[name]; ok && !emitted[name] {
			h2.henc.WriteField(hpack.HeaderField{Name: name, Value: v})
			emitted[name] = true
		}
	}
	for _, name := range []string{":method", ":path", ":authority", ":scheme"} {
		if !emitted[name] {
			h2.henc.WriteField(hpack.HeaderField{Name: name, Value: pseudo[name]})
			emitted[name] = true
		}
	}
	for _, h := range hdrs {
		name := strings.ToLower(h.Name)
		if h2ForbiddenHeaders[name] {
			continue
		}
		h2.henc.WriteField(hpack.HeaderField{Name: name, Value: h.Value})
	}

	endStream := len(body) == 0
	if err := h2.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: h2.hbuf.Bytes(),
		EndHeaders:    true,
		EndStream:     endStream,
	}); err != nil {
		c.Close()
		return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}
	if !endStream {
		if err := h2.framer.WriteData(streamID, true, body); err != nil {
			c.Close()
			return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
		}
	}

	resp, err := c.readH2Response(ctx, streamID)
	if err != nil {
		c.Close()
		return nil, err
	}
	if autoDecompress {
		resp.Body = compression.DecodeBody(resp.Body, resp.Header("Content-Encoding"))
	}
	return resp, nil
}

// readH2Response drives the connection until our stream ends, acknowledging
// flow-controlled data as it arrives.  A premature close with partial data
// yields the partial response; a close with nothing is a protocol error.
func (c *Conn) readH2Response(ctx context.Context, streamID uint32) (*Response, error) {
	h2 := c.h2
	resp := &Response{HTTPVersion: "2"}
	received := false

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := h2.framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if received {
					return resp, nil
				}
				return nil, &gerrors.ProtocolError{Op: "connection closed before stream ended"}
			}
			return nil, &gerrors.ProtocolError{Op: "reading frame", Cause: err}
		}

		switch f := frame.(type) {
		case *http2.MetaHeadersFrame:
			if f.StreamID != streamID {
				continue
			}
			received = true
			for _, field := range f.Fields {
				if field.Name == ":status" {
					resp.StatusCode, _ = strconv.Atoi(field.Value)
					resp.Reason = "" // HTTP/2 carries no reason phrase
					continue
				}
				if strings.HasPrefix(field.Name, ":") {
					continue
				}
				resp.RawHeaders = append(resp.RawHeaders, profile.Header{Name: field.Name, Value: field.Value})
			}
			if f.StreamEnded() {
				return resp, nil
			}

		case *http2.DataFrame:
			if f.StreamID != streamID {
				continue
			}
			received = true
			data := f.Data()
			resp.Body = append(resp.Body, data...)
			if n := len(data); n > 0 {
				if err := h2.framer.WriteWindowUpdate(f.StreamID, uint32(n)); err != nil {
					return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
				}
				if err := h2.framer.WriteWindowUpdate(0, uint32(n)); err != nil {
					return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
				}
			}
			if f.StreamEnded() {
				return resp, nil
			}

		case *http2.SettingsFrame:
			if !f.IsAck() {
				if err := h2.framer.WriteSettingsAck(); err != nil {
					return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
				}
			}

		case *http2.PingFrame:
			if !f.IsAck() {
				if err := h2.framer.WritePing(true, f.Data); err != nil {
					return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
				}
			}

		case *http2.GoAwayFrame:
			return nil, &gerrors.ProtocolError{Op: fmt.Sprintf("server sent GOAWAY (last stream %d, code %v)", f.LastStreamID, f.ErrCode)}

		case *http2.RSTStreamFrame:
			if f.StreamID == streamID {
				return nil, &gerrors.ProtocolError{Op: fmt.Sprintf("stream reset by server (code %v)", f.ErrCode)}
			}
		}
	}
}
