package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/firasghr/GoStealthClient/compression"
	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

// buildRequestBytes serializes the request line, headers in canonical order,
// the blank line, and the body.
func buildRequestBytes(method, target string, hdrs []profile.Header, body []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", method, target)
	for _, h := range hdrs {
		buf.WriteString(h.Name)
		buf.WriteString(": ")
		buf.WriteString(h.Value)
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

func (c *Conn) roundTripH1(method, target string, hdrs []profile.Header, body []byte, autoDecompress bool) (*Response, error) {
	if _, err := c.sock.Write(buildRequestBytes(method, target, hdrs, body)); err != nil {
		c.Close()
		return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}

	status, reason, version, rawHeaders, err := readResponseHead(c.br)
	if err != nil {
		c.Close()
		return nil, err
	}

	headerMap := lowerView(rawHeaders)
	respBody, err := readBody(c.br, headerMap)
	if err != nil {
		c.Close()
		return nil, err
	}
	if autoDecompress {
		respBody = compression.DecodeBody(respBody, headerMap["content-encoding"])
	}

	resp := &Response{
		StatusCode:  status,
		Reason:      reason,
		HTTPVersion: version,
		RawHeaders:  rawHeaders,
		Body:        respBody,
	}
	if strings.EqualFold(headerMap["connection"], "close") {
		c.Close()
	}
	return resp, nil
}

func (c *Conn) streamH1(method, target string, hdrs []profile.Header, body []byte, autoDecompress bool, chunkSize int) (*StreamingResponse, error) {
	if _, err := c.sock.Write(buildRequestBytes(method, target, hdrs, body)); err != nil {
		c.Close()
		return nil, &gerrors.ConnectError{Host: c.Host, Port: c.Port, Cause: err}
	}

	status, reason, version, rawHeaders, err := readResponseHead(c.br)
	if err != nil {
		c.Close()
		return nil, err
	}
	headerMap := lowerView(rawHeaders)

	chunked := strings.HasSuffix(strings.ToLower(headerMap["transfer-encoding"]), "chunked")
	contentLength := int64(-1)
	if !chunked {
		if cl, ok := headerMap["content-length"]; ok {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				contentLength = n
			}
		}
	}

	sock, br := c.surrender()
	return newStreamingResponse(streamingConfig{
		statusCode:      status,
		reason:          reason,
		httpVersion:     version,
		rawHeaders:      rawHeaders,
		sock:            sock,
		br:              br,
		chunked:         chunked,
		contentLength:   contentLength,
		contentEncoding: headerMap["content-encoding"],
		autoDecompress:  autoDecompress,
		chunkSize:       chunkSize,
	}), nil
}

// readResponseHead parses the status line and header block.
func readResponseHead(br *bufio.Reader) (status int, reason, version string, rawHeaders []profile.Header, err error) {
	statusLine, err := readWireLine(br)
	if err != nil || statusLine == "" {
		return 0, "", "", nil, &gerrors.ProtocolError{Op: "empty response"}
	}
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, "", "", nil, &gerrors.ProtocolError{Op: fmt.Sprintf("malformed status line %q", statusLine)}
	}
	version = strings.TrimPrefix(parts[0], "HTTP/")
	status, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return 0, "", "", nil, &gerrors.ProtocolError{Op: fmt.Sprintf("malformed status line %q", statusLine), Cause: convErr}
	}
	if len(parts) > 2 {
		reason = parts[2]
	}

	for {
		line, err := readWireLine(br)
		if err != nil {
			return 0, "", "", nil, &gerrors.ProtocolError{Op: "reading headers", Cause: err}
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, "", "", nil, &gerrors.ProtocolError{Op: fmt.Sprintf("malformed header line %q", line)}
		}
		rawHeaders = append(rawHeaders, profile.Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return status, reason, version, rawHeaders, nil
}

// readBody resolves the body length: chunked transfer-encoding first, then
// Content-Length, then read-until-EOF.
func readBody(br *bufio.Reader, headerMap map[string]string) ([]byte, error) {
	if strings.HasSuffix(strings.ToLower(headerMap["transfer-encoding"]), "chunked") {
		return readChunkedBody(br)
	}
	if cl, ok := headerMap["content-length"]; ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil {
			return nil, &gerrors.ProtocolError{Op: "invalid Content-Length", Cause: err}
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, &gerrors.ProtocolError{Op: "unexpected EOF while reading body", Cause: err}
		}
		return body, nil
	}
	body, err := io.ReadAll(br)
	if err != nil && !isTimeout(err) {
		return nil, &gerrors.ProtocolError{Op: "reading body until close", Cause: err}
	}
	return body, nil
}

func readChunkedBody(br *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		line, err := readWireLine(br)
		if err != nil {
			return nil, &gerrors.ProtocolError{Op: "reading chunk size", Cause: err}
		}
		size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
		if err != nil {
			return nil, &gerrors.ProtocolError{Op: fmt.Sprintf("invalid chunk size line %q", line), Cause: err}
		}
		if size == 0 {
			// Trailers are consumed as the final blank line.
			_, _ = readWireLine(br)
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, &gerrors.ProtocolError{Op: "unexpected EOF in chunk", Cause: err}
		}
		out = append(out, chunk...)
		if _, err := io.CopyN(io.Discard, br, 2); err != nil { // chunk CRLF
			return nil, &gerrors.ProtocolError{Op: "missing chunk terminator", Cause: err}
		}
	}
}

// readWireLine reads one CRLF-terminated line, returning it without the
// terminator.  A bare LF is tolerated.
func readWireLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func lowerView(hdrs []profile.Header) map[string]string {
	out := make(map[string]string, len(hdrs))
	for _, h := range hdrs {
		out[strings.ToLower(h.Name)] = h.Value
	}
	return out
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok {
		return te.Timeout()
	}
	return false
}
