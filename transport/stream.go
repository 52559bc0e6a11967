package transport

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/firasghr/GoStealthClient/compression"
	"github.com/firasghr/GoStealthClient/gerrors"
	"github.com/firasghr/GoStealthClient/profile"
)

// DefaultChunkSize is the read granularity for streaming bodies.
const DefaultChunkSize = 8192

type streamState int

const (
	stateReadingChunkSize streamState = iota
	stateReadingChunkBody
	stateReadingLengthBody
	stateReadingUntilClose
	stateDone
	stateClosed
)

// StreamingResponse exposes a response body as pull-model byte and line
// iterators without loading it into memory.
//
// The response owns the socket from creation until Close; the Conn that
// produced it is marked closed so the pool never re-issues the socket.
// When auto-decompression is on and the body carries a Content-Encoding,
// the reader accumulates the compressed bytes and decodes once at the end
// of the body — the streaming applies to the network, not the codec.
type StreamingResponse struct {
	StatusCode  int
	Reason      string
	HTTPVersion string
	RawHeaders  []profile.Header

	sock net.Conn
	br   *bufio.Reader

	state           streamState
	chunkRemaining  int64 // bytes left in the current chunk
	lengthRemaining int64 // bytes left of Content-Length
	chunkSize       int

	contentEncoding string
	autoDecompress  bool
	compressed      bytes.Buffer // accumulated body when decode-at-end applies
	decoded         bool

	linePending []byte
	lineEOF     bool
}

type streamingConfig struct {
	statusCode      int
	reason          string
	httpVersion     string
	rawHeaders      []profile.Header
	sock            net.Conn
	br              *bufio.Reader
	chunked         bool
	contentLength   int64
	contentEncoding string
	autoDecompress  bool
	chunkSize       int
}

func newStreamingResponse(cfg streamingConfig) *StreamingResponse {
	s := &StreamingResponse{
		StatusCode:      cfg.statusCode,
		Reason:          cfg.reason,
		HTTPVersion:     cfg.httpVersion,
		RawHeaders:      cfg.rawHeaders,
		sock:            cfg.sock,
		br:              cfg.br,
		contentEncoding: cfg.contentEncoding,
		autoDecompress:  cfg.autoDecompress,
		chunkSize:       cfg.chunkSize,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	switch {
	case cfg.chunked:
		s.state = stateReadingChunkSize
	case cfg.contentLength >= 0:
		s.state = stateReadingLengthBody
		s.lengthRemaining = cfg.contentLength
		if cfg.contentLength == 0 {
			s.state = stateDone
		}
	default:
		s.state = stateReadingUntilClose
	}
	return s
}

// Header returns the value of the last header matching name, or "".
func (s *StreamingResponse) Header(name string) string {
	value := ""
	for _, h := range s.RawHeaders {
		if strings.EqualFold(h.Name, name) {
			value = h.Value
		}
	}
	return value
}

// Next returns the next body chunk (up to the configured chunk size) or
// io.EOF when the body is complete.  With decode-at-end in effect the whole
// decoded body arrives as a single final chunk.
func (s *StreamingResponse) Next() ([]byte, error) {
	if s.state == stateClosed {
		return nil, net.ErrClosed
	}
	if !s.decodeAtEnd() {
		return s.nextRaw()
	}
	for {
		chunk, err := s.nextRaw()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		s.compressed.Write(chunk)
	}
	if s.decoded {
		return nil, io.EOF
	}
	s.decoded = true
	if s.compressed.Len() == 0 {
		return nil, io.EOF
	}
	return compression.DecodeBody(s.compressed.Bytes(), s.contentEncoding), nil
}

func (s *StreamingResponse) decodeAtEnd() bool {
	return s.autoDecompress && s.contentEncoding != ""
}

func (s *StreamingResponse) nextRaw() ([]byte, error) {
	for {
		switch s.state {
		case stateDone:
			return nil, io.EOF

		case stateReadingChunkSize:
			line, err := readWireLine(s.br)
			if err != nil {
				s.state = stateDone
				return nil, io.EOF
			}
			size, perr := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
			if perr != nil {
				s.state = stateDone
				return nil, &gerrors.ProtocolError{Op: "invalid chunk size line " + strconv.Quote(line), Cause: perr}
			}
			if size == 0 {
				_, _ = readWireLine(s.br) // trailing blank line
				s.state = stateDone
				return nil, io.EOF
			}
			s.chunkRemaining = size
			s.state = stateReadingChunkBody

		case stateReadingChunkBody:
			n := min64(s.chunkRemaining, int64(s.chunkSize))
			buf := make([]byte, n)
			read, err := io.ReadFull(s.br, buf)
			if err != nil {
				s.state = stateDone
				if read == 0 {
					return nil, io.EOF
				}
				return buf[:read], nil
			}
			s.chunkRemaining -= int64(read)
			if s.chunkRemaining == 0 {
				_, _ = io.CopyN(io.Discard, s.br, 2) // chunk CRLF
				s.state = stateReadingChunkSize
			}
			return buf[:read], nil

		case stateReadingLengthBody:
			if s.lengthRemaining <= 0 {
				s.state = stateDone
				return nil, io.EOF
			}
			n := min64(s.lengthRemaining, int64(s.chunkSize))
			buf := make([]byte, n)
			read, err := s.br.Read(buf)
			if read > 0 {
				s.lengthRemaining -= int64(read)
				if s.lengthRemaining == 0 {
					s.state = stateDone
				}
				return buf[:read], nil
			}
			s.state = stateDone
			if err != nil && err != io.EOF {
				return nil, err
			}
			return nil, io.EOF

		case stateReadingUntilClose:
			buf := make([]byte, s.chunkSize)
			read, err := s.br.Read(buf)
			if read > 0 {
				return buf[:read], nil
			}
			s.state = stateDone
			if err != nil && err != io.EOF && !isTimeout(err) {
				return nil, err
			}
			return nil, io.EOF

		default:
			return nil, net.ErrClosed
		}
	}
}

// NextLine returns the next body line (split on LF, trailing CR trimmed) or
// io.EOF once the body is exhausted.
func (s *StreamingResponse) NextLine() (string, error) {
	for {
		if i := bytes.IndexByte(s.linePending, '\n'); i >= 0 {
			line := s.linePending[:i]
			s.linePending = s.linePending[i+1:]
			return string(bytes.TrimSuffix(line, []byte("\r"))), nil
		}
		if s.lineEOF {
			if len(s.linePending) > 0 {
				line := s.linePending
				s.linePending = nil
				return string(bytes.TrimSuffix(line, []byte("\r"))), nil
			}
			return "", io.EOF
		}
		chunk, err := s.Next()
		if err == io.EOF {
			s.lineEOF = true
			continue
		}
		if err != nil {
			return "", err
		}
		s.linePending = append(s.linePending, chunk...)
	}
}

// Lines collects every remaining line.
func (s *StreamingResponse) Lines() ([]string, error) {
	var out []string
	for {
		line, err := s.NextLine()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, line)
	}
}

// ReadAll drains the remaining body into memory.
func (s *StreamingResponse) ReadAll() ([]byte, error) {
	var out []byte
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
	}
}

// Close releases the socket.  The response cannot be read afterwards.
func (s *StreamingResponse) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	if s.sock != nil {
		err := s.sock.Close()
		s.sock = nil
		return err
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
