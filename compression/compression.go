// Package compression decodes response bodies (gzip, deflate, brotli) and
// derives the Accept-Encoding header a request should carry.
package compression

import (
	"bytes"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/firasghr/GoStealthClient/profile"
)

// BrotliAvailable reports whether brotli decoding is compiled in.  It is a
// constant here because the decoder is a pure-Go dependency, but callers
// treat it as a build feature the way optional codecs usually are.
const BrotliAvailable = true

// DefaultAcceptEncoding matches what modern browsers send.
const DefaultAcceptEncoding = "gzip, deflate, br"

// AcceptEncoding returns the Accept-Encoding value for a request.  With
// auto-decompression off the client advertises identity so the server never
// sends a coding we would hand back raw.  Otherwise a profile-supplied
// Accept-Encoding wins, then the browser default.
func AcceptEncoding(p *profile.Profile, autoDecompress bool) string {
	if !autoDecompress {
		return "identity"
	}
	if p != nil {
		for _, h := range p.Headers.Default {
			if strings.EqualFold(h.Name, "Accept-Encoding") {
				return h.Value
			}
		}
	}
	return DefaultAcceptEncoding
}

// DecodeBody reverses the codings named by a Content-Encoding header.  The
// header lists codings in application order, so they are undone right to
// left.  Decoding is forgiving: a coding that fails to decode (or an unknown
// token) leaves the bytes unchanged, because test observers and misbehaving
// origins routinely mislabel bodies.
func DecodeBody(body []byte, contentEncoding string) []byte {
	if len(body) == 0 || contentEncoding == "" {
		return body
	}
	encodings := strings.Split(strings.ToLower(contentEncoding), ",")
	out := body
	for i := len(encodings) - 1; i >= 0; i-- {
		out = decodeSingle(out, strings.TrimSpace(encodings[i]))
	}
	return out
}

func decodeSingle(body []byte, encoding string) []byte {
	switch encoding {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return body
		}
		return out
	case "deflate":
		// Raw DEFLATE first, zlib-wrapped as the fallback; both appear in
		// the wild under this token.
		fr := flate.NewReader(bytes.NewReader(body))
		out, err := io.ReadAll(fr)
		fr.Close()
		if err == nil {
			return out
		}
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return body
		}
		defer zr.Close()
		out, err = io.ReadAll(zr)
		if err != nil {
			return body
		}
		return out
	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body
		}
		return out
	}
	return body
}
