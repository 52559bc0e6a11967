// Package payload serializes request bodies: raw bytes, text, URL-encoded
// forms, JSON values, and multipart/form-data uploads.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// File is one multipart upload part.  An empty ContentType defaults to
// application/octet-stream on the wire.
type File struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Options selects the body kind for a request.  Form may be combined with
// Files (form fields become simple parts); any other combination of kinds is
// a caller bug and Encode rejects it.
type Options struct {
	Raw   []byte
	Text  string
	Form  map[string]string
	JSON  any
	Files map[string]File
}

// Encoded is the serialized body plus the content type it implies.  An empty
// ContentType means the caller did not get one from the encoder (raw/text
// bodies).  HasBody is true even for zero-length POST/PUT bodies so the
// executor knows to emit Content-Length: 0.
type Encoded struct {
	Body        []byte
	ContentType string
	HasBody     bool
}

// Encode resolves opts into body bytes following the precedence
// files > json > raw > text > form.  With no body kind set, POST and PUT
// still get an empty body with Content-Length 0.
func Encode(method string, opts Options) (Encoded, error) {
	kinds := 0
	if opts.Files != nil {
		kinds++
	}
	if opts.JSON != nil {
		kinds++
	}
	if opts.Raw != nil {
		kinds++
	}
	if opts.Text != "" {
		kinds++
	}
	if opts.Form != nil && opts.Files == nil {
		kinds++
	}
	if kinds > 1 {
		return Encoded{}, fmt.Errorf("payload: more than one body kind set")
	}

	switch {
	case opts.Files != nil:
		ctype, body := EncodeMultipart(opts.Form, opts.Files)
		return Encoded{Body: body, ContentType: ctype, HasBody: true}, nil
	case opts.JSON != nil:
		body, err := json.Marshal(opts.JSON)
		if err != nil {
			return Encoded{}, fmt.Errorf("payload: marshal json body: %w", err)
		}
		return Encoded{Body: body, ContentType: "application/json", HasBody: true}, nil
	case opts.Raw != nil:
		return Encoded{Body: opts.Raw, HasBody: true}, nil
	case opts.Text != "":
		return Encoded{Body: []byte(opts.Text), HasBody: true}, nil
	case opts.Form != nil:
		return Encoded{
			Body:        EncodeForm(opts.Form),
			ContentType: "application/x-www-form-urlencoded; charset=utf-8",
			HasBody:     true,
		}, nil
	}
	method = strings.ToUpper(method)
	if method == "POST" || method == "PUT" {
		return Encoded{HasBody: true}, nil
	}
	return Encoded{}, nil
}

// EncodeForm percent-encodes fields as application/x-www-form-urlencoded.
// Keys are emitted in sorted order so the output is deterministic.
func EncodeForm(fields map[string]string) []byte {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return []byte(values.Encode())
}

// NewBoundary returns a fresh 32-hex-character multipart boundary: a
// random (version 4) UUID without dashes, carrying 122 random bits.
func NewBoundary() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// EncodeMultipart builds a multipart/form-data body.  Simple fields come
// first, then file parts, each terminated by CRLF, with the closing
// boundary --<b>--CRLF.  Returns the Content-Type (including the boundary)
// and the body.
func EncodeMultipart(fields map[string]string, files map[string]File) (string, []byte) {
	boundary := NewBoundary()
	var buf bytes.Buffer

	for _, name := range sortedKeys(fields) {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q\r\n\r\n%s\r\n", name, fields[name])
	}
	for _, field := range sortedFileKeys(files) {
		f := files[field]
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		filename := f.Filename
		if filename == "" {
			filename = field
		}
		ctype := f.ContentType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "Content-Disposition: form-data; name=%q; filename=%q\r\n", field, filename)
		fmt.Fprintf(&buf, "Content-Type: %s\r\n\r\n", ctype)
		buf.Write(f.Content)
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return "multipart/form-data; boundary=" + boundary, buf.Bytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFileKeys(m map[string]File) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
