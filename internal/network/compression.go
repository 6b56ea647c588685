// File: internal/network/compression.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// DecompressingTransport is an http.RoundTripper that negotiates compression
// with the server and transparently decompresses response bodies. It covers
// gzip, deflate (zlib-wrapped and raw) and brotli; the standard library
// transport only handles gzip on its own.
type DecompressingTransport struct {
	// Transport is the underlying round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// NewDecompressingTransport wraps the given round tripper.
func NewDecompressingTransport(transport http.RoundTripper) *DecompressingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &DecompressingTransport{Transport: transport}
}

// RoundTrip advertises compression support unless the caller already chose an
// encoding, then unwraps whatever the server applied.
func (dt *DecompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := dt.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := DecompressResponse(resp); err != nil {
		// The body stream may be partially consumed; the response is unusable.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// DecompressResponse wraps resp.Body with the decoders named by
// Content-Encoding, innermost last. On success the encoding headers are
// removed and resp.Uncompressed is set. On error the body may be partially
// read; callers must close and discard the response.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	// Encodings are listed in application order; decode in reverse.
	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var reader io.ReadCloser
		switch encoding {
		case "gzip":
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = zr
		case "deflate":
			dr, err := newDeflateReader(resp.Body)
			if err != nil {
				return fmt.Errorf("deflate initialization error: %w", err)
			}
			reader = dr
		case "br":
			reader = io.NopCloser(brotli.NewReader(resp.Body))
		case "identity", "":
			continue
		default:
			return fmt.Errorf("unsupported Content-Encoding layer: %s", encoding)
		}

		resp.Body = &decompressedBody{ReadCloser: reader, original: resp.Body}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decompressedBody closes both the decoder and the underlying network body.
type decompressedBody struct {
	io.ReadCloser
	original io.ReadCloser
}

func (b *decompressedBody) Close() error {
	return errors.Join(b.ReadCloser.Close(), b.original.Close())
}

// newDeflateReader decodes "deflate" bodies, accepting both the correct
// zlib-wrapped form (RFC 1950) and the raw form (RFC 1951) some servers send.
func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	// Buffer what zlib consumes while probing the header so the raw fallback
	// can replay it.
	var probe bytes.Buffer
	tee := io.TeeReader(r, &probe)

	zr, err := zlib.NewReader(tee)
	if err == nil {
		return zr, nil
	}

	replay := io.MultiReader(bytes.NewReader(probe.Bytes()), r)
	return flate.NewReader(replay), nil
}
