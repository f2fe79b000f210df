package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// errBodyTooLarge is returned by readBody when the decoded body exceeds the
// caller's limit.
var errBodyTooLarge = errors.New("body exceeds size limit")

// readBody reads the response body, undoing any Content-Encoding. When
// maxBytes is positive at most maxBytes bytes are accepted.
func readBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	if resp.Body == nil {
		return []byte{}, nil
	}

	reader := io.Reader(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	if maxBytes > 0 {
		reader = io.LimitReader(reader, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// decodeText converts body to UTF-8 using the charset declared in
// contentType or sniffed from the document.
func decodeText(body []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body)
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return string(body)
	}
	return string(text)
}
