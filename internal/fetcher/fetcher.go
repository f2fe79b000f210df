package fetcher

import (
	"context"
	"mime"
	"strconv"
	"strings"
	"time"
)

// Error messages recorded in Result.Error.
const (
	MsgContentTooLarge = "Content too large"
	MsgContentNotHTML  = "Content not HTML"
	MsgBlockedByRobots = "Blocked by robots.txt"
)

// defaultMediaType is assumed when the server does not declare one.
const defaultMediaType = "text/html"

// Fetcher downloads the resource at url.
//
// maxBytes bounds the accepted body size; zero or a negative value disables
// the limit. Implementations must never panic and must report every failure
// through Result.Error.
type Fetcher interface {
	Fetch(ctx context.Context, url string, maxBytes int64) Result
}

// Result is the outcome of one fetch.
type Result struct {
	// Content is the decoded page text. Set only for successful HTML fetches.
	Content string

	// Data holds the raw body bytes. Set for successful fetches and for
	// non-HTML bodies reported with MsgContentNotHTML.
	Data []byte

	// MediaType is the media type of the response without parameters.
	MediaType string

	// Error is empty on success. Otherwise it is one of the Msg constants,
	// "Status code N" for non-success responses or the transport error text.
	Error string

	// StatusCode is the HTTP status, zero when no response arrived.
	StatusCode int

	// RetryAfter is the server requested delay from a Retry-After header.
	RetryAfter time.Duration
}

// IsHTML reports whether the result carries an HTML media type.
func (r Result) IsHTML() bool {
	return IsHTMLType(r.MediaType)
}

// HasContent reports whether the fetch produced HTML text to parse.
func (r Result) HasContent() bool {
	return r.Error == "" && r.IsHTML()
}

// IsHTMLType reports whether mediaType is an HTML media type.
func IsHTMLType(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// parseMediaType extracts the media type from a Content-Type header value,
// falling back to text/html when the header is missing or malformed.
func parseMediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return defaultMediaType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		return defaultMediaType
	}
	return strings.ToLower(mediaType)
}

func statusError(code int) string {
	return "Status code " + strconv.Itoa(code)
}
