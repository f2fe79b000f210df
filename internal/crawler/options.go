package crawler

import (
	"github.com/nao1215/sitecrawl/internal/storage"
)

// Run defaults.
const (
	// DefaultMaxDownloadBytes is the largest body accepted by default (300 KiB).
	DefaultMaxDownloadBytes int64 = 307200

	// DefaultFallbackExtension is appended to non-HTML file names whose URL
	// path carries no extension.
	DefaultFallbackExtension = ".pdf"
)

// CleanFormat selects how cleaned HTML content is persisted.
type CleanFormat string

const (
	// CleanFormatText persists the visible text of the page.
	CleanFormatText CleanFormat = "text"
	// CleanFormatMarkdown persists the page converted to Markdown.
	CleanFormatMarkdown CleanFormat = "markdown"
)

// Options are the parameters of a single run.
type Options struct {
	// MaxDepth is the deepest level crawled; the root is depth 1.
	// Must be at least 1.
	MaxDepth int

	// SaveFiles persists the body of every successfully fetched page.
	// PDF documents are persisted even when SaveFiles is false.
	SaveFiles bool

	// Sink receives persisted files. When nil and something must be
	// persisted, a LocalSink in a run-scoped directory of the working
	// directory is used.
	Sink storage.Sink

	// MaxDownloadBytes bounds the accepted body size.
	MaxDownloadBytes int64

	// CleanContent strips header, footer, nav, script and style elements
	// from HTML before persisting it.
	CleanContent bool

	// CleanFormat chooses the persisted form of cleaned content.
	CleanFormat CleanFormat

	// IgnoreLinks lists URLs that are never reported or crawled.
	// Relative entries are resolved against the root URL.
	IgnoreLinks []string

	// FallbackExtension is used by FileName for non-HTML pages whose path
	// has no extension.
	FallbackExtension string
}

// DefaultOptions returns the options of a depth-1 crawl that persists
// nothing but PDF documents.
func DefaultOptions() Options {
	return Options{
		MaxDepth:          1,
		MaxDownloadBytes:  DefaultMaxDownloadBytes,
		CleanFormat:       CleanFormatText,
		FallbackExtension: DefaultFallbackExtension,
	}
}
