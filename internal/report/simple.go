package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawl/internal/model"
)

// SimpleWriter outputs the console format: a block per page followed by the
// run summary.
type SimpleWriter struct {
	baseWriter

	// pages controls whether the per-page blocks are written. The CLI turns
	// this off when pages were already printed while the crawl ran.
	pages bool

	// verbose adds the per-depth breakdown to the summary.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithPages sets whether per-page blocks are written. Default true.
func WithPages(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.pages = show
	}
}

// WithVerbose enables additional detail in the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		pages:      true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs result in the console format.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	if w.pages {
		for _, p := range result.Pages {
			sb.WriteString(FormatPage(p))
			sb.WriteString("\n")
		}
	}
	w.writeSummary(&sb, Summarize(result))

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s *Summary) {
	if s.Cancelled {
		sb.WriteString("Crawl cancelled, partial results\n")
	}
	fmt.Fprintf(sb, "Max depth: %d\n", s.MaxDepth)
	fmt.Fprintf(sb, "Total links found: %d\n", s.PagesCrawled)
	if s.FailedPages > 0 {
		fmt.Fprintf(sb, "Failed pages: %d\n", s.FailedPages)
	}
	if s.SavedFiles > 0 {
		fmt.Fprintf(sb, "Saved files: %d\n", s.SavedFiles)
	}
	if w.verbose {
		for _, d := range s.Depths {
			fmt.Fprintf(sb, "  depth %d: %d pages\n", d.Depth, d.Pages)
		}
	}
	fmt.Fprintf(sb, "Total crawl execution time: %s\n", s.RunTime)
}

// FormatPage renders one page the way it is printed while a crawl runs.
func FormatPage(p *model.CrawledPage) string {
	var links string
	switch {
	case p.PageLinks == nil:
		links = "Could not download content"
		if p.Error != "" {
			links += " [" + p.Error + "]"
		}
	case len(p.PageLinks) == 0:
		links = "No links found"
	default:
		links = fmt.Sprintf("%s\n[%d/%d links]",
			strings.Join(p.PageLinks, "\n"), len(p.PageLinks), p.TotalLinksFound)
	}
	return fmt.Sprintf("Visited Page: %s (%d)\n------------------\n%s\n",
		p.URL, p.FirstVisitedDepth, links)
}
