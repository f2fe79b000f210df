package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawl/internal/model"
)

// maxFailedListed bounds the failed-page list in the Markdown report.
const maxFailedListed = 50

// MarkdownWriter outputs the crawl result as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)
	s := Summarize(result)

	w.writeHeader(md, result, s)
	w.writeDepths(md, s)
	w.writeAlert(md, s)
	w.writePages(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	status := "✅ Complete"
	if s.Cancelled {
		status = "⚠️ Cancelled (partial results)"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + s.Site + "`"},
			{"Run ID", "`" + result.RunID + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Max Depth", strconv.Itoa(s.MaxDepth)},
			{"Pages Crawled", strconv.Itoa(s.PagesCrawled)},
			{"Failed Pages", strconv.Itoa(s.FailedPages)},
			{"Saved Files", strconv.Itoa(s.SavedFiles)},
			{"Run Time", s.RunTime},
			{"Status", status},
		},
	})
	md.PlainText("")
}

// writeDepths writes a mermaid pie chart of pages per depth.
func (w *MarkdownWriter) writeDepths(md *markdown.Markdown, s *Summary) {
	if len(s.Depths) == 0 {
		return
	}

	md.H2("Pages by Depth")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Depth"),
		piechart.WithShowData(true),
	)
	for _, d := range s.Depths {
		chart.LabelAndIntValue("Depth "+strconv.Itoa(d.Depth), uint64(d.Pages)) //nolint:gosec // page counts are never negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Cancelled:
		md.Warningf("The crawl was cancelled. %d page(s) were recorded before it stopped.", s.PagesCrawled)
	case s.FailedPages > 0:
		md.Importantf("%d of %d page(s) could not be downloaded.", s.FailedPages, s.PagesCrawled)
	default:
		md.Tip("Every page was downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if len(result.Pages) == 0 {
		md.PlainText("No pages were recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Pages))
	for _, p := range result.Pages {
		links := "-"
		if p.HasLinks() {
			links = strconv.Itoa(len(p.PageLinks)) + "/" + strconv.Itoa(p.TotalLinksFound)
		}
		status := "ok"
		if p.Failed() {
			status = p.Error
		}
		saved := p.SavedAs
		if saved == "" {
			saved = "-"
		}
		rows = append(rows, []string{
			truncateString(p.URL, 80),
			strconv.Itoa(p.FirstVisitedDepth),
			links,
			truncateString(status, 40),
			saved,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Links", "Status", "Saved As"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	var failed []string
	for _, p := range result.Pages {
		if p.Failed() {
			failed = append(failed, "`"+p.URL+"`: "+p.Error)
		}
	}
	if len(failed) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")
	if len(failed) > maxFailedListed {
		rest := len(failed) - maxFailedListed
		failed = append(failed[:maxFailedListed], "... and "+strconv.Itoa(rest)+" more")
	}
	md.BulletList(failed...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawl](https://github.com/nao1215/sitecrawl)*")
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
