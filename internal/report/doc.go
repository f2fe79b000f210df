// Package report renders crawl results.
//
// Three formats are supported:
//   - SimpleWriter: the console format, one block per page plus a summary
//   - JSONWriter: the full result for tool integration
//   - MarkdownWriter: a shareable report with tables and a depth chart
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
