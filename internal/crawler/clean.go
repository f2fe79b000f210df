package crawler

import (
	"fmt"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelector matches the elements removed by Clean.
const boilerplateSelector = "header, footer, nav, script, style"

// Clean removes page chrome (header, footer, nav, script and style
// elements) from htmlText and returns what is left in the requested format.
// pageURL is used to make relative Markdown links absolute.
func Clean(htmlText string, format CleanFormat, pageURL *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(boilerplateSelector).Remove()

	switch format {
	case CleanFormatMarkdown:
		stripped, err := doc.Html()
		if err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
		var opts []converter.ConvertOptionFunc
		if pageURL != nil {
			opts = append(opts, converter.WithDomain(pageURL.Scheme+"://"+pageURL.Host))
		}
		md, err := htmltomarkdown.ConvertString(stripped, opts...)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
		return md, nil
	case CleanFormatText, "":
		return collapseBlankLines(doc.Text()), nil
	default:
		return "", fmt.Errorf("unknown clean format %q", format)
	}
}

// collapseBlankLines trims every line and drops empty ones.
func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
