package extract

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// LinkExtractor returns the hyperlinks found in an HTML document.
type LinkExtractor interface {
	ExtractLinks(htmlText string, pageURL *url.URL) []string
}

// DefaultIgnoredExtensions lists the file extensions whose links are never
// returned. Comparison is case-insensitive.
var DefaultIgnoredExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".ico",
	".webp", ".json", ".xml", ".po", ".mo", ".resx", ".lang",
}

// HTMLExtractor extracts anchor links with golang.org/x/net/html.
// It is safe for concurrent use.
type HTMLExtractor struct {
	ignored map[string]struct{}
}

// Option configures an HTMLExtractor.
type Option func(*HTMLExtractor)

// WithIgnoredExtensions replaces the set of ignored extensions.
// Each extension must include the leading dot.
func WithIgnoredExtensions(exts ...string) Option {
	return func(e *HTMLExtractor) {
		e.ignored = extensionSet(exts)
	}
}

// NewHTMLExtractor creates an extractor that ignores DefaultIgnoredExtensions.
func NewHTMLExtractor(opts ...Option) *HTMLExtractor {
	e := &HTMLExtractor{
		ignored: extensionSet(DefaultIgnoredExtensions),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return set
}

// ExtractLinks returns the href of every <a> element in htmlText, in document
// order with exact duplicates removed. The result is empty, never nil, when
// the document contains no usable anchors.
func (e *HTMLExtractor) ExtractLinks(htmlText string, pageURL *url.URL) []string {
	links := make([]string, 0)

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return links
	}

	seen := make(map[string]struct{})
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if link, ok := e.resolve(getAttr(n, "href"), pageURL); ok {
				if _, dup := seen[link]; !dup {
					seen[link] = struct{}{}
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links
}

// resolve turns an href into the link reported to the caller. The second
// return value is false when the href is blank or points at an ignored
// file type.
func (e *HTMLExtractor) resolve(href string, pageURL *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	link := href
	switch {
	case strings.HasPrefix(href, "//"):
		// Scheme-relative: inherit the page scheme only.
		if pageURL != nil {
			link = pageURL.Scheme + ":" + href
		}
	case strings.HasPrefix(href, "/"):
		if pageURL != nil {
			link = pageURL.Scheme + "://" + pageURL.Host + href
		}
	}

	if e.isIgnored(link) {
		return "", false
	}
	return link, true
}

func (e *HTMLExtractor) isIgnored(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	_, ok := e.ignored[ext]
	return ok
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
