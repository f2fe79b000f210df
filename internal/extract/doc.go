// Package extract finds hyperlinks in HTML documents.
//
// The extractor only looks at anchor elements. Root-relative hrefs are
// resolved against the scheme and authority of the page URL; every other
// href is returned exactly as written, so callers see "#" or "page.html"
// verbatim and decide themselves what to do with them.
package extract
