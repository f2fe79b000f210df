// Package sitemap discovers crawl roots from a site's sitemap.xml.
package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxSitemapBytes bounds the size of a sitemap document.
const maxSitemapBytes = 10 << 20

// Discover fetches /sitemap.xml from the host of site and returns the text
// of every <loc> element in document order. Both url sets and sitemap
// indexes are accepted; nested sitemaps are not followed.
//
// A missing or unsuccessful sitemap yields an empty slice and no error.
// Errors are returned for unusable site URLs, transport failures and
// malformed XML; callers usually fall back to crawling site itself.
func Discover(ctx context.Context, client *http.Client, site string) ([]string, error) {
	base, err := url.Parse(site)
	if err != nil || !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", site)
	}
	if client == nil {
		client = http.DefaultClient
	}

	sitemapURL := base.ResolveReference(&url.URL{Path: "/sitemap.xml"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return []string{}, nil
	}

	locs, err := Parse(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return locs, nil
}

// Parse returns the trimmed, non-empty text of every <loc> element in r,
// whatever its namespace.
func Parse(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	locs := make([]string, 0)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return locs, nil
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "loc" {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &start); err != nil {
			return nil, err
		}
		if value = strings.TrimSpace(value); value != "" {
			locs = append(locs, value)
		}
	}
}
