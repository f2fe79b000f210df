package model

// CrawledPage is the outcome of processing one page during a crawl.
//
// A page is recorded exactly once per run. FirstVisitedDepth is fixed when the
// page is first reserved and never changes, even if the page is linked again
// from a shallower page later in the run.
type CrawledPage struct {
	// Key is the normalized identity of the page.
	Key PageKey `json:"key"`

	// URL is the URL as it was fetched.
	URL string `json:"url"`

	// FirstVisitedDepth is the 1-based depth at which the page was first
	// reached. The root page has depth 1.
	FirstVisitedDepth int `json:"first_visited_depth"`

	// TotalLinksFound is the number of links the extractor returned before
	// duplicates and ignored links were removed.
	TotalLinksFound int `json:"total_links_found"`

	// PageLinks holds the links kept after filtering. Links that are not
	// absolute URLs (such as "#") are kept as written.
	// Nil when the fetch failed or produced no HTML text; empty when the
	// page had no links.
	PageLinks []string `json:"page_links"`

	// Error describes why the page could not be processed.
	// Empty on success.
	Error string `json:"error,omitempty"`

	// StatusCode is the HTTP status of the final attempt.
	// Zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// MediaType is the media type reported by the server.
	MediaType string `json:"media_type,omitempty"`

	// Attempts is the number of fetches made for this page. Values above 1
	// mean the server rate-limited the crawler.
	Attempts int `json:"attempts"`

	// SavedAs is the file name written to the persistence sink.
	// Empty when nothing was persisted.
	SavedAs string `json:"saved_as,omitempty"`
}

// Failed reports whether the page could not be processed.
func (p *CrawledPage) Failed() bool {
	return p.Error != ""
}

// HasLinks reports whether the page produced HTML text. A page without
// anchors still has links, just an empty set of them.
func (p *CrawledPage) HasLinks() bool {
	return p.PageLinks != nil
}
