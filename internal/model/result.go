package model

import (
	"time"
)

// CrawlResult is the report of one crawl run.
//
// Pages are ordered by FirstVisitedDepth ascending, then by Key ascending.
// A CrawlResult is built once at the end of a run and must not be modified
// afterwards.
type CrawlResult struct {
	// RunID uniquely identifies the run. Used as the primary key in the
	// history database.
	RunID string `json:"run_id"`

	// Site is the root URL the crawl started from.
	Site string `json:"site"`

	// MaxDepth is the depth limit the run was started with.
	MaxDepth int `json:"max_depth"`

	// Pages holds every recorded page in report order.
	Pages []*CrawledPage `json:"pages"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// RunTime is the wall-clock duration of the run.
	RunTime time.Duration `json:"run_time"`

	// Cancelled is true when the run was stopped before the frontier was
	// exhausted. The report then contains only the pages recorded so far.
	Cancelled bool `json:"cancelled,omitempty"`

	index map[PageKey]*CrawledPage
}

// NewCrawlResult creates a result over pages, which must already be in
// report order.
func NewCrawlResult(runID, site string, maxDepth int, pages []*CrawledPage) *CrawlResult {
	r := &CrawlResult{
		RunID:    runID,
		Site:     site,
		MaxDepth: maxDepth,
		Pages:    pages,
	}
	r.buildIndex()
	return r
}

func (r *CrawlResult) buildIndex() {
	r.index = make(map[PageKey]*CrawledPage, len(r.Pages))
	for _, p := range r.Pages {
		r.index[p.Key] = p
	}
}

// Lookup returns the page recorded under key.
func (r *CrawlResult) Lookup(key PageKey) (*CrawledPage, bool) {
	if r.index == nil {
		// Results decoded from JSON carry no index.
		for _, p := range r.Pages {
			if p.Key == key {
				return p, true
			}
		}
		return nil, false
	}
	p, ok := r.index[key]
	return p, ok
}

// Links returns the keys of all recorded pages in report order.
func (r *CrawlResult) Links() []PageKey {
	keys := make([]PageKey, 0, len(r.Pages))
	for _, p := range r.Pages {
		keys = append(keys, p.Key)
	}
	return keys
}

// FailedCount returns the number of pages recorded with an error.
func (r *CrawlResult) FailedCount() int {
	n := 0
	for _, p := range r.Pages {
		if p.Failed() {
			n++
		}
	}
	return n
}

// Depths returns the number of recorded pages per depth.
func (r *CrawlResult) Depths() map[int]int {
	depths := make(map[int]int)
	for _, p := range r.Pages {
		depths[p.FirstVisitedDepth]++
	}
	return depths
}
