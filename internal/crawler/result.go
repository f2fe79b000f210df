package crawler

import (
	"cmp"
	"slices"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

// assemble builds the immutable report of a run from the registry.
func (c *Crawler) assemble(runID string, r *run, started time.Time) *model.CrawlResult {
	pages := c.registry.snapshot()
	sortPages(pages)

	result := model.NewCrawlResult(runID, r.root.String(), r.opts.MaxDepth, pages)
	result.StartedAt = started
	result.RunTime = c.now().Sub(started)
	return result
}

// sortPages orders pages by first visited depth, then by key.
func sortPages(pages []*model.CrawledPage) {
	slices.SortFunc(pages, func(a, b *model.CrawledPage) int {
		if d := cmp.Compare(a.FirstVisitedDepth, b.FirstVisitedDepth); d != 0 {
			return d
		}
		return cmp.Compare(a.Key, b.Key)
	})
}
