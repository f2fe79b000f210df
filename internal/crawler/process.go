package crawler

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/model"
)

// cloudflareMarker identifies a Cloudflare challenge page. Such pages are
// recorded but never persisted.
const cloudflareMarker = "protected by cloudflare"

// job is one page to process.
type job struct {
	url     *url.URL
	depth   int
	attempt int
}

// outcome is what the scheduler needs to know after processing a page.
type outcome struct {
	url *url.URL

	// links are the in-scope links to crawl next.
	links []*url.URL

	// retry is set when the page was rate-limited and should be retried.
	// Nothing was recorded for the page.
	retry      bool
	retryAfter time.Duration

	// cancelled is set when the run was cancelled before the page could be
	// recorded.
	cancelled bool
}

// process fetches one page, records it and returns the links to follow.
func (c *Crawler) process(ctx context.Context, r *run, j job) outcome {
	out := outcome{url: j.url}

	if err := c.permits.Acquire(ctx, 1); err != nil {
		out.cancelled = true
		return out
	}
	res := c.fetcher.Fetch(ctx, j.url.String(), r.opts.MaxDownloadBytes)
	c.permits.Release(1)

	if ctx.Err() != nil {
		out.cancelled = true
		return out
	}

	if res.StatusCode == http.StatusTooManyRequests && j.attempt < maxAttempts {
		out.retry = true
		out.retryAfter = res.RetryAfter
		return out
	}

	key := model.NewPageKey(j.url)
	page := &model.CrawledPage{
		Key:               key,
		URL:               j.url.String(),
		FirstVisitedDepth: j.depth,
		Error:             res.Error,
		StatusCode:        res.StatusCode,
		MediaType:         res.MediaType,
		Attempts:          j.attempt,
	}

	if res.HasContent() {
		raw := c.extractor.ExtractLinks(res.Content, j.url)
		page.TotalLinksFound = len(raw)
		page.PageLinks = c.filterLinks(r, raw)
	}

	if c.shouldPersist(r, j.url, res) {
		page.SavedAs = c.persist(ctx, r, j.url, res)
	}

	c.registry.record(key, page)
	r.events.pageCrawled(page)

	if page.Failed() {
		c.logger.Debug("page failed", "url", page.URL, "error", page.Error, "attempts", page.Attempts)
	}

	out.links = r.inScope(page.PageLinks)
	return out
}

// filterLinks drops links to pages already reserved in this run and links
// in the ignore set. Links that are not absolute URLs are kept as written.
func (c *Crawler) filterLinks(r *run, raw []string) []string {
	kept := make([]string, 0, len(raw))
	for _, link := range raw {
		if key, ok := model.ParsePageKey(link); ok {
			if r.ignored(key) || c.registry.reserved(key) {
				continue
			}
		}
		kept = append(kept, link)
	}
	return kept
}

// inScope returns the links worth crawling: absolute, on the root host and
// not ignored.
func (r *run) inScope(links []string) []*url.URL {
	var scoped []*url.URL
	for _, link := range links {
		u, ok := model.ParseAbsolute(link)
		if !ok {
			continue
		}
		if !strings.EqualFold(u.Hostname(), r.root.Hostname()) {
			continue
		}
		if r.ignored(model.NewPageKey(u)) {
			continue
		}
		scoped = append(scoped, u)
	}
	return scoped
}

// shouldPersist reports whether the fetched body is written to the sink.
// PDF documents are always kept; challenge pages never are.
func (c *Crawler) shouldPersist(r *run, u *url.URL, res fetcher.Result) bool {
	if len(res.Data) == 0 {
		return false
	}
	if res.HasContent() && isChallengePage(res.Content) {
		c.logger.Info("challenge page detected, not saving", "url", u.String())
		return false
	}
	return r.opts.SaveFiles || isPDF(u)
}

// persist writes the page body and returns the file name, or "" when the
// write failed.
func (c *Crawler) persist(ctx context.Context, r *run, u *url.URL, res fetcher.Result) string {
	name := FileName(u, res.IsHTML(), r.opts.FallbackExtension)
	data := res.Data

	if r.opts.CleanContent && res.HasContent() {
		cleaned, err := Clean(res.Content, r.opts.CleanFormat, u)
		if err != nil {
			c.logger.Warn("failed to clean page, saving original", "url", u.String(), "error", err)
		} else {
			data = []byte(cleaned)
			if r.opts.CleanFormat == CleanFormatMarkdown {
				name = strings.TrimSuffix(name, ".html") + ".md"
			}
		}
	}

	if err := r.sink.Save(ctx, name, data); err != nil {
		c.logger.Warn("failed to save page", "url", u.String(), "file", name, "error", err)
		return ""
	}
	return name
}

func isChallengePage(content string) bool {
	return strings.Contains(strings.ToLower(content), cloudflareMarker)
}

func isPDF(u *url.URL) bool {
	return strings.EqualFold(path.Ext(u.Path), ".pdf")
}
