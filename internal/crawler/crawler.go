package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/storage"
)

// Crawler defaults.
const (
	DefaultConcurrency    = 5
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultMaxRetryAfter  = 30 * time.Second
)

// maxAttempts is the number of fetches a rate-limited page gets in total.
const maxAttempts = 3

// Crawler runs breadth-first crawls. A Crawler executes one run at a time;
// concurrent calls to Run are serialized.
type Crawler struct {
	// fetcher downloads pages.
	fetcher fetcher.Fetcher

	// extractor finds links in fetched HTML.
	extractor extract.LinkExtractor

	// concurrency is the number of fetch permits.
	concurrency int

	// retryBaseDelay is multiplied by the attempt number to get the delay
	// before retrying a rate-limited page.
	retryBaseDelay time.Duration

	// maxRetryAfter caps a server supplied Retry-After delay.
	maxRetryAfter time.Duration

	logger      *slog.Logger
	observers   []Observer
	eventBuffer int

	// now returns the current time; replaced in tests.
	now func() time.Time

	// runMu serializes runs, which share the registry and permits.
	runMu    sync.Mutex
	registry *registry
	permits  *semaphore.Weighted
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithConcurrency sets the maximum number of simultaneous fetches.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRetryBaseDelay sets the base of the linear backoff applied to
// rate-limited pages.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Crawler) {
		c.retryBaseDelay = d
	}
}

// WithMaxRetryAfter caps how long a Retry-After header may delay a retry.
func WithMaxRetryAfter(d time.Duration) Option {
	return func(c *Crawler) {
		c.maxRetryAfter = d
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = l
	}
}

// WithObserver registers an observer notified about run progress.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		c.observers = append(c.observers, o)
	}
}

// WithEventBuffer sets the per-observer event buffer size. Events that do
// not fit are dropped.
func WithEventBuffer(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// New creates a Crawler.
func New(f fetcher.Fetcher, e extract.LinkExtractor, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:        f,
		extractor:      e,
		concurrency:    DefaultConcurrency,
		retryBaseDelay: DefaultRetryBaseDelay,
		maxRetryAfter:  DefaultMaxRetryAfter,
		logger:         slog.Default(),
		eventBuffer:    defaultEventBuffer,
		now:            time.Now,
		registry:       newRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.permits = semaphore.NewWeighted(int64(c.concurrency))
	return c
}

// run holds the state of one crawl.
type run struct {
	root    *url.URL
	opts    Options
	ignore  map[string]struct{}
	sink    storage.Sink
	retries []retryItem
	events  *notifier
}

// ignored reports whether key is in the ignore set. Matching is
// case-insensitive.
func (r *run) ignored(key model.PageKey) bool {
	_, ok := r.ignore[strings.ToLower(string(key))]
	return ok
}

// Run crawls the site at rootURL and returns the report.
//
// Run fails only with ErrInvalidInput. When ctx is cancelled the crawl stops
// starting new work, waits for in-flight fetches and returns the pages
// recorded so far with Cancelled set.
func (c *Crawler) Run(ctx context.Context, rootURL string, opts Options) (*model.CrawlResult, error) {
	root, ok := model.ParseAbsolute(rootURL)
	if !ok {
		return nil, fmt.Errorf("%w: root URL %q must be absolute", ErrInvalidInput, rootURL)
	}
	if opts.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: max depth must be at least 1, got %d", ErrInvalidInput, opts.MaxDepth)
	}
	if opts.CleanFormat == "" {
		opts.CleanFormat = CleanFormatText
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.registry.reset()

	started := c.now()
	r := &run{
		root:   root,
		opts:   opts,
		ignore: buildIgnoreSet(opts.IgnoreLinks, root),
		sink:   opts.Sink,
		events: newNotifier(c.observers, c.eventBuffer, c.logger),
	}
	if r.sink == nil {
		r.sink = storage.NewLocalSink(storage.RunDir("", started))
	}
	defer r.events.close()

	runID := uuid.NewString()
	logger := c.logger.With("runID", runID)
	logger.Info("crawl started", "root", root.String(), "maxDepth", opts.MaxDepth, "concurrency", c.concurrency)
	r.events.crawlStarted(root.String())

	c.crawl(ctx, r)

	result := c.assemble(runID, r, started)
	result.Cancelled = ctx.Err() != nil
	logger.Info("crawl completed",
		"pages", len(result.Pages),
		"failed", result.FailedCount(),
		"cancelled", result.Cancelled,
		"elapsed", result.RunTime,
	)
	r.events.crawlCompleted(result)
	return result, nil
}

// crawl drives the waves until the frontier is empty, the depth limit is
// reached or ctx is cancelled.
func (c *Crawler) crawl(ctx context.Context, r *run) {
	c.registry.reserve(model.NewPageKey(r.root))
	wave := []*url.URL{r.root}

	for depth := 1; depth <= r.opts.MaxDepth && (len(wave) > 0 || len(r.retries) > 0); depth++ {
		if ctx.Err() != nil {
			return
		}
		c.logger.Debug("dispatching wave", "depth", depth, "pages", len(wave))

		var next []*url.URL
		for _, o := range c.dispatch(ctx, r, wave, depth) {
			switch {
			case o.cancelled:
				// Never recorded; the reservation is dropped from the report.
			case o.retry:
				r.retries = append(r.retries, retryItem{
					url:        o.url,
					depth:      depth,
					attempt:    1,
					retryAfter: o.retryAfter,
				})
			default:
				next = c.admit(next, o.links)
			}
		}

		next = c.drainRetries(ctx, r, next)
		wave = next
	}
}

// dispatch processes every page of a wave concurrently. Outcomes are
// returned in wave order.
func (c *Crawler) dispatch(ctx context.Context, r *run, wave []*url.URL, depth int) []outcome {
	outcomes := make([]outcome, len(wave))
	var g errgroup.Group
	for i, u := range wave {
		g.Go(func() error {
			outcomes[i] = c.process(ctx, r, job{url: u, depth: depth, attempt: 1})
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// admit reserves each link and appends the ones this run has not seen yet
// to next.
func (c *Crawler) admit(next []*url.URL, links []*url.URL) []*url.URL {
	for _, u := range links {
		if c.registry.reserve(model.NewPageKey(u)) {
			next = append(next, u)
		}
	}
	return next
}

// buildIgnoreSet normalizes the ignore list. Relative entries are resolved
// against root; blank or unparsable entries are skipped.
func buildIgnoreSet(links []string, root *url.URL) map[string]struct{} {
	set := make(map[string]struct{}, len(links))
	for _, link := range links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if !u.IsAbs() {
			u = root.ResolveReference(u)
		}
		set[strings.ToLower(string(model.NewPageKey(u)))] = struct{}{}
	}
	return set
}
