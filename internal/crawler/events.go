package crawler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
)

const (
	// defaultEventBuffer is the per-observer queue length.
	defaultEventBuffer = 1024

	// drainTimeout bounds how long a finished run waits for observers to
	// consume queued events.
	drainTimeout = 5 * time.Second
)

// Observer receives progress notifications. Callbacks run on a goroutine
// owned by the observer, in event order, and never block the crawl.
type Observer interface {
	CrawlStarted(root string)
	PageCrawled(page *model.CrawledPage)
	CrawlCompleted(result *model.CrawlResult)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnStarted   func(root string)
	OnPage      func(page *model.CrawledPage)
	OnCompleted func(result *model.CrawlResult)
}

// CrawlStarted implements Observer.
func (o ObserverFuncs) CrawlStarted(root string) {
	if o.OnStarted != nil {
		o.OnStarted(root)
	}
}

// PageCrawled implements Observer.
func (o ObserverFuncs) PageCrawled(page *model.CrawledPage) {
	if o.OnPage != nil {
		o.OnPage(page)
	}
}

// CrawlCompleted implements Observer.
func (o ObserverFuncs) CrawlCompleted(result *model.CrawlResult) {
	if o.OnCompleted != nil {
		o.OnCompleted(result)
	}
}

// LogObserver writes notifications to a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

// CrawlStarted implements Observer.
func (o LogObserver) CrawlStarted(root string) {
	o.Logger.Info("crawling", "root", root)
}

// PageCrawled implements Observer.
func (o LogObserver) PageCrawled(page *model.CrawledPage) {
	if page.Failed() {
		o.Logger.Warn("page failed", "url", page.URL, "depth", page.FirstVisitedDepth, "error", page.Error)
		return
	}
	o.Logger.Info("page crawled",
		"url", page.URL,
		"depth", page.FirstVisitedDepth,
		"links", len(page.PageLinks),
		"totalLinks", page.TotalLinksFound,
	)
}

// CrawlCompleted implements Observer.
func (o LogObserver) CrawlCompleted(result *model.CrawlResult) {
	o.Logger.Info("crawl finished",
		"site", result.Site,
		"pages", len(result.Pages),
		"elapsed", result.RunTime,
	)
}

// event is a queued notification; exactly one field is set.
type event struct {
	started   string
	page      *model.CrawledPage
	completed *model.CrawlResult
}

// notifier fans events out to observers through one buffered channel per
// observer.
type notifier struct {
	queues  []chan event
	wg      sync.WaitGroup
	dropped atomic.Int64
	logger  *slog.Logger
}

func newNotifier(observers []Observer, buffer int, logger *slog.Logger) *notifier {
	n := &notifier{logger: logger}
	for _, o := range observers {
		q := make(chan event, buffer)
		n.queues = append(n.queues, q)
		n.wg.Add(1)
		go n.consume(o, q)
	}
	return n
}

func (n *notifier) consume(o Observer, q <-chan event) {
	defer n.wg.Done()
	for ev := range q {
		n.deliver(o, ev)
	}
}

// deliver calls the observer and recovers from its panics.
func (n *notifier) deliver(o Observer, ev event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panicked", "panic", r)
		}
	}()
	switch {
	case ev.page != nil:
		o.PageCrawled(ev.page)
	case ev.completed != nil:
		o.CrawlCompleted(ev.completed)
	default:
		o.CrawlStarted(ev.started)
	}
}

func (n *notifier) publish(ev event) {
	for _, q := range n.queues {
		select {
		case q <- ev:
		default:
			n.dropped.Add(1)
		}
	}
}

func (n *notifier) crawlStarted(root string) {
	n.publish(event{started: root})
}

func (n *notifier) pageCrawled(page *model.CrawledPage) {
	n.publish(event{page: page})
}

func (n *notifier) crawlCompleted(result *model.CrawlResult) {
	n.publish(event{completed: result})
}

// close stops accepting events and waits, up to drainTimeout, for
// observers to finish the queued ones.
func (n *notifier) close() {
	for _, q := range n.queues {
		close(q)
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		n.logger.Warn("observers still busy, not waiting any longer")
	}

	if dropped := n.dropped.Load(); dropped > 0 {
		n.logger.Warn("observer events dropped", "count", dropped)
	}
}
