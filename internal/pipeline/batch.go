package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// Runner crawls a single site. *crawler.Crawler implements it.
type Runner interface {
	Run(ctx context.Context, rootURL string, opts crawler.Options) (*model.CrawlResult, error)
}

// Outcome is the result of crawling one root of a batch.
type Outcome struct {
	// Root is the root URL as given to the batch.
	Root string

	// Result is the crawl report. Nil when Err is set or the crawl never
	// started because the batch was cancelled.
	Result *model.CrawlResult

	// Err is the error returned by the runner.
	Err error
}

// BatchProcessor crawls multiple roots concurrently.
type BatchProcessor struct {
	// runnerFactory creates a fresh runner for each root.
	runnerFactory func() Runner

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 1, which crawls the roots one after another.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(runnerFactory func() Runner, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		runnerFactory: runnerFactory,
		concurrency:   1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch crawls every root and returns the outcomes in root order.
//
// A failing crawl does not stop the others. The returned error is non-nil
// only when ctx was cancelled before every crawl could start; outcomes of
// crawls that never started have neither Result nor Err.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, roots []string, opts crawler.Options) ([]Outcome, error) {
	outcomes := make([]Outcome, len(roots))
	for i, root := range roots {
		outcomes[i].Root = root
	}

	err := bp.ProcessBatchWithCallback(ctx, roots, opts, func(o Outcome, index int) {
		// Each goroutine writes its own index.
		outcomes[index] = o
	})
	return outcomes, err
}

// ProcessBatchWithCallback crawls every root and calls callback for each
// finished crawl, from the goroutine that ran it. The callback must be
// safe for concurrent use when the concurrency is above 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	roots []string,
	opts crawler.Options,
	callback func(o Outcome, index int),
) error {
	bp.logger.Info("starting batch crawl",
		"total_roots", len(roots),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("crawling root",
				"root", root,
				"index", i+1,
				"total", len(roots),
			)

			result, err := bp.runnerFactory().Run(ctx, root, opts)
			if err != nil {
				// Recorded in the outcome; the other roots keep going.
				bp.logger.Warn("crawl failed", "root", root, "error", err)
			}
			callback(Outcome{Root: root, Result: result, Err: err}, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch crawl complete",
		"total_roots", len(roots),
		"elapsed", time.Since(startTime),
	)
	return err
}
