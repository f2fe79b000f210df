package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/model"
)

// mockRunner is a Runner whose behaviour is controlled by runFunc.
type mockRunner struct {
	runFunc func(ctx context.Context, root string) (*model.CrawlResult, error)
}

func (m *mockRunner) Run(ctx context.Context, root string, _ crawler.Options) (*model.CrawlResult, error) {
	if m.runFunc != nil {
		return m.runFunc(ctx, root)
	}
	return model.NewCrawlResult("id", root, 1, nil), nil
}

func factory(fn func(ctx context.Context, root string) (*model.CrawlResult, error)) func() Runner {
	return func() Runner { return &mockRunner{runFunc: fn} }
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory(nil))
		if bp.concurrency != 1 {
			t.Errorf("expected default concurrency 1, got %d", bp.concurrency)
		}
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory(nil), WithConcurrency(5))
		if bp.concurrency != 5 {
			t.Errorf("expected concurrency 5, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory(nil), WithConcurrency(0))
		if bp.concurrency != 1 {
			t.Errorf("expected concurrency 1, got %d", bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory(nil), WithBatchLogger(nil))
		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

// TestBatchProcessorProcessBatch tests batch crawling.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("crawls every root in order", func(t *testing.T) {
		t.Parallel()

		var runners atomic.Int32
		bp := NewBatchProcessor(func() Runner {
			runners.Add(1)
			return &mockRunner{}
		}, WithBatchLogger(quietLogger()), WithConcurrency(3))

		roots := []string{"https://a.example", "https://b.example", "https://c.example"}
		outcomes, err := bp.ProcessBatch(context.Background(), roots, crawler.DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runners.Load() != 3 {
			t.Errorf("expected a fresh runner per root, got %d", runners.Load())
		}
		for i, o := range outcomes {
			if o.Root != roots[i] || o.Result == nil || o.Result.Site != roots[i] {
				t.Errorf("outcome %d: unexpected %+v", i, o)
			}
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, maxSeen atomic.Int32
		var mu sync.Mutex
		bp := NewBatchProcessor(factory(func(_ context.Context, root string) (*model.CrawlResult, error) {
			n := current.Add(1)
			mu.Lock()
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return model.NewCrawlResult("id", root, 1, nil), nil
		}), WithBatchLogger(quietLogger()), WithConcurrency(2))

		roots := make([]string, 8)
		for i := range roots {
			roots[i] = fmt.Sprintf("https://%d.example", i)
		}
		if _, err := bp.ProcessBatch(context.Background(), roots, crawler.DefaultOptions()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxSeen.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxSeen.Load())
		}
	})

	t.Run("continues after a failed crawl", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(factory(func(_ context.Context, root string) (*model.CrawlResult, error) {
			if root == "bad" {
				return nil, crawler.ErrInvalidInput
			}
			return model.NewCrawlResult("id", root, 1, nil), nil
		}), WithBatchLogger(quietLogger()))

		outcomes, err := bp.ProcessBatch(context.Background(), []string{"https://a.example", "bad", "https://c.example"}, crawler.DefaultOptions())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !errors.Is(outcomes[1].Err, crawler.ErrInvalidInput) {
			t.Errorf("expected error in second outcome, got %v", outcomes[1].Err)
		}
		if outcomes[2].Result == nil {
			t.Error("third root should still be crawled")
		}
	})

	t.Run("handles context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var started atomic.Int32
		bp := NewBatchProcessor(factory(func(ctx context.Context, root string) (*model.CrawlResult, error) {
			started.Add(1)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			return model.NewCrawlResult("id", root, 1, nil), nil
		}), WithBatchLogger(quietLogger()), WithConcurrency(2))

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		roots := make([]string, 10)
		for i := range roots {
			roots[i] = fmt.Sprintf("https://%d.example", i)
		}
		_, err := bp.ProcessBatch(ctx, roots, crawler.DefaultOptions())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		//nolint:gosec // len(roots) is small
		if started.Load() >= int32(len(roots)) {
			t.Error("expected some roots not to start after cancellation")
		}
	})
}

// TestBatchProcessorProcessBatchWithCallback tests callback-based processing.
func TestBatchProcessorProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	received := make(map[string]int)

	bp := NewBatchProcessor(factory(nil), WithBatchLogger(quietLogger()), WithConcurrency(2))
	roots := []string{"https://a.example", "https://b.example"}

	err := bp.ProcessBatchWithCallback(context.Background(), roots, crawler.DefaultOptions(), func(o Outcome, index int) {
		mu.Lock()
		defer mu.Unlock()
		received[o.Root] = index
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, root := range roots {
		if got, ok := received[root]; !ok || got != i {
			t.Errorf("missing or wrong callback for %q: %v", root, received)
		}
	}
}

// TestBatchWithCrawler checks that real crawlers plug into the batch.
func TestBatchWithCrawler(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(func() Runner {
		return crawler.New(nil, nil, crawler.WithLogger(quietLogger()))
	}, WithBatchLogger(quietLogger()))

	outcomes, err := bp.ProcessBatch(context.Background(), []string{"relative/path"}, crawler.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(outcomes[0].Err, crawler.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", outcomes[0].Err)
	}
}
