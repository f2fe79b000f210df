package crawler

import (
	"sync"
	"testing"

	"github.com/nao1215/sitecrawl/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("only the first reservation wins", func(t *testing.T) {
		t.Parallel()

		r := newRegistry()
		if !r.reserve("http://contoso.com/") {
			t.Fatal("first reserve should succeed")
		}
		if r.reserve("http://contoso.com/") {
			t.Error("second reserve should fail")
		}
		if !r.reserved("http://contoso.com/") {
			t.Error("key should be reserved")
		}
	})

	t.Run("concurrent reservations have a single winner", func(t *testing.T) {
		t.Parallel()

		r := newRegistry()
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if r.reserve("http://contoso.com/a") {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("snapshot skips reservations", func(t *testing.T) {
		t.Parallel()

		r := newRegistry()
		r.reserve("http://contoso.com/a")
		r.reserve("http://contoso.com/b")
		r.record("http://contoso.com/a", &model.CrawledPage{Key: "http://contoso.com/a"})

		pages := r.snapshot()
		if len(pages) != 1 || pages[0].Key != "http://contoso.com/a" {
			t.Errorf("unexpected snapshot %v", pages)
		}
	})

	t.Run("reset forgets everything", func(t *testing.T) {
		t.Parallel()

		r := newRegistry()
		r.reserve("http://contoso.com/a")
		r.reset()
		if r.reserved("http://contoso.com/a") {
			t.Error("reset should clear reservations")
		}
	})
}

func TestSortPages(t *testing.T) {
	t.Parallel()

	pages := []*model.CrawledPage{
		{Key: "http://contoso.com/z", FirstVisitedDepth: 2},
		{Key: "http://contoso.com/b", FirstVisitedDepth: 3},
		{Key: "http://contoso.com/a", FirstVisitedDepth: 2},
		{Key: "http://contoso.com/", FirstVisitedDepth: 1},
	}
	sortPages(pages)

	want := []model.PageKey{"http://contoso.com/", "http://contoso.com/a", "http://contoso.com/z", "http://contoso.com/b"}
	for i, p := range pages {
		if p.Key != want[i] {
			t.Errorf("position %d: got %s, want %s", i, p.Key, want[i])
		}
	}
}
