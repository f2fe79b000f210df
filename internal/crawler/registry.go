package crawler

import (
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// entry is a registry slot. A nil page marks a key that is reserved but
// not yet processed.
type entry struct {
	page *model.CrawledPage
}

// registry records which pages a run has seen. All methods are safe for
// concurrent use.
type registry struct {
	mu      sync.Mutex
	entries map[model.PageKey]entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[model.PageKey]entry)}
}

// reserve claims key and reports whether the caller won the claim.
func (r *registry) reserve(key model.PageKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return false
	}
	r.entries[key] = entry{}
	return true
}

// reserved reports whether key has been reserved or recorded.
func (r *registry) reserved(key model.PageKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// record stores the processed page, replacing the reservation.
func (r *registry) record(key model.PageKey, page *model.CrawledPage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry{page: page}
}

// snapshot returns the recorded pages. Reservations that were never
// processed are left out.
func (r *registry) snapshot() []*model.CrawledPage {
	r.mu.Lock()
	defer r.mu.Unlock()
	pages := make([]*model.CrawledPage, 0, len(r.entries))
	for _, e := range r.entries {
		if e.page != nil {
			pages = append(pages, e.page)
		}
	}
	return pages
}

// reset forgets every entry.
func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[model.PageKey]entry)
}
