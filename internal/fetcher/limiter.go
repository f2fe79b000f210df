package fetcher

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter spaces out requests to the same host.
type hostLimiter struct {
	limit rate.Limit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// newHostLimiter returns nil when requestsPerSecond is not positive, which
// disables limiting.
func newHostLimiter(requestsPerSecond float64) *hostLimiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &hostLimiter{
		limit:    rate.Limit(requestsPerSecond),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *hostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || host == "" {
		return nil
	}
	host = strings.ToLower(host)

	h.mu.Lock()
	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(h.limit, 1)
		h.limiters[host] = limiter
	}
	h.mu.Unlock()

	return limiter.Wait(ctx)
}
