package crawler

import (
	"context"
	"net/url"
	"time"
)

// retryItem is a rate-limited page waiting for another attempt.
type retryItem struct {
	url *url.URL

	// depth is the depth at which the page was scheduled.
	depth int

	// attempt is the number of fetches already made.
	attempt int

	// retryAfter is the delay requested by the server on the first
	// rate-limited response.
	retryAfter time.Duration
}

// drainRetries retries set-aside pages until the queue is empty. Pages that
// are still rate-limited go to the back of the queue. Links found by
// successful retries are admitted into next.
func (c *Crawler) drainRetries(ctx context.Context, r *run, next []*url.URL) []*url.URL {
	for len(r.retries) > 0 {
		item := r.retries[0]
		r.retries = r.retries[1:]

		delay := c.backoff(item)
		c.logger.Debug("retrying rate-limited page",
			"url", item.url.String(),
			"attempt", item.attempt+1,
			"delay", delay,
		)
		if err := sleep(ctx, delay); err != nil {
			r.retries = nil
			return next
		}

		attempt := item.attempt + 1
		o := c.process(ctx, r, job{url: item.url, depth: item.depth, attempt: attempt})
		switch {
		case o.cancelled:
			r.retries = nil
			return next
		case o.retry:
			// process only asks for a retry below maxAttempts, so the next
			// pass over this item is at most the final attempt.
			r.retries = append(r.retries, retryItem{
				url:     item.url,
				depth:   item.depth,
				attempt: attempt,
			})
		default:
			next = c.admit(next, o.links)
		}
	}
	return next
}

// backoff returns the delay before the next attempt of item. The delay
// grows linearly with the attempts made. A Retry-After from the first
// rate-limited response is honoured when it asks for longer, up to
// maxRetryAfter.
func (c *Crawler) backoff(item retryItem) time.Duration {
	delay := time.Duration(item.attempt) * c.retryBaseDelay
	if item.attempt == 1 && item.retryAfter > 0 {
		delay = max(delay, min(item.retryAfter, c.maxRetryAfter))
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
