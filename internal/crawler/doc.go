// Package crawler implements the breadth-first crawl of a single website.
//
// A crawl proceeds in waves. Every page of the current depth is processed
// concurrently; the links they yield form the next wave. The number of
// in-flight fetches is bounded by a weighted semaphore independent of the
// wave size. Pages answered with HTTP 429 are set aside and retried with
// growing delays once the wave has finished, up to three attempts in total.
//
// Each page is visited at most once per run. The visited registry reserves
// a page key before the page is scheduled, so concurrent discoveries of the
// same link never fetch it twice, and a page keeps the depth at which it was
// first reserved.
//
// Typical use:
//
//	c := crawler.New(f, extract.NewHTMLExtractor(), crawler.WithConcurrency(5))
//	result, err := c.Run(ctx, "https://example.com", crawler.DefaultOptions())
package crawler
