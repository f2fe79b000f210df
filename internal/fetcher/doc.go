// Package fetcher downloads pages for the crawler.
//
// Every implementation satisfies Fetcher and reports failures inside the
// returned Result rather than as a Go error, so the crawler can record a
// failed page and keep going:
//   - HTTPFetcher: plain net/http with transient retry, content decoding,
//     optional SOCKS5 proxy and per-host politeness limits.
//   - RobotsFetcher: a decorator that refuses URLs disallowed by robots.txt.
//   - Renderer: a headless Chrome fetcher for script-rendered sites.
//
// A 429 response is surfaced with its status code and Retry-After value so
// that the caller can schedule its own delayed retry.
package fetcher
