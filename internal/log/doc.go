// Package log provides an slog handler that keeps credentials out of crawl
// logs.
//
// SecureHandler wraps any slog.Handler and rewrites attributes before they
// are written:
//   - values under sensitive keys (authorization, cookie, proxy passwords)
//     are replaced with MaskValue
//   - bearer, basic and JWT tokens are masked wherever they appear
//   - URLs lose their userinfo, and sensitive query parameters such as
//     token or sig are masked
//
// Typical use:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("fetching", "url", "https://user:pw@example.com/?token=x")
//	// url=https://example.com/?token=***REDACTED***
package log
