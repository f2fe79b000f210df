package crawler

import "errors"

// ErrInvalidInput is returned by Run when the root URL or options are
// unusable. It is the only error Run reports; page failures are recorded
// in the result.
var ErrInvalidInput = errors.New("invalid crawl input")
