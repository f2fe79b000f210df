package config

import "errors"

// Validation errors returned by Config.Validate and ApplyProfile.
var (
	// ErrNoTarget is returned when neither an argument nor the profile names a site.
	ErrNoTarget = errors.New("no target specified: provide a URL or set website in the profile")

	// ErrInvalidTarget is returned for targets that are not absolute http(s) URLs.
	ErrInvalidTarget = errors.New("invalid target: must be an absolute http or https URL")

	// ErrInvalidDepth is returned when the depth is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidConcurrency is returned when the concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxDownloadBytes is returned when the download limit is not positive.
	ErrInvalidMaxDownloadBytes = errors.New("invalid max download bytes: must be positive")

	// ErrInvalidCleanFormat is returned for clean formats other than text and markdown.
	ErrInvalidCleanFormat = errors.New("invalid clean format: must be text or markdown")

	// ErrInvalidRequestsPerSecond is returned when the rate limit is negative.
	ErrInvalidRequestsPerSecond = errors.New("invalid requests per second: must be non-negative")

	// ErrUnsupportedStorage is returned for profile storage types other than local.
	ErrUnsupportedStorage = errors.New("unsupported storage type: only local is available")
)
