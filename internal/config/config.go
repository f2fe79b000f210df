package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultDepth crawls only the root page.
	DefaultDepth = 1

	// DefaultConcurrency is the number of fetches in flight at once.
	DefaultConcurrency = 5

	// DefaultMaxDownloadBytes is 300 KiB. Larger bodies are recorded as
	// failures rather than truncated.
	DefaultMaxDownloadBytes int64 = 307200

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize crawls sitemap roots one after another.
	DefaultBatchSize = 1

	// DefaultCleanFormat persists cleaned pages as plain text.
	DefaultCleanFormat = "text"

	// DefaultFallbackExtension names extensionless non-HTML downloads.
	DefaultFallbackExtension = ".pdf"
)

// Clean formats accepted by Validate.
const (
	CleanFormatText     = "text"
	CleanFormatMarkdown = "markdown"
)

// Config holds every option of a crawl invocation. It is filled from CLI
// flags and the run profile and passed down explicitly.
type Config struct {
	// Targets are the root URLs to crawl.
	Targets []string

	// Depth is the deepest level crawled; the root is depth 1.
	Depth int

	// Concurrency bounds the number of fetches in flight per crawl.
	Concurrency int

	// SaveFiles persists every fetched page. PDFs are always persisted.
	SaveFiles bool

	// OutputDir receives persisted files. Empty means a run-scoped
	// directory in the working directory.
	OutputDir string

	// MaxDownloadBytes bounds the accepted body size.
	MaxDownloadBytes int64

	// CleanContent strips page chrome before persisting HTML.
	CleanContent bool

	// CleanFormat is "text" or "markdown".
	CleanFormat string

	// FallbackExtension names extensionless non-HTML downloads.
	FallbackExtension string

	// IgnoreLinks are URLs never reported or crawled. Relative entries are
	// resolved against each root.
	IgnoreLinks []string

	// UseSitemap seeds the crawl with the URLs of <root>/sitemap.xml.
	UseSitemap bool

	// RespectRobots skips URLs disallowed by robots.txt.
	RespectRobots bool

	// Render fetches pages with a headless browser.
	Render bool

	// RequestsPerSecond limits requests per host. Zero disables the limit.
	RequestsPerSecond float64

	// Proxy is a SOCKS5 proxy address in host:port form.
	Proxy string

	// Headers are sent with every request.
	Headers map[string]string

	// Timeout bounds a single request.
	Timeout time.Duration

	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// BatchSize is the number of roots crawled concurrently.
	BatchSize int

	// ConfigFilePath is the run profile given with --config.
	ConfigFilePath string

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; neither means the console format.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile receives the report instead of stdout.
	ReportFile string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores each result in the history database.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON writes logs as JSON.
	LogJSON bool
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Depth:             DefaultDepth,
		Concurrency:       DefaultConcurrency,
		MaxDownloadBytes:  DefaultMaxDownloadBytes,
		CleanFormat:       DefaultCleanFormat,
		FallbackExtension: DefaultFallbackExtension,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the data directory holding the history database.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the configuration directory.
// On Linux: ~/.config/sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, target := range c.Targets {
		if !isHTTPURL(target) {
			return ErrInvalidTarget
		}
	}
	if c.Depth < 1 {
		return ErrInvalidDepth
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxDownloadBytes <= 0 {
		return ErrInvalidMaxDownloadBytes
	}
	if c.CleanFormat != CleanFormatText && c.CleanFormat != CleanFormatMarkdown {
		return ErrInvalidCleanFormat
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRequestsPerSecond
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
