package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/extract"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	seclog "github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/sitemap"
	"github.com/nao1215/sitecrawl/internal/storage"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl a website breadth-first",
		Long: `Crawl visits the start page, then every page it links to on the same host,
level by level, until the depth limit is reached.

Each visited page is printed as it is crawled. When the crawl finishes a
summary is printed and the run is stored in the history database.

Examples:
  # Crawl only the start page
  sitecrawl crawl https://example.com

  # Crawl three levels deep and save every page
  sitecrawl crawl -d 3 --save https://example.com

  # Save pages as Markdown without navigation and footers
  sitecrawl crawl -d 2 --save --clean --clean-format markdown https://example.com

  # Crawl every URL of the sitemap, two at a time
  sitecrawl crawl --sitemap -b 2 https://example.com

  # Use a run profile
  sitecrawl crawl -c crawl.yaml

Run profile (.sitecrawl) example:
  website: https://example.com
  depth: 2
  ignoreLinks: ["/logout"]
  storage:
    type: local
    path: ./out`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior
	cmd.Flags().IntP("depth", "d", config.DefaultDepth, "Maximum crawl depth (the start page is depth 1)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency, "Maximum number of fetches in flight")
	cmd.Flags().Int64("max-bytes", config.DefaultMaxDownloadBytes, "Largest accepted response body in bytes")
	cmd.Flags().StringSlice("ignore", nil, "URL to skip; relative URLs resolve against the start page (repeatable)")
	cmd.Flags().Bool("sitemap", false, "Crawl every URL listed in <site>/sitemap.xml")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of start pages crawled concurrently")

	// Persistence
	cmd.Flags().BoolP("save", "s", false, "Save every downloaded page (PDFs are always saved)")
	cmd.Flags().StringP("output-dir", "O", "", "Directory for saved pages (default: run-<timestamp>)")
	cmd.Flags().Bool("clean", false, "Strip header, footer, nav, script and style before saving")
	cmd.Flags().String("clean-format", config.DefaultCleanFormat, "Format of cleaned pages: text or markdown")
	cmd.Flags().String("fallback-ext", config.DefaultFallbackExtension, "Extension for saved non-HTML files without one")

	// Fetching
	cmd.Flags().Bool("robots", false, "Skip URLs disallowed by robots.txt")
	cmd.Flags().Bool("render", false, "Render pages with headless Chrome")
	cmd.Flags().Float64("rps", 0, "Requests per second per host (0 means unlimited)")
	cmd.Flags().String("proxy", "", "SOCKS5 proxy address (host:port)")
	cmd.Flags().StringToString("header", nil, "Extra request header as name=value (repeatable)")
	cmd.Flags().String("user-agent", "", "User-Agent header")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout, "Timeout of a single request")

	// Configuration file
	cmd.Flags().StringP("config", "c", "", "Run profile path (default: .sitecrawl in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write report to file (creates directories if needed)")
	cmd.Flags().Bool("no-history", false, "Do not store the run in the history database")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogJSON)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// buildConfig resolves flags, the run profile and defaults into a Config.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	get := func(fn func() error) {
		if err == nil {
			err = fn()
		}
	}
	get(func() (e error) { cfg.Depth, e = flags.GetInt("depth"); return })
	get(func() (e error) { cfg.Concurrency, e = flags.GetInt("concurrency"); return })
	get(func() (e error) { cfg.MaxDownloadBytes, e = flags.GetInt64("max-bytes"); return })
	get(func() (e error) { cfg.IgnoreLinks, e = flags.GetStringSlice("ignore"); return })
	get(func() (e error) { cfg.UseSitemap, e = flags.GetBool("sitemap"); return })
	get(func() (e error) { cfg.BatchSize, e = flags.GetInt("batch"); return })
	get(func() (e error) { cfg.SaveFiles, e = flags.GetBool("save"); return })
	get(func() (e error) { cfg.OutputDir, e = flags.GetString("output-dir"); return })
	get(func() (e error) { cfg.CleanContent, e = flags.GetBool("clean"); return })
	get(func() (e error) { cfg.CleanFormat, e = flags.GetString("clean-format"); return })
	get(func() (e error) { cfg.FallbackExtension, e = flags.GetString("fallback-ext"); return })
	get(func() (e error) { cfg.RespectRobots, e = flags.GetBool("robots"); return })
	get(func() (e error) { cfg.Render, e = flags.GetBool("render"); return })
	get(func() (e error) { cfg.RequestsPerSecond, e = flags.GetFloat64("rps"); return })
	get(func() (e error) { cfg.Proxy, e = flags.GetString("proxy"); return })
	get(func() (e error) { cfg.Headers, e = flags.GetStringToString("header"); return })
	get(func() (e error) { cfg.UserAgent, e = flags.GetString("user-agent"); return })
	get(func() (e error) { cfg.Timeout, e = flags.GetDuration("timeout"); return })
	get(func() (e error) { cfg.ConfigFilePath, e = flags.GetString("config"); return })
	get(func() (e error) { cfg.JSONReport, e = flags.GetBool("json"); return })
	get(func() (e error) { cfg.MarkdownReport, e = flags.GetBool("markdown"); return })
	get(func() (e error) { cfg.ReportFile, e = flags.GetString("output"); return })
	if err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if err := applyGlobalFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// An explicit profile path must exist; the default locations are optional.
	profilePath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case profilePath != "":
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", profilePath, err)
		}
		if err := cfg.ApplyProfile(profile, flags.Changed); err != nil {
			return nil, fmt.Errorf("config file %s: %w", profilePath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.Targets = args
	}
	return cfg, nil
}

// applyGlobalFlags copies the root command's persistent flags into cfg.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.Verbose, err = boolFlag(cmd, "verbose"); err != nil {
		return err
	}
	if cfg.LogJSON, err = boolFlag(cmd, "log-json"); err != nil {
		return err
	}
	if dir := dbDirFlag(cmd); dir != "" {
		cfg.DBDir = dir
	}
	return nil
}

// boolFlag reads a flag that may be inherited from the root command. A
// subcommand used on its own has no such flag, which reads as false.
func boolFlag(cmd *cobra.Command, name string) (bool, error) {
	if cmd.Flags().Lookup(name) == nil {
		return false, nil
	}
	return cmd.Flags().GetBool(name)
}

// dbDirFlag returns the --db-dir value, or "" when unset or absent.
func dbDirFlag(cmd *cobra.Command) string {
	if cmd.Flags().Lookup("db-dir") == nil {
		return ""
	}
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return ""
	}
	return dir
}

func newLogger(w io.Writer, verbose, asJSON bool) *slog.Logger {
	if asJSON {
		return seclog.NewSecureJSONLogger(w, verbose)
	}
	return seclog.NewSecureLogger(w, verbose)
}

// runCrawl crawls every target and writes the reports to out.
func runCrawl(ctx context.Context, out, errOut io.Writer, cfg *config.Config, logger *slog.Logger) error {
	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	f, client, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}

	roots := cfg.Targets
	if cfg.UseSitemap {
		roots = discoverRoots(ctx, client, cfg.Targets, logger)
	}

	dest, closeDest, err := openReportOutput(cfg, out)
	if err != nil {
		return err
	}
	defer closeDest()

	// Pages are printed while the crawl runs only for the console format on
	// stdout; every other destination receives the finished report.
	live := !cfg.JSONReport && !cfg.MarkdownReport && cfg.ReportFile == ""
	console := &consoleObserver{out: out}
	writer := newReportWriter(cfg, dest, live)

	opts := crawlOptions(cfg, time.Now())

	bp := pipeline.NewBatchProcessor(
		func() pipeline.Runner {
			copts := []crawler.Option{
				crawler.WithConcurrency(cfg.Concurrency),
				crawler.WithLogger(logger),
				crawler.WithObserver(crawler.LogObserver{Logger: logger}),
			}
			if live {
				copts = append(copts, crawler.WithObserver(console))
			}
			return crawler.New(f, extract.NewHTMLExtractor(), copts...)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var (
		mu       sync.Mutex
		firstErr error
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, roots, opts, func(o pipeline.Outcome, _ int) {
		if o.Err != nil {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(errOut, "Crawl error for %s: %v\n", o.Root, o.Err)
			if firstErr == nil {
				firstErr = o.Err
			}
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if _, err := writer.Write(o.Result); err != nil {
			logger.Error("report failed", "site", o.Root, "error", err)
		}
		if err := saveRun(ctx, db, o.Result, logger); err != nil {
			logger.Error("failed to save run", "site", o.Root, "error", err)
		}
	})

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		return batchErr
	}
	if ctx.Err() != nil {
		fmt.Fprintln(errOut, "Crawl interrupted; partial results were reported.")
	}
	return firstErr
}

// newFetcher composes the fetcher chain selected by cfg. The returned client
// is used for sitemap discovery.
func newFetcher(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, *http.Client, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = fetcher.DefaultUserAgent
	}

	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(userAgent),
		fetcher.WithHeaders(cfg.Headers),
		fetcher.WithRequestsPerSecond(cfg.RequestsPerSecond),
		fetcher.WithLogger(logger),
	}
	if cfg.Proxy != "" {
		opts = append(opts, fetcher.WithSOCKS5Proxy(cfg.Proxy))
	}
	hf, err := fetcher.NewHTTPFetcher(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	var f fetcher.Fetcher = hf
	if cfg.Render {
		f = fetcher.NewRenderer(
			fetcher.WithRenderTimeout(cfg.Timeout),
			fetcher.WithRenderUserAgent(userAgent),
			fetcher.WithRenderLogger(logger),
		)
	}
	if cfg.RespectRobots {
		f = fetcher.NewRobotsFetcher(f, hf.Client(), userAgent, logger)
	}
	return f, hf.Client(), nil
}

// discoverRoots replaces each target by the URLs of its sitemap. Targets
// without a usable sitemap are crawled themselves.
func discoverRoots(ctx context.Context, client *http.Client, targets []string, logger *slog.Logger) []string {
	var roots []string
	for _, target := range targets {
		locs, err := sitemap.Discover(ctx, client, target)
		if err != nil {
			logger.Warn("sitemap unavailable", "site", target, "error", err)
		}
		if len(locs) == 0 {
			roots = append(roots, target)
			continue
		}
		logger.Info("sitemap loaded", "site", target, "urls", len(locs))
		roots = append(roots, locs...)
	}
	return roots
}

// crawlOptions maps cfg onto the per-run crawler options. All runs of one
// invocation share a sink so that a sitemap batch lands in one directory.
func crawlOptions(cfg *config.Config, started time.Time) crawler.Options {
	opts := crawler.DefaultOptions()
	opts.MaxDepth = cfg.Depth
	opts.SaveFiles = cfg.SaveFiles
	opts.MaxDownloadBytes = cfg.MaxDownloadBytes
	opts.CleanContent = cfg.CleanContent
	opts.CleanFormat = crawler.CleanFormat(cfg.CleanFormat)
	opts.IgnoreLinks = cfg.IgnoreLinks
	opts.FallbackExtension = cfg.FallbackExtension

	dir := cfg.OutputDir
	if dir == "" {
		dir = storage.RunDir("", started)
	}
	opts.Sink = storage.NewLocalSink(dir)
	return opts
}

// openReportOutput returns the report destination: the report file when
// one is configured, out otherwise.
func openReportOutput(cfg *config.Config, out io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return out, func() {}, nil
	}

	if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // best effort close of the report file
}

func newReportWriter(cfg *config.Config, w io.Writer, live bool) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithPages(!live), report.WithVerbose(cfg.Verbose))
	}
}

// saveRun stores result in db. A nil db is a no-op.
func saveRun(ctx context.Context, db *database.CrawlDB, result *model.CrawlResult, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	// The run is stored even when ctx was cancelled by a signal.
	if err := db.SaveRun(context.WithoutCancel(ctx), result); err != nil {
		return err
	}
	logger.Debug("run saved", "runID", result.RunID, "site", result.Site)
	return nil
}

// consoleObserver prints every crawled page in the console format. The
// crawler drains observer queues before Run returns, so all pages of a run
// are printed before its summary.
type consoleObserver struct {
	mu  sync.Mutex
	out io.Writer
}

// CrawlStarted implements crawler.Observer.
func (c *consoleObserver) CrawlStarted(string) {}

// PageCrawled implements crawler.Observer.
func (c *consoleObserver) PageCrawled(page *model.CrawledPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, report.FormatPage(page))
}

// CrawlCompleted implements crawler.Observer.
func (c *consoleObserver) CrawlCompleted(*model.CrawlResult) {}
