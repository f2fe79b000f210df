package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "List stored crawl runs",
		Long: `History lists the runs stored in the history database.

Examples:
  # List every crawled site
  sitecrawl history --list-sites

  # List the runs of a site, newest first
  sitecrawl history https://example.com

  # Show how a single page fared across runs
  sitecrawl history --page https://example.com/about`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-sites", "L", false, "List all crawled sites")
	cmd.Flags().StringP("page", "p", "", "Show the history of a single page URL")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listSites, err := cmd.Flags().GetBool("list-sites")
	if err != nil {
		return err
	}
	page, err := cmd.Flags().GetString("page")
	if err != nil {
		return err
	}
	if !listSites && page == "" && len(args) == 0 {
		return errors.New("site URL is required (use --list-sites to see crawled sites)")
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case listSites:
		return listCrawledSites(ctx, out, db)
	case page != "":
		return listPageHistory(ctx, out, db, page)
	default:
		site, err := resolveSite(ctx, db, args[0])
		if err != nil {
			return err
		}
		return listRunHistory(ctx, out, db, site)
	}
}

// openHistory opens the history database selected by --db-dir.
func openHistory(cmd *cobra.Command) (*database.CrawlDB, error) {
	dir := dbDirFlag(cmd)
	if dir == "" {
		dir = config.XDGDataDir()
	}
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// resolveSite maps a user supplied URL to the site string stored in the
// database. "https://Example.com" finds runs stored as "https://example.com/".
func resolveSite(ctx context.Context, db *database.CrawlDB, arg string) (string, error) {
	want, ok := model.ParsePageKey(arg)
	if !ok {
		return "", fmt.Errorf("invalid site URL: %s", arg)
	}

	sites, err := db.ListSites(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list sites: %w", err)
	}
	for _, site := range sites {
		if site == arg {
			return site, nil
		}
	}
	for _, site := range sites {
		if key, ok := model.ParsePageKey(site); ok && key == want {
			return site, nil
		}
	}
	return arg, nil
}

func listCrawledSites(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No crawled sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl <url>' to crawl a site.")
		return nil
	}

	fmt.Fprintf(out, "Crawled sites (%d):\n\n", len(sites))
	for _, site := range sites {
		fmt.Fprintf(out, "  • %s\n", site)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl history <site>' to see the runs of a site.")
	return nil
}

func listRunHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, site string) error {
	runs, err := db.GetRunHistory(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", site)
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", site, len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %6s  %6s  %s\n", "Run ID", "Started", "Depth", "Pages", "Failed", "Time")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 92))
	for _, run := range runs {
		elapsed := report.FormatElapsed(run.RunTime)
		if run.Cancelled {
			elapsed += " (cancelled)"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %6d  %6d  %s\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.MaxDepth,
			run.PageCount,
			run.FailedCount,
			elapsed,
		)
	}
	fmt.Fprintln(out, "\nUse 'sitecrawl compare <site>' to compare the latest two runs.")
	return nil
}

func listPageHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, rawURL string) error {
	key, ok := model.ParsePageKey(rawURL)
	if !ok {
		return fmt.Errorf("invalid page URL: %s", rawURL)
	}

	records, err := db.GetPageHistory(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get page history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No history found for %s\n", key)
		return nil
	}

	fmt.Fprintf(out, "History of %s (%d runs):\n\n", key, len(records))
	for _, rec := range records {
		status := fmt.Sprintf("%d/%d links", rec.KeptLinks, rec.TotalLinks)
		if rec.Error != "" {
			status = rec.Error
		}
		fmt.Fprintf(out, "  %s  depth %d  %s  [%s]\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Depth,
			status,
			rec.RunID,
		)
	}
	return nil
}
