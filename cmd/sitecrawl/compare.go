package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <site>",
		Short: "Compare two stored runs of a site",
		Long: `Compare shows what changed between two runs of the same site:
- pages that appeared since the earlier run
- pages that are no longer reached
- pages that started failing
- pages that recovered

By default the latest run is compared with the one before it.

Examples:
  # Compare the latest two runs
  sitecrawl compare https://example.com

  # Compare the latest run with a specific earlier run
  sitecrawl compare --with-run-id 6f1c... https://example.com

  # Output the comparison as JSON
  sitecrawl compare --json https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().StringP("with-run-id", "i", "", "Compare with a specific run (see 'sitecrawl history')")
	cmd.Flags().BoolP("json", "j", false, "Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison in Markdown format")

	return cmd
}

func runCompareCmd(cmd *cobra.Command, args []string) error {
	withRunID, err := cmd.Flags().GetString("with-run-id")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return errors.New("--json and --markdown cannot be used together")
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	site, err := resolveSite(ctx, db, args[0])
	if err != nil {
		return err
	}

	previous, current, err := selectRuns(ctx, db, site, withRunID)
	if err != nil {
		return err
	}

	diff := compareRuns(previous, current)
	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return outputComparisonJSON(out, diff)
	case markdownOutput:
		return outputComparisonMarkdown(out, diff)
	default:
		return outputComparisonText(out, diff)
	}
}

// selectRuns returns the earlier and the later run to compare.
func selectRuns(ctx context.Context, db *database.CrawlDB, site, withRunID string) (*model.CrawlResult, *model.CrawlResult, error) {
	runs, err := db.GetLatestRuns(ctx, site, 2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get runs: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("no run history found for %s", site)
	}
	current := runs[0]

	if withRunID == "" {
		if len(runs) < 2 {
			return nil, nil, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		return runs[1], current, nil
	}

	previous, err := db.GetRunByID(ctx, withRunID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get run %s: %w", withRunID, err)
	}
	if previous == nil {
		return nil, nil, fmt.Errorf("run %s not found", withRunID)
	}
	if previous.Site != current.Site {
		return nil, nil, fmt.Errorf("run %s belongs to %s, not %s", withRunID, previous.Site, current.Site)
	}
	if previous.RunID == current.RunID {
		return nil, nil, fmt.Errorf("run %s is the latest run; choose an earlier one", withRunID)
	}
	return previous, current, nil
}

// RunDiff is the difference between two runs of a site.
type RunDiff struct {
	Site     string      `json:"site"`
	Previous RunOverview `json:"previous"`
	Current  RunOverview `json:"current"`

	// NewPages were recorded only by the later run.
	NewPages []string `json:"new_pages"`

	// RemovedPages were recorded only by the earlier run.
	RemovedPages []string `json:"removed_pages"`

	// NewlyFailing succeeded in the earlier run and failed in the later one.
	NewlyFailing []PageChange `json:"newly_failing"`

	// Recovered failed in the earlier run and succeeded in the later one.
	Recovered []PageChange `json:"recovered"`

	// UnchangedCount is the number of pages present in both runs with the
	// same error state.
	UnchangedCount int `json:"unchanged_count"`
}

// RunOverview identifies one side of a comparison.
type RunOverview struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	MaxDepth  int       `json:"max_depth"`
	Pages     int       `json:"pages"`
	Failed    int       `json:"failed"`
	RunTime   string    `json:"run_time"`
	Cancelled bool      `json:"cancelled,omitempty"`
}

// PageChange is a page whose error state differs between two runs.
type PageChange struct {
	URL      string `json:"url"`
	Previous string `json:"previous_error,omitempty"`
	Current  string `json:"current_error,omitempty"`
}

func overview(r *model.CrawlResult) RunOverview {
	return RunOverview{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		MaxDepth:  r.MaxDepth,
		Pages:     len(r.Pages),
		Failed:    r.FailedCount(),
		RunTime:   report.FormatElapsed(r.RunTime),
		Cancelled: r.Cancelled,
	}
}

// compareRuns diffs previous against current by page key. Lists follow the
// report order of the run they come from.
func compareRuns(previous, current *model.CrawlResult) *RunDiff {
	diff := &RunDiff{
		Site:         current.Site,
		Previous:     overview(previous),
		Current:      overview(current),
		NewPages:     []string{},
		RemovedPages: []string{},
		NewlyFailing: []PageChange{},
		Recovered:    []PageChange{},
	}

	for _, p := range current.Pages {
		old, ok := previous.Lookup(p.Key)
		switch {
		case !ok:
			diff.NewPages = append(diff.NewPages, p.URL)
		case !old.Failed() && p.Failed():
			diff.NewlyFailing = append(diff.NewlyFailing, PageChange{URL: p.URL, Current: p.Error})
		case old.Failed() && !p.Failed():
			diff.Recovered = append(diff.Recovered, PageChange{URL: p.URL, Previous: old.Error})
		default:
			diff.UnchangedCount++
		}
	}
	for _, p := range previous.Pages {
		if _, ok := current.Lookup(p.Key); !ok {
			diff.RemovedPages = append(diff.RemovedPages, p.URL)
		}
	}
	return diff
}

// HasChanges reports whether the runs differ.
func (d *RunDiff) HasChanges() bool {
	return len(d.NewPages)+len(d.RemovedPages)+len(d.NewlyFailing)+len(d.Recovered) > 0
}

func outputComparisonJSON(out io.Writer, diff *RunDiff) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(diff)
}

func outputComparisonText(out io.Writer, diff *RunDiff) error {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 70) + "\n")
	sb.WriteString("                        CRAWL COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 70) + "\n\n")

	fmt.Fprintf(&sb, "Site:     %s\n", diff.Site)
	fmt.Fprintf(&sb, "Previous: %s\n", formatOverview(diff.Previous))
	fmt.Fprintf(&sb, "Current:  %s\n\n", formatOverview(diff.Current))

	if !diff.HasChanges() {
		fmt.Fprintf(&sb, "No changes (%d pages unchanged)\n", diff.UnchangedCount)
		_, err := io.WriteString(out, sb.String())
		return err
	}

	writeSection := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(&sb, "%s (%d)\n", title, len(lines))
		sb.WriteString(strings.Repeat("-", 70) + "\n")
		for _, l := range lines {
			sb.WriteString("  " + l + "\n")
		}
		sb.WriteString("\n")
	}

	writeSection("NEW PAGES", prefixed("[+] ", diff.NewPages))
	writeSection("REMOVED PAGES", prefixed("[-] ", diff.RemovedPages))
	writeSection("NEWLY FAILING", changeLines("[!] ", diff.NewlyFailing, false))
	writeSection("RECOVERED", changeLines("[✓] ", diff.Recovered, true))
	fmt.Fprintf(&sb, "Unchanged pages: %d\n", diff.UnchangedCount)

	_, err := io.WriteString(out, sb.String())
	return err
}

func outputComparisonMarkdown(out io.Writer, diff *RunDiff) error {
	md := markdown.NewMarkdown(out)

	md.H1("Crawl Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"", "Previous", "Current"},
		Rows: [][]string{
			{"Run ID", "`" + diff.Previous.RunID + "`", "`" + diff.Current.RunID + "`"},
			{"Started", diff.Previous.StartedAt.Format("2006-01-02 15:04:05 MST"), diff.Current.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Max Depth", strconv.Itoa(diff.Previous.MaxDepth), strconv.Itoa(diff.Current.MaxDepth)},
			{"Pages", strconv.Itoa(diff.Previous.Pages), strconv.Itoa(diff.Current.Pages)},
			{"Failed", strconv.Itoa(diff.Previous.Failed), strconv.Itoa(diff.Current.Failed)},
		},
	})
	md.PlainText("")

	switch {
	case len(diff.NewlyFailing) > 0:
		md.Warningf("%d page(s) started failing since the previous run.", len(diff.NewlyFailing))
	case diff.HasChanges():
		md.Note("The site structure changed since the previous run.")
	default:
		md.Tip("No changes since the previous run.")
	}
	md.PlainText("")

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		md.H2(title)
		md.PlainText("")
		md.BulletList(items...)
		md.PlainText("")
	}
	section("New Pages", diff.NewPages)
	section("Removed Pages", diff.RemovedPages)
	section("Newly Failing", changeLines("", diff.NewlyFailing, false))
	section("Recovered", changeLines("", diff.Recovered, true))

	md.PlainTextf("Unchanged pages: %d", diff.UnchangedCount)
	return md.Build()
}

func formatOverview(o RunOverview) string {
	return fmt.Sprintf("%s  %s  %d pages, %d failed, %s",
		o.StartedAt.Local().Format("2006-01-02 15:04:05"), o.RunID, o.Pages, o.Failed, o.RunTime)
}

func prefixed(prefix string, items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = prefix + s
	}
	return out
}

func changeLines(prefix string, changes []PageChange, recovered bool) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		reason := c.Current
		if recovered {
			reason = "was: " + c.Previous
		}
		out[i] = fmt.Sprintf("%s%s (%s)", prefix, c.URL, reason)
	}
	return out
}
