package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/model"
)

// dbFileName is the name of the database file inside the database directory.
const dbFileName = "sitecrawl.db"

// storedTimeLayout has a fixed width so that stored timestamps sort
// lexically in time order.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z"

// CrawlDB stores crawl runs in a SQLite database.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run; result_json holds the complete report
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		run_time_ms INTEGER NOT NULL,
		page_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per recorded page of a run
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		page_key TEXT NOT NULL,
		url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		total_links INTEGER NOT NULL,
		kept_links INTEGER NOT NULL,
		status_code INTEGER,
		error TEXT,
		UNIQUE(run_id, page_key)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_key ON pages(page_key);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a completed run and its pages in one transaction.
// Saving the same run twice fails.
func (cdb *CrawlDB) SaveRun(ctx context.Context, result *model.CrawlResult) (err error) {
	if result.RunID == "" {
		return errors.New("run has no id")
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, site, max_depth, started_at, run_time_ms, page_count, failed_count, cancelled, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID,
		result.Site,
		result.MaxDepth,
		result.StartedAt.UTC().Format(storedTimeLayout),
		result.RunTime.Milliseconds(),
		len(result.Pages),
		result.FailedCount(),
		result.Cancelled,
		string(resultJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, page_key, url, depth, total_links, kept_links, status_code, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range result.Pages {
		_, err = stmt.ExecContext(ctx,
			result.RunID,
			string(p.Key),
			p.URL,
			p.FirstVisitedDepth,
			p.TotalLinksFound,
			len(p.PageLinks),
			p.StatusCode,
			p.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save page %s: %w", p.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetLatestRun retrieves the most recent run of site.
// Returns nil and no error when the site has no runs.
func (cdb *CrawlDB) GetLatestRun(ctx context.Context, site string) (*model.CrawlResult, error) {
	runs, err := cdb.GetLatestRuns(ctx, site, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// GetLatestRuns retrieves up to limit runs of site, newest first.
func (cdb *CrawlDB) GetLatestRuns(ctx context.Context, site string, limit int) ([]*model.CrawlResult, error) {
	query := `
	SELECT result_json FROM runs
	WHERE site = ?
	ORDER BY started_at DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs: %w", err)
	}
	defer rows.Close()

	var results []*model.CrawlResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result, err := decodeResult(resultJSON)
		if err != nil {
			continue // Skip malformed runs
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

// GetRunByID retrieves a run by its id.
// Returns nil and no error when no such run exists.
func (cdb *CrawlDB) GetRunByID(ctx context.Context, runID string) (*model.CrawlResult, error) {
	var resultJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE run_id = ?`, runID).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeResult(resultJSON)
}

func decodeResult(resultJSON string) (*model.CrawlResult, error) {
	var decoded model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	return &decoded, nil
}

// ListSites returns every site with at least one stored run.
func (cdb *CrawlDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM runs ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for displaying history without loading the full report.
type RunMetadata struct {
	// RunID identifies the run.
	RunID string

	// Site is the crawled root URL.
	Site string

	// MaxDepth is the depth limit of the run.
	MaxDepth int

	// StartedAt is when the run began.
	StartedAt time.Time

	// RunTime is how long the run took.
	RunTime time.Duration

	// PageCount is the number of recorded pages.
	PageCount int

	// FailedCount is the number of pages recorded with an error.
	FailedCount int

	// Cancelled reports whether the run was interrupted.
	Cancelled bool
}

// GetRunHistory retrieves the metadata of every run of site, newest first.
func (cdb *CrawlDB) GetRunHistory(ctx context.Context, site string) ([]RunMetadata, error) {
	query := `
	SELECT run_id, site, max_depth, started_at, run_time_ms, page_count, failed_count, cancelled
	FROM runs
	WHERE site = ?
	ORDER BY started_at DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var runTimeMS int64

		if err := rows.Scan(&meta.RunID, &meta.Site, &meta.MaxDepth, &startedAt, &runTimeMS,
			&meta.PageCount, &meta.FailedCount, &meta.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.RunTime = time.Duration(runTimeMS) * time.Millisecond

		results = append(results, meta)
	}

	return results, rows.Err()
}

// PageRecord is one observation of a page in a stored run.
type PageRecord struct {
	RunID      string
	StartedAt  time.Time
	URL        string
	Depth      int
	TotalLinks int
	KeptLinks  int
	StatusCode int
	Error      string
}

// GetPageHistory returns every stored observation of the page with key,
// newest run first.
func (cdb *CrawlDB) GetPageHistory(ctx context.Context, key model.PageKey) ([]PageRecord, error) {
	query := `
	SELECT p.run_id, r.started_at, p.url, p.depth, p.total_links, p.kept_links, p.status_code, p.error
	FROM pages p
	JOIN runs r ON r.run_id = p.run_id
	WHERE p.page_key = ?
	ORDER BY r.started_at DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, string(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var rec PageRecord
		var startedAt string
		var status sql.NullInt64
		var pageErr sql.NullString
		if err := rows.Scan(&rec.RunID, &startedAt, &rec.URL, &rec.Depth, &rec.TotalLinks,
			&rec.KeptLinks, &status, &pageErr); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		rec.StartedAt = parseTimestamp(startedAt)
		rec.StatusCode = int(status.Int64)
		rec.Error = pageErr.String
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteRun removes a run and its pages. Deleting an unknown run is not an
// error.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, runID string) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE run_id = ?`, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete pages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
