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

	"github.com/nao1215/kbcrawl/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "kbcrawl.db"

// CrawlDB stores crawl reports in SQLite.
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

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

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

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
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
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the path of the database file.
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
	-- One row per crawl, with the full report as JSON
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		seed TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		max_depth INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON crawl_runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Processed endpoints of each crawl, in processing order
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		depth INTEGER NOT NULL,
		title TEXT,
		link_count INTEGER NOT NULL DEFAULT 0,
		screenshot_path TEXT,
		content_path TEXT,
		fetch_error TEXT,
		store_error TEXT,
		UNIQUE(run_id, endpoint)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_endpoint ON pages(endpoint);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawlReport stores report and its pages in one transaction and
// returns the id of the new run.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	if report == nil {
		return 0, errors.New("report is nil")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (site, seed, algorithm, max_depth, status, page_count, started_at, finished_at, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Site.Origin(),
		report.Seed.String(),
		string(report.Algorithm),
		report.MaxDepth,
		string(report.Status),
		report.Len(),
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, position, endpoint, depth, title, link_count, screenshot_path, content_path, fetch_error, store_error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, page := range report.Pages {
		if _, err := stmt.ExecContext(ctx,
			runID,
			i,
			page.Endpoint.String(),
			page.Depth,
			page.Title,
			page.LinkCount,
			page.ScreenshotPath,
			page.ContentPath,
			page.FetchError,
			page.StoreError,
		); err != nil {
			return 0, fmt.Errorf("failed to save page %s: %w", page.Endpoint, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// GetLatestCrawlReport retrieves the most recent crawl of site.
// It returns nil when the site was never crawled.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, site string) (*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_runs
	WHERE site = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, site).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetCrawlReportByID retrieves a crawl by its run id.
// It returns nil when no such run exists.
func (cdb *CrawlDB) GetCrawlReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	return decodeReport(reportJSON)
}

// ListCrawledSites returns every site origin with at least one stored crawl.
func (cdb *CrawlDB) ListCrawledSites(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM crawl_runs ORDER BY site`)
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

// GetCrawlHistory retrieves every crawl of site, newest first.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, site string) ([]*model.CrawlReport, error) {
	query := `
	SELECT report_json FROM crawl_runs
	WHERE site = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var reports []*model.CrawlReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue // Skip malformed reports
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// RunMetadata summarizes a stored crawl without loading its report.
type RunMetadata struct {
	// ID is the run id.
	ID int64

	// Site is the crawled origin.
	Site string

	// Seed is the starting endpoint.
	Seed string

	// Algorithm is the exploration order.
	Algorithm string

	// MaxDepth is the depth bound, 0 for unbounded.
	MaxDepth int

	// Status is how the crawl ended.
	Status string

	// PageCount is the number of processed endpoints.
	PageCount int

	// StartedAt is when the crawl started.
	StartedAt time.Time

	// FinishedAt is when the crawl ended.
	FinishedAt time.Time
}

// GetCrawlHistoryWithMetadata retrieves run summaries of site, newest first.
func (cdb *CrawlDB) GetCrawlHistoryWithMetadata(ctx context.Context, site string) ([]RunMetadata, error) {
	query := `
	SELECT id, site, seed, algorithm, max_depth, status, page_count, started_at, finished_at
	FROM crawl_runs
	WHERE site = ?
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta      RunMetadata
			startedAt string
			finished  sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Site, &meta.Seed, &meta.Algorithm, &meta.MaxDepth,
			&meta.Status, &meta.PageCount, &startedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetPages returns the page rows of a run in processing order.
func (cdb *CrawlDB) GetPages(ctx context.Context, runID int64) ([]model.PageRecord, error) {
	query := `
	SELECT endpoint, depth, title, link_count, screenshot_path, content_path, fetch_error, store_error
	FROM pages
	WHERE run_id = ?
	ORDER BY position
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []model.PageRecord
	for rows.Next() {
		var (
			page                                   model.PageRecord
			endpoint                               string
			title, shot, content, fetchErr, store sql.NullString
		)
		if err := rows.Scan(&endpoint, &page.Depth, &title, &page.LinkCount, &shot, &content, &fetchErr, &store); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		page.Endpoint = model.Endpoint(endpoint)
		page.Title = title.String
		page.ScreenshotPath = shot.String
		page.ContentPath = content.String
		page.FetchError = fetchErr.String
		page.StoreError = store.String
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// FindEndpoint returns the run ids of site's crawls that processed endpoint,
// newest first.
func (cdb *CrawlDB) FindEndpoint(ctx context.Context, site string, endpoint model.Endpoint) ([]int64, error) {
	query := `
	SELECT r.id FROM pages p
	JOIN crawl_runs r ON r.id = p.run_id
	WHERE r.site = ? AND p.endpoint = ?
	ORDER BY r.started_at DESC, r.id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query, site, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to find endpoint: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasRecentCrawl reports whether site was crawled successfully within duration.
func (cdb *CrawlDB) HasRecentCrawl(ctx context.Context, site string, duration time.Duration) (bool, error) {
	query := `
	SELECT started_at FROM crawl_runs
	WHERE site = ? AND status = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	var startedAt string
	err := cdb.db.QueryRowContext(ctx, query, site, string(model.CrawlStatusCompleted)).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check recent crawl: %w", err)
	}

	ts := parseTimestamp(startedAt)
	if ts.IsZero() {
		return false, nil
	}
	return time.Since(ts) < duration, nil
}

func decodeReport(reportJSON string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// formatTimestamp stores times in UTC so that lexical order is
// chronological order.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimestampFormat)
}

// storedTimestampFormat has a fixed width, unlike RFC3339Nano.
const storedTimestampFormat = "2006-01-02T15:04:05.000000000Z"

// timestampFormats contains the timestamp formats that may be read back.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	storedTimestampFormat,
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
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
