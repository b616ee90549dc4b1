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

	"github.com/nao1215/mapharvest/internal/model"
)

// FileName is the database file created in the data directory.
const FileName = "mapharvest.db"

// RunDB stores runs and their records.
type RunDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures RunDB behavior.
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

// Open opens or creates a RunDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a search first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per invocation of the run command
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started TEXT NOT NULL,
		finished TEXT NOT NULL,
		tasks TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		interrupted INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);

	-- Records keep the export column order; position preserves arrival order
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		website TEXT,
		rating TEXT NOT NULL DEFAULT '',
		reviews_count TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL,
		extracted_at TEXT NOT NULL,
		search_query TEXT NOT NULL DEFAULT '',
		search_location TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, position);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records(fingerprint);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// Run is the metadata of a stored run.
type Run struct {
	// ID is assigned by SaveRun.
	ID int64

	// Started and Finished bound the run.
	Started  time.Time
	Finished time.Time

	// Tasks are the searches the run executed, in order.
	Tasks []model.SearchTask

	// RecordCount is the number of records stored with the run.
	RecordCount int

	// Interrupted is true when the run was cancelled before all tasks
	// completed.
	Interrupted bool
}

// SaveRun stores run and its records in one transaction and returns the
// new run ID. run.RecordCount is taken from len(records).
func (rdb *RunDB) SaveRun(ctx context.Context, run *Run, records []model.BusinessRecord) (int64, error) {
	tasksJSON, err := json.Marshal(run.Tasks)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize tasks: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started, finished, tasks, record_count, interrupted)
	VALUES (?, ?, ?, ?, ?)
	`,
		formatTimestamp(run.Started),
		formatTimestamp(run.Finished),
		string(tasksJSON),
		len(records),
		run.Interrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO records (
		run_id, position, idx, name, address, phone, website, rating, reviews_count,
		category, hours, source_url, extracted_at, search_query, search_location, fingerprint
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var website sql.NullString
		if r.Website != nil {
			website = sql.NullString{String: *r.Website, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			runID,
			i,
			r.Index,
			r.Name,
			r.Address,
			r.Phone,
			website,
			r.Rating,
			r.ReviewsCount,
			r.Category,
			r.Hours,
			r.SourceURL,
			formatTimestamp(r.ExtractedAt),
			r.SearchQuery,
			r.SearchLocation,
			r.Fingerprint(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = runID
	run.RecordCount = len(records)
	return runID, nil
}

// ListRuns returns stored runs, newest first. limit <= 0 returns all.
func (rdb *RunDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
	SELECT id, started, finished, tasks, record_count, interrupted
	FROM runs
	ORDER BY started DESC, id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with the given ID, or nil if there is none.
func (rdb *RunDB) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := rdb.db.QueryRowContext(ctx, `
	SELECT id, started, finished, tasks, record_count, interrupted
	FROM runs
	WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRunRecords returns the records of a run in the order they were
// collected. A run without records, or an unknown run, yields an empty
// slice.
func (rdb *RunDB) GetRunRecords(ctx context.Context, runID int64) ([]model.BusinessRecord, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT idx, name, address, phone, website, rating, reviews_count,
		category, hours, source_url, extracted_at, search_query, search_location
	FROM records
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run records: %w", err)
	}
	defer rows.Close()

	records := make([]model.BusinessRecord, 0)
	for rows.Next() {
		var (
			r           model.BusinessRecord
			website     sql.NullString
			extractedAt string
		)
		err := rows.Scan(
			&r.Index,
			&r.Name,
			&r.Address,
			&r.Phone,
			&website,
			&r.Rating,
			&r.ReviewsCount,
			&r.Category,
			&r.Hours,
			&r.SourceURL,
			&extractedAt,
			&r.SearchQuery,
			&r.SearchLocation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if website.Valid {
			r.Website = model.StringPtr(website.String)
		}
		r.ExtractedAt = parseTimestamp(extractedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountDistinctBusinesses returns how many different businesses all
// stored runs found, by record fingerprint.
func (rdb *RunDB) CountDistinctBusinesses(ctx context.Context) (int, error) {
	var count int
	err := rdb.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT fingerprint) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count businesses: %w", err)
	}
	return count, nil
}

// DeleteRun removes a run and its records. Deleting an unknown run is not
// an error.
func (rdb *RunDB) DeleteRun(ctx context.Context, id int64) error {
	if _, err := rdb.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %d: %w", id, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run               Run
		started, finished string
		tasksJSON         string
	)
	err := row.Scan(&run.ID, &started, &finished, &tasksJSON, &run.RecordCount, &run.Interrupted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Started = parseTimestamp(started)
	run.Finished = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(tasksJSON), &run.Tasks); err != nil {
		return nil, fmt.Errorf("failed to parse tasks of run %d: %w", run.ID, err)
	}
	return &run, nil
}

// storedLayout has a fixed-width fraction so stored times sort as text.
const storedLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
