package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/ballotharvest/internal/model"
)

// FileName is the database file created in the database directory.
const FileName = "ballotharvest.db"

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrSourceMismatch is returned when comparing runs of different sources.
	ErrSourceMismatch = errors.New("runs have different sources")
)

// HistoryDB stores completed harvest runs: their metadata, rows and issues.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
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

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
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
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per harvest run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		root_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		issue_count INTEGER NOT NULL,
		output_file TEXT,
		stats TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);

	-- Rows are JSON arrays in harvest order
	CREATE TABLE IF NOT EXISTS run_rows (
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		row_json TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS run_issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		url TEXT,
		detail TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_issues_run ON run_issues(run_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunRecord is the stored metadata of a run.
type RunRecord struct {
	ID         int64
	Source     model.Source
	RootURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	RowCount   int
	IssueCount int
	OutputFile string
	Stats      model.Stats
	Error      string
}

// SaveRun stores the report with its rows and issues in one transaction
// and returns the new run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.HarvestReport) (int64, error) {
	var rows []model.ResultRow
	if report.Rows != nil {
		rows = report.Rows.Rows()
	}
	var issues []model.Issue
	if report.Issues != nil {
		issues = report.Issues.Issues()
	}

	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize stats: %w", err)
	}
	errMsg := report.ErrorMessage
	if errMsg == "" && report.Error != nil {
		errMsg = report.Error.Error()
	}
	finished := report.DateFinished
	if finished.IsZero() {
		finished = time.Now()
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (source, root_url, started_at, finished_at, row_count, issue_count, output_file, stats, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(report.Source),
		report.RootURL,
		report.DateStarted.UTC().Format(time.RFC3339Nano),
		finished.UTC().Format(time.RFC3339Nano),
		len(rows),
		len(issues),
		report.OutputFile,
		string(statsJSON),
		errMsg,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx, "INSERT INTO run_rows (run_id, seq, row_json) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare row insert: %w", err)
	}
	defer rowStmt.Close()
	for i, row := range rows {
		rowJSON, err := json.Marshal([]any(row))
		if err != nil {
			return 0, fmt.Errorf("failed to serialize row %d: %w", i, err)
		}
		if _, err := rowStmt.ExecContext(ctx, id, i, string(rowJSON)); err != nil {
			return 0, fmt.Errorf("failed to save row %d: %w", i, err)
		}
	}

	issueStmt, err := tx.PrepareContext(ctx, "INSERT INTO run_issues (run_id, kind, url, detail) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer issueStmt.Close()
	for _, is := range issues {
		if _, err := issueStmt.ExecContext(ctx, id, string(is.Kind), is.URL, is.Detail); err != nil {
			return 0, fmt.Errorf("failed to save issue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const runColumns = "id, source, root_url, started_at, finished_at, row_count, issue_count, output_file, stats, error"

// ListRuns returns the stored runs, newest first.
// An empty source lists runs of every source.
func (h *HistoryDB) ListRuns(ctx context.Context, source model.Source) ([]RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := []any{}
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, string(source))
	}
	query += " ORDER BY id DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetRun returns the metadata of one run.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return rec, err
}

// GetRunRows returns the rows of a run in harvest order.
func (h *HistoryDB) GetRunRows(ctx context.Context, id int64) ([]model.ResultRow, error) {
	if _, err := h.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, "SELECT row_json FROM run_rows WHERE run_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	defer rows.Close()

	out := make([]model.ResultRow, 0)
	for rows.Next() {
		var rowJSON string
		if err := rows.Scan(&rowJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row, err := decodeRow(rowJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRunIssues returns the issues of a run in recording order.
func (h *HistoryDB) GetRunIssues(ctx context.Context, id int64) ([]model.Issue, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT kind, url, detail FROM run_issues WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get issues: %w", err)
	}
	defer rows.Close()

	out := make([]model.Issue, 0)
	for rows.Next() {
		var (
			is          model.Issue
			kind        string
			url, detail sql.NullString
		)
		if err := rows.Scan(&kind, &url, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		is.Kind = model.IssueKind(kind)
		is.URL = url.String
		is.Detail = detail.String
		out = append(out, is)
	}
	return out, rows.Err()
}

// CompareRuns diffs the rows of two runs of the same source.
func (h *HistoryDB) CompareRuns(ctx context.Context, olderID, newerID int64) (model.RowDiff, error) {
	older, err := h.GetRun(ctx, olderID)
	if err != nil {
		return model.RowDiff{}, err
	}
	newer, err := h.GetRun(ctx, newerID)
	if err != nil {
		return model.RowDiff{}, err
	}
	if older.Source != newer.Source {
		return model.RowDiff{}, fmt.Errorf("%w: %s and %s", ErrSourceMismatch, older.Source, newer.Source)
	}

	olderRows, err := h.GetRunRows(ctx, olderID)
	if err != nil {
		return model.RowDiff{}, err
	}
	newerRows, err := h.GetRunRows(ctx, newerID)
	if err != nil {
		return model.RowDiff{}, err
	}
	return model.DiffRows(olderRows, newerRows), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*RunRecord, error) {
	var (
		rec                  RunRecord
		source               string
		started, finished    string
		outputFile, statsStr sql.NullString
		errMsg               sql.NullString
	)
	err := s.Scan(&rec.ID, &source, &rec.RootURL, &started, &finished,
		&rec.RowCount, &rec.IssueCount, &outputFile, &statsStr, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	rec.Source = model.Source(source)
	rec.StartedAt = parseTimestamp(started)
	rec.FinishedAt = parseTimestamp(finished)
	rec.OutputFile = outputFile.String
	rec.Error = errMsg.String
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &rec.Stats); err != nil {
			rec.Stats = model.Stats{}
		}
	}
	return &rec, nil
}

// decodeRow restores a stored row. Whole numbers come back as int so that
// restored rows compare equal to freshly harvested ones.
func decodeRow(rowJSON string) (model.ResultRow, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(rowJSON)))
	dec.UseNumber()

	var values []any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	row := make(model.ResultRow, len(values))
	for i, v := range values {
		if n, ok := v.(json.Number); ok {
			if i64, err := n.Int64(); err == nil {
				row[i] = int(i64)
				continue
			}
			row[i] = n.String()
			continue
		}
		row[i] = v
	}
	return row, nil
}

// timestampFormats are the formats SQLite may hand back.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
