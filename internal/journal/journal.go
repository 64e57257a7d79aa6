package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added index on entries.record_id for per-record history
const currentSchemaVersion = 1

// Direction is the direction of a sync pass.
type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
)

// Run is one sync pass.
type Run struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	StartedAt time.Time `json:"started_at"`
	Entries   int       `json:"entries"`
	Conflicts int       `json:"conflicts"`
	Failures  int       `json:"failures"`
}

// Entry is the result of reconciling one record within a run.
type Entry struct {
	Seq        int64     `json:"seq"`
	RunID      string    `json:"run_id"`
	RecordID   string    `json:"record_id"`
	Kind       string    `json:"kind"`
	Collection string    `json:"collection"`
	Slug       string    `json:"slug"`
	Outcome    string    `json:"outcome"`
	Hash       string    `json:"hash,omitempty"`
	Message    string    `json:"message,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal is the SQLite-backed sync history.
type Journal struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock sets the time source for run and entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7.
func WithRunIDs(newID func() string) Option {
	return func(j *Journal) {
		j.newID = newID
	}
}

// Open creates or opens the journal at path, creating parent directories.
// Applies required pragmas and migrations automatically.
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// BeginRun opens a new run and returns its id.
func (j *Journal) BeginRun(ctx context.Context, direction Direction) (string, error) {
	id := j.newID()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, direction, started_at)
		VALUES (?, ?, ?)
	`, id, string(direction), j.now().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// Record appends an entry to its run. Seq and RecordedAt are assigned here.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entries
		(run_id, record_id, kind, collection, slug, outcome, hash, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.RunID,
		e.RecordID,
		e.Kind,
		e.Collection,
		e.Slug,
		e.Outcome,
		e.Hash,
		e.Message,
		j.now().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// Runs returns the most recent runs first. A limit <= 0 returns all runs.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.direction, r.started_at,
		       COUNT(e.seq),
		       COALESCE(SUM(CASE WHEN e.outcome = 'conflict' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN e.outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN entries e ON e.run_id = r.id
		GROUP BY r.seq
		ORDER BY r.seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r         Run
			direction string
			startedAt string
		)
		if err := rows.Scan(&r.ID, &direction, &startedAt, &r.Entries, &r.Conflicts, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Direction = Direction(direction)
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Entries returns the entries of one run in the order they were recorded.
// Returns an empty slice (not nil) for an unknown run.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	return j.queryEntries(ctx, `WHERE run_id = ?`, runID)
}

// RecordHistory returns every entry ever recorded for a record, oldest first.
func (j *Journal) RecordHistory(ctx context.Context, recordID string) ([]Entry, error) {
	return j.queryEntries(ctx, `WHERE record_id = ?`, recordID)
}

func (j *Journal) queryEntries(ctx context.Context, where string, arg any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, run_id, record_id, kind, collection, slug, outcome, hash, message, recorded_at
		FROM entries
		`+where+`
		ORDER BY seq ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			recordedAt string
		)
		if err := rows.Scan(&e.Seq, &e.RunID, &e.RecordID, &e.Kind, &e.Collection,
			&e.Slug, &e.Outcome, &e.Hash, &e.Message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the per-record history index.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_entries_record
		ON entries(record_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
