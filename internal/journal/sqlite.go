package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal on a local SQLite database.
type SQLiteJournal struct {
	db *sqlx.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return j, nil
}

// Close closes the underlying database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (j *SQLiteJournal) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := j.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = j.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := j.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// RecordRun inserts or replaces a run.
func (j *SQLiteJournal) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, pipeline, status, message,
			emails_scanned, attachments_uploaded, alert_count, errors,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, run.Status, run.Message,
		run.EmailsScanned, run.AttachmentsUploaded, run.AlertCount, run.Errors,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}
	return nil
}

// RecordAttachment inserts one attachment outcome.
func (j *SQLiteJournal) RecordAttachment(ctx context.Context, a Attachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO attachments (
			id, run_id, message_id, filename, stored_name,
			size, stored, recorded, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.MessageID, a.Filename, a.StoredName,
		a.Size, boolToInt(a.Stored), boolToInt(a.Recorded), a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording attachment %s of run %s: %w", a.StoredName, a.RunID, err)
	}
	return nil
}

// RecentRuns returns runs ordered newest first.
func (j *SQLiteJournal) RecentRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var conditions []string
	var args []interface{}

	if filter.Pipeline != nil {
		conditions = append(conditions, "pipeline = ?")
		args = append(args, *filter.Pipeline)
	}

	query := "SELECT * FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var runs []Run
	if err := j.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// AttachmentsForRun returns a run's attachments in the order they were
// recorded.
func (j *SQLiteJournal) AttachmentsForRun(ctx context.Context, runID string) ([]Attachment, error) {
	var out []Attachment
	err := j.db.SelectContext(ctx, &out,
		"SELECT * FROM attachments WHERE run_id = ? ORDER BY created_at, rowid", runID)
	if err != nil {
		return nil, fmt.Errorf("querying attachments of run %s: %w", runID, err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
