// Package ledger records batch runs and per-document alignment summaries in
// SQLite so a run can be reviewed after the fact.
//
// Schema changes bump schemaVersion; an older database has to be deleted
// before it can be reopened.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"blogmigrate/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var (
	ErrSchemaMismatch = errors.New("ledger schema version mismatch")
	ErrNoRuns         = errors.New("no runs recorded")
	ErrRunNotFound    = errors.New("run not found")
)

// Run is one batch invocation.
type Run struct {
	ID         string
	PostsDir   string
	Write      bool
	StartedAt  time.Time
	FinishedAt time.Time
	Documents  int
	Aligned    int
	Failed     int
}

// DocumentRecord is the stored form of a models.Summary.
type DocumentRecord struct {
	ID            int64
	RunID         string
	Document      string
	Status        models.Status
	CaptionsFound int
	MediaFound    int
	Matched       int
	MediaInserted int
	MediaAppended int
	Error         string
	RecordedAt    time.Time
}

// UnmatchedRecord is a caption that did not receive media.
type UnmatchedRecord struct {
	Document   string
	Caption    string
	Outcome    string
	SourceLine int
}

// Ledger is the SQLite-backed run store.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	l := &Ledger{db: db, path: path}
	if err := l.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close releases the database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}

	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff

	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}

	return lastErr
}

func (l *Ledger) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := l.db.ExecContext(ctx, query, args...)
		return err
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}

	return t
}

// StartRun registers a new run.
func (l *Ledger) StartRun(ctx context.Context, runID, postsDir string, write bool) error {
	err := l.exec(ctx,
		"INSERT INTO runs (id, posts_dir, write_mode, started_at) VALUES (?, ?, ?, ?)",
		runID, postsDir, write, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}

	return nil
}

// RecordDocument stores the summary for one document and its unmatched
// captions.
func (l *Ledger) RecordDocument(ctx context.Context, runID string, s models.Summary) error {
	return retryOnBusy(ctx, func() error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		res, err := tx.ExecContext(ctx, `INSERT INTO documents
			(run_id, document, status, captions_found, media_found, matched,
			 media_inserted, media_appended, error, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Document, string(s.Status), s.CaptionsFound, s.MediaFound, s.Matched,
			s.MediaInserted, s.MediaAppended, nullString(s.Error), formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("insert document %s: %w", s.Document, err)
		}

		docID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("document id: %w", err)
		}

		for _, r := range s.Unmatched() {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO unmatched_captions (document_id, caption, outcome, source_line) VALUES (?, ?, ?, ?)",
				docID, r.Caption.NormalizedText, r.Outcome.String(), r.Caption.SourceLineIndex); err != nil {
				return fmt.Errorf("insert unmatched caption: %w", err)
			}
		}

		return tx.Commit()
	})
}

// FinishRun stamps the run with its completion time and totals computed from
// the recorded documents.
func (l *Ledger) FinishRun(ctx context.Context, runID string) error {
	err := l.exec(ctx, `UPDATE runs SET
		finished_at = ?,
		documents = (SELECT COUNT(1) FROM documents WHERE run_id = ?),
		aligned = (SELECT COUNT(1) FROM documents WHERE run_id = ? AND status = ?),
		failed = (SELECT COUNT(1) FROM documents WHERE run_id = ? AND status = ?)
		WHERE id = ?`,
		formatTime(time.Now()), runID,
		runID, string(models.StatusAligned),
		runID, string(models.StatusFailed),
		runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}

	return nil
}

// LatestRunID returns the most recently started run.
func (l *Ledger) LatestRunID(ctx context.Context) (string, error) {
	var id string

	err := l.db.QueryRowContext(ctx, "SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}

	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}

	return id, nil
}

// GetRun loads one run.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*Run, error) {
	var (
		r                 Run
		started, finished sql.NullString
	)

	err := l.db.QueryRowContext(ctx, `SELECT id, posts_dir, write_mode, started_at, finished_at,
		documents, aligned, failed FROM runs WHERE id = ?`, runID).
		Scan(&r.ID, &r.PostsDir, &r.Write, &started, &finished, &r.Documents, &r.Aligned, &r.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)

	return &r, nil
}

// Documents lists the documents recorded for a run in insertion order.
func (l *Ledger) Documents(ctx context.Context, runID string) ([]DocumentRecord, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, run_id, document, status, captions_found,
		media_found, matched, media_inserted, media_appended, error, recorded_at
		FROM documents WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRecord

	for rows.Next() {
		var (
			d        DocumentRecord
			status   string
			errText  sql.NullString
			recorded sql.NullString
		)

		if err := rows.Scan(&d.ID, &d.RunID, &d.Document, &status, &d.CaptionsFound,
			&d.MediaFound, &d.Matched, &d.MediaInserted, &d.MediaAppended, &errText, &recorded); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		d.Status = models.Status(status)
		d.Error = errText.String
		d.RecordedAt = parseTime(recorded)
		out = append(out, d)
	}

	return out, rows.Err()
}

// Unmatched lists the unmatched captions recorded for a run.
func (l *Ledger) Unmatched(ctx context.Context, runID string) ([]UnmatchedRecord, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT d.document, u.caption, u.outcome, u.source_line
		FROM unmatched_captions u JOIN documents d ON d.id = u.document_id
		WHERE d.run_id = ? ORDER BY u.id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list unmatched captions: %w", err)
	}
	defer rows.Close()

	var out []UnmatchedRecord

	for rows.Next() {
		var u UnmatchedRecord
		if err := rows.Scan(&u.Document, &u.Caption, &u.Outcome, &u.SourceLine); err != nil {
			return nil, fmt.Errorf("scan unmatched caption: %w", err)
		}

		out = append(out, u)
	}

	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
