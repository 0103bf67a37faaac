package history

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
)

// Status is the terminal state of a journaled conversion.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Record is one journaled conversion.
type Record struct {
	ID           int64     `json:"id"`
	RunID        string    `json:"run_id"`
	Item         int       `json:"item,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Source       string    `json:"source"`
	Destination  string    `json:"destination"`
	DetectedType string    `json:"detected_type,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	Backend      string    `json:"backend,omitempty"`
	Status       Status    `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	Bytes        int64     `json:"bytes,omitempty"`
	BackupPath   string    `json:"backup_path,omitempty"`
	Warning      string    `json:"warning,omitempty"`
}

// Duration is the wall time the conversion took.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

//go:embed schema.sql
var schemaSQL string

// journalVersion is stored in PRAGMA user_version. Zero marks a database
// mvx has not initialized yet.
const journalVersion = 1

// ErrSchemaMismatch reports a journal written with a different layout.
var ErrSchemaMismatch = errors.New("history schema version mismatch")

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

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

// Open initializes or connects to the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them. The busy
	// timeout must precede the WAL switch, which takes an exclusive lock.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}

	store := &Store{db: db, path: path}
	ctx := context.Background()
	if err := retryOnBusy(ctx, func() error { return store.migrate(ctx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// migrate creates the conversions table on a fresh database. Concurrent mvx
// processes may race here, so the DDL is idempotent.
func (s *Store) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read history version: %w", err)
	}
	switch {
	case version == journalVersion:
		return nil
	case version != 0:
		return fmt.Errorf("%w: %s has version %d, this mvx writes %d (remove it to start a fresh journal)",
			ErrSchemaMismatch, s.path, version, journalVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", journalVersion)); err != nil {
		return fmt.Errorf("record history version: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append journals r and returns its row id.
func (s *Store) Append(ctx context.Context, r Record) (int64, error) {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = r.FinishedAt
	}
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO conversions (
			run_id, item, started_at, finished_at, source_path, destination_path,
			detected_type, strategy, backend, status, error_kind, error_message,
			bytes, backup_path, warning
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, r.Item,
			r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout),
			r.Source, r.Destination,
			nullableString(r.DetectedType), nullableString(r.Strategy), nullableString(r.Backend),
			string(r.Status), nullableString(r.ErrorKind), nullableString(r.Error),
			r.Bytes, nullableString(r.BackupPath), nullableString(r.Warning),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, run_id, item, started_at, finished_at, source_path, destination_path,
		detected_type, strategy, backend, status, error_kind, error_message, bytes, backup_path, warning
		FROM conversions ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM conversions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear deletes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM conversions`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r                                     Record
		started, finished, status             string
		detected, strategy, backend           sql.NullString
		errorKind, errorMessage, backup, warn sql.NullString
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.Item, &started, &finished, &r.Source, &r.Destination,
		&detected, &strategy, &backend, &status, &errorKind, &errorMessage, &r.Bytes, &backup, &warn); err != nil {
		return Record{}, fmt.Errorf("scan history row: %w", err)
	}
	var err error
	if r.StartedAt, err = parseTimeString(started); err != nil {
		return Record{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if r.FinishedAt, err = parseTimeString(finished); err != nil {
		return Record{}, fmt.Errorf("parse finished_at %q: %w", finished, err)
	}
	r.Status = Status(status)
	r.DetectedType = detected.String
	r.Strategy = strategy.String
	r.Backend = backend.String
	r.ErrorKind = errorKind.String
	r.Error = errorMessage.String
	r.BackupPath = backup.String
	r.Warning = warn.String
	return r, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
