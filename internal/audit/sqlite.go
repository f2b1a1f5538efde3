package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	defaultBusyTimeout = 5000
	schemaVersion      = 1
)

// schemaStatements are applied in order. All use IF NOT EXISTS so that
// re-application is harmless.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_log (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		ts        INTEGER NOT NULL,
		sender    TEXT    NOT NULL,
		chat      TEXT    NOT NULL DEFAULT '',
		text      TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts DESC, id DESC)`,
}

// ErrEmptySender is returned when recording an entry without a sender.
var ErrEmptySender = errors.New("audit: sender is required")

// SQLiteLog is a Log stored in a SQLite database. Timestamps are kept as
// unix nanoseconds so ordering is exact.
type SQLiteLog struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time interface check.
var _ Log = (*SQLiteLog)(nil)

// OpenSQLite opens (or creates) the database at path with WAL mode, a 5 s
// busy timeout and a single connection, and migrates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("audit: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteLog{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("audit: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("audit: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("audit: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("audit: record schema version: %w", err)
	}
	return nil
}

// Record inserts e. A zero timestamp is replaced with the current time.
func (l *SQLiteLog) Record(ctx context.Context, e Entry) error {
	if e.Sender == "" {
		return ErrEmptySender
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (ts, sender, chat, text) VALUES (?, ?, ?, ?)`,
		e.Timestamp.UnixNano(), e.Sender, e.Chat, e.Text,
	)
	if err != nil {
		return fmt.Errorf("audit: record entry: %w", err)
	}
	return nil
}

// GetAuditLog returns up to limit entries ordered newest first.
func (l *SQLiteLog) GetAuditLog(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT ts, sender, chat, text
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			ts int64
			e  Entry
		)
		if err := rows.Scan(&ts, &e.Sender, &e.Chat, &e.Text); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate log: %w", err)
	}
	return entries, nil
}

// Close releases the database.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

// Stop implements core.Stopper.
func (l *SQLiteLog) Stop(context.Context) error {
	return l.Close()
}
