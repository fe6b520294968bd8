// Package db manages the SQLite audit archive of quota requests and media tasks.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is the archive. It embeds the connection pool so callers can run ad hoc
// queries in tests.
type DB struct {
	*sql.DB
	path string
}

// pragmas are applied to every connection the driver opens.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"cache_size(-16000)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"temp_store(MEMORY)",
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// New opens the archive at path, creating it and its directory if needed, and
// brings the schema up to date.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; batches finish concurrently.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// Path returns the archive file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createRequestEventsTable(tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		batch_id TEXT,
		hour INTEGER NOT NULL,
		success INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_request_events_timestamp ON request_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_request_events_hour ON request_events(hour);
	`
	_, err := tx.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createMediaTasksTable(tx *sql.Tx) error {
	query := `
	CREATE TABLE IF NOT EXISTS media_tasks (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT,
		hash TEXT,
		media_type TEXT NOT NULL DEFAULT 'unknown',
		status TEXT NOT NULL,
		error TEXT,
		bytes INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_media_tasks_created ON media_tasks(created_at);
	CREATE INDEX IF NOT EXISTS idx_media_tasks_batch ON media_tasks(batch_id);
	CREATE INDEX IF NOT EXISTS idx_media_tasks_hash ON media_tasks(hash);
	`
	_, err := tx.ExecContext(context.Background(), query)
	return err
}

// Close folds the write-ahead log back into the archive file and closes it.
func (db *DB) Close() error {
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum rebuilds the archive file, returning pages freed by deletes to the
// filesystem.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
