package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesNestedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "mediagate", "archive.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive file missing: %v", err)
	}
}

func TestNew_UnwritableDirectory(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if db, err := New(filepath.Join(blocker, "archive.db")); err == nil {
		_ = db.Close()
		t.Error("New should fail when the parent is a regular file")
	}
}

func TestConfigure_Pragmas(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		var got string
		if err := db.QueryRowContext(context.Background(), "PRAGMA "+tt.pragma).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
		}
		if !strings.EqualFold(got, tt.want) {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestSchema(t *testing.T) {
	db := newTestDB(t)

	for _, name := range []string{
		"request_events",
		"media_tasks",
		"idx_request_events_timestamp",
		"idx_media_tasks_batch",
		"idx_media_tasks_hash",
	} {
		var found string
		err := db.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE name = ?", name).Scan(&found)
		if err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	// An archive written by a build that only knew the first migration.
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	old := &DB{DB: raw, path: path}
	tx, err := raw.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := migrations[0](old, tx); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.ExecContext(context.Background(), "PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	_ = raw.Close()

	for range 2 {
		db, err := New(path)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		version, err := db.SchemaVersion()
		_ = db.Close()
		if err != nil {
			t.Fatalf("SchemaVersion failed: %v", err)
		}
		if version != len(migrations) {
			t.Errorf("schema version = %d, want %d", version, len(migrations))
		}
	}
}

func TestMigrate_NewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	db, err = New(path)
	if err == nil {
		_ = db.Close()
		t.Fatal("New should reject a newer schema")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("err = %v", err)
	}
}

func TestVacuumAndClose(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := db.PingContext(context.Background()); err == nil {
		t.Error("closed archive should not answer pings")
	}
}
