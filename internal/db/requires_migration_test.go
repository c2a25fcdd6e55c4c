package db_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtuma/processdash-sub018/internal/db"
)

func TestRequiresMigrationError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "timelog.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	_, err = database.Exec(`
		CREATE TABLE schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
		)
	`)
	if err != nil {
		t.Fatalf("could not create schema_migrations: %v", err)
	}
	_, err = database.Exec(`INSERT INTO schema_migrations (version) VALUES ('000001_timelog.sql')`)
	if err != nil {
		t.Fatalf("could not insert migration: %v", err)
	}

	migErr := database.RequiresMigrationError()
	if migErr == nil {
		t.Fatal("expected migration error, got nil")
	}

	errStr := migErr.Error()
	for _, want := range []string{dbPath, "000001_timelog.sql", "1 pending migration", "teammerge timelog migrate"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("error should contain %q, got: %s", want, errStr)
		}
	}
}

func TestRequiresMigrationErrorFreshDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "timelog.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	migErr := database.RequiresMigrationError()
	if migErr == nil {
		t.Fatal("expected migration error for fresh db, got nil")
	}
	if !strings.Contains(migErr.Error(), "version: none") {
		t.Errorf("fresh db error should contain 'version: none', got: %s", migErr)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "timelog.db"))
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	defer database.Close()

	applied, err := database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("expected 2 migrations applied, got %v", applied)
	}

	applied, err = database.MigrateWithInfo()
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply, got %v", applied)
	}
	if err := database.RequiresMigrationError(); err != nil {
		t.Errorf("expected nil for fully migrated db, got: %v", err)
	}

	var n int
	if err := database.QueryRow("SELECT COUNT(*) FROM time_entries").Scan(&n); err != nil {
		t.Fatalf("time_entries missing: %v", err)
	}
}
