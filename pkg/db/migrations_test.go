package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := GetEmbeddedMigrations()
	if err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	if len(migrations) < 3 {
		t.Fatalf("expected at least 3 migrations, got %d", len(migrations))
	}
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Fatalf("migration %d has version %d", i, m.Version)
		}
	}
	if migrations[0].Name != "providers" {
		t.Fatalf("unexpected first migration %q", migrations[0].Name)
	}
}

func TestApplyPendingMigrations(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrationManager(db)

	n, err := m.ApplyPendingMigrations()
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	available, _ := m.GetAvailableMigrations()
	if n != len(available) {
		t.Fatalf("applied %d of %d migrations", n, len(available))
	}

	// Running again is a no-op.
	if n, err := m.ApplyPendingMigrations(); err != nil || n != 0 {
		t.Fatalf("second run applied %d (%v)", n, err)
	}

	for _, table := range []string{"providers", "providers_fts", "provider_lists", "recently_viewed", "contact_log", "return_targets", "last_search"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	status, err := m.GetMigrationStatus()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(status.Pending) != 0 || len(status.Applied) != len(available) {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Applied[0].AppliedAt == nil {
		t.Fatal("expected applied timestamps")
	}
}

func TestMigrationsFromPath(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"001_first.sql":  "CREATE TABLE a (id INTEGER);",
		"002_second.sql": "CREATE TABLE b (id INTEGER);",
		"notes.txt":      "ignored",
		"bad.sql":        "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	db := openTestDB(t)
	m := NewMigrationManagerFromPath(db, dir)
	available, err := m.GetAvailableMigrations()
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if len(available) != 2 || available[1].Name != "second" {
		t.Fatalf("unexpected migrations %+v", available)
	}

	if n, err := m.ApplyPendingMigrations(); err != nil || n != 2 {
		t.Fatalf("apply: %d %v", n, err)
	}
}

func TestFailedMigrationRollsBack(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "001_ok.sql"), []byte("CREATE TABLE ok (id INTEGER);"), 0o644)
	os.WriteFile(filepath.Join(dir, "002_broken.sql"), []byte("CREATE TABLE ;"), 0o644)

	db := openTestDB(t)
	m := NewMigrationManagerFromPath(db, dir)
	n, err := m.ApplyPendingMigrations()
	if err == nil {
		t.Fatal("expected an error")
	}
	if n != 1 {
		t.Fatalf("expected 1 applied migration before the failure, got %d", n)
	}

	pending, _ := m.GetPendingMigrations()
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("broken migration must stay pending, got %+v", pending)
	}
}
