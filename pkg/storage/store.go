// Package storage keeps the provider index and the per user collections
// (favorites, compare tray, recently viewed, contact log) plus the small
// pieces of session state the search page needs to survive a sign in
// round trip: return targets and last search snapshots.
//
// Everything lives in one sqlite database opened with the ncruces driver.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rubiojr/carefinder/pkg/db"
	"github.com/rubiojr/carefinder/pkg/log"
)

// DatabaseName is the file name of the database inside the storage directory.
const DatabaseName = "carefinder.db"

// ErrNotFound is returned when a provider does not exist.
var ErrNotFound = errors.New("not found")

var logger = log.ForComponent("storage")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = memory",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if err := db.InitializeDatabase(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{db: sqlDB, now: time.Now}, nil
}

// OpenDir opens the database inside storageDir.
func OpenDir(storageDir string) (*Store, error) {
	return Open(filepath.Join(storageDir, DatabaseName))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Optimize() error {
	_, err := s.db.Exec("PRAGMA optimize")
	return err
}

func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// IntegrityCheck runs SQLite's integrity check on the whole database.
func (s *Store) IntegrityCheck() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

// FTSIntegrityCheck verifies the full text index against its content.
func (s *Store) FTSIntegrityCheck() error {
	if _, err := s.db.Exec("INSERT INTO providers_fts(providers_fts, rank) VALUES('integrity-check', 1)"); err != nil {
		return fmt.Errorf("FTS integrity check: %w", err)
	}
	return nil
}

// RebuildIndex recreates the full text index from the providers table.
func (s *Store) RebuildIndex() error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM providers_fts"); err != nil {
			return fmt.Errorf("clearing FTS index: %w", err)
		}
		_, err := tx.Exec(`
			INSERT INTO providers_fts (rowid, name, type, ward, description)
			SELECT rowid, name, type, ward, COALESCE(json_extract(data, '$.description'), '')
			FROM providers
		`)
		if err != nil {
			return fmt.Errorf("rebuilding FTS index: %w", err)
		}
		return nil
	})
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				fmt.Printf("Warning: failed to rollback transaction: %v\n", err)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// Stats summarizes what the database holds.
type Stats struct {
	Providers int            `json:"providers"`
	ByRegion  map[string]int `json:"byRegion"`
	Favorites int            `json:"favorites"`
	Compare   int            `json:"compare"`
	Contacts  int            `json:"contacts"`
}

func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByRegion: make(map[string]int)}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM providers").Scan(&stats.Providers); err != nil {
		return nil, fmt.Errorf("counting providers: %w", err)
	}

	rows, err := s.db.Query("SELECT region, COUNT(*) FROM providers GROUP BY region COLLATE NOCASE")
	if err != nil {
		return nil, fmt.Errorf("counting providers by region: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()
	for rows.Next() {
		var region string
		var n int
		if err := rows.Scan(&region, &n); err != nil {
			return nil, fmt.Errorf("scanning region count: %w", err)
		}
		stats.ByRegion[region] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	counts := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&stats.Favorites, "SELECT COUNT(*) FROM provider_lists WHERE list = ?", []any{ListFavorites}},
		{&stats.Compare, "SELECT COUNT(*) FROM provider_lists WHERE list = ?", []any{ListCompare}},
		{&stats.Contacts, "SELECT COUNT(*) FROM contact_log", nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	return stats, nil
}
