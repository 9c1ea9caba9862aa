package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rubiojr/carefinder/pkg/syncctl"
)

// Snapshot scopes. Session snapshots belong to one browser session; durable
// ones outlive it and are only used when no session snapshot exists.
const (
	ScopeSession = "session"
	ScopeDurable = "durable"
)

// SaveReturnTarget remembers where to send key back to after signing in.
func (s *Store) SaveReturnTarget(key, target string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO return_targets (key, target, created_at) VALUES (?, ?, ?)
	`, key, target, s.now())
	if err != nil {
		return fmt.Errorf("saving return target: %w", err)
	}
	return nil
}

// ConsumeReturnTarget returns and forgets the return target for key.
func (s *Store) ConsumeReturnTarget(key string) (string, bool, error) {
	var target string
	err := s.withTx(func(tx *sql.Tx) error {
		err := tx.QueryRow(`SELECT target FROM return_targets WHERE key = ?`, key).Scan(&target)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM return_targets WHERE key = ?`, key)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consuming return target: %w", err)
	}
	return target, true, nil
}

// Snapshot returns the last search store for key in scope.
func (s *Store) Snapshot(scope, key string) syncctl.SnapshotStore {
	return &snapshot{store: s, scope: scope, key: key}
}

// Snapshots layers the session scoped store for sessionKey over the durable
// one for durableKey. An empty durableKey disables the durable layer.
func (s *Store) Snapshots(sessionKey, durableKey string) syncctl.SnapshotStore {
	l := syncctl.Layered{Session: s.Snapshot(ScopeSession, sessionKey)}
	if durableKey != "" {
		l.Durable = s.Snapshot(ScopeDurable, durableKey)
	}
	return l
}

type snapshot struct {
	store *Store
	scope string
	key   string
}

func (sn *snapshot) LoadSnapshot() (string, bool, error) {
	var raw string
	err := sn.store.db.QueryRow(`SELECT query FROM last_search WHERE scope = ? AND key = ?`, sn.scope, sn.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("loading %s snapshot: %w", sn.scope, err)
	}
	return raw, true, nil
}

func (sn *snapshot) SaveSnapshot(raw string) error {
	_, err := sn.store.db.Exec(`
		INSERT OR REPLACE INTO last_search (scope, key, query, updated_at) VALUES (?, ?, ?, ?)
	`, sn.scope, sn.key, raw, sn.store.now())
	if err != nil {
		return fmt.Errorf("saving %s snapshot: %w", sn.scope, err)
	}
	return nil
}

func (sn *snapshot) ClearSnapshot() error {
	_, err := sn.store.db.Exec(`DELETE FROM last_search WHERE scope = ? AND key = ?`, sn.scope, sn.key)
	if err != nil {
		return fmt.Errorf("clearing %s snapshot: %w", sn.scope, err)
	}
	return nil
}
