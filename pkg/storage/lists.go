package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider list names.
const (
	ListFavorites = "favorites"
	ListCompare   = "compare"
)

// RecentLimit is how many recently viewed providers are kept per user.
const RecentLimit = 5

// AddToList adds providerID to the user's list. Adding twice is a no-op.
func (s *Store) AddToList(list, userID, providerID string) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO provider_lists (list, user_id, provider_id, created_at)
		VALUES (?, ?, ?, ?)
	`, list, userID, providerID, s.now())
	if err != nil {
		return fmt.Errorf("adding %s to %s: %w", providerID, list, err)
	}
	return nil
}

func (s *Store) RemoveFromList(list, userID, providerID string) error {
	_, err := s.db.Exec(`DELETE FROM provider_lists WHERE list = ? AND user_id = ? AND provider_id = ?`, list, userID, providerID)
	if err != nil {
		return fmt.Errorf("removing %s from %s: %w", providerID, list, err)
	}
	return nil
}

// ToggleList flips membership and reports whether providerID is now in the
// list.
func (s *Store) ToggleList(list, userID, providerID string) (bool, error) {
	var added bool
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM provider_lists WHERE list = ? AND user_id = ? AND provider_id = ?`, list, userID, providerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.Exec(`
			INSERT INTO provider_lists (list, user_id, provider_id, created_at)
			VALUES (?, ?, ?, ?)
		`, list, userID, providerID, s.now())
		added = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("toggling %s in %s: %w", providerID, list, err)
	}
	return added, nil
}

// List returns the provider ids in the user's list, oldest first.
func (s *Store) List(list, userID string) ([]string, error) {
	return s.ids(`
		SELECT provider_id FROM provider_lists
		WHERE list = ? AND user_id = ?
		ORDER BY rowid
	`, list, userID)
}

// RecordView puts providerID at the front of the user's recently viewed
// list, dropping it from its old position and trimming to RecentLimit.
func (s *Store) RecordView(userID, providerID string) error {
	return s.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM recently_viewed WHERE user_id = ? AND provider_id = ?`, userID, providerID); err != nil {
			return fmt.Errorf("recording view: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO recently_viewed (user_id, provider_id, viewed_at) VALUES (?, ?, ?)
		`, userID, providerID, s.now()); err != nil {
			return fmt.Errorf("recording view: %w", err)
		}
		if _, err := tx.Exec(`
			DELETE FROM recently_viewed WHERE user_id = ? AND rowid NOT IN (
				SELECT rowid FROM recently_viewed WHERE user_id = ? ORDER BY rowid DESC LIMIT ?
			)
		`, userID, userID, RecentLimit); err != nil {
			return fmt.Errorf("trimming recently viewed: %w", err)
		}
		return nil
	})
}

// RecentlyViewed returns the user's recently viewed provider ids, most
// recent first.
func (s *Store) RecentlyViewed(userID string) ([]string, error) {
	return s.ids(`SELECT provider_id FROM recently_viewed WHERE user_id = ? ORDER BY rowid DESC`, userID)
}

// Contact is one entry of the contact log.
type Contact struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	ProviderID string    `json:"providerId"`
	Method     string    `json:"method"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LogContact appends to the contact log. Entries are never updated.
func (s *Store) LogContact(userID, providerID, method, note string) (*Contact, error) {
	c := &Contact{
		ID:         uuid.NewString(),
		UserID:     userID,
		ProviderID: providerID,
		Method:     method,
		Note:       note,
		CreatedAt:  s.now().UTC(),
	}
	_, err := s.db.Exec(`
		INSERT INTO contact_log (id, user_id, provider_id, method, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.ProviderID, c.Method, c.Note, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("logging contact: %w", err)
	}
	return c, nil
}

// Contacts returns the user's contact log, oldest first.
func (s *Store) Contacts(userID string) ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, provider_id, method, note, created_at
		FROM contact_log WHERE user_id = ? ORDER BY rowid
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var out []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProviderID, &c.Method, &c.Note, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ids(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
