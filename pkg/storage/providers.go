package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rubiojr/carefinder/pkg/executor"
	"github.com/rubiojr/carefinder/pkg/provider"
)

// UpsertProviders stores providers, replacing existing records with the same
// id, and keeps the full text index in step. Providers without an id get one.
func (s *Store) UpsertProviders(providers []provider.Provider) (int, error) {
	if len(providers) == 0 {
		return 0, nil
	}

	err := s.withTx(func(tx *sql.Tx) error {
		// REPLACE gives the row a new rowid, so the old index entry goes first.
		ftsDelete, err := tx.Prepare(`DELETE FROM providers_fts WHERE rowid = (SELECT rowid FROM providers WHERE id = ?)`)
		if err != nil {
			return fmt.Errorf("preparing FTS delete: %w", err)
		}
		defer ftsDelete.Close()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO providers (id, name, type, region, ward, price_value, rating, cwelcc, subsidy, data, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		ftsStmt, err := tx.Prepare(`
			INSERT INTO providers_fts (rowid, name, type, ward, description)
			VALUES ((SELECT rowid FROM providers WHERE id = ?), ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing FTS statement: %w", err)
		}
		defer ftsStmt.Close()

		now := s.now()
		for i := range providers {
			p := &providers[i]
			p.EnsureID()

			data, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshaling provider %s: %w", p.ID, err)
			}

			if _, err := ftsDelete.Exec(p.ID); err != nil {
				return fmt.Errorf("removing provider %s from FTS: %w", p.ID, err)
			}
			if _, err := stmt.Exec(p.ID, p.Name, p.Type, p.Region, p.Ward, p.PriceValue(), p.Rating, p.CWELCC, p.Subsidy, string(data), now); err != nil {
				return fmt.Errorf("inserting provider %s: %w", p.ID, err)
			}
			if _, err := ftsStmt.Exec(p.ID, p.Name, p.Type, p.Ward, p.Description); err != nil {
				return fmt.Errorf("inserting provider %s into FTS: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(providers), nil
}

// GetProvider returns the provider with id, or ErrNotFound.
func (s *Store) GetProvider(id string) (*provider.Provider, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM providers WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying provider %s: %w", id, err)
	}

	var p provider.Provider
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling provider %s: %w", id, err)
	}
	return &p, nil
}

// Search implements the search API contract over the local index: columns
// narrow the candidates in SQL, free text goes through FTS5 and the remaining
// criteria are evaluated on the decoded records.
func (s *Store) Search(ctx context.Context, params url.Values) (*executor.Response, error) {
	f, err := executor.ParseFilter(params)
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	from := "providers p"
	order := "p.name COLLATE NOCASE, p.id"

	if f.Text != "" {
		from += " JOIN providers_fts fts ON p.rowid = fts.rowid"
		where = append(where, "providers_fts MATCH ?")
		args = append(args, ftsQuery(f.Text))
		order = "bm25(providers_fts), " + order
	}
	if f.Region != "" {
		where = append(where, "p.region = ? COLLATE NOCASE")
		args = append(args, f.Region)
	}
	if f.Ward != "" {
		where = append(where, "p.ward = ? COLLATE NOCASE")
		args = append(args, f.Ward)
	}
	if f.PriceMin > 0 || f.PriceMax > 0 {
		where = append(where, "p.price_value > 0")
	}
	if f.PriceMin > 0 {
		where = append(where, "p.price_value >= ?")
		args = append(args, f.PriceMin)
	}
	if f.PriceMax > 0 {
		where = append(where, "p.price_value <= ?")
		args = append(args, f.PriceMax)
	}
	if f.CWELCC {
		where = append(where, "p.cwelcc = 1")
	}
	if f.Subsidy {
		where = append(where, "p.subsidy = 1")
	}

	sqlQuery := "SELECT p.data FROM " + from
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	sqlQuery += " ORDER BY " + order

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	var matched []provider.Provider
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var p provider.Provider
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("unmarshaling provider: %w", err)
		}
		if f.Match(p) {
			matched = append(matched, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debugf("search %s matched %d providers", params.Encode(), len(matched))
	return f.Paginate(matched), nil
}

// ftsQuery turns free text into an FTS5 query matching every word as a
// prefix. Words are quoted so user input can never be read as FTS5 syntax.
func ftsQuery(text string) string {
	words := strings.Fields(text)
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(quoted, " ")
}

// Searcher adapts the store to the executor's Searcher interface.
func (s *Store) Searcher() executor.Searcher {
	return executor.SearcherFunc(s.Search)
}
