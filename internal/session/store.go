// Package session persists each user's filter selection between
// interactions in an embedded SQLite store. The selection is the only
// per-user state the application owns; aggregation functions never read
// it implicitly, handlers load it here and pass it down as a value.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"campusledger/internal/core"
)

const schema = `
	CREATE TABLE IF NOT EXISTS user_selections (
		username   TEXT PRIMARY KEY,
		years      TEXT NOT NULL,
		categories TEXT NOT NULL,
		department TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// Store is a SQLite-backed selection store keyed by username.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the selection store at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create session db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping session database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Selection returns the stored selection for username. The second return
// is false when the user has no stored selection yet; callers seed the
// defaults from the visible data in that case.
func (s *Store) Selection(ctx context.Context, username string) (core.Selection, bool, error) {
	var yearsJSON, categoriesJSON, department string
	err := s.db.QueryRowContext(ctx,
		"SELECT years, categories, department FROM user_selections WHERE username = ?",
		username,
	).Scan(&yearsJSON, &categoriesJSON, &department)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Selection{}, false, nil
	}
	if err != nil {
		return core.Selection{}, false, fmt.Errorf("load selection: %w", err)
	}

	sel := core.Selection{Department: department}
	if err := json.Unmarshal([]byte(yearsJSON), &sel.Years); err != nil {
		return core.Selection{}, false, fmt.Errorf("decode stored years: %w", err)
	}
	if err := json.Unmarshal([]byte(categoriesJSON), &sel.Categories); err != nil {
		return core.Selection{}, false, fmt.Errorf("decode stored categories: %w", err)
	}
	return sel, true, nil
}

// Save upserts the user's selection. The selection is normalized first so
// what comes back out is always sorted and deduplicated.
func (s *Store) Save(ctx context.Context, username string, sel core.Selection) error {
	sel = sel.Normalize()

	years, err := json.Marshal(sel.Years)
	if err != nil {
		return fmt.Errorf("encode years: %w", err)
	}
	categories, err := json.Marshal(sel.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_selections (username, years, categories, department, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			years      = excluded.years,
			categories = excluded.categories,
			department = excluded.department,
			updated_at = excluded.updated_at`,
		username, string(years), string(categories), sel.Department, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}
