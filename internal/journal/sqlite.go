// Package journal keeps an append-only sqlite record of flushed change batches.
// Nothing is ever read back into a store; the journal exists for inspection.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/treestate/internal/changes"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Entry is one journaled batch.
type Entry struct {
	ID      int64     `json:"id"`
	StoreID string    `json:"store_id"`
	BatchID string    `json:"batch_id"`
	Paths   []string  `json:"paths"`
	Size    int       `json:"size"`
	At      time.Time `json:"at"`
}

// SQLiteStore persists entries in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the journal at dbPath. ":memory:" gives a
// private in-memory journal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "open sqlite database").
			WithContext("file", dbPath).
			Build()
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "initialize journal schema").
			WithContext("file", dbPath).
			Build()
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		store_id TEXT NOT NULL,
		batch_id TEXT NOT NULL UNIQUE,
		paths TEXT NOT NULL,
		size INTEGER NOT NULL,
		at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_store_id ON batches(store_id);
	CREATE INDEX IF NOT EXISTS idx_batches_at ON batches(at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append records one flushed batch.
func (s *SQLiteStore) Append(ctx context.Context, evt changes.Flushed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := json.Marshal(evt.Paths)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "marshal batch paths").Build()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO batches (store_id, batch_id, paths, size, at) VALUES (?, ?, ?, ?, ?)",
		evt.StoreID, evt.BatchID, string(paths), evt.Size(), evt.At.UnixNano(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryJournal, "insert batch").
			WithContext("batch_id", evt.BatchID).
			Build()
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, store_id, batch_id, paths, size, at FROM batches ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "query batches").Build()
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ForStore returns up to limit entries of one store, newest first.
func (s *SQLiteStore) ForStore(ctx context.Context, storeID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, store_id, batch_id, paths, size, at FROM batches WHERE store_id = ? ORDER BY id DESC LIMIT ?",
		storeID, limit,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "query batches").
			WithContext("store_id", storeID).
			Build()
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e     Entry
			paths string
			at    int64
		)
		if err := rows.Scan(&e.ID, &e.StoreID, &e.BatchID, &paths, &e.Size, &at); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "scan batch").Build()
		}
		if err := json.Unmarshal([]byte(paths), &e.Paths); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "unmarshal batch paths").
				WithContext("batch_id", e.BatchID).
				Build()
		}
		e.At = time.Unix(0, at).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryJournal, "iterate batches").Build()
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
