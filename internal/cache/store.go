package cache

import (
	"fmt"
	"time"

	"toolscan/internal/db"
)

// Store is the pluggable persistence backend for the cache. Implementations
// must tolerate being called with empty batches.
type Store interface {
	Load() ([]Entry, error)
	Upsert(entries []Entry) error
	Delete(apps []string) error
	Close() error
}

// NopStore keeps nothing. Useful for tests and for running with
// persistence disabled.
type NopStore struct{}

func (NopStore) Load() ([]Entry, error) { return nil, nil }
func (NopStore) Upsert([]Entry) error   { return nil }
func (NopStore) Delete([]string) error  { return nil }
func (NopStore) Close() error           { return nil }

// SQLiteStore persists cache entries in the detection_cache table, one row
// per logical application. Rows are upserted individually so a flush never
// rewrites the whole table.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store over an open database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Load reads every persisted entry. Expiry is not checked here; the cache
// sweeps after loading.
func (s *SQLiteStore) Load() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT app_name, result, created_at, ttl_seconds, method, confidence
		FROM detection_cache`)
	if err != nil {
		return nil, fmt.Errorf("loading cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
			ttlSecs   int64
		)
		if err := rows.Scan(&e.AppName, &e.Result, &createdAt, &ttlSecs, &e.Method, &e.Confidence); err != nil {
			return entries, fmt.Errorf("scanning cache entry: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		e.TTL = time.Duration(ttlSecs) * time.Second
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert writes a batch of entries inside one transaction.
func (s *SQLiteStore) Upsert(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning cache flush: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detection_cache (app_name, result, created_at, ttl_seconds, method, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_name) DO UPDATE SET
			result = excluded.result,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds,
			method = excluded.method,
			confidence = excluded.confidence`)
	if err != nil {
		return fmt.Errorf("preparing cache upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(
			e.AppName,
			e.Result,
			e.CreatedAt.Unix(),
			int64(e.TTL/time.Second),
			e.Method,
			e.Confidence,
		); err != nil {
			return fmt.Errorf("upserting cache entry %q: %w", e.AppName, err)
		}
	}
	return tx.Commit()
}

// Delete removes a batch of entries inside one transaction.
func (s *SQLiteStore) Delete(apps []string) error {
	if len(apps) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning cache delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM detection_cache WHERE app_name = ?`)
	if err != nil {
		return fmt.Errorf("preparing cache delete: %w", err)
	}
	defer stmt.Close()

	for _, app := range apps {
		if _, err := stmt.Exec(app); err != nil {
			return fmt.Errorf("deleting cache entry %q: %w", app, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
