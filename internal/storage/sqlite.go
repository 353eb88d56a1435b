package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	json "github.com/goccy/go-json"

	"github.com/soyeahso/enso/internal/db"
)

// SQLiteBackend stores each key as one row of the kv_store table. The
// database is owned by the caller; Close only detaches the backend.
type SQLiteBackend struct {
	db     *db.DB
	closed atomic.Bool
}

// NewSQLiteBackend returns a backend over an open database.
func NewSQLiteBackend(database *db.DB) *SQLiteBackend {
	return &SQLiteBackend{db: database}
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (map[string]any, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var raw string
	err := s.db.SQL().QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", key, err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", key, err)
	}
	return out, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, key string, value map[string]any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	_, err = s.db.SQL().ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("upserting %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, err := s.db.SQL().ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := s.db.SQL().QueryContext(ctx, `SELECT key FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteBackend) Close() error {
	s.closed.Store(true)
	return nil
}
