// Package repository provides database-backed implementations of the
// key/value store used for sessions and workspaces.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements kv.Store against a PostgreSQL kv_entries table.
type PostgresStore struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresStore creates a new PostgresStore with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance with the
// kv_entries table created (see db.InitPostgres).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// Get fetches the value stored under key.
// It reports false when no row exists.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select kv entry: %w", err)
	}
	return value, true, nil
}

// Set inserts or replaces the value under key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

// Delete removes every listed key in a single statement.
func (s *PostgresStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = ANY($1)`,
		pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("delete kv entries: %w", err)
	}
	return nil
}
