// Package localstore holds the terminal client's key/value storage, the
// equivalent of a browser's localStorage.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLiteStore keeps string values in a single SQLite table
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// OpenSQLite opens (or creates) the database file at path
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	createTable := `
	CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)
	`
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create local_storage table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get returns the value for key and whether it exists
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM local_storage WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	s.logger.Debug("local storage written",
		slog.String("key", key),
		slog.Int("bytes", len(value)),
	)
	return nil
}

// Remove deletes key; removing a missing key is not an error
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM local_storage WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Keys lists stored keys in sorted order
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM local_storage ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
