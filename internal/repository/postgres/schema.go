package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the prefixed tables if they do not exist yet
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			messages    JSONB NOT NULL DEFAULT '[]'::jsonb,
			folder_id   TEXT,
			is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, tables.Chats),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id, updated_at DESC)`, tables.Chats, tables.Chats),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			user_id     TEXT PRIMARY KEY,
			preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, tables.UserPreferences),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
