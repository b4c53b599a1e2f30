package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema statements are idempotent and run in order inside one transaction.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash BYTEA NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_sessions (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		device_id          TEXT NOT NULL,
		device_name        TEXT NOT NULL DEFAULT '',
		refresh_token_hash BYTEA NOT NULL UNIQUE,
		ip_address         TEXT NOT NULL DEFAULT '',
		user_agent         TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at         TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, device_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_sessions_expires ON user_sessions (expires_at)`,

	`CREATE TABLE IF NOT EXISTS images (
		id         BIGSERIAL PRIMARY KEY,
		title      TEXT NOT NULL,
		image_url  TEXT NOT NULL,
		user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_user_created ON images (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_images_created ON images (created_at DESC, id DESC)`,

	`CREATE TABLE IF NOT EXISTS interactions (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT NOT NULL,
		image_id   BIGINT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
		"like"     BOOLEAN NOT NULL DEFAULT FALSE,
		comment    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_image ON interactions (image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_like ON interactions (image_id, user_id) WHERE "like"`,

	`CREATE TABLE IF NOT EXISTS app_settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`INSERT INTO app_settings (key, value) VALUES ('likes_enabled', 'true') ON CONFLICT (key) DO NOTHING`,
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", i, err)
			}
		}
		return nil
	})
}
