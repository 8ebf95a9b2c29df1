// Package postgres stores gallery records in PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrationLock is the advisory lock key serializing Migrate across
// instances starting at the same time.
const migrationLock = 7_302_114

// Schema creates the images and comments tables. comments.image_id has no
// foreign key, so comments on unknown images are accepted.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS images (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    url TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    caption TEXT NOT NULL DEFAULT '',
    uploader TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS images_created_at_idx ON images (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    image_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS comments_image_idx ON comments (image_id, created_at DESC)`,
}

// Connect opens a PostgreSQL connection using the provided options.
func Connect(ctx context.Context, opts ...Option) (*sql.DB, error) {
	return Open(ctx, opts...)
}

// Migrate runs statements in one transaction under an advisory lock. Either
// every statement applies or none does.
func Migrate(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: migrate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLock); err != nil {
		return fmt.Errorf("postgres: migrate: lock: %w", err)
	}
	for i, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: migrate: commit: %w", err)
	}
	return nil
}
