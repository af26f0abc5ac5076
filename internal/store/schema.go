package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SchemaVersion is the schema version this binary writes. Bump it and append
// a migration whenever the schema changes.
const SchemaVersion = len(migrations)

type migration struct {
	description string
	statements  []string
}

// migrations are applied in order; migrations[i] upgrades version i to i+1.
// A migration must never drop existing rows.
var migrations = [...]migration{
	{
		description: "create media_cache with url and post indexes",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS media_cache (
				id TEXT PRIMARY KEY,
				original_url TEXT NOT NULL,
				payload BLOB NOT NULL,
				media_kind TEXT NOT NULL,
				cached_at INTEGER NOT NULL,
				owner_post_id TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_media_cache_original_url ON media_cache(original_url)`,
			`CREATE INDEX IF NOT EXISTS idx_media_cache_owner_post_id ON media_cache(owner_post_id)`,
		},
	},
	{
		description: "add payload metadata and cached_at index",
		statements: []string{
			`ALTER TABLE media_cache ADD COLUMN content_type TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE media_cache ADD COLUMN width INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE media_cache ADD COLUMN height INTEGER NOT NULL DEFAULT 0`,
			`CREATE INDEX IF NOT EXISTS idx_media_cache_cached_at ON media_cache(cached_at)`,
		},
	},
}

// migrate upgrades the schema from PRAGMA user_version to SchemaVersion.
// Each step runs in its own transaction together with the version bump.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.userVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current > SchemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		m := migrations[v]
		log.Info("Migrating database to v%d: %s", v+1, m.description)
		if err := s.applyMigration(ctx, v+1, m); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", v+1, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, m migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback of migration v%d failed: %v", version, rbErr)
			}
		}
	}()

	for _, stmt := range m.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// PRAGMA does not accept bound parameters
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) userVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}
