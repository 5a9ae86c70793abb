package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
)

// ent's builder does not emit DDL, so the schema is kept per dialect.
var schema = map[string][]string{
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS records (
			path             TEXT PRIMARY KEY,
			rel_path         TEXT NOT NULL DEFAULT '',
			base_dir         TEXT NOT NULL DEFAULT '',
			title            TEXT NOT NULL DEFAULT '',
			creation_date    TEXT NOT NULL DEFAULT '',
			confidence_index REAL NOT NULL DEFAULT 0,
			data             TEXT NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS records_confidence_idx ON records (confidence_index)`,
	},
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS records (
			path             TEXT PRIMARY KEY,
			rel_path         TEXT NOT NULL DEFAULT '',
			base_dir         TEXT NOT NULL DEFAULT '',
			title            TEXT NOT NULL DEFAULT '',
			creation_date    TEXT NOT NULL DEFAULT '',
			confidence_index DOUBLE PRECISION NOT NULL DEFAULT 0,
			data             JSONB NOT NULL,
			updated_at       BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS records_confidence_idx ON records (confidence_index)`,
	},
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, ok := schema[s.dialect]
	if !ok {
		return fmt.Errorf("migrate: unsupported dialect %q", s.dialect)
	}
	for _, stmt := range stmts {
		if _, err := s.drv.DB().ExecContext(ctx, stmt); err != nil {
			s.logger.Error("db.migrate_failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug("db.migrated", "dialect", s.dialect)
	return nil
}
