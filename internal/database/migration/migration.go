// Package migration applies the ordered schema steps, recording each in schema_migrations.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
  name       TEXT        PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id            UUID        PRIMARY KEY,
  owner_id      TEXT        NOT NULL,
  title         TEXT        NOT NULL,
  file_name     TEXT        NOT NULL,
  category      TEXT        NOT NULL DEFAULT 'Other',
  mime_type     TEXT        NOT NULL,
  size_bytes    BIGINT      NOT NULL CHECK (size_bytes >= 0),
  blob_handle   TEXT        NOT NULL UNIQUE,
  notes         TEXT        NOT NULL DEFAULT '',
  document_date DATE,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_owner_created",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_created ON documents (owner_id, created_at DESC);`,
	},
	{
		Name: "create_index_documents_owner_category",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_category ON documents (owner_id, lower(category));`,
	},
	{
		Name: "create_table_share_sessions",
		SQL: `CREATE TABLE IF NOT EXISTS share_sessions (
  id                UUID        PRIMARY KEY,
  owner_id          TEXT        NOT NULL,
  token_fingerprint TEXT        NOT NULL UNIQUE,
  status            TEXT        NOT NULL CHECK (status IN ('active', 'expired', 'used')),
  expires_at        TIMESTAMPTZ NOT NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		// At most one active session per owner.
		Name: "create_index_share_sessions_one_active",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS uq_share_sessions_active_owner ON share_sessions (owner_id) WHERE status = 'active';`,
	},
	{
		Name: "create_index_share_sessions_active_expiry",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_share_sessions_active_expiry ON share_sessions (expires_at) WHERE status = 'active';`,
	},
}

// StepNames lists every known step in apply order.
func StepNames() []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

// EnsureMigrated applies every step not yet recorded in schema_migrations.
// Each step runs in its own transaction together with its record, so a
// failed run can be resumed.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	logger = logger.With("component", "database", "db_host", dbHost)

	logger.InfoContext(ctx, "db_migration_check", "status", "starting")

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		logger.ErrorContext(ctx, "db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to create schema_migrations: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := 0
	for _, step := range steps {
		stepStart := time.Now()

		done, err := isApplied(ctx, db, step.Name)
		if err != nil {
			logger.ErrorContext(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
			)
			return fmt.Errorf("check migration step %s: %w", step.Name, err)
		}
		if done {
			continue
		}

		if err := apply(ctx, db, step); err != nil {
			logger.ErrorContext(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		applied++

		logger.InfoContext(ctx, "db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	if applied == 0 {
		logger.InfoContext(ctx, "db_migration_skip",
			"status", "success",
			"detail", "schema up to date",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	logger.InfoContext(ctx, "db_migration_success",
		"status", "success",
		"applied_steps", applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

func apply(ctx context.Context, db *sql.DB, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, step.Name); err != nil {
		return err
	}
	return tx.Commit()
}
