package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"healthvault/internal/database"
	"healthvault/internal/database/migration"
	"healthvault/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply every schema step not yet recorded in schema_migrations.

When BLOB_BACKEND=database the blob tables are created as well.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(ctx, cfg.Database, slog.Default())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, slog.Default(), cfg.Database.Host); err != nil {
		return err
	}

	if cfg.Blob.Backend == "database" {
		chunked, err := storage.NewChunked(db, storage.DialectPostgres, cfg.Blob.ChunkSize)
		if err != nil {
			return err
		}
		if err := chunked.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("blob schema: %w", err)
		}
		slog.Info("blob tables ready")
	}
	return nil
}
