package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"healthvault/internal/database"
	"healthvault/internal/repository/postgres"
	"healthvault/internal/service"
	"healthvault/internal/sharetoken"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire lapsed share sessions",
	Long: `Mark every active share session whose expiry has passed as expired.

The server already does this on a timer; run this from cron when the
server runs with SHARE_SWEEP_INTERVAL_SEC=0.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := configFromContext(ctx)
	if err != nil {
		return err
	}
	codec, err := sharetoken.NewCodec(cfg.Share.TokenSecret)
	if err != nil {
		return fmt.Errorf("share token codec: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database, slog.Default())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	// Only ExpireStale is used, which touches nothing but the sessions.
	svc := service.NewShareService(codec, postgres.NewShareSessionPostgres(db), nil, nil,
		service.WithShareLogger(slog.Default()),
	)

	n, err := svc.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	slog.Info("sweep complete", "expired_sessions", n)
	return nil
}
