package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"healthvault/internal/config"
	"healthvault/internal/database"
	"healthvault/internal/database/migration"
	handlers "healthvault/internal/http/handler"
	"healthvault/internal/http/middleware"
	"healthvault/internal/metrics"
	"healthvault/internal/model"
	hvotel "healthvault/internal/otel"
	"healthvault/internal/repository"
	"healthvault/internal/repository/memory"
	"healthvault/internal/repository/postgres"
	"healthvault/internal/service"
	"healthvault/internal/sharetoken"
	"healthvault/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HealthVault HTTP server.

With --ephemeral the registry and share sessions live in memory and no
database is opened; blobs still go to the configured backend.`,
	RunE: runServe,
}

var (
	serveEphemeral bool
	serveProfiles  []string
	serveNoMigrate bool
)

func init() {
	serveCmd.Flags().BoolVar(&serveEphemeral, "ephemeral", false, "keep registry and sessions in memory")
	serveCmd.Flags().StringArrayVar(&serveProfiles, "profile", nil, "seed an in-memory profile as id:name:email (ephemeral only)")
	serveCmd.Flags().BoolVar(&serveNoMigrate, "no-migrate", false, "skip schema migration at startup")
	rootCmd.AddCommand(serveCmd)
}

type repos struct {
	documents repository.DocumentRepository
	sessions  repository.ShareSessionRepository
	profiles  repository.ProfileRepository
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := slog.Default()

	shutdownTracing, err := hvotel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	var (
		db *sql.DB
		rp repos
	)
	if serveEphemeral {
		profiles, err := parseProfiles(serveProfiles)
		if err != nil {
			return err
		}
		rp = repos{
			documents: memory.NewDocumentMemory(),
			sessions:  memory.NewShareSessionMemory(),
			profiles:  memory.NewProfileMemory(profiles...),
		}
		logger.Warn("ephemeral mode: documents and share sessions are lost on exit")
	} else {
		db, err = database.NewPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		if !serveNoMigrate {
			if err := migration.EnsureMigrated(ctx, db, logger, cfg.Database.Host); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
		}

		profileRepo, err := postgres.NewProfilePostgres(db, cfg.ProfileTable)
		if err != nil {
			return err
		}
		rp = repos{
			documents: postgres.NewDocumentPostgres(db),
			sessions:  postgres.NewShareSessionPostgres(db),
			profiles:  profileRepo,
		}
	}

	store, err := storage.Open(ctx, cfg, db)
	if err != nil {
		return err
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}
	logger.Info("blob store ready", "backend", cfg.Blob.Backend, "cache_entries", cfg.Blob.CacheEntries)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if db != nil {
		if err := database.RegisterStats(reg, db); err != nil {
			return fmt.Errorf("register db stats: %w", err)
		}
	}
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	docSvc, shareSvc, err := newServices(cfg, logger, store, rp, m)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.MaxUploadBytes,
		DisableStartupMessage: cfg.IsProduction(),
	})
	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:            db,
		Documents:     docSvc,
		Shares:        shareSvc,
		AuthSecret:    cfg.AuthJWTSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		Gatherer:      reg,
	})

	if every := time.Duration(cfg.Share.SweepIntervalSec) * time.Second; every > 0 {
		go runSweeper(ctx, shareSvc, every, logger)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("starting server", "addr", addr, "env", cfg.Env, "ephemeral", serveEphemeral)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newServices(
	cfg *config.AppConfig,
	logger *slog.Logger,
	store storage.Store,
	rp repos,
	m *metrics.Metrics,
) (service.DocumentService, service.ShareService, error) {
	codec, err := sharetoken.NewCodec(cfg.Share.TokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("share token codec: %w", err)
	}

	docSvc := service.NewDocumentService(store, rp.documents,
		service.WithLogger(logger),
		service.WithHooks(m),
		service.WithRecorder(m),
	)
	shareSvc := service.NewShareService(codec, rp.sessions, rp.profiles, docSvc,
		service.WithShareLogger(logger),
		service.WithShareRecorder(m),
		service.WithTTL(cfg.Share.TTL()),
		service.WithSingleUse(cfg.Share.SingleUse),
	)
	return docSvc, shareSvc, nil
}

// runSweeper expires lapsed share sessions until ctx is done.
func runSweeper(ctx context.Context, svc service.ShareService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpireStale(ctx); err != nil && ctx.Err() == nil {
				logger.Error("share sweep failed", "err", err)
			}
		}
	}
}

// parseProfiles reads id:name:email triples.
func parseProfiles(specs []string) ([]model.Profile, error) {
	out := make([]model.Profile, 0, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --profile %q, want id:name:email", s)
		}
		out = append(out, model.Profile{ID: parts[0], Name: parts[1], Email: parts[2]})
	}
	return out, nil
}
