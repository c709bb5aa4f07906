package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"healthvault/internal/config"
	"healthvault/internal/logging"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

func withConfig(ctx context.Context, cfg *config.AppConfig) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFromContext retrieves the config stored by the root command.
func configFromContext(ctx context.Context) (*config.AppConfig, error) {
	cfg, ok := ctx.Value(configKey{}).(*config.AppConfig)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// loadConfig reads the environment; explicit flags win.
func loadConfig(cmd *cobra.Command) *config.AppConfig {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("env"); v != "" {
		cfg.Env = v
	}
	return cfg
}

func setupLogging(cfg *config.AppConfig) {
	logging.SetDefault(logging.New(os.Stdout, cfg.IsProduction(), cfg.LogLevel, time.UTC))
}
