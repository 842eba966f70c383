// Command forecastd runs the forecasting service: it loads and validates
// configuration, wires the dependency graph, and executes the configured mode
// (serve, schedule, or resolve) until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/forecastlab/forecastd/internal/app"
	"github.com/forecastlab/forecastd/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	logLevel := flag.String("log-level", "", "override log_level from the config file")
	flag.Parse()

	if err := run(*configPath, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if logLevelOverride != "" {
		cfg.LogLevel = logLevelOverride
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("forecastd starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", configPath),
		slog.String("log_level", cfg.LogLevel),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("forecastd stopped")
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
