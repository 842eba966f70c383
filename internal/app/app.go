// Package app wires configuration, storage, services, and background loops
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forecastlab/forecastd/internal/config"
)

// App is the top-level application. It owns the dependency graph for the
// lifetime of Run and releases it on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// New creates an App. Dependencies are wired lazily in Run so a configuration
// error surfaces before any connection is opened.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run wires the dependency graph and executes the configured mode until ctx
// is cancelled (or, for one-shot modes, until the work completes).
func (a *App) Run(ctx context.Context) error {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.cleanup = cleanup

	mode := strings.ToLower(a.cfg.Mode)
	a.logger.Info("starting", slog.String("mode", mode))

	switch mode {
	case "serve":
		return a.runServe(ctx, deps)
	case "schedule":
		return a.runSchedule(ctx, deps)
	case "resolve":
		return a.runResolve(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close releases every resource Wire opened. Safe to call when Run failed
// before wiring completed.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}
