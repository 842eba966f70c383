package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forecastlab/forecastd/internal/pipeline"
	"github.com/forecastlab/forecastd/internal/server"
	"github.com/forecastlab/forecastd/internal/server/handler"
	"github.com/forecastlab/forecastd/internal/server/ws"
	"github.com/forecastlab/forecastd/internal/service"
)

const shutdownTimeout = 10 * time.Second

// buildOrchestrator assembles the background loops enabled by configuration.
// Returns nil when neither loop is enabled.
func (a *App) buildOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	var scheduler *pipeline.Scheduler
	if a.cfg.Scheduler.Enabled {
		scheduler = pipeline.NewScheduler(pipeline.SchedulerConfig{
			Resolver:   deps.Resolver,
			Interval:   a.cfg.Scheduler.Interval.Duration,
			RunOnStart: a.cfg.Scheduler.RunOnStart,
			Limit:      a.cfg.Scheduler.Limit,
			FetchPages: a.cfg.Evidence.FetchPages,
			Logger:     a.logger,
		})
	}

	var archiver *pipeline.Archiver
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver = pipeline.NewArchiver(
			deps.Archiver,
			a.cfg.Archive.RetentionDays,
			a.cfg.Archive.Interval.Duration,
			deps.Notifier,
			a.logger,
		)
	}

	if scheduler == nil && archiver == nil {
		return nil
	}
	return pipeline.NewOrchestrator(scheduler, archiver, a.logger)
}

// runServe runs the HTTP/WebSocket API together with the background loops.
func (a *App) runServe(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		a.logger.Warn("server.enabled is false, but serve mode always runs the HTTP server")
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.HealthChecks),
		Forecasts: handler.NewForecastHandler(deps.Seeder, deps.Resolver, deps.ForecastStore, a.logger),
		Metrics:   handler.NewMetricsHandler(deps.Metrics, a.logger),
		Backtest:  handler.NewBacktestHandler(deps.Backtest, a.logger),
		Audit:     handler.NewAuditHandler(deps.AuditStore, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	if orch := a.buildOrchestrator(deps); orch != nil {
		g.Go(func() error {
			err := orch.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}

	return g.Wait()
}

// runSchedule runs only the background loops, no HTTP surface. Useful for a
// dedicated worker instance next to one or more serve instances.
func (a *App) runSchedule(ctx context.Context, deps *Dependencies) error {
	orch := a.buildOrchestrator(deps)
	if orch == nil {
		return fmt.Errorf("app: schedule mode requires scheduler or archive to be enabled")
	}
	err := orch.Run(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// runResolve performs a single resolution pass and exits. Intended for cron
// jobs and manual operator runs.
func (a *App) runResolve(ctx context.Context, deps *Dependencies) error {
	res, err := deps.Resolver.ResolveDue(ctx, service.ResolveParams{
		Limit:      a.cfg.Resolver.Limit,
		FetchPages: a.cfg.Evidence.FetchPages,
	})
	if err != nil {
		return fmt.Errorf("app: resolve pass: %w", err)
	}
	a.logger.Info("resolve pass complete",
		slog.Int("resolved", res.Resolved),
		slog.Int("details", len(res.Details)),
	)
	return nil
}
