// Package pipeline runs the long-lived background loops: the periodic
// resolution scheduler and the cold-storage archiver, coordinated by the
// Orchestrator.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/service"
)

// minInterval is the floor for the scheduler tick. Shorter configured
// intervals are clamped so a bad config cannot hammer the judge backend.
const minInterval = 5 * time.Minute

// DueResolver settles due forecasts; satisfied by service.Resolver.
type DueResolver interface {
	ResolveDue(ctx context.Context, params service.ResolveParams) (service.ResolveResult, error)
}

// SchedulerConfig configures the periodic resolution timer.
type SchedulerConfig struct {
	Resolver   DueResolver
	Interval   time.Duration
	RunOnStart bool
	Limit      int
	FetchPages bool
	Logger     *slog.Logger
}

// Scheduler owns the single periodic timer that drives automatic resolution.
// Each tick is fire-and-forget: failures are logged, never raised.
type Scheduler struct {
	resolver   DueResolver
	interval   time.Duration
	runOnStart bool
	limit      int
	fetchPages bool
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler, clamping the interval to the floor.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval < minInterval {
		interval = minInterval
	}
	return &Scheduler{
		resolver:   cfg.Resolver,
		interval:   interval,
		runOnStart: cfg.RunOnStart,
		limit:      cfg.Limit,
		fetchPages: cfg.FetchPages,
		logger:     cfg.Logger.With(slog.String("component", "scheduler")),
	}
}

// Interval returns the effective (clamped) tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run ticks until ctx is cancelled, invoking the resolver once per tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Bool("run_on_start", s.runOnStart),
	)
	defer s.logger.Info("scheduler stopped")

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.resolver.ResolveDue(ctx, service.ResolveParams{Limit: s.limit, FetchPages: s.fetchPages})
	if err != nil {
		s.logger.Error("scheduled resolution failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled resolution finished",
		slog.Int("resolved", res.Resolved),
		slog.Int("details", len(res.Details)),
	)
}
