package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator supervises the background loops. Either loop may be nil, in
// which case it simply is not started.
type Orchestrator struct {
	scheduler *Scheduler
	archiver  *Archiver
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given loops.
func NewOrchestrator(scheduler *Scheduler, archiver *Archiver, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		scheduler: scheduler,
		archiver:  archiver,
		logger:    logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts the loops as errgroup goroutines and blocks until ctx is
// cancelled or a loop fails with a non-context error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting")

	g, ctx := errgroup.WithContext(ctx)

	if o.scheduler != nil {
		g.Go(func() error {
			err := o.scheduler.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("scheduler: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
