package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/notify"
)

// Archiver periodically moves old resolved forecasts from the database to
// cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	interval      time.Duration
	notifier      *notify.Notifier
	logger        *slog.Logger
}

// NewArchiver creates an Archiver. notifier may be nil.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, interval time.Duration, notifier *notify.Notifier, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		interval:      interval,
		notifier:      notifier,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass over everything older than the retention
// window.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	archived, err := a.blobArchiver.ArchiveResolved(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving resolved forecasts before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete", slog.Int64("archived", archived))
	return nil
}

// RunLoop runs archive passes on a fixed interval until ctx is cancelled.
// Failures alert the operator and the loop keeps going.
func (a *Archiver) RunLoop(ctx context.Context) error {
	a.logger.Info("archiver loop started", slog.Duration("interval", a.interval))
	defer a.logger.Info("archiver loop stopped")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
				if a.notifier != nil {
					_ = a.notifier.Event(ctx, notify.EventArchiveFailed, "Archive run failed", err.Error())
				}
			}
		}
	}
}
