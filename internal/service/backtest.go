package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/calendar"
	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/judge"
	"github.com/forecastlab/forecastd/internal/notify"
)

const (
	maxBacktestEvents        = 200
	defaultBacktestEvents    = 50
	defaultCountPerEvent     = 2
	defaultHorizonOffsetDays = 0
)

// BacktestParams shapes a backtest seeding run. Exactly one of CalendarText
// or Events should be set; Events wins when both are.
type BacktestParams struct {
	CalendarText      string           `json:"calendarText,omitempty"`
	Events            []calendar.Event `json:"events,omitempty"`
	CountPerEvent     int              `json:"countPerEvent"`
	HorizonOffsetDays int              `json:"horizonOffsetDays"`
	LimitEvents       int              `json:"limitEvents"`
}

// BacktestResult reports what a backtest seeding run inserted.
type BacktestResult struct {
	EventsProcessed int      `json:"eventsProcessed"`
	InsertedCount   int      `json:"insertedCount"`
	IDs             []string `json:"ids"`
}

// BacktestConfig wires a Backtest seeder. Notifier and Audit may be nil.
type BacktestConfig struct {
	Store    domain.ForecastStore
	Judge    judge.Client
	Notifier *notify.Notifier
	Audit    domain.AuditStore
	Logger   *slog.Logger
}

// Backtest seeds historical forecasts from a calendar of known events, so the
// calibration pipeline can be evaluated against outcomes that already
// happened.
type Backtest struct {
	store    domain.ForecastStore
	judge    judge.Client
	notifier *notify.Notifier
	audit    domain.AuditStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewBacktest creates a Backtest seeder.
func NewBacktest(cfg BacktestConfig) *Backtest {
	return &Backtest{
		store:    cfg.Store,
		judge:    cfg.Judge,
		notifier: cfg.Notifier,
		audit:    cfg.Audit,
		logger:   cfg.Logger.With(slog.String("component", "backtest")),
		now:      time.Now,
	}
}

// Seed walks the calendar events and asks the judge to propose forecasts per
// event, inserting whatever parses. Per-event failures are logged and skipped;
// the run never aborts over a single bad event.
func (b *Backtest) Seed(ctx context.Context, params BacktestParams) (BacktestResult, error) {
	events := params.Events
	if len(events) == 0 && params.CalendarText != "" {
		events = calendar.ParseICS(params.CalendarText)
	}

	limit := params.LimitEvents
	if limit <= 0 {
		limit = defaultBacktestEvents
	}
	if limit > maxBacktestEvents {
		limit = maxBacktestEvents
	}
	if len(events) > limit {
		events = events[:limit]
	}

	count := params.CountPerEvent
	if count <= 0 {
		count = defaultCountPerEvent
	}
	if count > maxSeedCount {
		count = maxSeedCount
	}
	offsetDays := params.HorizonOffsetDays
	if offsetDays < 0 {
		offsetDays = defaultHorizonOffsetDays
	}

	result := BacktestResult{IDs: make([]string, 0, len(events)*count)}
	degraded := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		result.EventsProcessed++

		inserted, err := b.seedEvent(ctx, ev, count, offsetDays, &result)
		if err != nil {
			b.logger.WarnContext(ctx, "backtest event skipped",
				slog.String("event", ev.Summary),
				slog.String("error", err.Error()),
			)
			continue
		}
		if inserted == 0 {
			degraded++
		}
	}

	if degraded > 0 && b.notifier != nil {
		_ = b.notifier.Event(ctx, notify.EventSeedDegraded, "Backtest seeding degraded",
			fmt.Sprintf("%d of %d events produced no usable forecasts", degraded, result.EventsProcessed))
	}
	auditLog(ctx, b.audit, b.logger, "backtest_seed", map[string]any{
		"events":   result.EventsProcessed,
		"inserted": result.InsertedCount,
	})
	b.logger.InfoContext(ctx, "backtest seeding finished",
		slog.Int("events", result.EventsProcessed),
		slog.Int("inserted", result.InsertedCount),
	)
	return result, nil
}

// seedEvent asks the judge for forecasts about one event and inserts them.
// The horizon of every inserted forecast is capped at the event start plus
// the configured offset.
func (b *Backtest) seedEvent(ctx context.Context, ev calendar.Event, count, offsetDays int, result *BacktestResult) (int, error) {
	latestHorizon := ev.Start.AddDate(0, 0, offsetDays)

	raw, err := b.judge.Complete(ctx, []judge.Message{
		{Role: judge.RoleSystem, Content: seedSystemPrompt},
		{Role: judge.RoleUser, Content: backtestUserPrompt(ev, count, latestHorizon)},
	})
	if err != nil {
		return 0, fmt.Errorf("judge call: %w", err)
	}

	parsed := judge.ParseJSON[seedReply](raw)
	if !parsed.Ok() || len(parsed.Value.Forecasts) == 0 {
		return 0, nil
	}

	drafts := parsed.Value.Forecasts
	if len(drafts) > count {
		drafts = drafts[:count]
	}

	now := b.now()
	inserted := 0
	for _, d := range drafts {
		if d.Question == "" {
			continue
		}
		horizon := latestHorizon
		if d.HorizonTS != "" {
			if ts, err := time.Parse(time.RFC3339, d.HorizonTS); err == nil && ts.Before(latestHorizon) {
				horizon = ts
			}
		}
		f := domain.Forecast{
			Topic:              ev.Summary,
			Question:           d.Question,
			ResolutionCriteria: d.ResolutionCriteria,
			HorizonTS:          horizon,
			Probability:        domain.Clamp01(d.Probability),
			Rationale:          d.Rationale,
			MethodologyTags:    d.MethodologyTags,
			Status:             domain.ForecastStatusOpen,
			Outcome:            domain.OutcomeUnknown,
			CreatedAt:          now,
		}
		id, err := b.store.Insert(ctx, f)
		if err != nil {
			b.logger.WarnContext(ctx, "backtest insert failed",
				slog.String("question", d.Question),
				slog.String("error", err.Error()),
			)
			continue
		}
		inserted++
		result.InsertedCount++
		result.IDs = append(result.IDs, id)
	}
	return inserted, nil
}
