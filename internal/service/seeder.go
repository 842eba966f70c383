// Package service implements the forecasting use cases: seeding questions,
// resolving due forecasts, computing calibration metrics, and backtest seeding
// from calendar feeds. Services orchestrate the store, judge, and evidence
// collaborators and own no persistent state of their own.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/evidence"
	"github.com/forecastlab/forecastd/internal/judge"
	"github.com/forecastlab/forecastd/internal/notify"
)

const (
	maxSeedCount       = 20
	defaultSeedCount   = 3
	defaultHorizonDays = 30
)

// SeedParams shapes a single seeding run. Count is clamped to [1,20]; zero
// means "not set" and falls back to the default of 3.
type SeedParams struct {
	Topic       string `json:"topic"`
	Count       int    `json:"count"`
	HorizonDays int    `json:"horizonDays"`
	FetchPages  bool   `json:"fetchPages"`
}

// SeedResult reports what a seeding run inserted.
type SeedResult struct {
	InsertedCount int      `json:"insertedCount"`
	IDs           []string `json:"ids"`
}

// SeederConfig wires a Seeder. Gatherer, Notifier, Bus and Audit may be nil.
type SeederConfig struct {
	Store      domain.ForecastStore
	Judge      judge.Client
	Gatherer   evidence.Gatherer
	Notifier   *notify.Notifier
	Bus        domain.SignalBus
	Audit      domain.AuditStore
	CharBudget int
	Logger     *slog.Logger
}

// Seeder asks the judge to propose falsifiable forecasting questions for a
// topic and persists them as open forecasts.
type Seeder struct {
	store      domain.ForecastStore
	judge      judge.Client
	gatherer   evidence.Gatherer
	notifier   *notify.Notifier
	bus        domain.SignalBus
	audit      domain.AuditStore
	charBudget int
	logger     *slog.Logger
	now        func() time.Time
}

// NewSeeder creates a Seeder.
func NewSeeder(cfg SeederConfig) *Seeder {
	return &Seeder{
		store:      cfg.Store,
		judge:      cfg.Judge,
		gatherer:   cfg.Gatherer,
		notifier:   cfg.Notifier,
		bus:        cfg.Bus,
		audit:      cfg.Audit,
		charBudget: cfg.CharBudget,
		logger:     cfg.Logger.With(slog.String("component", "seeder")),
		now:        time.Now,
	}
}

// stringList tolerates the shapes judges emit for tag lists: a JSON array of
// strings, a single string, or garbage (which decodes to empty).
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = arr
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil && single != "" {
		*s = []string{single}
		return nil
	}
	*s = nil
	return nil
}

// forecastDraft is the per-question shape expected inside the judge's reply.
type forecastDraft struct {
	Question           string     `json:"question"`
	ResolutionCriteria string     `json:"resolutionCriteria"`
	HorizonTS          string     `json:"horizonTs"`
	Probability        float64    `json:"probability"`
	Rationale          string     `json:"rationale"`
	MethodologyTags    stringList `json:"methodologyTags"`
}

type seedReply struct {
	Forecasts []forecastDraft `json:"forecasts"`
}

type seededEvent struct {
	ID       string `json:"id"`
	Topic    string `json:"topic"`
	Question string `json:"question"`
}

// Seed gathers evidence for the topic, asks the judge for questions, and
// inserts every usable draft. A malformed judge reply degrades to zero inserts
// with an operator warning rather than an error; per-draft insert failures are
// logged and skipped.
func (s *Seeder) Seed(ctx context.Context, params SeedParams) (SeedResult, error) {
	count := params.Count
	if count == 0 {
		count = defaultSeedCount
	}
	if count < 1 {
		count = 1
	}
	if count > maxSeedCount {
		count = maxSeedCount
	}
	horizonDays := params.HorizonDays
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}

	evidenceBlock, sources := s.gatherEvidence(ctx, params.Topic, params.FetchPages)

	raw, err := s.judge.Complete(ctx, []judge.Message{
		{Role: judge.RoleSystem, Content: seedSystemPrompt},
		{Role: judge.RoleUser, Content: seedUserPrompt(params.Topic, count, horizonDays, evidenceBlock)},
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed: judge call: %w", err)
	}

	parsed := judge.ParseJSON[seedReply](raw)
	if !parsed.Ok() || len(parsed.Value.Forecasts) == 0 {
		s.logger.WarnContext(ctx, "seed reply unusable",
			slog.String("topic", params.Topic),
			slog.Int("raw_len", len(parsed.Raw)),
		)
		if s.notifier != nil {
			_ = s.notifier.Event(ctx, notify.EventSeedDegraded, "Seeding degraded",
				fmt.Sprintf("Topic %q: judge reply produced no usable forecasts", params.Topic))
		}
		return SeedResult{IDs: []string{}}, nil
	}

	drafts := parsed.Value.Forecasts
	if len(drafts) > count {
		drafts = drafts[:count]
	}

	now := s.now()
	defaultHorizon := now.AddDate(0, 0, horizonDays)

	result := SeedResult{IDs: make([]string, 0, len(drafts))}
	for _, d := range drafts {
		if d.Question == "" {
			continue
		}
		f := s.buildForecast(params.Topic, d, defaultHorizon, sources, now)

		id, err := s.store.Insert(ctx, f)
		if err != nil {
			s.logger.WarnContext(ctx, "seed insert failed",
				slog.String("question", d.Question),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.InsertedCount++
		result.IDs = append(result.IDs, id)
		publish(ctx, s.bus, s.logger, ChannelSeeded, seededEvent{ID: id, Topic: params.Topic, Question: d.Question})
	}

	auditLog(ctx, s.audit, s.logger, "seed", map[string]any{
		"topic":     params.Topic,
		"requested": count,
		"inserted":  result.InsertedCount,
	})
	s.logger.InfoContext(ctx, "seeding run finished",
		slog.String("topic", params.Topic),
		slog.Int("inserted", result.InsertedCount),
	)
	return result, nil
}

func (s *Seeder) buildForecast(topic string, d forecastDraft, defaultHorizon time.Time, sources []domain.SourceRef, now time.Time) domain.Forecast {
	horizon := defaultHorizon
	if d.HorizonTS != "" {
		if ts, err := time.Parse(time.RFC3339, d.HorizonTS); err == nil {
			horizon = ts
		}
	}
	return domain.Forecast{
		Topic:              topic,
		Question:           d.Question,
		ResolutionCriteria: d.ResolutionCriteria,
		HorizonTS:          horizon,
		Probability:        domain.Clamp01(d.Probability),
		Rationale:          d.Rationale,
		MethodologyTags:    d.MethodologyTags,
		Sources:            sources,
		Status:             domain.ForecastStatusOpen,
		Outcome:            domain.OutcomeUnknown,
		CreatedAt:          now,
	}
}

// gatherEvidence is best-effort context for the seed prompt: failures log and
// return an empty block.
func (s *Seeder) gatherEvidence(ctx context.Context, topic string, fetchPages bool) (string, []domain.SourceRef) {
	if s.gatherer == nil || topic == "" {
		return "", nil
	}
	items, err := s.gatherer.Search(ctx, topic, evidence.SearchOpts{FetchPages: fetchPages})
	if err != nil {
		s.logger.WarnContext(ctx, "seed evidence gathering failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	sources := make([]domain.SourceRef, 0, len(items))
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		sources = append(sources, domain.SourceRef{URL: it.URL, Title: it.Title})
	}
	return evidence.Summarize(items, s.charBudget), sources
}
