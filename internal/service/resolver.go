package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/evidence"
	"github.com/forecastlab/forecastd/internal/judge"
	"github.com/forecastlab/forecastd/internal/notify"
)

const (
	maxResolveLimit     = 200
	defaultResolveLimit = 50
	resolveLockKey      = "resolve"
	resolveLockTTL      = 10 * time.Minute
	// fallbackConfidence is recorded when the judge verdict was not parseable
	// and the unknown fallback applies.
	fallbackConfidence = 0.3
)

// ResolveParams shapes a single resolution batch. Limit is clamped to
// [1,200]; zero means "not set" and falls back to the default batch size.
type ResolveParams struct {
	Limit      int  `json:"limit"`
	FetchPages bool `json:"fetchPages"`
}

// ResolveDetail reports the fate of one due forecast within a batch. A settled
// item carries Outcome, BrierScore, and the judge's Verdict; a failed item
// carries Err instead.
type ResolveDetail struct {
	ID         string          `json:"id"`
	Outcome    domain.Outcome  `json:"outcome,omitempty"`
	BrierScore *float64        `json:"brierScore,omitempty"`
	Judge      *domain.Verdict `json:"judge,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// ResolveResult summarizes a resolution batch.
type ResolveResult struct {
	Resolved int             `json:"resolved"`
	Details  []ResolveDetail `json:"details"`
}

// ResolverConfig wires a Resolver. Gatherer, Locks, Notifier, Bus and Audit
// may be nil; a nil Locks skips run-level locking entirely.
type ResolverConfig struct {
	Store       domain.ForecastStore
	Judge       judge.Client
	Gatherer    evidence.Gatherer
	Locks       domain.LockManager
	Notifier    *notify.Notifier
	Bus         domain.SignalBus
	Audit       domain.AuditStore
	CharBudget  int
	ItemTimeout time.Duration
	Logger      *slog.Logger
}

// Resolver settles due forecasts: for each open forecast past its horizon it
// gathers evidence, asks the judge for a verdict, scores the forecast, and
// persists the resolution.
type Resolver struct {
	store       domain.ForecastStore
	judge       judge.Client
	gatherer    evidence.Gatherer
	locks       domain.LockManager
	notifier    *notify.Notifier
	bus         domain.SignalBus
	audit       domain.AuditStore
	charBudget  int
	itemTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	itemTimeout := cfg.ItemTimeout
	if itemTimeout <= 0 {
		itemTimeout = 2 * time.Minute
	}
	return &Resolver{
		store:       cfg.Store,
		judge:       cfg.Judge,
		gatherer:    cfg.Gatherer,
		locks:       cfg.Locks,
		notifier:    cfg.Notifier,
		bus:         cfg.Bus,
		audit:       cfg.Audit,
		charBudget:  cfg.CharBudget,
		itemTimeout: itemTimeout,
		logger:      cfg.Logger.With(slog.String("component", "resolver")),
		now:         time.Now,
	}
}

type resolvedEvent struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Question   string         `json:"question"`
	Outcome    domain.Outcome `json:"outcome"`
	BrierScore *float64       `json:"brierScore,omitempty"`
}

// ResolveDue settles up to limit due forecasts sequentially. Items are
// processed under a per-item timeout; any single failure is recorded in the
// result and never aborts the batch. Concurrent runs (scheduler tick vs.
// manual trigger) are excluded by a run-level lock, and the conditional store
// update closes the remaining double-resolution window.
func (r *Resolver) ResolveDue(ctx context.Context, params ResolveParams) (ResolveResult, error) {
	limit := params.Limit
	if limit == 0 {
		limit = defaultResolveLimit
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxResolveLimit {
		limit = maxResolveLimit
	}

	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, resolveLockKey, resolveLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.InfoContext(ctx, "resolution already running, skipping")
				return ResolveResult{Details: []ResolveDetail{}}, nil
			}
			return ResolveResult{}, fmt.Errorf("resolve: acquire lock: %w", err)
		}
		defer unlock()
	}

	due, err := r.store.ListDue(ctx, r.now(), limit)
	if err != nil {
		return ResolveResult{}, fmt.Errorf("resolve: list due: %w", err)
	}

	result := ResolveResult{Details: make([]ResolveDetail, 0, len(due))}
	for _, f := range due {
		if ctx.Err() != nil {
			break
		}
		itemCtx, cancel := context.WithTimeout(ctx, r.itemTimeout)
		detail, resolved := r.resolveOne(itemCtx, f, params.FetchPages)
		cancel()

		if detail != nil {
			result.Details = append(result.Details, *detail)
		}
		if resolved {
			result.Resolved++
		}
	}

	auditLog(ctx, r.audit, r.logger, "resolve", map[string]any{
		"due":      len(due),
		"resolved": result.Resolved,
	})
	r.logger.InfoContext(ctx, "resolution batch finished",
		slog.Int("due", len(due)),
		slog.Int("resolved", result.Resolved),
	)
	return result, nil
}

// resolveOne settles a single forecast. It returns a nil detail only when the
// item was skipped because another run already resolved it.
func (r *Resolver) resolveOne(ctx context.Context, f domain.Forecast, fetchPages bool) (*ResolveDetail, bool) {
	evidenceBlock, err := r.gatherEvidence(ctx, f, fetchPages)
	if err != nil {
		r.logger.WarnContext(ctx, "evidence gathering failed",
			slog.String("id", f.ID),
			slog.String("error", err.Error()),
		)
		return &ResolveDetail{ID: f.ID, Err: err.Error()}, false
	}

	raw, err := r.judge.Complete(ctx, []judge.Message{
		{Role: judge.RoleSystem, Content: verdictSystemPrompt},
		{Role: judge.RoleUser, Content: verdictUserPrompt(f, evidenceBlock)},
	})
	if err != nil {
		return &ResolveDetail{ID: f.ID, Err: fmt.Sprintf("judge call: %v", err)}, false
	}

	verdict := r.parseVerdict(ctx, f.ID, raw)
	outcome := domain.NormalizeOutcome(verdict.Outcome)
	brier := domain.ComputeBrier(f.Probability, outcome)

	res := domain.Resolution{
		Outcome:    outcome,
		Judge:      verdict,
		ResolvedAt: r.now(),
		BrierScore: brier,
		Notes:      verdict.Notes,
	}
	if err := r.store.Resolve(ctx, f.ID, res); err != nil {
		if errors.Is(err, domain.ErrAlreadyResolved) {
			r.logger.InfoContext(ctx, "forecast already resolved elsewhere", slog.String("id", f.ID))
			return nil, false
		}
		return &ResolveDetail{ID: f.ID, Err: fmt.Sprintf("persist resolution: %v", err)}, false
	}

	publish(ctx, r.bus, r.logger, ChannelResolved, resolvedEvent{
		ID:         f.ID,
		Topic:      f.Topic,
		Question:   f.Question,
		Outcome:    outcome,
		BrierScore: brier,
	})
	return &ResolveDetail{ID: f.ID, Outcome: outcome, BrierScore: brier, Judge: verdict}, true
}

// parseVerdict parses the judge reply, falling back to an unknown verdict that
// carries the raw text when the reply was not valid JSON.
func (r *Resolver) parseVerdict(ctx context.Context, id, raw string) *domain.Verdict {
	type verdictReply struct {
		Outcome    string  `json:"outcome"`
		Confidence float64 `json:"confidence"`
		Notes      string  `json:"notes"`
	}

	parsed := judge.ParseJSON[verdictReply](raw)
	if parsed.Ok() && parsed.Value.Outcome != "" {
		return &domain.Verdict{
			Outcome:    parsed.Value.Outcome,
			Confidence: parsed.Value.Confidence,
			Notes:      parsed.Value.Notes,
		}
	}

	r.logger.WarnContext(ctx, "judge verdict unparseable, recording unknown",
		slog.String("id", id),
		slog.Int("raw_len", len(raw)),
	)
	if r.notifier != nil {
		_ = r.notifier.Event(ctx, notify.EventJudgeMalformed, "Judge verdict malformed",
			fmt.Sprintf("Forecast %s: verdict did not parse; recorded unknown", id))
	}
	return &domain.Verdict{
		Outcome:    string(domain.OutcomeUnknown),
		Confidence: fallbackConfidence,
		Raw:        raw,
	}
}

func (r *Resolver) gatherEvidence(ctx context.Context, f domain.Forecast, fetchPages bool) (string, error) {
	if r.gatherer == nil {
		return "", nil
	}
	items, err := r.gatherer.Search(ctx, f.Question, evidence.SearchOpts{FetchPages: fetchPages})
	if err != nil {
		return "", fmt.Errorf("gather evidence: %w", err)
	}
	return evidence.Summarize(items, r.charBudget), nil
}
