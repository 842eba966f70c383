// Package notify delivers operator alerts for degraded pipeline behavior to
// one or more chat channels. Alerts are advisory: delivery failures are logged
// and never propagated into the pipeline that raised them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event names emitted by the forecasting pipeline.
const (
	// EventSeedDegraded fires when a seeding run inserted fewer forecasts than
	// requested because the judge reply was unusable.
	EventSeedDegraded = "seed_degraded"
	// EventJudgeMalformed fires when a settlement verdict failed JSON parsing
	// and the fallback unknown verdict was recorded instead.
	EventJudgeMalformed = "judge_malformed"
	// EventResolveFailed fires when an entire resolution batch errored.
	EventResolveFailed = "resolve_failed"
	// EventArchiveFailed fires when a cold-storage archival run errored.
	EventArchiveFailed = "archive_failed"
)

// Sender is one delivery channel for operator alerts.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans an alert out to every configured sender, filtered by event
// name. An empty allow-list lets every event through.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier delivering to senders. events restricts which event
// names are forwarded; empty means all.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notify")),
	}
}

// Event sends an alert for the named event to every sender, honoring the
// allow-list. Per-sender failures are collected; one bad channel does not
// block the others.
func (n *Notifier) Event(ctx context.Context, event, title, message string) error {
	if n == nil || len(n.senders) == 0 {
		return nil
	}
	if len(n.allowed) > 0 && !n.allowed[event] {
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WarnContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}
