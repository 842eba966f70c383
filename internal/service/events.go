package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/forecastlab/forecastd/internal/domain"
)

// Pub/sub channels carrying live pipeline events to the WebSocket hub.
const (
	ChannelSeeded   = "forecast.seeded"
	ChannelResolved = "forecast.resolved"
)

// publish is a best-effort fan-out to the signal bus; a nil bus or a publish
// failure never disturbs the calling batch.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, event any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.WarnContext(ctx, "event marshal failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "event publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

// auditLog is a best-effort append to the audit store.
func auditLog(ctx context.Context, store domain.AuditStore, logger *slog.Logger, event string, detail map[string]any) {
	if store == nil {
		return
	}
	if err := store.Log(ctx, event, detail); err != nil {
		logger.WarnContext(ctx, "audit write failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
