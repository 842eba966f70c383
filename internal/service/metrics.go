package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/metrics"
)

const defaultMetricsRowLimit = 5000

// MetricsParams shapes a metrics computation.
type MetricsParams struct {
	Bins        int    `json:"bins"`
	Topic       string `json:"topic"`
	MinPerBin   int    `json:"minPerBin"`
	GroupTopics bool   `json:"groupTopics"`
	Slice       string `json:"slice"`
	DateField   string `json:"dateField"`
	MinPerSlice int    `json:"minPerSlice"`
	Limit       int    `json:"limit"`
}

// Metrics computes calibration and reliability reports over the resolved set.
type Metrics struct {
	store  domain.ForecastStore
	logger *slog.Logger
}

// NewMetrics creates a Metrics service.
func NewMetrics(store domain.ForecastStore, logger *slog.Logger) *Metrics {
	return &Metrics{
		store:  store,
		logger: logger.With(slog.String("component", "metrics")),
	}
}

// Compute pulls resolved forecasts from the store and aggregates them. It
// fails closed with domain.ErrNoData when no resolved yes/no rows exist.
func (m *Metrics) Compute(ctx context.Context, params MetricsParams) (metrics.Report, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultMetricsRowLimit
	}

	forecasts, err := m.store.List(ctx, domain.ForecastFilter{
		Status: domain.ForecastStatusResolved,
		Topic:  params.Topic,
		Limit:  limit,
	})
	if err != nil {
		return metrics.Report{}, fmt.Errorf("metrics: list resolved: %w", err)
	}

	rows := make([]metrics.Row, 0, len(forecasts))
	for _, f := range forecasts {
		var resolvedAt time.Time
		if f.ResolvedAt != nil {
			resolvedAt = *f.ResolvedAt
		}
		rows = append(rows, metrics.Row{
			Probability: f.Probability,
			Outcome:     f.Outcome,
			Brier:       f.BrierScore,
			Topic:       f.Topic,
			Tags:        f.MethodologyTags,
			ResolvedAt:  resolvedAt,
			Horizon:     f.HorizonTS,
		})
	}

	report, err := metrics.Compute(rows, metrics.Params{
		Bins:        params.Bins,
		MinPerBin:   params.MinPerBin,
		GroupTopics: params.GroupTopics,
		Slice:       params.Slice,
		DateField:   params.DateField,
		MinPerSlice: params.MinPerSlice,
	})
	if err != nil {
		return metrics.Report{}, err
	}

	m.logger.DebugContext(ctx, "metrics computed",
		slog.Int("rows", report.Overall.Count),
		slog.Int("calibration_bins", len(report.Calibration)),
	)
	return report, nil
}
