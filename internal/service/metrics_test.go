package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/domain"
)

func resolvedForecast(t *testing.T, store *fakeStore, topic string, prob float64, outcome domain.Outcome, resolvedAt time.Time) {
	t.Helper()
	ctx := context.Background()
	id, err := store.Insert(ctx, domain.Forecast{
		Topic:       topic,
		Question:    "Q",
		Probability: prob,
		HorizonTS:   resolvedAt.Add(-24 * time.Hour),
		Status:      domain.ForecastStatusOpen,
	})
	require.NoError(t, err)
	require.NoError(t, store.Resolve(ctx, id, domain.Resolution{
		Outcome:    outcome,
		ResolvedAt: resolvedAt,
		BrierScore: domain.ComputeBrier(prob, outcome),
	}))
}

func TestMetricsComputeFromStore(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	resolvedForecast(t, store, "a", 0.1, domain.OutcomeNo, at)
	resolvedForecast(t, store, "a", 0.4, domain.OutcomeNo, at)
	resolvedForecast(t, store, "b", 0.6, domain.OutcomeYes, at)
	resolvedForecast(t, store, "b", 0.9, domain.OutcomeYes, at)

	svc := NewMetrics(store, testLogger())
	report, err := svc.Compute(context.Background(), MetricsParams{Bins: 4})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Overall.Count)
	assert.InDelta(t, 0.085, report.Overall.AvgBrier, 1e-9)
	assert.Len(t, report.Calibration, 4)
}

func TestMetricsComputeTopicFilter(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	resolvedForecast(t, store, "a", 0.2, domain.OutcomeNo, at)
	resolvedForecast(t, store, "b", 0.8, domain.OutcomeYes, at)

	svc := NewMetrics(store, testLogger())
	report, err := svc.Compute(context.Background(), MetricsParams{Topic: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overall.Count)
}

func TestMetricsComputeNoData(t *testing.T) {
	svc := NewMetrics(newFakeStore(), testLogger())
	_, err := svc.Compute(context.Background(), MetricsParams{})
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestMetricsComputeExcludesUnknownOutcomes(t *testing.T) {
	store := newFakeStore()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	resolvedForecast(t, store, "a", 0.5, domain.OutcomeUnknown, at)

	svc := NewMetrics(store, testLogger())
	_, err := svc.Compute(context.Background(), MetricsParams{})
	assert.ErrorIs(t, err, domain.ErrNoData)
}
