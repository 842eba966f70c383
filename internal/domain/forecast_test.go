package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.3))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestComputeBrier(t *testing.T) {
	yes := ComputeBrier(0.7, OutcomeYes)
	require.NotNil(t, yes)
	assert.InDelta(t, 0.09, *yes, 1e-9)

	no := ComputeBrier(0.7, OutcomeNo)
	require.NotNil(t, no)
	assert.InDelta(t, 0.49, *no, 1e-9)

	assert.Nil(t, ComputeBrier(0.7, OutcomeUnknown))

	// Out-of-range probabilities are clamped before scoring.
	clamped := ComputeBrier(1.5, OutcomeYes)
	require.NotNil(t, clamped)
	assert.Equal(t, 0.0, *clamped)
}

func TestNormalizeOutcome(t *testing.T) {
	assert.Equal(t, OutcomeYes, NormalizeOutcome("YES"))
	assert.Equal(t, OutcomeYes, NormalizeOutcome(" true "))
	assert.Equal(t, OutcomeNo, NormalizeOutcome("No"))
	assert.Equal(t, OutcomeUnknown, NormalizeOutcome("maybe"))
	assert.Equal(t, OutcomeUnknown, NormalizeOutcome(""))
}

func TestForecastDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	f := Forecast{Status: ForecastStatusOpen, HorizonTS: now.Add(-time.Hour)}
	assert.True(t, f.Due(now))

	f.HorizonTS = now.Add(time.Hour)
	assert.False(t, f.Due(now))

	f.Status = ForecastStatusResolved
	f.HorizonTS = now.Add(-time.Hour)
	assert.False(t, f.Due(now))
}
