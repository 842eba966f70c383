package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/domain"
)

func yes() domain.Outcome { return domain.OutcomeYes }
func no() domain.Outcome  { return domain.OutcomeNo }

func TestComputeNoUsableRows(t *testing.T) {
	_, err := Compute(nil, Params{})
	assert.ErrorIs(t, err, domain.ErrNoData)

	// Unknown-outcome rows do not count as data.
	_, err = Compute([]Row{{Probability: 0.5, Outcome: domain.OutcomeUnknown}}, Params{})
	assert.ErrorIs(t, err, domain.ErrNoData)
}

func TestComputeOverallAndCalibration(t *testing.T) {
	rows := []Row{
		{Probability: 0.1, Outcome: no()},
		{Probability: 0.4, Outcome: no()},
		{Probability: 0.6, Outcome: yes()},
		{Probability: 0.9, Outcome: yes()},
	}

	report, err := Compute(rows, Params{Bins: 4, MinPerBin: 1})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Overall.Count)
	assert.InDelta(t, 0.5, report.Overall.MeanProb, 1e-9)
	assert.InDelta(t, 0.5, report.Overall.BaseRate, 1e-9)
	// Briers: 0.01, 0.16, 0.16, 0.01.
	assert.InDelta(t, 0.085, report.Overall.AvgBrier, 1e-9)

	require.Len(t, report.Calibration, 4, "one forecast per bucket")
	for i, b := range report.Calibration {
		assert.Equal(t, i, b.Bin)
		assert.Equal(t, 1, b.N)
	}
	assert.InDelta(t, 0.0, report.Calibration[0].FreqYes, 1e-9)
	assert.InDelta(t, 1.0, report.Calibration[3].FreqYes, 1e-9)
}

func TestCalibrationTopEdgeStaysInLastBin(t *testing.T) {
	rows := []Row{{Probability: 1.0, Outcome: yes()}}
	report, err := Compute(rows, Params{Bins: 10})
	require.NoError(t, err)

	require.Len(t, report.Calibration, 1)
	assert.Equal(t, 9, report.Calibration[0].Bin)
}

func TestComputeUsesStoredBrierAndRecomputesMissing(t *testing.T) {
	stored := 0.25
	rows := []Row{
		{Probability: 0.5, Outcome: yes(), Brier: &stored},
		{Probability: 0.7, Outcome: yes()}, // recomputed as (0.7-1)^2 = 0.09
	}
	report, err := Compute(rows, Params{})
	require.NoError(t, err)
	assert.InDelta(t, (0.25+0.09)/2, report.Overall.AvgBrier, 1e-9)
}

func TestTagReliabilitySortedByBrier(t *testing.T) {
	rows := []Row{
		{Probability: 0.9, Outcome: yes(), Tags: []string{"base-rates"}},
		{Probability: 0.9, Outcome: no(), Tags: []string{"vibes"}},
		{Probability: 0.8, Outcome: yes(), Tags: []string{"base-rates", "vibes"}},
	}
	report, err := Compute(rows, Params{})
	require.NoError(t, err)

	require.Len(t, report.Tags, 2)
	assert.Equal(t, "base-rates", report.Tags[0].Key, "lower avgBrier ranks first")
	assert.Equal(t, 2, report.Tags[0].Count)
	assert.Equal(t, "vibes", report.Tags[1].Key)
	assert.Greater(t, report.Tags[1].AvgBrier, report.Tags[0].AvgBrier)
}

func TestTopicReliabilityOnlyWhenGrouped(t *testing.T) {
	rows := []Row{
		{Probability: 0.6, Outcome: yes(), Topic: "space"},
		{Probability: 0.4, Outcome: no(), Topic: "macro"},
	}

	plain, err := Compute(rows, Params{})
	require.NoError(t, err)
	assert.Nil(t, plain.Topics)

	grouped, err := Compute(rows, Params{GroupTopics: true})
	require.NoError(t, err)
	require.Len(t, grouped.Topics, 2)
}

func TestTimeSlicesISOWeek(t *testing.T) {
	resolved := func(y time.Month, d int, year int) time.Time {
		return time.Date(year, y, d, 12, 0, 0, 0, time.UTC)
	}
	rows := []Row{
		{Probability: 0.5, Outcome: yes(), ResolvedAt: resolved(time.January, 1, 2024)},
		{Probability: 0.5, Outcome: no(), ResolvedAt: resolved(time.January, 2, 2024)},
		{Probability: 0.5, Outcome: yes(), ResolvedAt: resolved(time.January, 3, 2024)},
		{Probability: 0.5, Outcome: yes(), ResolvedAt: resolved(time.December, 31, 2023)},
	}

	report, err := Compute(rows, Params{Slice: SliceWeek, MinPerSlice: 1})
	require.NoError(t, err)

	require.Len(t, report.Slices, 2)
	// Sunday 2023-12-31 belongs to ISO week 52 of 2023; Monday 2024-01-01
	// opens ISO week 1 of 2024 (the week containing Thursday Jan 4).
	assert.Equal(t, "2023-W52", report.Slices[0].Key)
	assert.Equal(t, 1, report.Slices[0].N)
	assert.Equal(t, "2024-W01", report.Slices[1].Key)
	assert.Equal(t, 3, report.Slices[1].N)
}

func TestTimeSlicesMinPerSliceAndDateField(t *testing.T) {
	horizon := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := []Row{
		{Probability: 0.5, Outcome: yes(), Horizon: horizon},
		{Probability: 0.5, Outcome: no(), Horizon: horizon},
	}

	report, err := Compute(rows, Params{Slice: SliceDay, DateField: DateFieldHorizon, MinPerSlice: 3})
	require.NoError(t, err)
	assert.Empty(t, report.Slices, "buckets below MinPerSlice are dropped")

	report, err = Compute(rows, Params{Slice: SliceMonth, DateField: DateFieldHorizon, MinPerSlice: 2})
	require.NoError(t, err)
	require.Len(t, report.Slices, 1)
	assert.Equal(t, "2024-05", report.Slices[0].Key)
}

func TestToChartParallelArrays(t *testing.T) {
	rows := []Row{
		{Probability: 0.1, Outcome: no()},
		{Probability: 0.9, Outcome: yes()},
	}
	report, err := Compute(rows, Params{Bins: 10})
	require.NoError(t, err)

	chart := ToChart(report)
	n := len(report.Calibration)
	assert.Len(t, chart.Bins, n)
	assert.Len(t, chart.N, n)
	assert.Len(t, chart.AvgP, n)
	assert.Len(t, chart.FreqYes, n)
	for i, b := range report.Calibration {
		assert.Equal(t, b.Bin, chart.Bins[i])
	}
}

func TestToCSVSections(t *testing.T) {
	rows := []Row{
		{Probability: 0.2, Outcome: no(), Tags: []string{"outside-view"}},
		{Probability: 0.8, Outcome: yes(), Tags: []string{"outside-view"}},
	}
	report, err := Compute(rows, Params{Bins: 10})
	require.NoError(t, err)

	out, err := ToCSV(report)
	require.NoError(t, err)

	assert.Contains(t, out, "section,key,n,avg_prob,freq_yes,avg_brier")
	assert.Contains(t, out, "overall,")
	assert.Contains(t, out, "calibration,")
	assert.Contains(t, out, "tag,outside-view,2,")
}

func TestParamsClamping(t *testing.T) {
	p := Params{Bins: 100, MinPerBin: -3}.normalized()
	assert.Equal(t, 50, p.Bins)
	assert.Equal(t, 1, p.MinPerBin)

	p = Params{Bins: 1}.normalized()
	assert.Equal(t, 2, p.Bins)

	p = Params{}.normalized()
	assert.Equal(t, 10, p.Bins)
	assert.Equal(t, 3, p.MinPerSlice)
	assert.Equal(t, DateFieldResolved, p.DateField)
}
