package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/domain"
)

func newTestSeeder(store *fakeStore, j *fakeJudge, g *fakeGatherer) *Seeder {
	cfg := SeederConfig{
		Store:  store,
		Judge:  j,
		Logger: testLogger(),
	}
	if g != nil {
		cfg.Gatherer = g
	}
	s := NewSeeder(cfg)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSeedInsertsParsedForecasts(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{
		`{"forecasts":[
			{"question":"Q1","resolutionCriteria":"C1","probability":0.6,"methodologyTags":["base-rates"]},
			{"question":"Q2","resolutionCriteria":"C2","probability":0.3,"horizonTs":"2024-06-15T00:00:00Z"}
		]}`,
	}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "topic-A", Count: 2, HorizonDays: 7})
	require.NoError(t, err)

	assert.Equal(t, 2, res.InsertedCount)
	require.Len(t, res.IDs, 2)

	first := store.get(res.IDs[0])
	assert.Equal(t, "topic-A", first.Topic)
	assert.Equal(t, "Q1", first.Question)
	assert.Equal(t, domain.ForecastStatusOpen, first.Status)
	assert.Equal(t, []string{"base-rates"}, first.MethodologyTags)
	// No horizonTs in the draft: defaults to now + horizonDays.
	assert.Equal(t, time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC), first.HorizonTS)

	second := store.get(res.IDs[1])
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), second.HorizonTS)
}

func TestSeedMalformedReplyDegradesToZero(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{"I cannot produce forecasts right now, sorry."}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "topic-A", Count: 2})
	require.NoError(t, err, "malformed judge output is a degradation, not a failure")
	assert.Equal(t, 0, res.InsertedCount)
	assert.Empty(t, res.IDs)
}

func TestSeedJudgeErrorPropagates(t *testing.T) {
	seeder := newTestSeeder(newFakeStore(), &fakeJudge{replies: []string{"ERR:upstream timeout"}}, nil)

	_, err := seeder.Seed(context.Background(), SeedParams{Topic: "topic-A"})
	require.Error(t, err)
}

func TestSeedClampsProbabilityAndCount(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{
		`{"forecasts":[
			{"question":"Q1","probability":1.7},
			{"question":"Q2","probability":-0.4},
			{"question":"Q3","probability":0.5}
		]}`,
	}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: 2})
	require.NoError(t, err)

	// Count caps how many drafts are taken from the reply.
	assert.Equal(t, 2, res.InsertedCount)
	assert.InDelta(t, 1.0, store.get(res.IDs[0]).Probability, 1e-9)
	assert.InDelta(t, 0.0, store.get(res.IDs[1]).Probability, 1e-9)
}

func TestSeedNegativeCountClampsToOne(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{
		`{"forecasts":[
			{"question":"Q1","probability":0.4},
			{"question":"Q2","probability":0.6}
		]}`,
	}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: -4})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedCount)
}

func TestSeedTagFieldTolerance(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{
		`{"forecasts":[
			{"question":"Q1","probability":0.5,"methodologyTags":"inside-view"},
			{"question":"Q2","probability":0.5,"methodologyTags":{"bad":"shape"}}
		]}`,
	}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: 2})
	require.NoError(t, err)
	require.Equal(t, 2, res.InsertedCount)

	assert.Equal(t, []string{"inside-view"}, store.get(res.IDs[0]).MethodologyTags)
	assert.Empty(t, store.get(res.IDs[1]).MethodologyTags)
}

func TestSeedAttachesEvidenceSources(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{`{"forecasts":[{"question":"Q1","probability":0.5}]}`}}
	g := &fakeGatherer{items: []domain.EvidenceItem{
		{URL: "https://example.com/a", Title: "A", Snippet: "snippet"},
	}}
	seeder := newTestSeeder(store, j, g)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: 1})
	require.NoError(t, err)
	require.Equal(t, 1, res.InsertedCount)

	f := store.get(res.IDs[0])
	require.Len(t, f.Sources, 1)
	assert.Equal(t, "https://example.com/a", f.Sources[0].URL)

	// The evidence block made it into the judge prompt.
	require.Len(t, j.calls, 1)
	assert.Contains(t, j.calls[0][1].Content, "example.com/a")
}

func TestSeedEvidenceFailureIsBestEffort(t *testing.T) {
	store := newFakeStore()
	j := &fakeJudge{replies: []string{`{"forecasts":[{"question":"Q1","probability":0.5}]}`}}
	g := &fakeGatherer{failFor: map[string]bool{"t": true}}
	seeder := newTestSeeder(store, j, g)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedCount)
}

func TestSeedContinuesPastInsertFailures(t *testing.T) {
	store := newFakeStore()
	store.insertErr = domain.ErrNotFound // any error will do
	j := &fakeJudge{replies: []string{`{"forecasts":[{"question":"Q1","probability":0.5}]}`}}
	seeder := newTestSeeder(store, j, nil)

	res, err := seeder.Seed(context.Background(), SeedParams{Topic: "t", Count: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, res.InsertedCount)
}
