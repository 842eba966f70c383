package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/domain"
)

var resolveNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestResolver(store *fakeStore, j *fakeJudge, g *fakeGatherer, locks *fakeLocks) *Resolver {
	cfg := ResolverConfig{
		Store:  store,
		Judge:  j,
		Logger: testLogger(),
	}
	if g != nil {
		cfg.Gatherer = g
	}
	if locks != nil {
		cfg.Locks = locks
	}
	r := NewResolver(cfg)
	r.now = func() time.Time { return resolveNow }
	return r
}

func openForecast(t *testing.T, store *fakeStore, question string, prob float64, horizon time.Time) string {
	t.Helper()
	id, err := store.Insert(context.Background(), domain.Forecast{
		Topic:       "test",
		Question:    question,
		Probability: prob,
		HorizonTS:   horizon,
		Status:      domain.ForecastStatusOpen,
	})
	require.NoError(t, err)
	return id
}

func TestResolveDueScoresAndPersists(t *testing.T) {
	store := newFakeStore()
	id := openForecast(t, store, "Q1", 0.7, resolveNow.Add(-time.Hour))
	j := &fakeJudge{replies: []string{`{"outcome":"yes","confidence":0.9,"notes":"sources agree"}`}}
	resolver := newTestResolver(store, j, nil, nil)

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{Limit: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Resolved)
	require.Len(t, res.Details, 1)
	assert.Equal(t, id, res.Details[0].ID)
	assert.Equal(t, domain.OutcomeYes, res.Details[0].Outcome)
	require.NotNil(t, res.Details[0].BrierScore)
	assert.InDelta(t, 0.09, *res.Details[0].BrierScore, 1e-9)

	// The batch detail carries the full verdict, not just the outcome.
	require.NotNil(t, res.Details[0].Judge)
	assert.Equal(t, "yes", res.Details[0].Judge.Outcome)
	assert.InDelta(t, 0.9, res.Details[0].Judge.Confidence, 1e-9)
	assert.Equal(t, "sources agree", res.Details[0].Judge.Notes)

	f := store.get(id)
	assert.Equal(t, domain.ForecastStatusResolved, f.Status)
	assert.Equal(t, domain.OutcomeYes, f.Outcome)
	require.NotNil(t, f.BrierScore)
	assert.InDelta(t, 0.09, *f.BrierScore, 1e-9)
	require.NotNil(t, f.Judge)
	assert.InDelta(t, 0.9, f.Judge.Confidence, 1e-9)
}

func TestResolveDueBatchSurvivesItemFailure(t *testing.T) {
	store := newFakeStore()
	openForecast(t, store, "Q1", 0.5, resolveNow.Add(-3*time.Hour))
	id2 := openForecast(t, store, "Q2", 0.5, resolveNow.Add(-2*time.Hour))
	openForecast(t, store, "Q3", 0.5, resolveNow.Add(-time.Hour))

	j := &fakeJudge{replies: []string{
		`{"outcome":"yes","confidence":0.8}`,
		`{"outcome":"no","confidence":0.8}`,
	}}
	g := &fakeGatherer{failFor: map[string]bool{"Q2": true}}
	resolver := newTestResolver(store, j, g, nil)

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Resolved)
	require.Len(t, res.Details, 3)

	var failed *ResolveDetail
	for i := range res.Details {
		if res.Details[i].ID == id2 {
			failed = &res.Details[i]
		}
	}
	require.NotNil(t, failed)
	assert.NotEmpty(t, failed.Err)
	assert.Empty(t, failed.Outcome)

	assert.Equal(t, domain.ForecastStatusOpen, store.get(id2).Status)
}

func TestResolveDueMalformedVerdictFallsBackToUnknown(t *testing.T) {
	store := newFakeStore()
	id := openForecast(t, store, "Q1", 0.7, resolveNow.Add(-time.Hour))
	j := &fakeJudge{replies: []string{"it is hard to say either way"}}
	resolver := newTestResolver(store, j, nil, nil)

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{})
	require.NoError(t, err)

	// Unknown still settles the forecast, with a nil Brier score.
	assert.Equal(t, 1, res.Resolved)
	require.Len(t, res.Details, 1)
	require.NotNil(t, res.Details[0].Judge)
	assert.Equal(t, "it is hard to say either way", res.Details[0].Judge.Raw)

	f := store.get(id)
	assert.Equal(t, domain.ForecastStatusResolved, f.Status)
	assert.Equal(t, domain.OutcomeUnknown, f.Outcome)
	assert.Nil(t, f.BrierScore)
	require.NotNil(t, f.Judge)
	assert.Equal(t, "it is hard to say either way", f.Judge.Raw)
	assert.InDelta(t, fallbackConfidence, f.Judge.Confidence, 1e-9)
}

func TestResolveDueSkipsWhenLockHeld(t *testing.T) {
	store := newFakeStore()
	openForecast(t, store, "Q1", 0.5, resolveNow.Add(-time.Hour))
	resolver := newTestResolver(store, &fakeJudge{}, nil, &fakeLocks{held: true})

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Resolved)
	assert.Empty(t, res.Details)
	assert.Equal(t, domain.ForecastStatusOpen, store.get("f-1").Status)
}

func TestResolveDueAlreadyResolvedCountsAsSkip(t *testing.T) {
	store := newFakeStore()
	id := openForecast(t, store, "Q1", 0.5, resolveNow.Add(-time.Hour))
	// A concurrent run settles the forecast first.
	require.NoError(t, store.Resolve(context.Background(), id, domain.Resolution{
		Outcome:    domain.OutcomeNo,
		ResolvedAt: resolveNow,
	}))
	j := &fakeJudge{replies: []string{`{"outcome":"yes","confidence":0.9}`}}
	resolver := newTestResolver(store, j, nil, nil)

	// resolveOne still holds the stale open snapshot read before the race;
	// the conditional store update reports the skip, not an error.
	stale := store.get(id)
	stale.Status = domain.ForecastStatusOpen
	detail, resolved := resolver.resolveOne(context.Background(), stale, false)
	assert.Nil(t, detail)
	assert.False(t, resolved)
	assert.Equal(t, domain.OutcomeNo, store.get(id).Outcome, "first resolution wins")
}

func TestResolveDueRespectsLimit(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		openForecast(t, store, "Q", 0.5, resolveNow.Add(-time.Duration(i+1)*time.Hour))
	}
	j := &fakeJudge{replies: []string{
		`{"outcome":"yes","confidence":0.9}`,
		`{"outcome":"yes","confidence":0.9}`,
	}}
	resolver := newTestResolver(store, j, nil, nil)

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Resolved)
}

func TestResolveDueNegativeLimitClampsToOne(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 3; i++ {
		openForecast(t, store, "Q", 0.5, resolveNow.Add(-time.Duration(i+1)*time.Hour))
	}
	j := &fakeJudge{replies: []string{`{"outcome":"yes","confidence":0.9}`}}
	resolver := newTestResolver(store, j, nil, nil)

	res, err := resolver.ResolveDue(context.Background(), ResolveParams{Limit: -7})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)
	require.Len(t, res.Details, 1)
}
