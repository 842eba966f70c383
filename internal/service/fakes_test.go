package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/evidence"
	"github.com/forecastlab/forecastd/internal/judge"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory ForecastStore enforcing the same one-way status
// transition as the real adapter.
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	forecasts map[string]domain.Forecast
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{forecasts: make(map[string]domain.Forecast)}
}

func (s *fakeStore) Insert(_ context.Context, f domain.Forecast) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return "", s.insertErr
	}
	s.seq++
	f.ID = fmt.Sprintf("f-%d", s.seq)
	if f.Status == "" {
		f.Status = domain.ForecastStatusOpen
	}
	s.forecasts[f.ID] = f
	return f.ID, nil
}

func (s *fakeStore) List(_ context.Context, filter domain.ForecastFilter) ([]domain.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Forecast
	for _, f := range s.forecasts {
		if filter.Status != "" && f.Status != filter.Status {
			continue
		}
		if filter.Topic != "" && f.Topic != filter.Topic {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Forecast
	for _, f := range s.forecasts {
		if f.Due(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HorizonTS.Before(out[j].HorizonTS) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) Resolve(_ context.Context, id string, res domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forecasts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if f.Status != domain.ForecastStatusOpen {
		return domain.ErrAlreadyResolved
	}
	f.Status = domain.ForecastStatusResolved
	f.Outcome = res.Outcome
	f.Judge = res.Judge
	resolvedAt := res.ResolvedAt
	f.ResolvedAt = &resolvedAt
	f.BrierScore = res.BrierScore
	if res.Notes != "" {
		f.Notes = res.Notes
	}
	s.forecasts[id] = f
	return nil
}

func (s *fakeStore) get(id string) domain.Forecast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forecasts[id]
}

// fakeJudge pops canned replies in order. A reply of the form "ERR:..." is
// returned as an error instead.
type fakeJudge struct {
	mu      sync.Mutex
	replies []string
	calls   [][]judge.Message
}

func (j *fakeJudge) Complete(_ context.Context, messages []judge.Message) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, messages)
	if len(j.replies) == 0 {
		return "", fmt.Errorf("fake judge: no reply queued")
	}
	reply := j.replies[0]
	j.replies = j.replies[1:]
	if len(reply) > 4 && reply[:4] == "ERR:" {
		return "", fmt.Errorf("%s", reply[4:])
	}
	return reply, nil
}

// fakeGatherer returns canned items, or an error for questions in failFor.
type fakeGatherer struct {
	items   []domain.EvidenceItem
	failFor map[string]bool
}

func (g *fakeGatherer) Search(_ context.Context, question string, _ evidence.SearchOpts) ([]domain.EvidenceItem, error) {
	if g.failFor[question] {
		return nil, fmt.Errorf("search backend unavailable")
	}
	return g.items, nil
}

// fakeLocks hands out locks unless held is set.
type fakeLocks struct {
	mu       sync.Mutex
	held     bool
	acquired int
}

func (l *fakeLocks) Acquire(_ context.Context, _ string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.acquired++
	return func() {}, nil
}
