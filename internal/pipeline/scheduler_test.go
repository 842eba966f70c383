package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/forecastd/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeResolver struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (f *fakeResolver) ResolveDue(_ context.Context, params service.ResolveParams) (service.ResolveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, params.Limit)
	return service.ResolveResult{}, f.err
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSchedulerClampsInterval(t *testing.T) {
	s := NewScheduler(SchedulerConfig{
		Resolver: &fakeResolver{},
		Interval: time.Second,
		Logger:   testLogger(),
	})
	assert.Equal(t, minInterval, s.Interval())

	s = NewScheduler(SchedulerConfig{
		Resolver: &fakeResolver{},
		Interval: 6 * time.Hour,
		Logger:   testLogger(),
	})
	assert.Equal(t, 6*time.Hour, s.Interval())
}

func TestSchedulerRunOnStart(t *testing.T) {
	resolver := &fakeResolver{}
	s := NewScheduler(SchedulerConfig{
		Resolver:   resolver,
		Interval:   time.Hour,
		RunOnStart: true,
		Limit:      25,
		Logger:     testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return resolver.callCount() == 1 },
		time.Second, 10*time.Millisecond)

	cancel()
	<-done

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	assert.Equal(t, []int{25}, resolver.limits, "tick passes the configured limit through")
}

func TestSchedulerTickSwallowsResolverErrors(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("backend down")}
	s := NewScheduler(SchedulerConfig{
		Resolver:   resolver,
		Interval:   time.Hour,
		RunOnStart: true,
		Logger:     testLogger(),
	})

	// tick must not panic or propagate the error.
	s.tick(context.Background())
	assert.Equal(t, 1, resolver.callCount())
}
