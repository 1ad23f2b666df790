package swr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newOrchestrator(t *testing.T) (*Orchestrator[string], *fakeClock, *Supervisor) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	supervisor := NewSupervisor(logger)
	t.Cleanup(supervisor.Close)

	store := cache.NewStore[string](cache.StoreConfig{Name: "swr-test", Clock: clock.Now, Logger: logger})
	o := New(Config[string]{
		Name:       "swr-test",
		Store:      store,
		Supervisor: supervisor,
		Logger:     logger,
		Clock:      clock.Now,
	})
	return o, clock, supervisor
}

func constant(v string, calls *atomic.Int32) Fetcher[string] {
	return func(ctx context.Context) (string, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestResolve_MissThenHit(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	var calls atomic.Int32

	res, err := o.Resolve(context.Background(), "k", constant("v1", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheMiss, res.Status)
	assert.Equal(t, "v1", res.Data)

	res, err = o.Resolve(context.Background(), "k", constant("v2", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheHit, res.Status)
	assert.Equal(t, "v1", res.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_StaleReturnsImmediatelyAndRefreshes(t *testing.T) {
	o, clock, supervisor := newOrchestrator(t)
	var calls atomic.Int32

	_, err := o.Resolve(context.Background(), "k", constant("old", &calls), time.Minute)
	require.NoError(t, err)
	clock.Advance(90 * time.Second)

	release := make(chan struct{})
	blocking := func(ctx context.Context) (string, error) {
		<-release
		return "new", nil
	}

	done := make(chan Result[string], 1)
	go func() {
		res, err := o.Resolve(context.Background(), "k", blocking, time.Minute)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case res := <-done:
		assert.Equal(t, types.CacheStale, res.Status)
		assert.Equal(t, "old", res.Data)
	case <-time.After(time.Second):
		t.Fatal("stale resolve waited on the refresh")
	}

	close(release)
	supervisor.Wait()

	res, err := o.Resolve(context.Background(), "k", constant("unused", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheHit, res.Status)
	assert.Equal(t, "new", res.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_BackgroundFailureIsSwallowed(t *testing.T) {
	o, clock, supervisor := newOrchestrator(t)
	var calls atomic.Int32

	_, err := o.Resolve(context.Background(), "k", constant("old", &calls), time.Minute)
	require.NoError(t, err)
	clock.Advance(90 * time.Second)

	failing := func(ctx context.Context) (string, error) { return "", errors.New("upstream down") }

	res, err := o.Resolve(context.Background(), "k", failing, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheStale, res.Status)
	supervisor.Wait()

	res, err = o.Resolve(context.Background(), "k", failing, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheStale, res.Status)
	assert.Equal(t, "old", res.Data)
	supervisor.Wait()
}

func TestResolve_MissErrorPropagatesAndIsNotCached(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	boom := errors.New("boom")

	_, err := o.Resolve(context.Background(), "k", func(ctx context.Context) (string, error) { return "", boom }, time.Minute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, o.Store().Len())

	var calls atomic.Int32
	res, err := o.Resolve(context.Background(), "k", constant("ok", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheMiss, res.Status)
	assert.Equal(t, "ok", res.Data)
}

func TestResolve_ConcurrentMissesShareOneFetch(t *testing.T) {
	o, _, _ := newOrchestrator(t)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Resolve(context.Background(), "k", fetch, time.Minute)
			assert.NoError(t, err)
			assert.Equal(t, "v", res.Data)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_ExpiredEntryBlocks(t *testing.T) {
	o, clock, _ := newOrchestrator(t)
	var calls atomic.Int32

	_, err := o.Resolve(context.Background(), "k", constant("old", &calls), time.Minute)
	require.NoError(t, err)
	clock.Advance(3 * time.Minute)

	res, err := o.Resolve(context.Background(), "k", constant("new", &calls), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.CacheMiss, res.Status)
	assert.Equal(t, "new", res.Data)
}

func TestSupervisor_SpawnAfterCloseIsDropped(t *testing.T) {
	s := NewSupervisor(zaptest.NewLogger(t))

	var ran atomic.Bool
	require.True(t, s.Spawn("task", "k", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))
	s.Wait()
	assert.True(t, ran.Load())

	s.Close()
	assert.False(t, s.Spawn("task", "k", func(ctx context.Context) error { return nil }))
}

func TestSupervisor_CloseCancelsTasks(t *testing.T) {
	s := NewSupervisor(zaptest.NewLogger(t))

	started := make(chan struct{})
	s.Spawn("task", "k", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	s.Close()
}

func TestSupervisor_RecoversPanics(t *testing.T) {
	s := NewSupervisor(zaptest.NewLogger(t))
	defer s.Close()

	s.Spawn("task", "k", func(ctx context.Context) error { panic("kaboom") })
	s.Wait()
}
