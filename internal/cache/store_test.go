package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"alcyxob/fittrack/internal/cache"
	"alcyxob/fittrack/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func counting(calls *int32, value any) cache.Fetcher {
	return func(ctx context.Context) (any, error) {
		atomic.AddInt32(calls, 1)
		return value, nil
	}
}

func TestStore_GetCachesWithinDedupeInterval(t *testing.T) {
	clock := newClock()
	m := metrics.NewTestManager()
	s := cache.New(cache.WithClock(clock.Now), cache.WithDedupeInterval(time.Second), cache.WithMetrics(m))
	key := cache.NewKey("profile", "u1")

	var calls int32
	v, err := s.Get(context.Background(), key, counting(&calls, "first"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = s.Get(context.Background(), key, counting(&calls, "second"))
	require.NoError(t, err)
	assert.Equal(t, "first", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(2 * time.Second)
	v, err = s.Get(context.Background(), key, counting(&calls, "third"))
	require.NoError(t, err)
	assert.Equal(t, "third", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterCacheHits.WithLabelValues("profile")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterCacheMisses.WithLabelValues("profile")))
}

func TestStore_GetDoesNotCacheErrors(t *testing.T) {
	s := cache.New()
	key := cache.NewKey("profile", "u1")
	boom := errors.New("boom")

	_, err := s.Get(context.Background(), key, func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, ok := s.Peek(key)
	assert.False(t, ok)
}

func TestStore_GetCoalescesConcurrentReads(t *testing.T) {
	m := metrics.NewTestManager()
	s := cache.New(cache.WithMetrics(m))
	key := cache.NewKey("workouts", "u1", 0, 10)

	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"w1"}, nil
	}

	const readers = 8
	var wg sync.WaitGroup
	results := make([]any, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Get(context.Background(), key, fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.CounterCacheMisses.WithLabelValues("workouts")) == readers
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, []string{"w1"}, r)
	}
}

func TestFetch_Typed(t *testing.T) {
	s := cache.New()
	key := cache.NewKey("volume", "u1", 7)

	got, err := cache.Fetch(context.Background(), s, key, func(ctx context.Context) ([]int, error) {
		return []int{1, 2, 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	_, err = cache.Fetch(context.Background(), s, key, func(ctx context.Context) (string, error) {
		return "never called", nil
	})
	assert.Error(t, err)
}

func TestStore_InvalidateFamily(t *testing.T) {
	s := cache.New()
	p0 := cache.NewKey("workouts", "u1", 0, 10)
	p1 := cache.NewKey("workouts", "u1", 1, 10)
	other := cache.NewKey("workouts", "u2", 0, 10)
	s.Set(p0, 1)
	s.Set(p1, 2)
	s.Set(other, 3)

	var events []cache.Event
	unsubscribe := s.Subscribe(func(ev cache.Event) { events = append(events, ev) })
	defer unsubscribe()

	s.Invalidate(cache.FamilyMatch(p0.Family()))

	_, ok := s.Peek(p0)
	assert.False(t, ok)
	_, ok = s.Peek(p1)
	assert.False(t, ok)
	v, ok := s.Peek(other)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, cache.ReasonInvalidated, ev.Reason)
	}
}

func TestNewKey(t *testing.T) {
	k := cache.NewKey("workouts", "u1", 3, 10)
	assert.Equal(t, "3,10", k.Params)
	assert.Equal(t, cache.Family{Kind: "workouts", Owner: "u1"}, k.Family())
	assert.Equal(t, "workouts|u1|3,10", k.String())

	assert.True(t, cache.IsLastPage(9, cache.PageSize))
	assert.False(t, cache.IsLastPage(10, cache.PageSize))
}
