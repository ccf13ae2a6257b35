package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type countingSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (s *countingSource) Fetch(context.Context) (int, error) {
	n := s.calls.Add(1)
	if s.fail.Load() {
		return 0, errors.New("transport down")
	}
	return int(n), nil
}

var testPolicy = Policy{StaleTime: 30 * time.Second, PollInterval: 60 * time.Second}

func newCountingUnit(key Key, src *countingSource) FuncUnit[int] {
	return FuncUnit[int]{K: key, P: testPolicy, F: src.Fetch}
}

func waitIdle(t *testing.T, c *Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIdle(ctx))
}

func TestGetWithinStaleWindowServesCache(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	defer c.Close()
	src := &countingSource{}
	h := Register[int](c, newCountingUnit("stats", src))

	ctx := context.Background()
	v, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(29 * time.Second)
	v, err = h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, StateFresh, h.Peek().State)
}

func TestGetAfterStaleWindowServesStaleAndRefetchesOnce(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	defer c.Close()
	src := &countingSource{}
	h := Register[int](c, newCountingUnit("stats", src))

	ctx := context.Background()
	_, err := h.Get(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	v, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "stale value is served while revalidating")

	waitIdle(t, c)
	assert.Equal(t, int32(2), src.calls.Load())

	v, err = h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestInvalidateForcesExactlyOneFetch(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	defer c.Close()
	src := &countingSource{}
	h := Register[int](c, newCountingUnit("inbox", src))

	ctx := context.Background()
	_, err := h.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "inbox"))
	assert.Equal(t, int32(2), src.calls.Load())

	v, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestInvalidateIgnoresUnknownKeysAndIsRepeatable(t *testing.T) {
	c := New()
	defer c.Close()
	src := &countingSource{}
	h := Register[int](c, newCountingUnit("inbox", src))

	ctx := context.Background()
	require.NoError(t, c.Invalidate(ctx, "nope"))
	require.NoError(t, c.Invalidate(ctx, "inbox"))
	require.NoError(t, c.Invalidate(ctx, "inbox"))

	v, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestConcurrentReadsShareOneFetch(t *testing.T) {
	c := New()
	defer c.Close()

	release := make(chan struct{})
	var calls atomic.Int32
	h := Register[string](c, FuncUnit[string]{
		K: "presence",
		P: testPolicy,
		F: func(ctx context.Context) (string, error) {
			calls.Add(1)
			<-release
			return "ok", nil
		},
	})

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := h.Get(context.Background())
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	// Give the remaining readers time to join the in-flight fetch.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "ok", r)
	}
}

func TestOlderFetchNeverOverwritesNewer(t *testing.T) {
	c := New()
	defer c.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	h := Register[string](c, FuncUnit[string]{
		K: "stripe",
		P: testPolicy,
		F: func(ctx context.Context) (string, error) {
			if calls.Add(1) == 1 {
				close(started)
				<-release
				return "old", nil
			}
			return "new", nil
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.Get(context.Background())
	}()
	<-started

	require.NoError(t, c.Invalidate(context.Background(), "stripe"))
	close(release)
	<-done

	snap := h.Peek()
	assert.Equal(t, "new", snap.Value)
	assert.Equal(t, StateFresh, snap.State)
}

func TestFailureWithoutValueIsReported(t *testing.T) {
	c := New()
	defer c.Close()
	src := &countingSource{}
	src.fail.Store(true)
	h := Register[int](c, newCountingUnit("pending", src))

	_, err := h.Get(context.Background())
	require.Error(t, err)

	snap := h.Peek()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.HasValue)
	assert.EqualError(t, snap.Err, "transport down")

	// The next read retries.
	src.fail.Store(false)
	v, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.NoError(t, h.Peek().Err)
}

func TestBackgroundFailureKeepsLastGoodValue(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	defer c.Close()
	src := &countingSource{}
	h := Register[int](c, newCountingUnit("stats", src))

	ctx := context.Background()
	_, err := h.Get(ctx)
	require.NoError(t, err)

	src.fail.Store(true)
	clock.Advance(time.Minute)
	v, err := h.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	waitIdle(t, c)

	snap := h.Peek()
	assert.True(t, snap.HasValue)
	assert.Equal(t, 1, snap.Value)
	assert.Equal(t, StateStale, snap.State)
	assert.Error(t, snap.Err)
}

func TestFetchTimeout(t *testing.T) {
	c := New(WithFetchTimeout(10 * time.Millisecond))
	defer c.Close()
	h := Register[int](c, FuncUnit[int]{
		K: "slow",
		P: testPolicy,
		F: func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		},
	})

	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartPollsUntilClosed(t *testing.T) {
	c := New()
	src := &countingSource{}
	Register[int](c, FuncUnit[int]{
		K: "presence",
		P: Policy{StaleTime: 10 * time.Millisecond, PollInterval: 5 * time.Millisecond},
		F: src.Fetch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	c.Close()

	after := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, src.calls.Load(), "no polls after Close")
}

func TestRegisterTwicePanics(t *testing.T) {
	c := New()
	defer c.Close()
	src := &countingSource{}
	Register[int](c, newCountingUnit("dup", src))
	assert.Panics(t, func() { Register[int](c, newCountingUnit("dup", src)) })
}

func TestUnknownKeyHandle(t *testing.T) {
	c := New()
	defer c.Close()
	h := Handle[int]{c: c, key: "missing"}
	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestCloseWaitsForCallerStartedFetch(t *testing.T) {
	c := New()
	started := make(chan struct{})
	var finished atomic.Bool
	h := Register[int](c, FuncUnit[int]{
		K: "slow",
		P: testPolicy,
		F: func(ctx context.Context) (int, error) {
			close(started)
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			finished.Store(true)
			return 0, ctx.Err()
		},
	})

	getCtx, cancel := context.WithCancel(context.Background())
	go func() { _, _ = h.Get(getCtx) }()
	<-started
	cancel()

	c.Close()
	assert.True(t, finished.Load(), "Close returns only after the fetch has stopped")

	_, err := h.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
