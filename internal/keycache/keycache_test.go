package keycache

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
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(time.Minute, WithClock(clock.Now))

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_EvictsOldest(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(time.Hour, WithClock(clock.Now), WithMaxSize(2))

	c.Set("a", "1")
	clock.Advance(time.Second)
	c.Set("b", "2")
	clock.Advance(time.Second)
	c.Set("c", "3")

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	c.Set("c", "33")
	assert.Equal(t, 2, c.Len())
}

func TestCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	c := New(30*time.Second, WithClock(clock.Now))
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return "secret", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(context.Background(), "key-url", load)
		require.NoError(t, err)
		assert.Equal(t, "secret", v)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(31 * time.Second)
	_, err := c.GetOrLoad(context.Background(), "key-url", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCache_GetOrLoadSharesInFlightLoad(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "secret", nil
	}

	values := make([]string, 8)
	var wg sync.WaitGroup
	for i := range values {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "key-url", load)
			assert.NoError(t, err)
			values[i] = v
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range values {
		assert.Equal(t, "secret", v)
	}
}

func TestCache_GetOrLoadSurvivesCancelledLeader(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	started := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "secret", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(leaderCtx, "k", load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		value string
		err   error
	}
	follower := make(chan result, 1)
	go func() {
		v, err := c.GetOrLoad(context.Background(), "k", load)
		follower <- result{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "secret", res.value)
}

func TestCache_LoadErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	boom := errors.New("boom")

	_, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCache_IsolatedInstances(t *testing.T) {
	t.Parallel()

	a := New(time.Minute)
	b := New(time.Minute)
	a.Set("k", "from-a")

	_, ok := b.Get("k")
	assert.False(t, ok)
}

func TestCache_NilIsEmpty(t *testing.T) {
	t.Parallel()

	var c *Cache
	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (string, error) { return "v", nil })
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New(time.Minute, WithMaxSize(10))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%20))
			c.Set(key, key)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 10)
}
