package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/repositories"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPair = models.TokenPair{PrimaryToken: "pdc-123", SecondaryToken: "crm-456"}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingStore wraps a MemoryStore and counts writes.
type countingStore struct {
	*repositories.MemoryStore
	sets atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	s.sets.Add(1)
	return s.MemoryStore.Set(ctx, key, value)
}

// flakyStore fails the first failures calls to Get.
type flakyStore struct {
	*repositories.MemoryStore
	failures atomic.Int32
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failures.Add(-1) >= 0 {
		return "", false, errors.New("database is locked")
	}
	return s.MemoryStore.Get(ctx, key)
}

type countingFetcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (models.TokenPair, error)
}

func (f *countingFetcher) FetchTokens(ctx context.Context) (models.TokenPair, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx)
	}
	return testPair, nil
}

func seed(t *testing.T, store models.KVStore, entry models.CachedTokenEntry) {
	t.Helper()
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), DefaultKey, string(raw)))
}

func TestCacheTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh stored entry is served without fetching", func(t *testing.T) {
		clock := newFakeClock()
		store := &countingStore{MemoryStore: repositories.NewMemoryStore()}
		seed(t, store, models.NewCachedTokenEntry(testPair, clock.Now().Add(-29*time.Minute)))
		store.sets.Store(0)

		fetcher := &countingFetcher{}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		pair, err := cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Zero(t, fetcher.calls.Load())
		assert.Zero(t, store.sets.Load())
		assert.Equal(t, StateReady, cache.Status().State)
	})

	t.Run("entry exactly ttl old is refetched", func(t *testing.T) {
		clock := newFakeClock()
		store := repositories.NewMemoryStore()
		seed(t, store, models.NewCachedTokenEntry(models.TokenPair{PrimaryToken: "old", SecondaryToken: "old"}, clock.Now().Add(-DefaultTTL)))

		fetcher := &countingFetcher{}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		pair, err := cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("missing entry is fetched and persisted", func(t *testing.T) {
		clock := newFakeClock()
		store := repositories.NewMemoryStore()
		fetcher := &countingFetcher{}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		_, err := cache.Tokens(ctx)
		require.NoError(t, err)

		raw, ok, err := store.Get(ctx, DefaultKey)
		require.NoError(t, err)
		require.True(t, ok)

		var entry models.CachedTokenEntry
		require.NoError(t, json.Unmarshal([]byte(raw), &entry))
		assert.Equal(t, testPair, entry.Tokens)
		assert.True(t, entry.AcquiredAt.Equal(clock.Now()))

		clock.Advance(10 * time.Minute)
		_, err = cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(1), fetcher.calls.Load())

		clock.Advance(20 * time.Minute)
		_, err = cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(2), fetcher.calls.Load())
	})

	t.Run("corrupt slot is treated as empty", func(t *testing.T) {
		store := repositories.NewMemoryStore()
		require.NoError(t, store.Set(ctx, DefaultKey, "{not json"))

		fetcher := &countingFetcher{}
		cache := NewCache(store, fetcher)

		pair, err := cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("failed slot read is retried", func(t *testing.T) {
		clock := newFakeClock()
		store := &flakyStore{MemoryStore: repositories.NewMemoryStore()}
		seed(t, store, models.NewCachedTokenEntry(testPair, clock.Now().Add(-time.Minute)))
		store.failures.Store(1)

		fetcher := &countingFetcher{fn: func(context.Context) (models.TokenPair, error) {
			return models.TokenPair{}, errors.New("connection refused")
		}}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		_, err := cache.Tokens(ctx)
		assert.ErrorIs(t, err, shared.ErrTokenAcquisition)
		assert.Equal(t, int32(1), fetcher.calls.Load())

		pair, err := cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("custom key", func(t *testing.T) {
		store := repositories.NewMemoryStore()
		cache := NewCache(store, &countingFetcher{}, WithKey("staging"))

		_, err := cache.Tokens(ctx)
		require.NoError(t, err)

		_, ok, _ := store.Get(ctx, "staging")
		assert.True(t, ok)
		_, ok, _ = store.Get(ctx, DefaultKey)
		assert.False(t, ok)
	})
}

func TestCacheConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	fetcher := &countingFetcher{fn: func(ctx context.Context) (models.TokenPair, error) {
		<-release
		return testPair, nil
	}}
	store := &countingStore{MemoryStore: repositories.NewMemoryStore()}
	cache := NewCache(store, fetcher)

	const callers = 25
	var wg sync.WaitGroup
	results := make([]models.TokenPair, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Tokens(context.Background())
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, testPair, results[i])
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, int32(1), store.sets.Load())
}

func TestCacheFetchFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("failure leaves stored entry untouched", func(t *testing.T) {
		clock := newFakeClock()
		store := &countingStore{MemoryStore: repositories.NewMemoryStore()}
		stale := models.NewCachedTokenEntry(testPair, clock.Now().Add(-time.Hour))
		seed(t, store, stale)
		before, _, _ := store.Get(ctx, DefaultKey)
		store.sets.Store(0)

		cause := errors.New("connection refused")
		fetcher := &countingFetcher{fn: func(context.Context) (models.TokenPair, error) {
			return models.TokenPair{}, cause
		}}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		_, err := cache.Tokens(ctx)
		require.Error(t, err)

		var tae *shared.TokenAcquisitionError
		require.ErrorAs(t, err, &tae)
		assert.ErrorIs(t, err, shared.ErrTokenAcquisition)
		assert.ErrorIs(t, err, cause)

		after, _, _ := store.Get(ctx, DefaultKey)
		assert.Equal(t, before, after)
		assert.Zero(t, store.sets.Load())

		status := cache.Status()
		assert.Equal(t, StateFailed, status.State)
		assert.ErrorIs(t, status.Err, shared.ErrTokenAcquisition)
	})

	t.Run("typed error passes through unchanged", func(t *testing.T) {
		want := &shared.TokenAcquisitionError{Message: "status 503"}
		cache := NewCache(repositories.NewMemoryStore(), FetcherFunc(func(context.Context) (models.TokenPair, error) {
			return models.TokenPair{}, want
		}))

		_, err := cache.Tokens(ctx)
		assert.Same(t, want, err)
	})

	t.Run("empty token is a failure", func(t *testing.T) {
		store := &countingStore{MemoryStore: repositories.NewMemoryStore()}
		cache := NewCache(store, FetcherFunc(func(context.Context) (models.TokenPair, error) {
			return models.TokenPair{PrimaryToken: "only-one"}, nil
		}))

		_, err := cache.Tokens(ctx)
		assert.ErrorIs(t, err, shared.ErrTokenAcquisition)
		assert.Zero(t, store.sets.Load())
	})

	t.Run("next call retries after failure", func(t *testing.T) {
		var fail atomic.Bool
		fail.Store(true)
		fetcher := &countingFetcher{fn: func(context.Context) (models.TokenPair, error) {
			if fail.Load() {
				return models.TokenPair{}, errors.New("boom")
			}
			return testPair, nil
		}}
		cache := NewCache(repositories.NewMemoryStore(), fetcher)

		_, err := cache.Tokens(ctx)
		require.Error(t, err)

		fail.Store(false)
		pair, err := cache.Tokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Equal(t, int32(2), fetcher.calls.Load())
		assert.Equal(t, StateReady, cache.Status().State)
	})
}

func TestCacheCancellation(t *testing.T) {
	t.Run("waiter gives up without affecting the fetch", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		fetcher := &countingFetcher{fn: func(ctx context.Context) (models.TokenPair, error) {
			close(started)
			<-release
			return testPair, nil
		}}
		cache := NewCache(repositories.NewMemoryStore(), fetcher)

		done := make(chan error, 1)
		go func() {
			_, err := cache.Tokens(context.Background())
			done <- err
		}()
		<-started

		waiterCtx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := cache.Tokens(waiterCtx)
		assert.ErrorIs(t, err, context.Canceled)

		close(release)
		require.NoError(t, <-done)
		assert.Equal(t, StateReady, cache.Status().State)
		assert.Equal(t, int32(1), fetcher.calls.Load())
	})

	t.Run("cancelled first caller does not hide the stored entry", func(t *testing.T) {
		clock := newFakeClock()
		store := repositories.NewMemoryStore()
		seed(t, store, models.NewCachedTokenEntry(testPair, clock.Now()))

		fetcher := &countingFetcher{fn: func(context.Context) (models.TokenPair, error) {
			return models.TokenPair{PrimaryToken: "x", SecondaryToken: "y"}, nil
		}}
		cache := NewCache(store, fetcher, WithClock(clock.Now))

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := cache.Tokens(cancelled)
		assert.ErrorIs(t, err, context.Canceled)

		pair, err := cache.Tokens(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testPair, pair)
		assert.Zero(t, fetcher.calls.Load())
	})

	t.Run("cancelled fetch writes nothing", func(t *testing.T) {
		store := &countingStore{MemoryStore: repositories.NewMemoryStore()}
		fetcher := &countingFetcher{fn: func(ctx context.Context) (models.TokenPair, error) {
			<-ctx.Done()
			return models.TokenPair{}, ctx.Err()
		}}
		cache := NewCache(store, fetcher)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := cache.Tokens(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Zero(t, store.sets.Load())
		assert.Equal(t, StatePending, cache.Status().State)
	})
}

func TestCacheAcquiredAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := repositories.NewMemoryStore()
	seed(t, store, models.NewCachedTokenEntry(testPair, clock.Now().Add(-time.Hour)))

	// another process with a faster clock writes while our fetch is in flight
	ahead := clock.Now().Add(5 * time.Minute)
	fetcher := &countingFetcher{fn: func(ctx context.Context) (models.TokenPair, error) {
		seed(t, store, models.NewCachedTokenEntry(testPair, ahead))
		return models.TokenPair{PrimaryToken: "new", SecondaryToken: "new"}, nil
	}}
	cache := NewCache(store, fetcher, WithClock(clock.Now))

	pair, err := cache.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", pair.PrimaryToken)

	entry, ok, err := cache.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", entry.Tokens.PrimaryToken)
	assert.True(t, entry.AcquiredAt.Equal(ahead))

	t.Run("normal refresh uses the clock", func(t *testing.T) {
		clock.Advance(time.Hour)
		_, err := NewCache(store, &countingFetcher{}, WithClock(clock.Now)).Tokens(ctx)
		require.NoError(t, err)

		entry, _, err := cache.Peek(ctx)
		require.NoError(t, err)
		assert.True(t, entry.AcquiredAt.Equal(clock.Now()))
	})
}

func TestCacheInvalidateAndPeek(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := repositories.NewMemoryStore()
	fetcher := &countingFetcher{}
	cache := NewCache(store, fetcher, WithClock(clock.Now))

	_, ok, err := cache.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatePending, cache.Status().State)

	_, err = cache.Tokens(ctx)
	require.NoError(t, err)

	entry, ok, err := cache.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cache.Fresh(entry))
	assert.Equal(t, clock.Now().Add(DefaultTTL), cache.ExpiresAt(entry))

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err = cache.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StatePending, cache.Status().State)

	_, err = cache.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestStatusExpires(t *testing.T) {
	clock := newFakeClock()
	cache := NewCache(repositories.NewMemoryStore(), &countingFetcher{}, WithClock(clock.Now))

	_, err := cache.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateReady, cache.Status().State)

	clock.Advance(DefaultTTL)
	assert.Equal(t, StatePending, cache.Status().State)
	assert.Equal(t, "pending", cache.Status().State.String())
}
