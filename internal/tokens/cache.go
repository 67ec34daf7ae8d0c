package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a token pair is reused before it is fetched again.
	DefaultTTL = 30 * time.Minute
	// DefaultKey names the storage slot holding the cached entry.
	DefaultKey = "tokens"
)

// Fetcher obtains a fresh token pair from the authentication endpoint.
type Fetcher interface {
	FetchTokens(ctx context.Context) (models.TokenPair, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context) (models.TokenPair, error)

func (f FetcherFunc) FetchTokens(ctx context.Context) (models.TokenPair, error) { return f(ctx) }

// State is the caller-visible state of the cache.
type State int

const (
	StatePending State = iota // No tokens yet, fetch pending
	StateFailed               // The last fetch failed
	StateReady                // Tokens available
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFailed:
		return "failed"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the cache state. Err is set only in [StateFailed].
type Status struct {
	State State
	Err   error
}

// Cache hands out a valid [models.TokenPair], fetching a new one when the stored entry is missing or older than the TTL.
//
// Concurrent callers share a single in-flight fetch.
type Cache struct {
	store   models.KVStore
	fetcher Fetcher
	logger  *log.Logger
	now     func() time.Time
	ttl     time.Duration
	key     string

	flight singleflight.Group

	mu     sync.Mutex
	loaded bool // slot read successfully at least once
	entry  *models.CachedTokenEntry
	status Status
}

// Option configures a [Cache].
type Option func(*Cache)

// WithTTL overrides [DefaultTTL].
func WithTTL(ttl time.Duration) Option { return func(c *Cache) { c.ttl = ttl } }

// WithKey overrides [DefaultKey].
func WithKey(key string) Option { return func(c *Cache) { c.key = key } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option { return func(c *Cache) { c.logger = l } }

// NewCache creates a [Cache] persisting to store and refreshing through fetcher.
func NewCache(store models.KVStore, fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		logger:  log.New(io.Discard),
		now:     time.Now,
		ttl:     DefaultTTL,
		key:     DefaultKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns a token pair that is younger than the TTL.
//
// A fresh stored entry is returned without any network call. Otherwise the pair is fetched, persisted, and returned.
// Fetch failures come back as [*shared.TokenAcquisitionError] and leave the stored entry untouched.
func (c *Cache) Tokens(ctx context.Context) (models.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return models.TokenPair{}, err
	}
	c.ensureLoaded(ctx)

	for {
		if pair, ok := c.fresh(); ok {
			return pair, nil
		}

		ch := c.flight.DoChan(c.key, func() (any, error) {
			// another flight may have landed between fresh() and DoChan
			if pair, ok := c.fresh(); ok {
				return pair, nil
			}
			return c.refresh(ctx)
		})

		select {
		case <-ctx.Done():
			return models.TokenPair{}, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				if res.Shared {
					c.logger.Debug("joined in-flight token fetch")
				}
				return res.Val.(models.TokenPair), nil
			}
			// the flight was started by a caller that has since gone away; start our own
			if isContextErr(res.Err) && ctx.Err() == nil {
				continue
			}
			return models.TokenPair{}, res.Err
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Status reports whether tokens are pending, failed, or ready.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.State == StateReady && (c.entry == nil || !c.entry.Fresh(c.now(), c.ttl)) {
		return Status{State: StatePending}
	}
	return c.status
}

// Peek returns the stored entry without fetching. ok is false when the slot is empty or unreadable.
func (c *Cache) Peek(ctx context.Context) (models.CachedTokenEntry, bool, error) {
	entry, err := c.read(ctx)
	if err != nil {
		return models.CachedTokenEntry{}, false, err
	}
	if entry == nil {
		return models.CachedTokenEntry{}, false, nil
	}
	return *entry, true, nil
}

// Fresh reports whether entry would be served without a fetch.
func (c *Cache) Fresh(entry models.CachedTokenEntry) bool {
	return entry.Fresh(c.now(), c.ttl)
}

// ExpiresAt returns when entry stops being served.
func (c *Cache) ExpiresAt(entry models.CachedTokenEntry) time.Time {
	return entry.AcquiredAt.Add(c.ttl)
}

// Invalidate clears the stored entry so the next call to [Cache.Tokens] fetches.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	c.entry = nil
	c.status = Status{State: StatePending}
	return nil
}

// ensureLoaded reads the slot until one read succeeds. A failed read is retried by the next caller.
func (c *Cache) ensureLoaded(ctx context.Context) {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return
	}

	if err := c.load(ctx); err != nil {
		c.logger.Warn("ignoring unreadable token slot", "key", c.key, "error", err)
	}
}

func (c *Cache) load(ctx context.Context) error {
	entry, err := c.read(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	if entry != nil && c.entry == nil {
		c.entry = entry
		if entry.Fresh(c.now(), c.ttl) {
			c.status = Status{State: StateReady}
		}
	}
	return nil
}

func (c *Cache) read(ctx context.Context) (*models.CachedTokenEntry, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	if !ok {
		return nil, nil
	}

	var entry models.CachedTokenEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("%w: corrupt token slot: %v", shared.ErrStorage, err)
	}
	return &entry, nil
}

func (c *Cache) fresh() (models.TokenPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entry != nil && c.entry.Fresh(c.now(), c.ttl) {
		c.status = Status{State: StateReady}
		return c.entry.Tokens, true
	}
	return models.TokenPair{}, false
}

func (c *Cache) refresh(ctx context.Context) (models.TokenPair, error) {
	c.setStatus(Status{State: StatePending})
	c.logger.Info("fetching tokens")

	pair, err := c.fetcher.FetchTokens(ctx)
	if err == nil && !pair.Valid() {
		err = &shared.TokenAcquisitionError{Message: "authentication endpoint returned an empty token"}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.setStatus(Status{State: StatePending})
			return models.TokenPair{}, ctxErr
		}
		var tae *shared.TokenAcquisitionError
		if !errors.As(err, &tae) {
			err = &shared.TokenAcquisitionError{Message: "failed to fetch tokens", Err: err}
		}
		c.logger.Error("token fetch failed", "error", err)
		c.setStatus(Status{State: StateFailed, Err: err})
		return models.TokenPair{}, err
	}

	entry := models.NewCachedTokenEntry(pair, c.acquiredAt(ctx))
	if err := c.persist(ctx, entry); err != nil {
		// the pair is still good for this process even if the slot write failed
		c.logger.Warn("failed to persist tokens", "key", c.key, "error", err)
	}

	c.mu.Lock()
	c.loaded = true
	c.entry = &entry
	c.status = Status{State: StateReady}
	c.mu.Unlock()

	c.logger.Info("tokens acquired", "expires", entry.AcquiredAt.Add(c.ttl).Format(time.Kitchen))
	return pair, nil
}

// acquiredAt stamps a new entry with the current time, but never earlier than the entry it supersedes.
// The slot may be shared with other processes whose clocks disagree with ours.
func (c *Cache) acquiredAt(ctx context.Context) time.Time {
	c.mu.Lock()
	now := c.now()
	var floor time.Time
	if c.entry != nil {
		floor = c.entry.AcquiredAt
	}
	c.mu.Unlock()

	if stored, err := c.read(ctx); err == nil && stored != nil && stored.AcquiredAt.After(floor) {
		floor = stored.AcquiredAt
	}
	if now.Before(floor) {
		c.logger.Debug("clock behind stored entry, keeping previous timestamp", "now", now, "previous", floor)
		return floor
	}
	return now
}

func (c *Cache) persist(ctx context.Context, entry models.CachedTokenEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, c.key, string(raw))
}

func (c *Cache) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}
