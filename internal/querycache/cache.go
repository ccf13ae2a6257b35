package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrUnknownKey is returned when reading a key that was never registered.
var ErrUnknownKey = errors.New("querycache: unknown key")

// ErrClosed is returned for fetches started after Close.
var ErrClosed = errors.New("querycache: closed")

var tracer = otel.Tracer("admindash/querycache")

type entry struct {
	policy Policy
	fetch  func(ctx context.Context) (any, error)

	value     any
	hasValue  bool
	fetchedAt time.Time
	lastErr   error
	invalid   bool

	// issued is the generation of the most recently started fetch, stored the
	// generation of the value held. A result older than stored is dropped, and a
	// result older than minGen cannot make an invalidated key fresh again.
	issued   uint64
	stored   uint64
	minGen   uint64
	inflight int
}

// Cache is a keyed stale-while-revalidate store. Concurrent fetches of one key are
// deduplicated and every key can be polled in the background.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*entry
	order   []Key
	group   singleflight.Group

	now     func() time.Time
	timeout time.Duration
	logger  zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending int
	closed  bool
}

type Option func(*Cache)

// WithClock replaces time.Now for staleness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFetchTimeout bounds every remote fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries: make(map[Key]*entry),
		now:     time.Now,
		logger:  zerolog.Nop(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle is the typed accessor for a registered unit.
type Handle[T any] struct {
	c   *Cache
	key Key
}

// Register adds a unit to the cache. Keys are unique per cache; registering the same
// key twice panics.
func Register[T any](c *Cache, u Unit[T]) Handle[T] {
	key := u.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		panic(fmt.Sprintf("querycache: key %q registered twice", key))
	}
	c.entries[key] = &entry{
		policy: u.Policy(),
		fetch: func(ctx context.Context) (any, error) {
			return u.Fetch(ctx)
		},
	}
	c.order = append(c.order, key)
	return Handle[T]{c: c, key: key}
}

func (h Handle[T]) Key() Key {
	return h.key
}

// Get returns the cached value when fresh. A stale value is returned at once and
// refreshed in the background. A missing or invalidated value blocks on a fetch.
func (h Handle[T]) Get(ctx context.Context) (T, error) {
	var zero T
	v, err := h.c.get(ctx, h.key)
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Peek reports the cached state without starting a fetch.
func (h Handle[T]) Peek() Snapshot[T] {
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[h.key]
	if !ok {
		return Snapshot[T]{State: StateEmpty, Err: fmt.Errorf("%w: %s", ErrUnknownKey, h.key)}
	}
	snap := Snapshot[T]{
		HasValue:  e.hasValue,
		Err:       e.lastErr,
		FetchedAt: e.fetchedAt,
		State:     c.stateLocked(e),
	}
	if e.hasValue {
		snap.Value, _ = e.value.(T)
	}
	return snap
}

func (c *Cache) stateLocked(e *entry) State {
	switch {
	case e.inflight > 0:
		return StateFetching
	case !e.hasValue && e.lastErr != nil:
		return StateFailed
	case !e.hasValue:
		return StateEmpty
	case e.invalid || c.now().Sub(e.fetchedAt) >= e.policy.StaleTime:
		return StateStale
	default:
		return StateFresh
	}
}

func (c *Cache) get(ctx context.Context, key Key) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if e.hasValue && !e.invalid {
		v := e.value
		if c.now().Sub(e.fetchedAt) < e.policy.StaleTime {
			c.mu.Unlock()
			observeRead(key, StateFresh)
			return v, nil
		}
		c.mu.Unlock()
		observeRead(key, StateStale)
		c.refetchInBackground(key)
		return v, nil
	}
	c.mu.Unlock()
	observeRead(key, StateEmpty)
	return c.fetch(ctx, key)
}

// fetch joins or starts the single in-flight fetch for key. The fetch itself runs on
// the cache lifetime so one caller giving up does not fail the others.
func (c *Cache) fetch(ctx context.Context, key Key) (any, error) {
	ch := c.group.DoChan(string(key), func() (any, error) {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		c.wg.Add(1)
		c.mu.Unlock()
		defer c.wg.Done()
		return c.load(key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cache) load(key Key) (any, error) {
	c.mu.Lock()
	e := c.entries[key]
	e.issued++
	gen := e.issued
	e.inflight++
	fetch := e.fetch
	c.mu.Unlock()

	ctx := c.ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx, span := tracer.Start(ctx, "querycache.fetch", trace.WithAttributes(attribute.String("query.key", string(key))))
	defer span.End()

	start := time.Now()
	v, err := fetch(ctx)
	observeFetch(key, start, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.inflight--

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if gen > e.stored {
			e.lastErr = err
		}
		c.logger.Debug().Err(err).Str("key", string(key)).Uint64("generation", gen).Msg("Query fetch failed")
		return nil, err
	}
	if gen <= e.stored {
		// A newer fetch already landed; keep it.
		c.logger.Debug().Str("key", string(key)).Uint64("generation", gen).Uint64("stored", e.stored).Msg("Dropping superseded query result")
		return e.value, nil
	}
	e.value = v
	e.hasValue = true
	e.fetchedAt = c.now()
	e.stored = gen
	e.lastErr = nil
	if gen >= e.minGen {
		e.invalid = false
	}
	return v, nil
}

func (c *Cache) refetchInBackground(key Key) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.pending++
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
			c.wg.Done()
		}()
		if _, err := c.fetch(c.ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", string(key)).Msg("Background refetch failed")
		}
	}()
}

// Invalidate marks keys as untrustworthy, refetches every registered one concurrently
// and returns once all refetches have finished. Unknown keys are ignored.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) error {
	c.mu.Lock()
	targets := make([]Key, 0, len(keys))
	for _, key := range keys {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		e.invalid = true
		e.minGen = e.issued + 1
		// The next fetch must start fresh rather than join one issued before now.
		c.group.Forget(string(key))
		targets = append(targets, key)
	}
	c.mu.Unlock()

	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, key := range targets {
		g.Go(func() error {
			if _, err := c.fetch(ctx, key); err != nil {
				errs[i] = fmt.Errorf("refetch %s: %w", key, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// InvalidateAll invalidates every registered key.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.Invalidate(ctx, c.Keys()...)
}

// Keys lists registered keys in registration order.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Key(nil), c.order...)
}

// Start launches one poller per registered key. Pollers stop when ctx is done or the
// cache is closed. Units registered after Start are not polled.
func (c *Cache) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, key := range c.order {
		interval := c.entries[key].policy.PollInterval
		if interval <= 0 {
			continue
		}
		c.wg.Add(1)
		go c.poll(ctx, key, interval)
	}
}

func (c *Cache) poll(ctx context.Context, key Key, interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := c.fetch(c.ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", string(key)).Msg("Scheduled poll failed")
		}
	}
}

// Wait blocks until pollers and background refetches have returned. Pollers only
// return once their context ends, so callers normally pair it with Close.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// WaitIdle blocks until no fetch of any registered key is in flight. Useful after a
// stale read to observe the background refetch it started.
func (c *Cache) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		busy := c.pending > 0
		for _, e := range c.entries {
			if e.inflight > 0 {
				busy = true
				break
			}
		}
		c.mu.Unlock()
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close cancels pollers and in-flight fetches and waits for them to return. Later
// fetches fail with ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
