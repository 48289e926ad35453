package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/gateway"
	"github.com/kjstillabower/weather-zones/internal/observability"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Entry is a point-in-time view of one cache key. After a failed refetch,
// Data still holds the last good payload so views never flash to empty.
type Entry struct {
	Key       string
	Status    Status
	Data      json.RawMessage
	Err       error
	UpdatedAt time.Time
}

// Fetcher produces the payload for a key, typically a gateway call.
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// QueryOptions tune a single read.
type QueryOptions struct {
	// TTL is the freshness window; 0 uses the engine default.
	TTL time.Duration
	// Disabled marks the read's required parameters as missing or invalid:
	// the engine issues no call and reports an idle entry.
	Disabled bool
}

// Config holds engine-wide defaults.
type Config struct {
	DefaultTTL     time.Duration // 30s when zero
	RetryAttempts  int           // extra attempts after the first failure; 3 when zero
	RetryBaseDelay time.Duration // 1s when zero
	RetryMaxDelay  time.Duration // 30s when zero
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 30 * time.Second
	}
	return c
}

type entryState struct {
	status    Status
	data      json.RawMessage
	err       error
	updatedAt time.Time
	staleAt   time.Time
	inflight  chan struct{} // closed when the current fetch settles; nil when none
}

type subscription struct {
	prefix string
	fn     func(Entry)
}

// Engine is the keyed store of remote-resource results: it serves fresh
// entries without a network call, deduplicates concurrent identical fetches,
// retries transient failures with capped exponential backoff, and supports
// prefix invalidation. An optional snapshot store seeds cold entries.
type Engine struct {
	mu        sync.Mutex
	entries   map[string]*entryState
	snapshots SnapshotStore
	cfg       Config
	logger    *zap.Logger

	// sleep is a seam so retry tests don't wait for real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	subMu  sync.Mutex
	subs   map[int]subscription
	nextID int
}

// NewEngine builds an Engine. snapshots may be nil to disable the snapshot
// layer.
func NewEngine(cfg Config, snapshots SnapshotStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		entries:   make(map[string]*entryState),
		snapshots: snapshots,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		sleep:     sleepCtx,
		subs:      make(map[int]subscription),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Query reads one key. Fresh entries are served without a call; a stale or
// missing entry triggers a fetch, shared with any concurrent caller of the
// same key. The returned error mirrors Entry.Err for failed reads.
func (e *Engine) Query(ctx context.Context, key string, fetch Fetcher, opts QueryOptions) (Entry, error) {
	if opts.Disabled {
		observability.CacheReadsTotal.WithLabelValues("disabled").Inc()
		return Entry{Key: key, Status: StatusIdle}, nil
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}

	e.mu.Lock()
	st, ok := e.entries[key]
	if !ok {
		st = &entryState{status: StatusIdle}
		e.entries[key] = st
	}

	now := time.Now()
	if st.status == StatusSuccess && now.Before(st.staleAt) {
		entry := st.view(key)
		e.mu.Unlock()
		observability.CacheReadsTotal.WithLabelValues("hit").Inc()
		return entry, nil
	}

	if ch := st.inflight; ch != nil {
		e.mu.Unlock()
		return e.wait(ctx, key, ch)
	}

	if len(st.data) == 0 && e.snapshots != nil {
		if raw, hit, err := e.snapshots.Get(ctx, key); err != nil {
			e.logger.Warn("snapshot read failed", zap.String("key", key), zap.Error(err))
		} else if hit {
			st.status = StatusSuccess
			st.data = raw
			st.err = nil
			st.updatedAt = now
			st.staleAt = now.Add(ttl)
			entry := st.view(key)
			e.mu.Unlock()
			observability.CacheReadsTotal.WithLabelValues("snapshot").Inc()
			e.notify(entry)
			return entry, nil
		}
	}

	if len(st.data) > 0 {
		observability.CacheReadsTotal.WithLabelValues("stale").Inc()
	} else {
		observability.CacheReadsTotal.WithLabelValues("miss").Inc()
	}

	ch := make(chan struct{})
	st.inflight = ch
	st.status = StatusLoading
	e.mu.Unlock()

	data, err := e.fetchWithRetry(ctx, key, fetch)

	e.mu.Lock()
	now = time.Now()
	if err == nil {
		st.status = StatusSuccess
		st.data = data
		st.err = nil
		st.staleAt = now.Add(ttl)
	} else {
		// Keep the previous payload; only the status and error change.
		st.status = StatusError
		st.err = err
	}
	st.updatedAt = now
	st.inflight = nil
	close(ch)
	entry := st.view(key)
	e.mu.Unlock()

	if err == nil && e.snapshots != nil {
		if serr := e.snapshots.Set(ctx, key, data, ttl); serr != nil {
			e.logger.Warn("snapshot write failed", zap.String("key", key), zap.Error(serr))
		}
	}

	e.notify(entry)
	return entry, err
}

// wait blocks a late caller on the in-flight fetch for key and returns the
// settled entry. The fetch itself is never cancelled by a waiter's context;
// only this caller gives up.
func (e *Engine) wait(ctx context.Context, key string, ch chan struct{}) (Entry, error) {
	select {
	case <-ch:
	case <-ctx.Done():
		e.mu.Lock()
		entry := e.entries[key].view(key)
		e.mu.Unlock()
		return entry, ctx.Err()
	}

	e.mu.Lock()
	entry := e.entries[key].view(key)
	e.mu.Unlock()
	return entry, entry.Err
}

func (e *Engine) fetchWithRetry(ctx context.Context, key string, fetch Fetcher) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		data, err := fetch(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if !gateway.Retryable(err) || attempt >= e.cfg.RetryAttempts {
			return nil, lastErr
		}

		delay := Backoff(attempt+1, e.cfg.RetryBaseDelay, e.cfg.RetryMaxDelay)
		observability.CacheRetriesTotal.Inc()
		e.logger.Debug("retrying fetch",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, lastErr
		}
	}
}

// Backoff returns the delay before retry n (n >= 1): min(base * 2^n, max).
func Backoff(n int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

// Invalidate marks every entry whose key starts with prefix as stale. The
// data stays in place; the next read refetches. Subscribers are notified so
// active views refresh.
func (e *Engine) Invalidate(prefix string) {
	e.mu.Lock()
	var touched []Entry
	for key, st := range e.entries {
		if strings.HasPrefix(key, prefix) {
			st.staleAt = time.Time{}
			touched = append(touched, st.view(key))
		}
	}
	e.mu.Unlock()

	for _, entry := range touched {
		e.notify(entry)
	}
}

// Subscribe registers a callback for every settled change to entries whose
// key starts with prefix. The returned cancel removes the subscription.
func (e *Engine) Subscribe(prefix string, fn func(Entry)) func() {
	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = subscription{prefix: prefix, fn: fn}
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subs, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) notify(entry Entry) {
	e.subMu.Lock()
	var fns []func(Entry)
	for _, sub := range e.subs {
		if strings.HasPrefix(entry.Key, sub.prefix) {
			fns = append(fns, sub.fn)
		}
	}
	e.subMu.Unlock()

	for _, fn := range fns {
		fn(entry)
	}
}

func (st *entryState) view(key string) Entry {
	return Entry{
		Key:       key,
		Status:    st.status,
		Data:      st.data,
		Err:       st.err,
		UpdatedAt: st.updatedAt,
	}
}
