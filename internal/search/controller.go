package search

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/models"
	"github.com/kjstillabower/weather-zones/internal/observability"
)

// CachePrefix covers every committed search lookup.
const CachePrefix = "weather/search"

// API is the slice of the gateway the controller uses.
type API interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// State is a point-in-time view of the search box: the raw query is recorded
// on every keystroke, Results and Searching reflect the latest committed
// lookup.
type State struct {
	Query     string
	Results   []models.CitySearchItem
	Searching bool
	Err       error
}

// Options tune a Controller.
type Options struct {
	Debounce  time.Duration // 300ms when zero
	MinLength int           // 2 when zero
	TTL       time.Duration // freshness window for committed lookups; 60s when zero
}

// Controller converts keystrokes into rate-limited, race-safe city lookups.
// A single rearming timer collapses each burst of keystrokes into one
// committed query; a generation counter discards responses that arrive after
// a newer lookup was issued ("last request wins", not "last response wins").
type Controller struct {
	api      API
	cache    *cache.Engine
	debounce time.Duration
	minLen   int
	ttl      time.Duration
	logger   *zap.Logger

	gen atomic.Int64

	mu    sync.Mutex
	state State
	timer *time.Timer

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// NewController wires a Controller.
func NewController(api API, engine *cache.Engine, opts Options, logger *zap.Logger) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		api:      api,
		cache:    engine,
		debounce: opts.Debounce,
		minLen:   opts.MinLength,
		ttl:      opts.TTL,
		logger:   logger,
		subs:     make(map[int]func(State)),
	}
}

// OnInput records every keystroke. The raw text is visible immediately; the
// lookup fires only after a quiet period, and only for the last keystroke of
// a burst. Input shorter than the minimum clears the results without a call.
func (c *Controller) OnInput(text string) {
	c.mu.Lock()
	c.state.Query = text
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < c.minLen {
		// Bump the generation so an in-flight lookup for older input cannot
		// repopulate the cleared results.
		c.gen.Add(1)
		c.state.Results = nil
		c.state.Searching = false
		c.state.Err = nil
		snap := c.state
		c.mu.Unlock()
		c.notify(snap)
		return
	}

	c.timer = time.AfterFunc(c.debounce, func() { c.commit(trimmed) })
	c.mu.Unlock()
}

// commit runs on the debounce timer goroutine once input has been quiet.
func (c *Controller) commit(query string) {
	gen := c.gen.Add(1)

	c.mu.Lock()
	c.state.Searching = true
	snap := c.state
	c.mu.Unlock()
	c.notify(snap)

	observability.SearchQueriesTotal.Inc()

	normalized := strings.ToLower(query)
	key := CachePrefix + "?q=" + normalized
	entry, err := c.cache.Query(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
		q := url.Values{}
		q.Set("q", query)
		return c.api.Get(ctx, "/api/weather/search", q)
	}, cache.QueryOptions{TTL: c.ttl})

	var results []models.CitySearchItem
	if err == nil && len(entry.Data) > 0 {
		if uerr := json.Unmarshal(entry.Data, &results); uerr != nil {
			err = uerr
		}
	}

	c.mu.Lock()
	if gen != c.gen.Load() {
		// A newer lookup was issued while this one was in flight.
		c.mu.Unlock()
		c.logger.Debug("discarding stale search response",
			zap.String("query", query),
			zap.Int64("generation", gen))
		return
	}
	c.state.Results = results
	c.state.Searching = false
	c.state.Err = err
	snap = c.state
	c.mu.Unlock()
	c.notify(snap)
}

// Snapshot returns the current search state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cancels any pending debounce timer. In-flight lookups are not
// interrupted; their results are discarded by the generation check.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen.Add(1)
	c.mu.Unlock()
}

// Subscribe registers a callback invoked with the new state after every
// change. The returned cancel removes the subscription.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify(snap State) {
	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
