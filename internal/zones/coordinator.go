package zones

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/gateway"
	"github.com/kjstillabower/weather-zones/internal/models"
	"github.com/kjstillabower/weather-zones/internal/observability"
	"github.com/kjstillabower/weather-zones/internal/ui"
)

// CachePrefix covers every zones read; mutations invalidate it so all open
// views refetch.
const CachePrefix = "zones"

// ListKey is the cache key for one page of the zone list. Distinct offsets
// are distinct keys.
func ListKey(limit, offset int) string {
	return fmt.Sprintf("%s?limit=%d&offset=%d", CachePrefix, limit, offset)
}

// API is the slice of the gateway the coordinator uses.
type API interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) (json.RawMessage, error)
}

// TokenSource gates owner-scoped reads: without a token the read is disabled
// rather than sent.
type TokenSource interface {
	Token() string
}

// Coordinator wraps every zone operation. Reads go through the cache engine;
// mutations toggle the shared busy indicator, invalidate the zones prefix on
// success, and surface failures as error toasts. Mutations are never retried
// automatically.
type Coordinator struct {
	api      API
	cache    *cache.Engine
	notifier *ui.Notifier
	busy     *ui.BusyTracker
	tokens   TokenSource
	logger   *zap.Logger
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(api API, engine *cache.Engine, notifier *ui.Notifier, busy *ui.BusyTracker, tokens TokenSource, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		api:      api,
		cache:    engine,
		notifier: notifier,
		busy:     busy,
		tokens:   tokens,
		logger:   logger,
	}
}

// List reads one page of the zone list through the cache. Unauthenticated
// reads are disabled and report an idle entry.
func (c *Coordinator) List(ctx context.Context, limit, offset int) (models.ZoneList, cache.Entry, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	entry, err := c.cache.Query(ctx, ListKey(limit, offset), func(ctx context.Context) (json.RawMessage, error) {
		return c.api.Get(ctx, "/api/zones", query)
	}, cache.QueryOptions{Disabled: c.tokens.Token() == ""})

	var list models.ZoneList
	if len(entry.Data) > 0 {
		if uerr := json.Unmarshal(entry.Data, &list); uerr != nil && err == nil {
			err = uerr
		}
	}
	return list, entry, err
}

// Create adds a zone. The request is validated and normalized before any
// network traffic.
func (c *Coordinator) Create(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.perform(ctx, "create", func(ctx context.Context) (json.RawMessage, error) {
		return c.api.Post(ctx, "/api/zones", req)
	})
	if err != nil {
		return nil, err
	}
	return decodeZone(raw)
}

// Update renames a zone.
func (c *Coordinator) Update(ctx context.Context, id int64, req models.UpdateZoneRequest) (*models.Zone, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.perform(ctx, "update", func(ctx context.Context) (json.RawMessage, error) {
		return c.api.Patch(ctx, zonePath(id), req)
	})
	if err != nil {
		return nil, err
	}
	return decodeZone(raw)
}

// Delete removes a zone.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	_, err := c.perform(ctx, "delete", func(ctx context.Context) (json.RawMessage, error) {
		return c.api.Delete(ctx, zonePath(id))
	})
	return err
}

// RefreshWeather asks the server for a fresh weather snapshot and returns
// the updated zone.
func (c *Coordinator) RefreshWeather(ctx context.Context, id int64) (*models.Zone, error) {
	raw, err := c.perform(ctx, "refresh", func(ctx context.Context) (json.RawMessage, error) {
		return c.api.Post(ctx, zonePath(id)+"/refresh", nil)
	})
	if err != nil {
		return nil, err
	}
	return decodeZone(raw)
}

// perform runs one mutation with the shared side-effect ordering: busy on,
// call, invalidate on success, error toast on failure, busy off regardless.
func (c *Coordinator) perform(ctx context.Context, operation string, call func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	release := c.busy.Begin()
	defer release()

	raw, err := call(ctx)
	if err != nil {
		observability.MutationsTotal.WithLabelValues(operation, "failure").Inc()
		c.logger.Warn("zone mutation failed",
			zap.String("operation", operation),
			zap.Error(err))
		c.notifier.Push(ui.SeverityError, gateway.UserMessage(err))
		return nil, err
	}

	observability.MutationsTotal.WithLabelValues(operation, "success").Inc()
	c.cache.Invalidate(CachePrefix)
	return raw, nil
}

func zonePath(id int64) string {
	return fmt.Sprintf("/api/zones/%d", id)
}

func decodeZone(raw json.RawMessage) (*models.Zone, error) {
	var zone models.Zone
	if err := json.Unmarshal(raw, &zone); err != nil {
		return nil, fmt.Errorf("decode zone: %w", err)
	}
	return &zone, nil
}
