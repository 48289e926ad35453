package table

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/models"
)

// DefaultPageSize is the number of rows per page.
const DefaultPageSize = 10

// missingTemperature sorts zones without a weather snapshot below any real
// reading.
const missingTemperature = -999

// SortKey selects the column the table is ordered by.
type SortKey string

const (
	SortByName        SortKey = "name"
	SortByCity        SortKey = "city"
	SortByTemperature SortKey = "temperature"
	SortByUpdated     SortKey = "updated"
)

// Lister is the read path the controller pulls pages through, satisfied by
// the zones coordinator.
type Lister interface {
	List(ctx context.Context, limit, offset int) (models.ZoneList, cache.Entry, error)
}

// View is the renderable projection: the sorted rows of the current page plus
// pagination metadata. Start and End are 1-based row positions within the
// full listing; both are zero when the listing is empty.
type View struct {
	Rows        []models.Zone
	Start       int
	End         int
	Total       int
	CurrentPage int
	TotalPages  int
	HasPrev     bool
	HasNext     bool
	Sort        SortKey
	Ascending   bool
	Status      cache.Status
	Err         error
}

// Controller keeps the page/sort cursor for the zones table. Pagination is
// server-driven: each page change issues a fresh read with a new offset.
// Sorting is client-side over the currently loaded page only and never
// triggers a refetch.
type Controller struct {
	lister   Lister
	pageSize int

	mu        sync.Mutex
	page      int
	sortKey   SortKey
	ascending bool
	rows      []models.Zone
	total     int
	status    cache.Status
	err       error

	subMu  sync.Mutex
	subs   map[int]func(View)
	nextID int
}

// NewController starts on page 1, sorted by name ascending.
func NewController(lister Lister, pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		lister:    lister,
		pageSize:  pageSize,
		page:      1,
		sortKey:   SortByName,
		ascending: true,
		status:    cache.StatusIdle,
		subs:      make(map[int]func(View)),
	}
}

// Load fetches the current page. If the page has fallen off the end of the
// listing (rows deleted since the last load), the cursor is clamped to the
// last page and that page is fetched instead.
func (c *Controller) Load(ctx context.Context) (View, error) {
	for attempt := 0; ; attempt++ {
		c.mu.Lock()
		page := c.page
		c.mu.Unlock()

		list, entry, err := c.lister.List(ctx, c.pageSize, (page-1)*c.pageSize)

		c.mu.Lock()
		c.status = entry.Status
		c.err = err
		if err != nil {
			view := c.viewLocked()
			c.mu.Unlock()
			c.notify(view)
			return view, err
		}

		c.rows = list.Items
		c.total = list.Total
		last := totalPages(c.total, c.pageSize)
		if page > last && attempt == 0 {
			c.page = last
			c.mu.Unlock()
			continue
		}
		c.sortLocked()
		view := c.viewLocked()
		c.mu.Unlock()
		c.notify(view)
		return view, nil
	}
}

// SetSort orders the loaded page. Selecting the current column toggles the
// direction; selecting a different column resets to ascending.
func (c *Controller) SetSort(key SortKey) View {
	c.mu.Lock()
	if key == c.sortKey {
		c.ascending = !c.ascending
	} else {
		c.sortKey = key
		c.ascending = true
	}
	c.sortLocked()
	view := c.viewLocked()
	c.mu.Unlock()
	c.notify(view)
	return view
}

// SetPage moves the cursor and loads that page. Pages below 1 clamp to 1;
// an overshoot past the end is corrected by Load once the fetched listing
// reports its true size, so navigation never trusts a stale total.
func (c *Controller) SetPage(ctx context.Context, page int) (View, error) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
	return c.Load(ctx)
}

// NextPage advances one page, stopping at the last.
func (c *Controller) NextPage(ctx context.Context) (View, error) {
	c.mu.Lock()
	page := c.page + 1
	c.mu.Unlock()
	return c.SetPage(ctx, page)
}

// PrevPage steps back one page, stopping at the first.
func (c *Controller) PrevPage(ctx context.Context) (View, error) {
	c.mu.Lock()
	page := c.page - 1
	c.mu.Unlock()
	return c.SetPage(ctx, page)
}

// View returns the current projection without fetching.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Subscribe registers a callback invoked after every view change. The
// returned cancel removes the subscription.
func (c *Controller) Subscribe(fn func(View)) func() {
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

func (c *Controller) notify(view View) {
	c.subMu.Lock()
	fns := make([]func(View), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (c *Controller) viewLocked() View {
	rows := make([]models.Zone, len(c.rows))
	copy(rows, c.rows)

	last := totalPages(c.total, c.pageSize)
	start, end := 0, 0
	if len(rows) > 0 {
		start = (c.page-1)*c.pageSize + 1
		end = start + len(rows) - 1
	}
	return View{
		Rows:        rows,
		Start:       start,
		End:         end,
		Total:       c.total,
		CurrentPage: c.page,
		TotalPages:  last,
		HasPrev:     c.page > 1,
		HasNext:     c.page < last,
		Sort:        c.sortKey,
		Ascending:   c.ascending,
		Status:      c.status,
		Err:         c.err,
	}
}

func (c *Controller) sortLocked() {
	less := lessFunc(c.sortKey, c.rows)
	asc := c.ascending
	sort.SliceStable(c.rows, func(i, j int) bool {
		if asc {
			return less(i, j)
		}
		return less(j, i)
	})
}

func lessFunc(key SortKey, rows []models.Zone) func(i, j int) bool {
	switch key {
	case SortByCity:
		return func(i, j int) bool {
			return strings.ToLower(rows[i].CityName) < strings.ToLower(rows[j].CityName)
		}
	case SortByTemperature:
		temp := func(z models.Zone) float64 {
			if z.Weather == nil {
				return missingTemperature
			}
			return z.Weather.TemperatureC
		}
		return func(i, j int) bool {
			return temp(rows[i]) < temp(rows[j])
		}
	case SortByUpdated:
		// Weather capture time when present, else the zone's own update
		// time. The zero time sorts lowest.
		return func(i, j int) bool {
			return updatedAt(rows[i]).Before(updatedAt(rows[j]))
		}
	default:
		return func(i, j int) bool {
			return strings.ToLower(rows[i].Name) < strings.ToLower(rows[j].Name)
		}
	}
}

func updatedAt(z models.Zone) time.Time {
	if z.Weather != nil {
		return z.Weather.CachedAt
	}
	return z.UpdatedAt
}

func totalPages(total, pageSize int) int {
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}
