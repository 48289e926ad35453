package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/models"
)

// fakeLister serves pages from an in-memory slice, echoing what a paginated
// server would return for each limit/offset.
type fakeLister struct {
	mu    sync.Mutex
	zones []models.Zone
	calls int
	err   error
}

func (f *fakeLister) List(ctx context.Context, limit, offset int) (models.ZoneList, cache.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return models.ZoneList{}, cache.Entry{Status: cache.StatusError, Err: f.err}, f.err
	}
	total := len(f.zones)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	items := make([]models.Zone, end-offset)
	copy(items, f.zones[offset:end])
	return models.ZoneList{Items: items, Total: total}, cache.Entry{Status: cache.StatusSuccess}, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func zoneNamed(id int64, name string) models.Zone {
	return models.Zone{ID: id, Name: name, CityName: name}
}

func zonesCount(n int) []models.Zone {
	out := make([]models.Zone, n)
	for i := range out {
		out[i] = zoneNamed(int64(i+1), fmt.Sprintf("zone-%02d", i+1))
	}
	return out
}

// TestPaginationMetadata verifies page math for 25 rows at page size 10.
func TestPaginationMetadata(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(25)}
	c := NewController(lister, 10)

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if view.TotalPages != 3 {
		t.Fatalf("TotalPages = %d, want 3", view.TotalPages)
	}
	if view.Start != 1 || view.End != 10 {
		t.Fatalf("Start/End = %d/%d, want 1/10", view.Start, view.End)
	}
	if view.HasPrev {
		t.Fatal("HasPrev true on page 1")
	}
	if !view.HasNext {
		t.Fatal("HasNext false on page 1 of 3")
	}
}

// TestLastPagePartialRows verifies page 3 of 25 shows rows 21-25 with next
// disabled.
func TestLastPagePartialRows(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(25)}
	c := NewController(lister, 10)

	view, err := c.SetPage(context.Background(), 3)
	if err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if len(view.Rows) != 5 {
		t.Fatalf("len(Rows) = %d, want 5", len(view.Rows))
	}
	if view.Start != 21 || view.End != 25 {
		t.Fatalf("Start/End = %d/%d, want 21/25", view.Start, view.End)
	}
	if view.HasNext {
		t.Fatal("HasNext true on last page")
	}
	if !view.HasPrev {
		t.Fatal("HasPrev false on page 3")
	}
}

// TestSetPageBeforeFirstLoad verifies direct navigation works before any
// listing has been fetched: the requested page is loaded, not a page clamped
// against a total the controller has never seen.
func TestSetPageBeforeFirstLoad(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(25)}
	c := NewController(lister, 10)
	ctx := context.Background()

	view, err := c.SetPage(ctx, 2)
	if err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}
	if view.CurrentPage != 2 {
		t.Fatalf("CurrentPage = %d, want 2", view.CurrentPage)
	}
	if view.Start != 11 || view.End != 20 {
		t.Fatalf("Start/End = %d/%d, want 11/20", view.Start, view.End)
	}

	view, err = c.SetPage(ctx, 0)
	if err != nil {
		t.Fatalf("SetPage(0) error = %v", err)
	}
	if view.CurrentPage != 1 {
		t.Fatalf("SetPage(0) = page %d, want 1", view.CurrentPage)
	}
}

// TestNavigationClamped verifies next/prev stop at the boundaries.
func TestNavigationClamped(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(15)}
	c := NewController(lister, 10)
	ctx := context.Background()

	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	view, _ := c.PrevPage(ctx)
	if view.CurrentPage != 1 {
		t.Fatalf("PrevPage on page 1 moved to %d", view.CurrentPage)
	}
	view, _ = c.NextPage(ctx)
	view, _ = c.NextPage(ctx)
	if view.CurrentPage != 2 {
		t.Fatalf("NextPage past last moved to %d, want 2", view.CurrentPage)
	}
	view, _ = c.SetPage(ctx, 99)
	if view.CurrentPage != 2 {
		t.Fatalf("SetPage(99) = page %d, want 2", view.CurrentPage)
	}
}

// TestEmptyListing verifies an empty result still reports one page.
func TestEmptyListing(t *testing.T) {
	lister := &fakeLister{}
	c := NewController(lister, 10)

	view, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if view.TotalPages != 1 || view.CurrentPage != 1 {
		t.Fatalf("pages = %d/%d, want 1/1", view.CurrentPage, view.TotalPages)
	}
	if view.Start != 0 || view.End != 0 {
		t.Fatalf("Start/End = %d/%d, want 0/0", view.Start, view.End)
	}
	if view.HasPrev || view.HasNext {
		t.Fatal("navigation enabled on empty listing")
	}
}

// TestPageClampedAfterShrink verifies that a cursor pointing past the end of
// a shrunken listing is pulled back to the last page on the next load.
func TestPageClampedAfterShrink(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(25)}
	c := NewController(lister, 10)
	ctx := context.Background()

	if _, err := c.SetPage(ctx, 3); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	lister.mu.Lock()
	lister.zones = lister.zones[:12]
	lister.mu.Unlock()

	view, err := c.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if view.CurrentPage != 2 {
		t.Fatalf("CurrentPage = %d, want 2 after shrink", view.CurrentPage)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(view.Rows))
	}
}

// TestSortByNameCaseInsensitive verifies name ordering ignores case and that
// sorting never refetches.
func TestSortByNameCaseInsensitive(t *testing.T) {
	lister := &fakeLister{zones: []models.Zone{
		zoneNamed(1, "berlin"),
		zoneNamed(2, "Amsterdam"),
		zoneNamed(3, "CAIRO"),
	}}
	c := NewController(lister, 10)
	ctx := context.Background()

	if _, err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	calls := lister.callCount()

	view := c.SetSort(SortByName)
	// Load already sorts by name ascending; the explicit SetSort toggles.
	if view.Ascending {
		t.Fatal("SetSort on current column did not toggle direction")
	}
	view = c.SetSort(SortByName)
	got := []string{view.Rows[0].Name, view.Rows[1].Name, view.Rows[2].Name}
	want := []string{"Amsterdam", "berlin", "CAIRO"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted names = %v, want %v", got, want)
		}
	}
	if lister.callCount() != calls {
		t.Fatal("sorting triggered a refetch")
	}
}

// TestSortByTemperatureMissingLowest verifies that zones without weather sort
// below any real reading, and that equal keys keep their page order.
func TestSortByTemperatureMissingLowest(t *testing.T) {
	warm := func(id int64, name string, temp float64) models.Zone {
		z := zoneNamed(id, name)
		z.Weather = &models.WeatherSnapshot{TemperatureC: temp}
		return z
	}
	lister := &fakeLister{zones: []models.Zone{
		warm(1, "a", 12),
		zoneNamed(2, "b"),
		warm(3, "c", -40),
		zoneNamed(4, "d"),
	}}
	c := NewController(lister, 10)

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	view := c.SetSort(SortByTemperature)

	got := []int64{view.Rows[0].ID, view.Rows[1].ID, view.Rows[2].ID, view.Rows[3].ID}
	// Both missing-weather zones sort first, preserving their page order.
	want := []int64{2, 4, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// TestSortByUpdatedFallsBackToZoneTimestamp verifies the weather capture
// time is preferred, with the zone's updated-at as fallback.
func TestSortByUpdatedFallsBackToZoneTimestamp(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	withWeather := zoneNamed(1, "a")
	withWeather.UpdatedAt = base
	withWeather.Weather = &models.WeatherSnapshot{CachedAt: base.Add(48 * time.Hour)}
	plain := zoneNamed(2, "b")
	plain.UpdatedAt = base.Add(24 * time.Hour)
	never := zoneNamed(3, "c")

	lister := &fakeLister{zones: []models.Zone{withWeather, plain, never}}
	c := NewController(lister, 10)

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	view := c.SetSort(SortByUpdated)

	got := []int64{view.Rows[0].ID, view.Rows[1].ID, view.Rows[2].ID}
	want := []int64{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// TestSwitchColumnResetsAscending verifies direction resets when a new
// column is selected.
func TestSwitchColumnResetsAscending(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(3)}
	c := NewController(lister, 10)

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	c.SetSort(SortByName) // toggle to descending
	view := c.SetSort(SortByCity)
	if view.Sort != SortByCity || !view.Ascending {
		t.Fatalf("view sort = %s asc=%v, want city ascending", view.Sort, view.Ascending)
	}
}

// TestLoadErrorKeepsCursor verifies a failed load surfaces the error without
// wiping pagination state.
func TestLoadErrorKeepsCursor(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(25)}
	c := NewController(lister, 10)
	ctx := context.Background()

	if _, err := c.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage() error = %v", err)
	}

	lister.mu.Lock()
	lister.err = errors.New("listing unavailable")
	lister.mu.Unlock()

	view, err := c.Load(ctx)
	if err == nil {
		t.Fatal("Load() error = nil, want failure")
	}
	if view.CurrentPage != 2 {
		t.Fatalf("CurrentPage = %d, want 2 after failed load", view.CurrentPage)
	}
	if view.Status != cache.StatusError {
		t.Fatalf("Status = %s, want error", view.Status)
	}
	if len(view.Rows) != 10 {
		t.Fatalf("len(Rows) = %d, want previous page retained", len(view.Rows))
	}
}

// TestSubscribeNotified verifies view changes reach subscribers until cancel.
func TestSubscribeNotified(t *testing.T) {
	lister := &fakeLister{zones: zonesCount(5)}
	c := NewController(lister, 10)

	var mu sync.Mutex
	var count int
	cancel := c.Subscribe(func(View) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	mu.Lock()
	n := count
	mu.Unlock()
	if n == 0 {
		t.Fatal("subscriber not notified on load")
	}

	cancel()
	c.SetSort(SortByCity)
	mu.Lock()
	defer mu.Unlock()
	if count != n {
		t.Fatal("subscriber notified after cancel")
	}
}
