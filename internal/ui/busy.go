package ui

import "sync"

// BusyTracker is the process-wide busy indicator for in-flight mutations.
// It is a reference count, not a boolean: the indicator stays on until every
// outstanding operation has settled, so one mutation finishing cannot hide
// another still in flight.
type BusyTracker struct {
	mu    sync.Mutex
	count int

	subMu  sync.Mutex
	subs   map[int]func(bool)
	nextID int
}

// NewBusyTracker returns an idle tracker.
func NewBusyTracker() *BusyTracker {
	return &BusyTracker{subs: make(map[int]func(bool))}
}

// Begin marks one operation in flight and returns its release func. The
// release is idempotent and must be called exactly when the operation
// settles, success or failure.
func (t *BusyTracker) Begin() func() {
	t.mu.Lock()
	t.count++
	transitioned := t.count == 1
	t.mu.Unlock()

	if transitioned {
		t.notify(true)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			t.count--
			settled := t.count == 0
			t.mu.Unlock()

			if settled {
				t.notify(false)
			}
		})
	}
}

// Busy reports whether any operation is in flight.
func (t *BusyTracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count > 0
}

// Count returns the number of operations in flight.
func (t *BusyTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Subscribe registers a callback for busy transitions (off→on and on→off
// only, not per operation). The returned cancel removes the subscription.
func (t *BusyTracker) Subscribe(fn func(bool)) func() {
	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	t.subMu.Unlock()

	return func() {
		t.subMu.Lock()
		delete(t.subs, id)
		t.subMu.Unlock()
	}
}

func (t *BusyTracker) notify(busy bool) {
	t.subMu.Lock()
	fns := make([]func(bool), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.subMu.Unlock()

	for _, fn := range fns {
		fn(busy)
	}
}
