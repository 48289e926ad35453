package ui

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-zones/internal/observability"
)

// Severity grades a toast.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultToastDuration applies when Push is called without a duration.
const DefaultToastDuration = 5 * time.Second

// Toast is a transient user-facing message.
type Toast struct {
	ID       string
	Severity Severity
	Message  string
	Duration time.Duration
}

// Notifier holds the queue of transient messages. Each toast auto-expires on
// an internal timer; manual dismissal cancels the timer. Removal is
// idempotent. Safe for concurrent use.
type Notifier struct {
	mu     sync.Mutex
	toasts []Toast
	timers map[string]*time.Timer

	subMu  sync.Mutex
	subs   map[int]func([]Toast)
	nextID int
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		timers: make(map[string]*time.Timer),
		subs:   make(map[int]func([]Toast)),
	}
}

// Push enqueues a toast and returns its generated id. The optional duration
// overrides the 5s default expiry.
func (n *Notifier) Push(severity Severity, message string, duration ...time.Duration) string {
	d := DefaultToastDuration
	if len(duration) > 0 && duration[0] > 0 {
		d = duration[0]
	}

	toast := Toast{
		ID:       uuid.New().String(),
		Severity: severity,
		Message:  message,
		Duration: d,
	}

	n.mu.Lock()
	n.toasts = append(n.toasts, toast)
	n.timers[toast.ID] = time.AfterFunc(d, func() { n.Remove(toast.ID) })
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	observability.ToastsTotal.WithLabelValues(string(severity)).Inc()
	n.notify(snapshot)
	return toast.ID
}

// Remove dismisses a toast by id, cancelling its expiry timer. Removing an
// unknown or already-removed id is a no-op.
func (n *Notifier) Remove(id string) {
	n.mu.Lock()
	timer, ok := n.timers[id]
	if !ok {
		n.mu.Unlock()
		return
	}
	timer.Stop()
	delete(n.timers, id)
	for i, toast := range n.toasts {
		if toast.ID == id {
			n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
			break
		}
	}
	snapshot := n.snapshotLocked()
	n.mu.Unlock()

	n.notify(snapshot)
}

// Clear dismisses every toast and cancels all pending timers.
func (n *Notifier) Clear() {
	n.mu.Lock()
	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
	n.toasts = nil
	n.mu.Unlock()

	n.notify(nil)
}

// Toasts returns the current queue in push order.
func (n *Notifier) Toasts() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshotLocked()
}

func (n *Notifier) snapshotLocked() []Toast {
	out := make([]Toast, len(n.toasts))
	copy(out, n.toasts)
	return out
}

// Subscribe registers a callback invoked with the new queue after every
// change. The returned cancel removes the subscription.
func (n *Notifier) Subscribe(fn func([]Toast)) func() {
	n.subMu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.subMu.Unlock()

	return func() {
		n.subMu.Lock()
		delete(n.subs, id)
		n.subMu.Unlock()
	}
}

func (n *Notifier) notify(snapshot []Toast) {
	n.subMu.Lock()
	fns := make([]func([]Toast), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.subMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
