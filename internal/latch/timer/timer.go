// Package timer provides the deschedulable one-shot timer the door
// controller arms between PIN digits. The callback runs on a timer
// goroutine and is expected to post events, not mutate shared state.
package timer

import (
	"sync"
	"time"
)

// Timer invokes its callback once per scheduled deadline. Scheduling
// again replaces the pending deadline; descheduling suppresses a firing
// that has not yet delivered, even one already past its deadline.
type Timer struct {
	fn func()

	mu      sync.Mutex
	gen     uint64
	pending *time.Timer
}

// New builds a timer around fn. The zero deadline state is disarmed.
func New(fn func()) *Timer {
	return &Timer{fn: fn}
}

// ScheduleIn arms the timer to fire after d, replacing any pending
// deadline.
func (t *Timer) ScheduleIn(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
	}
	gen := t.gen
	t.pending = time.AfterFunc(d, func() { t.fire(gen) })
}

// Deschedule cancels the pending firing, if any.
func (t *Timer) Deschedule() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// fire delivers the callback unless the deadline it belongs to was
// replaced or descheduled after it was armed.
func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.mu.Unlock()
	t.fn()
}
