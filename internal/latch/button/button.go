// Package button debounces a two-state input: an edge is reported only
// once the raw level has held steady for the configured delay. The
// callback runs on a timer goroutine and is expected to post events.
package button

import (
	"sync"
	"time"
)

// Button tracks one debounced input.
type Button struct {
	delay time.Duration
	fn    func(level bool)

	mu       sync.Mutex
	gen      uint64
	raw      bool
	reported bool
	pending  *time.Timer
}

// New builds a debouncer that starts at the initial level and reports
// stable level changes to fn.
func New(delay time.Duration, initial bool, fn func(level bool)) *Button {
	return &Button{delay: delay, fn: fn, raw: initial, reported: initial}
}

// Input feeds a raw level sample. Safe from any goroutine. Each edge
// restarts the stability window; a level that returns to the last
// reported one before the window closes is never reported.
func (b *Button) Input(level bool) {
	b.mu.Lock()
	if level == b.raw {
		b.mu.Unlock()
		return
	}
	b.raw = level
	b.gen++
	gen := b.gen
	if b.pending != nil {
		b.pending.Stop()
	}
	b.pending = time.AfterFunc(b.delay, func() { b.settle(gen) })
	b.mu.Unlock()
}

// Level returns the last reported (debounced) level.
func (b *Button) Level() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reported
}

func (b *Button) settle(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.pending = nil
	if b.raw == b.reported {
		b.mu.Unlock()
		return
	}
	level := b.raw
	b.reported = level
	b.mu.Unlock()
	b.fn(level)
}
