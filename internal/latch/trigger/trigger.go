// Package trigger drives a binary output line through timed phase
// sequences: the relay pulse that holds a door released, the status LED
// patterns, the buzzer feedback melodies.
package trigger

import (
	"errors"
	"sync"
	"time"
)

// ErrNilLine is returned by New when no output line is supplied.
var ErrNilLine = errors.New("trigger: nil line")

// Line is a binary output. Implementations must tolerate calls from
// timer goroutines and must not call back into the trigger.
type Line interface {
	Set(on bool)
}

// LineFunc adapts a function to the Line interface.
type LineFunc func(on bool)

func (f LineFunc) Set(on bool) { f(on) }

// Trigger plays phase sequences on a line. A sequence alternates phase
// durations starting with an off phase; a zero-length phase advances
// without touching the line, so a leading zero starts the on phase
// immediately and a re-latched relay never glitches low. After the
// final phase the line is dropped and the completion callback, if any,
// fires. Set and the Start variants replace any playback in progress;
// a replaced playback's callback never fires.
type Trigger struct {
	line Line
	done func()

	mu      sync.Mutex
	gen     uint64
	seq     []time.Duration
	idx     int
	pending *time.Timer
}

// New builds a trigger for line. done may be nil; when set it is called
// from a timer goroutine each time a sequence completes naturally.
func New(line Line, done func()) (*Trigger, error) {
	if line == nil {
		return nil, ErrNilLine
	}
	return &Trigger{line: line, done: done}, nil
}

// Set cancels any playback and holds the line at the given level.
func (t *Trigger) Set(on bool) {
	t.mu.Lock()
	t.cancelLocked()
	t.line.Set(on)
	t.mu.Unlock()
}

// Start pulses the line on for d, then drops it.
func (t *Trigger) Start(d time.Duration) {
	t.StartSeq([]time.Duration{0, d})
}

// StartSeq starts playback of alternating off/on phase durations. An
// empty sequence just drops the line and completes.
func (t *Trigger) StartSeq(seq []time.Duration) {
	t.mu.Lock()
	t.cancelLocked()
	t.seq = append(t.seq[:0], seq...)
	t.idx = 0
	done := t.advanceLocked()
	t.mu.Unlock()

	if done != nil {
		done()
	}
}

func (t *Trigger) cancelLocked() {
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// advanceLocked applies the current phase level and arms the timer for
// its duration, folding zero-length phases into the next arm without a
// line write. At the end of the sequence it drops the line and returns
// the completion callback for the caller to run outside the lock.
func (t *Trigger) advanceLocked() func() {
	for t.idx < len(t.seq) && t.seq[t.idx] == 0 {
		t.idx++
	}
	if t.idx >= len(t.seq) {
		t.line.Set(false)
		t.pending = nil
		return t.done
	}

	on := t.idx%2 == 1
	d := t.seq[t.idx]
	t.idx++
	t.line.Set(on)

	gen := t.gen
	t.pending = time.AfterFunc(d, func() { t.step(gen) })
	return nil
}

// step continues playback after a phase elapses, unless the playback
// was replaced in the meantime.
func (t *Trigger) step(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	done := t.advanceLocked()
	t.mu.Unlock()

	if done != nil {
		done()
	}
}
