package event

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// DefaultDepth is the pool size when no option overrides it: the
// reference sizing for a single-door controller.
const DefaultDepth = 8

// HandlerFunc receives a dispatched event. Handlers run one at a time
// on the dispatch goroutine and may freely post, cancel and deregister.
type HandlerFunc func(id ID, val Value)

// Registration is the handle returned by Register; pass it to
// Deregister to remove the subscription.
type Registration struct {
	src  *Source
	mask ID
	want ID
	fn   HandlerFunc
}

// slot is one pool entry. A slot is either on the free list or linked
// into the queue, never both; a nil source marks it free. next indexes
// into the slot array, -1 terminates a list.
type slot struct {
	next   int
	source *Source
	id     ID
	val    Value
}

// Engine owns the event pool, the FIFO threaded through it, and the
// handler registry. Exactly one goroutine runs Run (or RunOnce); any
// goroutine may post.
type Engine struct {
	log *slog.Logger

	mu       sync.Mutex
	slots    []slot
	free     int // head of the free list, -1 when exhausted
	head     int // queue head, -1 when empty
	tail     int
	queued   int
	handlers []*Registration

	// wake holds at most one token. Post deposits one after linking an
	// event; Run drains the whole queue per token, so a token landing
	// while the loop is still draining costs one spurious pass and a
	// token landing just before the park is never lost.
	wake chan struct{}
	idle func(bool)

	posted     atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
	cancelled  atomic.Uint64
}

// New builds an engine with a fixed pool of DefaultDepth slots unless
// WithDepth overrides it.
func New(opts ...Option) *Engine {
	e := &Engine{
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	if len(e.slots) == 0 {
		e.initPool(DefaultDepth)
	}
	return e
}

func (e *Engine) initPool(depth int) {
	e.slots = make([]slot, depth)
	for i := range e.slots {
		e.slots[i].next = i + 1
	}
	e.slots[depth-1].next = -1
	e.free = 0
	e.head = -1
	e.tail = -1
	e.queued = 0
}

// Depth is the pool capacity.
func (e *Engine) Depth() int {
	return len(e.slots)
}

// Post links an event at the queue tail. It never blocks and never
// allocates: with no free slot the event is dropped and ErrQueueFull
// returned. Safe from any goroutine, including handlers and timer
// callbacks.
func (e *Engine) Post(src *Source, id ID, val Value) error {
	if src == nil {
		return ErrNilSource
	}

	e.mu.Lock()
	i := e.free
	if i < 0 {
		e.mu.Unlock()
		e.dropped.Add(1)
		e.log.Debug("event dropped", "source", src.String(), "id", uint8(id))
		return ErrQueueFull
	}
	e.free = e.slots[i].next

	e.slots[i] = slot{next: -1, source: src, id: id, val: val}
	if e.tail < 0 {
		e.head = i
	} else {
		e.slots[e.tail].next = i
	}
	e.tail = i
	e.queued++
	e.mu.Unlock()

	e.posted.Add(1)

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Cancel unlinks every queued event matching source and id without
// dispatching it and returns the number removed. An event whose
// handlers are already running is not affected.
func (e *Engine) Cancel(src *Source, id ID) int {
	if src == nil {
		return 0
	}

	e.mu.Lock()
	n := 0
	prev := -1
	for i := e.head; i >= 0; {
		next := e.slots[i].next
		if e.slots[i].source == src && e.slots[i].id == id {
			if prev < 0 {
				e.head = next
			} else {
				e.slots[prev].next = next
			}
			if e.tail == i {
				e.tail = prev
			}
			e.slots[i] = slot{next: e.free}
			e.free = i
			e.queued--
			n++
		} else {
			prev = i
		}
		i = next
	}
	e.mu.Unlock()

	e.cancelled.Add(uint64(n))
	return n
}

// Register subscribes fn to every event posted by src.
func (e *Engine) Register(src *Source, fn HandlerFunc) (*Registration, error) {
	return e.RegisterFiltered(src, 0, 0, fn)
}

// RegisterFiltered subscribes fn to events from src whose id satisfies
// id&mask == want. A zero mask matches every id. Handlers fire in
// registration order.
func (e *Engine) RegisterFiltered(src *Source, mask, want ID, fn HandlerFunc) (*Registration, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if fn == nil {
		return nil, ErrNilHandler
	}

	r := &Registration{src: src, mask: mask, want: want, fn: fn}
	e.mu.Lock()
	e.handlers = append(e.handlers, r)
	e.mu.Unlock()
	return r, nil
}

// Deregister removes a registration. An event already mid-dispatch
// still reaches the handler; subsequent events do not.
func (e *Engine) Deregister(r *Registration) error {
	if r == nil {
		return ErrNotRegistered
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, h := range e.handlers {
		if h == r {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
			return nil
		}
	}
	return ErrNotRegistered
}

// RunOnce pops and dispatches a single event, reporting false when the
// queue was empty. The popped slot rejoins the free pool only after the
// last handler returns, so a handler can never be handed its own
// event's recycled slot, and the pool stays exhausted while an event is
// in flight.
func (e *Engine) RunOnce() bool {
	e.mu.Lock()
	i := e.head
	if i < 0 {
		e.mu.Unlock()
		return false
	}
	e.head = e.slots[i].next
	if e.head < 0 {
		e.tail = -1
	}
	e.queued--

	// The slot is now in flight: unreachable from the queue and the
	// free list, so its fields are stable outside the lock.
	src, id, val := e.slots[i].source, e.slots[i].id, e.slots[i].val
	matched := e.matchLocked(src, id)
	e.mu.Unlock()

	for _, fn := range matched {
		fn(id, val)
	}
	e.dispatched.Add(1)

	e.mu.Lock()
	e.slots[i] = slot{next: e.free}
	e.free = i
	e.mu.Unlock()
	return true
}

func (e *Engine) matchLocked(src *Source, id ID) []HandlerFunc {
	var fns []HandlerFunc
	for _, h := range e.handlers {
		if h.src != src {
			continue
		}
		if h.mask != 0 && id&h.mask != h.want {
			continue
		}
		fns = append(fns, h.fn)
	}
	return fns
}

// Run dispatches events until ctx ends, parking on an empty queue. It
// returns ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	for {
		for e.RunOnce() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if e.idle != nil {
			e.idle(true)
		}
		select {
		case <-e.wake:
			if e.idle != nil {
				e.idle(false)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Posted     uint64
	Dispatched uint64
	Dropped    uint64
	Cancelled  uint64
	Queued     int
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	q := e.queued
	e.mu.Unlock()
	return Stats{
		Posted:     e.posted.Load(),
		Dispatched: e.dispatched.Load(),
		Dropped:    e.dropped.Load(),
		Cancelled:  e.cancelled.Load(),
		Queued:     q,
	}
}
