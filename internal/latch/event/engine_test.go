package event_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/latchlab/latchd/internal/latch/event"
)

// record is one dispatched event as seen by a test handler.
type record struct {
	id  event.ID
	val uint32
}

// collect registers a handler on src that appends every dispatched
// event to the returned slice.
func collect(t *testing.T, e *event.Engine, src *event.Source) *[]record {
	t.Helper()
	var got []record
	_, err := e.Register(src, func(id event.ID, val event.Value) {
		got = append(got, record{id: id, val: val.U32()})
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return &got
}

// drain runs the dispatch loop until the queue is empty.
func drain(e *event.Engine) {
	for e.RunOnce() {
	}
}

// ── Posting ──────────────────────────────────────────────────────────────────

func TestPost_NilSource_Rejected(t *testing.T) {
	e := event.New()
	if err := e.Post(nil, 1, event.Value{}); !errors.Is(err, event.ErrNilSource) {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

func TestPost_DispatchesInFIFOOrder(t *testing.T) {
	e := event.New()
	src := event.NewSource("reader")
	got := collect(t, e, src)

	for i := uint32(1); i <= 3; i++ {
		if err := e.Post(src, event.ID(i), event.U32(i*10)); err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}
	drain(e)

	want := []record{{1, 10}, {2, 20}, {3, 30}}
	if len(*got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(*got))
	}
	for i, w := range want {
		if (*got)[i] != w {
			t.Errorf("event %d: expected %+v, got %+v", i, w, (*got)[i])
		}
	}
}

func TestPost_PoolExhausted_DropsWithoutCorruption(t *testing.T) {
	e := event.New(event.WithDepth(2))
	src := event.NewSource("reader")
	got := collect(t, e, src)

	if err := e.Post(src, 1, event.Value{}); err != nil {
		t.Fatalf("Post 1: %v", err)
	}
	if err := e.Post(src, 2, event.Value{}); err != nil {
		t.Fatalf("Post 2: %v", err)
	}
	if err := e.Post(src, 3, event.Value{}); !errors.Is(err, event.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	drain(e)
	if len(*got) != 2 {
		t.Fatalf("expected the 2 queued events, got %d", len(*got))
	}
	if (*got)[0].id != 1 || (*got)[1].id != 2 {
		t.Errorf("queue corrupted by overflow: %+v", *got)
	}

	// The pool recovers once slots are released.
	if err := e.Post(src, 4, event.Value{}); err != nil {
		t.Fatalf("Post after drain: %v", err)
	}
	drain(e)
	if (*got)[2].id != 4 {
		t.Errorf("expected event 4 after recovery, got %+v", (*got)[2])
	}

	st := e.Stats()
	if st.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", st.Dropped)
	}
}

func TestPost_SlotHeldUntilHandlersFinish(t *testing.T) {
	e := event.New(event.WithDepth(1))
	src := event.NewSource("reader")

	var insideErr error
	var afterOK bool
	_, err := e.Register(src, func(id event.ID, val event.Value) {
		// The in-flight slot still occupies the pool.
		insideErr = e.Post(src, 2, event.Value{})
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := e.Post(src, 1, event.Value{}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	drain(e)
	afterOK = e.Post(src, 3, event.Value{}) == nil

	if !errors.Is(insideErr, event.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull inside handler, got %v", insideErr)
	}
	if !afterOK {
		t.Error("expected Post to succeed after the slot was released")
	}
}

func TestPost_ConcurrentProducers_AllLand(t *testing.T) {
	const producers = 4
	const perProducer = 16

	e := event.New(event.WithDepth(producers * perProducer))
	src := event.NewSource("reader")
	got := collect(t, e, src)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := e.Post(src, 1, event.Value{}); err != nil {
					t.Errorf("Post: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	drain(e)

	if len(*got) != producers*perProducer {
		t.Fatalf("expected %d events, got %d", producers*perProducer, len(*got))
	}
}

// ── Cancellation ─────────────────────────────────────────────────────────────

func TestCancel_RemovesAllMatches(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")
	other := event.NewSource("other")
	got := collect(t, e, src)
	otherGot := collect(t, e, other)

	_ = e.Post(src, 1, event.Value{})
	_ = e.Post(src, 9, event.Value{})
	_ = e.Post(other, 9, event.Value{})
	_ = e.Post(src, 9, event.Value{})
	_ = e.Post(src, 2, event.Value{})

	if n := e.Cancel(src, 9); n != 2 {
		t.Fatalf("expected 2 cancelled, got %d", n)
	}
	drain(e)

	if len(*got) != 2 || (*got)[0].id != 1 || (*got)[1].id != 2 {
		t.Errorf("expected events 1,2 to survive, got %+v", *got)
	}
	if len(*otherGot) != 1 || (*otherGot)[0].id != 9 {
		t.Errorf("cancel leaked onto another source: %+v", *otherGot)
	}
}

func TestCancel_TailRemoval_KeepsQueueLinked(t *testing.T) {
	e := event.New(event.WithDepth(3))
	src := event.NewSource("door")
	got := collect(t, e, src)

	_ = e.Post(src, 1, event.Value{})
	_ = e.Post(src, 2, event.Value{})
	if n := e.Cancel(src, 2); n != 1 {
		t.Fatalf("expected 1 cancelled, got %d", n)
	}

	// The freed tail slot must be reusable and the queue still intact.
	_ = e.Post(src, 3, event.Value{})
	_ = e.Post(src, 4, event.Value{})
	drain(e)

	want := []event.ID{1, 3, 4}
	if len(*got) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), *got)
	}
	for i, id := range want {
		if (*got)[i].id != id {
			t.Errorf("event %d: expected id %d, got %d", i, id, (*got)[i].id)
		}
	}
}

func TestCancel_NoMatch_NoOp(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")
	if n := e.Cancel(src, 7); n != 0 {
		t.Fatalf("expected 0 cancelled on empty queue, got %d", n)
	}
	if n := e.Cancel(nil, 7); n != 0 {
		t.Fatalf("expected 0 cancelled for nil source, got %d", n)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegister_Validation(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")

	if _, err := e.Register(nil, func(event.ID, event.Value) {}); !errors.Is(err, event.ErrNilSource) {
		t.Errorf("expected ErrNilSource, got %v", err)
	}
	if _, err := e.Register(src, nil); !errors.Is(err, event.ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
}

func TestRegisterFiltered_MaskSelectsBlock(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")

	var highs []event.ID
	_, err := e.RegisterFiltered(src, 0xF0, 0x10, func(id event.ID, _ event.Value) {
		highs = append(highs, id)
	})
	if err != nil {
		t.Fatalf("RegisterFiltered: %v", err)
	}

	for _, id := range []event.ID{0x01, 0x10, 0x02, 0x12, 0x20} {
		_ = e.Post(src, id, event.Value{})
	}
	drain(e)

	if len(highs) != 2 || highs[0] != 0x10 || highs[1] != 0x12 {
		t.Errorf("expected only the 0x10 block, got %v", highs)
	}
}

func TestDispatch_RegistrationOrderPreserved(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")

	var order []string
	_, _ = e.Register(src, func(event.ID, event.Value) { order = append(order, "first") })
	_, _ = e.Register(src, func(event.ID, event.Value) { order = append(order, "second") })

	_ = e.Post(src, 1, event.Value{})
	drain(e)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected registration order, got %v", order)
	}
}

func TestDispatch_OtherSourceNotDelivered(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")
	other := event.NewSource("other")
	got := collect(t, e, src)

	_ = e.Post(other, 1, event.Value{})
	drain(e)

	if len(*got) != 0 {
		t.Errorf("expected no delivery for a foreign source, got %+v", *got)
	}
}

func TestDeregister_StopsDelivery(t *testing.T) {
	e := event.New()
	src := event.NewSource("door")

	var n int
	reg, err := e.Register(src, func(event.ID, event.Value) { n++ })
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	_ = e.Post(src, 1, event.Value{})
	drain(e)
	if err := e.Deregister(reg); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	_ = e.Post(src, 2, event.Value{})
	drain(e)

	if n != 1 {
		t.Errorf("expected 1 delivery, got %d", n)
	}
	if err := e.Deregister(reg); !errors.Is(err, event.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered on second deregister, got %v", err)
	}
}

// ── Run loop ─────────────────────────────────────────────────────────────────

func TestRun_DeliversPostsFromOtherGoroutines(t *testing.T) {
	e := event.New()
	src := event.NewSource("reader")

	seen := make(chan event.ID, 8)
	_, err := e.Register(src, func(id event.ID, _ event.Value) { seen <- id })
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	for i := uint32(1); i <= 3; i++ {
		if err := e.Post(src, event.ID(i), event.Value{}); err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}

	for i := event.ID(1); i <= 3; i++ {
		select {
		case id := <-seen:
			if id != i {
				t.Errorf("expected event %d, got %d", i, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRun_IdleHookSeesParkAndWake(t *testing.T) {
	transitions := make(chan bool, 8)
	e := event.New(event.WithIdleHook(func(idle bool) {
		select {
		case transitions <- idle:
		default:
		}
	}))
	src := event.NewSource("reader")
	if _, err := e.Register(src, func(event.ID, event.Value) {}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	waitFor := func(want bool) {
		t.Helper()
		select {
		case got := <-transitions:
			if got != want {
				t.Fatalf("expected idle=%v transition, got %v", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for idle=%v", want)
		}
	}

	waitFor(true)
	if err := e.Post(src, 1, event.Value{}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	waitFor(false)
	waitFor(true)
}

// ── Stats ────────────────────────────────────────────────────────────────────

func TestStats_CountersTrackActivity(t *testing.T) {
	e := event.New(event.WithDepth(2))
	src := event.NewSource("door")
	_ = collect(t, e, src)

	_ = e.Post(src, 1, event.Value{})
	_ = e.Post(src, 9, event.Value{})
	_ = e.Post(src, 1, event.Value{}) // dropped
	_ = e.Cancel(src, 9)
	drain(e)

	st := e.Stats()
	if st.Posted != 2 {
		t.Errorf("expected 2 posted, got %d", st.Posted)
	}
	if st.Dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", st.Dropped)
	}
	if st.Cancelled != 1 {
		t.Errorf("expected 1 cancelled, got %d", st.Cancelled)
	}
	if st.Dispatched != 1 {
		t.Errorf("expected 1 dispatched, got %d", st.Dispatched)
	}
	if st.Queued != 0 {
		t.Errorf("expected empty queue, got %d", st.Queued)
	}
}
