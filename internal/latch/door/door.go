// Package door implements the access-control state machine for one
// door. It consumes reader events from the dispatch loop, queries the
// access validator, and sequences the relay, status LED and buzzer
// through their feedback patterns.
package door

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/latchlab/latchd/internal/latch/access"
	"github.com/latchlab/latchd/internal/latch/button"
	"github.com/latchlab/latchd/internal/latch/event"
	"github.com/latchlab/latchd/internal/latch/timer"
	"github.com/latchlab/latchd/internal/latch/trigger"
)

// Timing defaults, from the reference controller.
const (
	DefaultOpenTime    = 5 * time.Second
	DefaultIdleTimeout = 10 * time.Second
	DebounceDelay      = 100 * time.Millisecond
)

// Buzzer feedback patterns, alternating off/on phase durations.
var (
	seqAccepted = []time.Duration{
		0,
		100 * time.Millisecond, 200 * time.Millisecond,
	}
	seqRejected = []time.Duration{
		0,
		200 * time.Millisecond, 600 * time.Millisecond,
		200 * time.Millisecond, 600 * time.Millisecond,
		200 * time.Millisecond, 600 * time.Millisecond,
	}
	seqTimeout = []time.Duration{
		0,
		100 * time.Millisecond, 200 * time.Millisecond,
		100 * time.Millisecond, 200 * time.Millisecond,
		100 * time.Millisecond, 200 * time.Millisecond,
	}
)

const errorPulse = 400 * time.Millisecond

var (
	ErrNilEngine   = errors.New("door: nil engine")
	ErrNilConfig   = errors.New("door: nil config")
	ErrNilLine     = errors.New("door: relay, led and buzzer lines are required")
	ErrNoValidator = errors.New("door: no validator configured")
)

// CheckFunc decides whether a credential opens a door; nil means
// granted. A door without a CheckFunc denies everything.
type CheckFunc func(doorID uint8, typ access.Type, key uint32) error

// Config wires one door controller.
type Config struct {
	DoorID      uint8
	OpenTime    time.Duration // relay hold after a grant; DefaultOpenTime if zero
	IdleTimeout time.Duration // PIN-entry idle limit; DefaultIdleTimeout if zero

	Open   trigger.Line // door relay
	LED    trigger.Line // status LED
	Buzzer trigger.Line

	CheckKey CheckFunc

	OpenButton bool // manual-release button present
	Sense      bool // door position sensor present

	Logger *slog.Logger
}

// Door is one door controller. All state lives on the dispatch
// goroutine: collaborator callbacks never mutate it directly, they post
// events back to the door's source.
type Door struct {
	engine *event.Engine
	log    *slog.Logger

	id          uint8
	openTime    time.Duration
	idleTimeout time.Duration

	src *event.Source
	reg *event.Registration

	openTrig   *trigger.Trigger
	ledTrig    *trigger.Trigger
	buzzerTrig *trigger.Trigger
	idleTimer  *timer.Timer

	openBtn  *button.Button
	senseBtn *button.Button

	check CheckFunc

	// Dispatch-goroutine state.
	state      State
	pin        uint32
	openStatus uint8
}

// New wires a door controller onto the engine. The returned door is
// armed immediately.
func New(engine *event.Engine, cfg *Config) (*Door, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Open == nil || cfg.LED == nil || cfg.Buzzer == nil {
		return nil, ErrNilLine
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}

	d := &Door{
		engine:      engine,
		log:         log.With("door", cfg.DoorID),
		id:          cfg.DoorID,
		openTime:    cfg.OpenTime,
		idleTimeout: cfg.IdleTimeout,
		src:         event.NewSource(fmt.Sprintf("door%d", cfg.DoorID)),
		check:       cfg.CheckKey,
		state:       StateIdle,
	}
	if d.openTime <= 0 {
		d.openTime = DefaultOpenTime
	}
	if d.idleTimeout <= 0 {
		d.idleTimeout = DefaultIdleTimeout
	}

	var err error
	if d.openTrig, err = trigger.New(cfg.Open, nil); err != nil {
		return nil, err
	}
	if d.ledTrig, err = trigger.New(cfg.LED, nil); err != nil {
		return nil, err
	}
	if d.buzzerTrig, err = trigger.New(cfg.Buzzer, d.buzzerFinished); err != nil {
		return nil, err
	}
	d.idleTimer = timer.New(d.idleExpired)

	if cfg.OpenButton {
		d.openBtn = button.New(DebounceDelay, false, d.buttonChanged)
	}
	if cfg.Sense {
		d.senseBtn = button.New(DebounceDelay, false, d.senseChanged)
	}

	if d.reg, err = engine.Register(d.src, d.onEvent); err != nil {
		return nil, err
	}
	return d, nil
}

// Close deregisters the door and quiesces its timers. Triggers hold
// their last level.
func (d *Door) Close() error {
	d.idleTimer.Deschedule()
	d.engine.Cancel(d.src, EventIdleTimeout)
	return d.engine.Deregister(d.reg)
}

// Source identifies this door on the engine; frontends post reader
// events to it.
func (d *Door) Source() *event.Source { return d.src }

func (d *Door) ID() uint8 { return d.id }

// OpenTime is the configured relay hold.
func (d *Door) OpenTime() time.Duration { return d.openTime }

// State returns the current machine state. It is only exact on the
// dispatch goroutine; monitors elsewhere should subscribe to
// EventStateChanged instead.
func (d *Door) State() State { return d.state }

// OpenStatus returns the active release-reason bits. Dispatch
// goroutine only, like State.
func (d *Door) OpenStatus() uint8 { return d.openStatus }

// OpenButton returns the debounced manual-release input, nil when the
// door has none.
func (d *Door) OpenButton() *button.Button { return d.openBtn }

// SenseInput returns the debounced position sensor, nil when absent.
func (d *Door) SenseInput() *button.Button { return d.senseBtn }

// PressKey posts a keypad press: a digit value, KeyEsc or KeyEnter.
func (d *Door) PressKey(code uint32) error {
	return d.engine.Post(d.src, EventKey, event.U32(code))
}

// SwipeCard posts a card read.
func (d *Door) SwipeCard(card uint32) error {
	return d.engine.Post(d.src, EventCard, event.U32(card))
}

// ReaderError posts a reader fault: tamper, parity, truncated frame.
func (d *Door) ReaderError() error {
	return d.engine.Post(d.src, EventReaderError, event.Value{})
}

// ── Collaborator callbacks (enqueue only, never mutate) ──────────────────────

func (d *Door) buzzerFinished() {
	d.postSelf(EventBuzzerFinished, event.Value{})
}

func (d *Door) idleExpired() {
	d.postSelf(EventIdleTimeout, event.Value{})
}

func (d *Door) buttonChanged(pressed bool) {
	d.postSelf(EventOpenButton, event.U32(boolU32(pressed)))
}

func (d *Door) senseChanged(open bool) {
	d.postSelf(EventSense, event.U32(boolU32(open)))
}

func (d *Door) postSelf(id event.ID, val event.Value) {
	if err := d.engine.Post(d.src, id, val); err != nil {
		d.log.Warn("event lost", "id", uint8(id), "err", err)
	}
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ── Event handling (dispatch goroutine only) ─────────────────────────────────

func (d *Door) onEvent(id event.ID, val event.Value) {
	switch id {
	case EventStateChanged:
		// Our own broadcast.
		return
	case EventBuzzerFinished:
		d.setState(StateIdle)
		return
	case EventIdleTimeout:
		d.timeout()
		return
	case EventOpenButton:
		d.setOpen(ReasonButton, val.U32() != 0)
		return
	case EventSense:
		d.log.Info("door position", "open", val.U32() != 0)
		return
	case EventReaderError:
		d.fail()
		return
	case EventKey, EventCard:
		d.handleInput(id, val.U32())
	default:
		d.fail()
	}
}

// handleInput runs the credential flow for key and card events.
func (d *Door) handleInput(id event.ID, v uint32) {
	switch d.state {
	case StateIdle:
		if id == EventCard {
			d.decide(access.TypeCard, v)
			return
		}
		switch v {
		case KeyEnter:
			// ENTER with no digits collected.
			d.fail()
		case KeyEsc:
			// Reserved; ignored in idle.
		default:
			d.pin = ^uint32(0xF) | v&0xF
			d.setState(StateReadingPIN)
			d.idleTimer.ScheduleIn(d.idleTimeout)
		}

	case StateReadingPIN:
		typ := access.TypePIN
		code := v
		if id == EventCard {
			// A swipe mid-entry folds the card into the collected PIN
			// and acts as ENTER for the combined credential.
			d.pin ^= v
			typ = access.TypePINAndCard
			code = KeyEnter
		}
		switch code {
		case KeyEnter:
			d.decide(typ, d.pin)
		case KeyEsc:
			d.setState(StateIdle)
		default:
			d.pin = d.pin<<4&^0xF | code&0xF
			d.idleTimer.ScheduleIn(d.idleTimeout)
		}

	case StateOpening, StateRejected, StateTimeout, StateError:
		// Feedback in progress; credential input stays dead until the
		// buzzer finishes.
	}
}

// decide consults the validator and settles into OPENING or REJECTED.
func (d *Door) decide(typ access.Type, key uint32) {
	if err := d.checkKey(typ, key); err != nil {
		d.log.Info("access denied", "type", typ.String(), "reason", err)
		d.reject()
		return
	}
	d.log.Info("access granted", "type", typ.String())
	d.grant()
}

func (d *Door) checkKey(typ access.Type, key uint32) error {
	if d.check == nil {
		return ErrNoValidator
	}
	return d.check(d.id, typ, key)
}

func (d *Door) grant() {
	d.setState(StateOpening)
	d.setOpen(ReasonReader, true)
	d.setOpen(ReasonReader, false)
	d.buzzerTrig.StartSeq(seqAccepted)
}

func (d *Door) reject() {
	d.setState(StateRejected)
	d.buzzerTrig.StartSeq(seqRejected)
}

func (d *Door) timeout() {
	d.setState(StateTimeout)
	d.buzzerTrig.StartSeq(seqTimeout)
}

func (d *Door) fail() {
	d.setState(StateError)
	d.buzzerTrig.Start(errorPulse)
}

// setState records a transition and broadcasts it. Outside READING_PIN
// the accumulator is dead and no idle timeout may survive, neither the
// armed timer nor one already sitting in the queue.
func (d *Door) setState(s State) {
	if d.state == s {
		return
	}
	d.state = s
	if s != StateReadingPIN {
		d.pin = 0
		d.idleTimer.Deschedule()
		d.engine.Cancel(d.src, EventIdleTimeout)
	}
	d.log.Debug("state", "state", s.String())
	d.postSelf(EventStateChanged, event.U32(uint32(s)))
}

// setOpen latches or releases one open reason. The relay follows the
// OR of all reasons: the first asserted reason latches it, and dropping
// the last one starts the timed hold instead of slamming the door.
func (d *Door) setOpen(reason uint8, on bool) {
	was := d.openStatus
	if on {
		d.openStatus |= reason
	} else {
		d.openStatus &^= reason
	}
	if (was != 0) == (d.openStatus != 0) {
		return
	}
	if d.openStatus != 0 {
		d.openTrig.Set(true)
		d.ledTrig.Set(true)
	} else {
		d.openTrig.Start(d.openTime)
		d.ledTrig.Start(d.openTime)
	}
}
