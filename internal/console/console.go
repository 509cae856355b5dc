// Package console is the interactive front panel: a tcell terminal
// standing in for the controller's field hardware. Keyboard input
// plays the readers and buttons, and the indicator columns mirror the
// relay, LED and buzzer lines each door drives.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/latchlab/latchd/internal/latch/door"
	"github.com/latchlab/latchd/internal/latch/event"
	"github.com/latchlab/latchd/internal/latch/trigger"
)

var (
	ErrNilEngine = errors.New("console: nil engine")
	ErrDoorCount = errors.New("console: door count does not match panel rows")
)

// row is the rendered state of one door panel.
type row struct {
	id     uint8
	state  door.State
	relay  bool
	led    bool
	buzzer bool
	button bool
	sense  bool
}

// Console renders one row per door and routes keys to the active one.
// Its lines and state watcher are called from trigger timers and the
// dispatch goroutine, so all panel state sits behind one mutex.
type Console struct {
	log  *slog.Logger
	card uint32

	mu     sync.Mutex
	screen tcell.Screen
	rows   []row
	doors  []*door.Door
	active int
	busy   bool
}

// New builds a panel for the given door IDs. card is the credential
// the swipe key presents. The panel's lines can be handed to doors
// immediately; the screen appears once Run is called.
func New(ids []uint8, card uint32, log *slog.Logger) *Console {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	c := &Console{log: log, card: card, rows: make([]row, len(ids))}
	for i, id := range ids {
		c.rows[i] = row{id: id}
	}
	return c
}

// ── Hardware stand-ins ────────────────────────────────────────────────────────

// RelayLine returns the relay indicator line for one panel row.
func (c *Console) RelayLine(panel int) trigger.Line {
	return c.lineFunc(panel, func(r *row, on bool) { r.relay = on })
}

// LEDLine returns the status LED indicator line for one panel row.
func (c *Console) LEDLine(panel int) trigger.Line {
	return c.lineFunc(panel, func(r *row, on bool) { r.led = on })
}

// BuzzerLine returns the buzzer indicator line for one panel row.
func (c *Console) BuzzerLine(panel int) trigger.Line {
	return c.lineFunc(panel, func(r *row, on bool) { r.buzzer = on })
}

func (c *Console) lineFunc(panel int, apply func(*row, bool)) trigger.Line {
	return trigger.LineFunc(func(on bool) {
		c.mu.Lock()
		if panel >= 0 && panel < len(c.rows) {
			apply(&c.rows[panel], on)
			c.redrawLocked()
		}
		c.mu.Unlock()
	})
}

// Activity is an engine idle hook; the header marker shows whether the
// dispatch loop is parked or working.
func (c *Console) Activity(idle bool) {
	c.mu.Lock()
	c.busy = !idle
	c.redrawLocked()
	c.mu.Unlock()
}

// Attach binds the panel to its doors and subscribes to their state
// broadcasts. doors must line up with the IDs given to New.
func (c *Console) Attach(engine *event.Engine, doors []*door.Door) error {
	if engine == nil {
		return ErrNilEngine
	}
	if len(doors) != len(c.rows) {
		return fmt.Errorf("%w: %d doors for %d rows", ErrDoorCount, len(doors), len(c.rows))
	}

	c.mu.Lock()
	c.doors = append([]*door.Door(nil), doors...)
	c.mu.Unlock()

	for i, d := range doors {
		panel := i
		_, err := engine.RegisterFiltered(d.Source(), 0xFF, door.EventStateChanged,
			func(_ event.ID, val event.Value) {
				c.mu.Lock()
				c.rows[panel].state = door.State(val.U32())
				c.redrawLocked()
				c.mu.Unlock()
			})
		if err != nil {
			return fmt.Errorf("console: watch door %d: %w", d.ID(), err)
		}
	}
	return nil
}

// ── Event loop ────────────────────────────────────────────────────────────────

// Run owns the process terminal until ctx is cancelled or the operator
// quits with q or Ctrl-C.
func (c *Console) Run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("console: new screen: %w", err)
	}
	return c.RunWithScreen(ctx, screen)
}

// RunWithScreen runs the panel on a caller-supplied screen. The
// console initializes and finalizes the screen itself.
func (c *Console) RunWithScreen(ctx context.Context, screen tcell.Screen) error {
	if err := screen.Init(); err != nil {
		return fmt.Errorf("console: init screen: %w", err)
	}
	defer screen.Fini()

	c.mu.Lock()
	c.screen = screen
	c.redrawLocked()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.screen = nil
		c.mu.Unlock()
	}()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go screen.ChannelEvents(events, quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				c.mu.Lock()
				c.redrawLocked()
				c.mu.Unlock()
			case *tcell.EventKey:
				if !c.handleKey(ev) {
					return nil
				}
			}
		}
	}
}

// handleKey maps one key to reader or panel input. It returns false
// when the key quits the console. It runs on the event-loop goroutine
// and only posts; door state changes come back through the engine.
func (c *Console) handleKey(ev *tcell.EventKey) bool {
	c.mu.Lock()
	panel := c.active
	var d *door.Door
	if panel < len(c.doors) {
		d = c.doors[panel]
	}
	c.mu.Unlock()

	switch ev.Key() {
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyTab:
		c.cycleActive()
		return true
	case tcell.KeyEnter:
		if d != nil {
			c.post(d.PressKey(door.KeyEnter))
		}
		return true
	case tcell.KeyEscape:
		if d != nil {
			c.post(d.PressKey(door.KeyEsc))
		}
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	switch r := ev.Rune(); {
	case r >= '0' && r <= '9':
		if d != nil {
			c.post(d.PressKey(uint32(r - '0')))
		}
	case r == 'c':
		if d != nil {
			c.post(d.SwipeCard(c.card))
		}
	case r == 'x':
		if d != nil {
			c.post(d.ReaderError())
		}
	case r == 'b':
		c.toggleButton(panel, d)
	case r == 's':
		c.toggleSense(panel, d)
	case r == 'q':
		return false
	}
	return true
}

func (c *Console) post(err error) {
	if err != nil {
		c.log.Warn("input dropped", "err", err)
	}
}

func (c *Console) cycleActive() {
	c.mu.Lock()
	if len(c.rows) > 0 {
		c.active = (c.active + 1) % len(c.rows)
	}
	c.redrawLocked()
	c.mu.Unlock()
}

func (c *Console) toggleButton(panel int, d *door.Door) {
	c.mu.Lock()
	c.rows[panel].button = !c.rows[panel].button
	level := c.rows[panel].button
	c.redrawLocked()
	c.mu.Unlock()

	if d == nil {
		return
	}
	if btn := d.OpenButton(); btn != nil {
		btn.Input(level)
	}
}

func (c *Console) toggleSense(panel int, d *door.Door) {
	c.mu.Lock()
	c.rows[panel].sense = !c.rows[panel].sense
	level := c.rows[panel].sense
	c.redrawLocked()
	c.mu.Unlock()

	if d == nil {
		return
	}
	if sense := d.SenseInput(); sense != nil {
		sense.Input(level)
	}
}

// ── Rendering ─────────────────────────────────────────────────────────────────

var (
	styleHeader = tcell.StyleDefault.Bold(true)
	styleHelp   = tcell.StyleDefault.Dim(true)
)

func styleForState(s door.State, active bool) tcell.Style {
	st := tcell.StyleDefault
	switch s {
	case door.StateOpening:
		st = st.Foreground(tcell.ColorGreen)
	case door.StateRejected, door.StateError:
		st = st.Foreground(tcell.ColorRed)
	case door.StateReadingPIN:
		st = st.Foreground(tcell.ColorYellow)
	case door.StateTimeout:
		st = st.Foreground(tcell.ColorOrange)
	}
	if active {
		st = st.Bold(true)
	}
	return st
}

func dot(on bool) rune {
	if on {
		return '●'
	}
	return '○'
}

func (c *Console) redrawLocked() {
	s := c.screen
	if s == nil {
		return
	}
	s.Clear()

	marker := "○ idle"
	if c.busy {
		marker = "● busy"
	}
	drawText(s, 0, 0, styleHeader, " latchd  "+marker)

	for i, r := range c.rows {
		prefix := "  "
		if i == c.active {
			prefix = "> "
		}
		line := fmt.Sprintf("%sdoor %d  %-11s  relay %c  led %c  buzz %c  btn %c  sense %c",
			prefix, r.id, r.state.String(),
			dot(r.relay), dot(r.led), dot(r.buzzer), dot(r.button), dot(r.sense))
		drawText(s, 0, 2+i, styleForState(r.state, i == c.active), line)
	}

	help := " 0-9 pin  enter  esc  c swipe  b button  s sense  x fault  tab door  q quit"
	drawText(s, 0, len(c.rows)+3, styleHelp, help)

	s.Show()
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		s.SetContent(col, y, r, nil, style)
		col++
	}
}
