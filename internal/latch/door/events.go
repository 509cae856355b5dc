package door

import "github.com/latchlab/latchd/internal/latch/event"

// Event ids posted to a door's source. Reader events occupy the low
// block and controller-generated events the high block, so a monitor
// can mask-subscribe to either block alone.
const (
	EventKey         event.ID = 0x01 // val: key code
	EventCard        event.ID = 0x02 // val: card number
	EventReaderError event.ID = 0x03 // val: none

	EventIdleTimeout    event.ID = 0x10 // val: none
	EventBuzzerFinished event.ID = 0x11 // val: none
	EventStateChanged   event.ID = 0x12 // val: new State
	EventOpenButton     event.ID = 0x13 // val: 1 pressed, 0 released
	EventSense          event.ID = 0x14 // val: 1 open, 0 closed
)

// Block masks for filtered registrations.
const (
	EventBlockMask   event.ID = 0xF0
	ReaderEvents     event.ID = 0x00
	ControllerEvents event.ID = 0x10
)

// Key codes delivered with EventKey. Digits carry their own value.
const (
	KeyEsc   uint32 = 0x0A
	KeyEnter uint32 = 0x0B
)

// Open-status reasons. The door stays released while any bit is set.
const (
	ReasonReader uint8 = 1 << iota
	ReasonButton
)
