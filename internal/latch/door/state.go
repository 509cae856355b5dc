package door

import "fmt"

// State is the controller's position in the access flow. IDLE and
// READING_PIN accept credential input; the remaining states are
// feedback settles that ignore input until the buzzer finishes.
type State uint8

const (
	StateIdle State = iota
	StateReadingPIN
	StateOpening
	StateRejected
	StateTimeout
	StateError
)

var stateNames = [...]string{
	"idle",
	"reading-pin",
	"opening",
	"rejected",
	"timeout",
	"error",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}
