package access

import (
	"errors"
	"sync"
)

// DefaultCapacity matches the record memory of the reference device.
const DefaultCapacity = 64

var (
	// ErrDenied is the decision for a credential no record grants.
	ErrDenied = errors.New("access: denied")

	// ErrIndexRange is returned for record indexes outside the table.
	ErrIndexRange = errors.New("access: record index out of range")

	// ErrTableFull is returned when no free slot remains.
	ErrTableFull = errors.New("access: table full")
)

// Table is the in-memory image of the device's access records: a fixed
// array of slots addressed by index. The management port writes it
// while door handlers query it, so every access takes the lock.
type Table struct {
	mu    sync.RWMutex
	slots []Record
}

// NewTable builds a table of the given capacity, DefaultCapacity when
// capacity is not positive. All slots start free.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{slots: make([]Record, capacity)}
}

func (t *Table) Capacity() int {
	return len(t.slots)
}

// Get returns the record at index.
func (t *Table) Get(index int) (Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.slots) {
		return Record{}, ErrIndexRange
	}
	return t.slots[index], nil
}

// Set stores rec at index, overwriting the slot.
func (t *Table) Set(index int, rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.slots) {
		return ErrIndexRange
	}
	t.slots[index] = rec
	return nil
}

// Put stores rec in the first free slot and returns its index.
func (t *Table) Put(rec Record) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.slots {
		if r.Free() {
			t.slots[i] = rec
			return i, nil
		}
	}
	return 0, ErrTableFull
}

// Clear frees every slot.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		t.slots[i] = Record{}
	}
}

// Load clears the table and stores recs from slot zero up.
func (t *Table) Load(recs []Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(recs) > len(t.slots) {
		return ErrTableFull
	}
	for i := range t.slots {
		t.slots[i] = Record{}
	}
	copy(t.slots, recs)
	return nil
}

// Snapshot returns a copy of every slot, free ones included.
func (t *Table) Snapshot() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.slots))
	copy(out, t.slots)
	return out
}

// Check decides whether a credential opens a door: it scans for a valid
// record of the requested type whose key matches and whose door mask
// includes doorID. Any miss is ErrDenied; the decision never reveals
// which part failed to match.
func (t *Table) Check(doorID uint8, typ Type, key uint32) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.slots {
		if r.Invalid || r.Type != typ {
			continue
		}
		if r.Key != key {
			continue
		}
		if r.Doors&(1<<doorID) == 0 {
			continue
		}
		return nil
	}
	return ErrDenied
}
