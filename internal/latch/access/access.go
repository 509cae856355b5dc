// Package access holds the controller's credential model: key packing,
// typed access records, and the fixed-capacity table that mirrors the
// device's record memory.
package access

import "fmt"

// Type is a credential type. The numeric values are part of the device
// memory layout and must not change.
type Type uint8

const (
	TypeNone Type = iota
	TypePIN
	TypeCard
	TypePINAndCard
)

var typeNames = [...]string{"none", "pin", "card", "pin+card"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Record grants one key access to a set of doors. Doors is a bitmask,
// bit i for door i. Invalid marks a slot whose contents must not be
// trusted; a TypeNone record is a free slot.
type Record struct {
	Key     uint32
	Type    Type
	Doors   uint8
	Invalid bool
}

// Free reports whether the slot holds no grant.
func (r Record) Free() bool {
	return r.Type == TypeNone
}
