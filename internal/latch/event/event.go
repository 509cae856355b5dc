// Package event implements the controller's one concurrency primitive:
// a bounded pool of event slots threaded into a FIFO queue, a
// source-keyed handler registry, and the single dispatch goroutine that
// drains them. Producers on any goroutine post events; handlers run
// serially on the dispatch goroutine and own all mutable domain state.
package event

// ID names an event kind within a source's numbering space. The low and
// high bits are free for subsystems to carve into blocks; filtered
// registrations match on them with a mask.
type ID uint8

// Source is the identity of an event producer. Handlers subscribe to a
// source and every posted event names one; the pointer itself is the
// identity, the name only shows up in logs.
type Source struct {
	name string
}

// NewSource allocates a source identity.
func NewSource(name string) *Source {
	return &Source{name: name}
}

func (s *Source) String() string {
	if s == nil {
		return "<none>"
	}
	return s.name
}

// Kind tags the payload variant carried by a Value.
type Kind uint8

const (
	KindNone Kind = iota
	KindScalar
	KindRef
)

// Value is an event payload: nothing, a 32-bit scalar, or an opaque
// reference. The kind travels with the value so a handler can never
// misread one variant as the other.
type Value struct {
	kind Kind
	u32  uint32
	ref  any
}

// U32 wraps a 32-bit scalar payload.
func U32(v uint32) Value {
	return Value{kind: KindScalar, u32: v}
}

// Ref wraps an opaque reference payload.
func Ref(v any) Value {
	return Value{kind: KindRef, ref: v}
}

func (v Value) Kind() Kind {
	return v.kind
}

// U32 returns the scalar payload, or zero when the value holds none.
func (v Value) U32() uint32 {
	if v.kind != KindScalar {
		return 0
	}
	return v.u32
}

// Ref returns the reference payload, or nil when the value holds none.
func (v Value) Ref() any {
	if v.kind != KindRef {
		return nil
	}
	return v.ref
}
