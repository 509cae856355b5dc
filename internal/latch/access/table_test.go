package access_test

import (
	"errors"
	"testing"

	"github.com/latchlab/latchd/internal/latch/access"
)

// mustPIN packs a PIN or fails the test.
func mustPIN(t *testing.T, pin string) uint32 {
	t.Helper()
	key, err := access.PackPIN(pin)
	if err != nil {
		t.Fatalf("PackPIN(%q): %v", pin, err)
	}
	return key
}

// newSeededTable builds a table holding one pin, one card and one
// combined grant for door 0.
func newSeededTable(t *testing.T) *access.Table {
	t.Helper()
	tbl := access.NewTable(8)
	recs := []access.Record{
		{Key: mustPIN(t, "1234"), Type: access.TypePIN, Doors: 0b0001},
		{Key: 42, Type: access.TypeCard, Doors: 0b0001},
		{Key: access.CombineKey(7, mustPIN(t, "9")), Type: access.TypePINAndCard, Doors: 0b0001},
	}
	if err := tbl.Load(recs); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tbl
}

// ── Slot addressing ──────────────────────────────────────────────────────────

func TestTable_GetSet(t *testing.T) {
	tbl := access.NewTable(4)

	rec := access.Record{Key: 99, Type: access.TypeCard, Doors: 0b0010}
	if err := tbl.Set(2, rec); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := tbl.Get(2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != rec {
		t.Errorf("expected %+v, got %+v", rec, got)
	}

	free, err := tbl.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if !free.Free() {
		t.Errorf("expected slot 0 free, got %+v", free)
	}
}

func TestTable_IndexRange(t *testing.T) {
	tbl := access.NewTable(4)

	if _, err := tbl.Get(4); !errors.Is(err, access.ErrIndexRange) {
		t.Errorf("Get(4): expected ErrIndexRange, got %v", err)
	}
	if _, err := tbl.Get(-1); !errors.Is(err, access.ErrIndexRange) {
		t.Errorf("Get(-1): expected ErrIndexRange, got %v", err)
	}
	if err := tbl.Set(4, access.Record{}); !errors.Is(err, access.ErrIndexRange) {
		t.Errorf("Set(4): expected ErrIndexRange, got %v", err)
	}
}

func TestTable_Put_FillsFirstFreeSlot(t *testing.T) {
	tbl := access.NewTable(3)
	if err := tbl.Set(0, access.Record{Key: 1, Type: access.TypeCard, Doors: 1}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	i, err := tbl.Put(access.Record{Key: 2, Type: access.TypeCard, Doors: 1})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if i != 1 {
		t.Errorf("expected slot 1, got %d", i)
	}
}

func TestTable_Put_Full(t *testing.T) {
	tbl := access.NewTable(1)
	if _, err := tbl.Put(access.Record{Key: 1, Type: access.TypeCard, Doors: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := tbl.Put(access.Record{Key: 2, Type: access.TypeCard, Doors: 1}); !errors.Is(err, access.ErrTableFull) {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}
}

func TestTable_Clear(t *testing.T) {
	tbl := newSeededTable(t)
	tbl.Clear()

	for i, rec := range tbl.Snapshot() {
		if !rec.Free() {
			t.Errorf("slot %d not free after Clear: %+v", i, rec)
		}
	}
}

func TestTable_Load_TooMany(t *testing.T) {
	tbl := access.NewTable(1)
	recs := []access.Record{
		{Key: 1, Type: access.TypeCard, Doors: 1},
		{Key: 2, Type: access.TypeCard, Doors: 1},
	}
	if err := tbl.Load(recs); !errors.Is(err, access.ErrTableFull) {
		t.Fatalf("expected ErrTableFull, got %v", err)
	}
}

// ── Decisions ────────────────────────────────────────────────────────────────

func TestCheck_GrantsMatchingCredential(t *testing.T) {
	tbl := newSeededTable(t)

	if err := tbl.Check(0, access.TypePIN, mustPIN(t, "1234")); err != nil {
		t.Errorf("pin grant: %v", err)
	}
	if err := tbl.Check(0, access.TypeCard, 42); err != nil {
		t.Errorf("card grant: %v", err)
	}
	if err := tbl.Check(0, access.TypePINAndCard, access.CombineKey(7, mustPIN(t, "9"))); err != nil {
		t.Errorf("combined grant: %v", err)
	}
}

func TestCheck_DeniesWrongKey(t *testing.T) {
	tbl := newSeededTable(t)
	if err := tbl.Check(0, access.TypeCard, 43); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestCheck_DeniesWrongType(t *testing.T) {
	tbl := newSeededTable(t)
	// The card key exists, but as a card grant, not a pin grant.
	if err := tbl.Check(0, access.TypePIN, 42); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestCheck_DeniesWrongDoor(t *testing.T) {
	tbl := newSeededTable(t)
	if err := tbl.Check(1, access.TypeCard, 42); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestCheck_DoorMaskGrantsEachListedDoor(t *testing.T) {
	tbl := access.NewTable(2)
	if err := tbl.Load([]access.Record{{Key: 5, Type: access.TypeCard, Doors: 0b0101}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, door := range []uint8{0, 2} {
		if err := tbl.Check(door, access.TypeCard, 5); err != nil {
			t.Errorf("door %d: %v", door, err)
		}
	}
	for _, door := range []uint8{1, 3} {
		if err := tbl.Check(door, access.TypeCard, 5); !errors.Is(err, access.ErrDenied) {
			t.Errorf("door %d: expected ErrDenied, got %v", door, err)
		}
	}
}

func TestCheck_InvalidRecordNeverMatches(t *testing.T) {
	tbl := access.NewTable(2)
	rec := access.Record{Key: 42, Type: access.TypeCard, Doors: 0b0001, Invalid: true}
	if err := tbl.Set(0, rec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tbl.Check(0, access.TypeCard, 42); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("expected ErrDenied for invalid record, got %v", err)
	}
}

func TestCheck_TypeNoneNeverMatches(t *testing.T) {
	tbl := access.NewTable(2)
	if err := tbl.Check(0, access.TypeNone, 0); !errors.Is(err, access.ErrDenied) {
		t.Fatalf("expected ErrDenied for none type, got %v", err)
	}
}
