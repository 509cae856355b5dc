// Package ctrl services the management port: the six firmware commands
// that let a host enumerate the device and edit its access records over
// a byte stream.
package ctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/latchlab/latchd/internal/latch/access"
	"github.com/latchlab/latchd/internal/wire"
)

// ErrNilTable is returned by NewPort without an access table.
var ErrNilTable = errors.New("ctrl: nil access table")

// Dependencies carries what the port operates on. Doors holds the
// static per-door configuration in door-ID order.
type Dependencies struct {
	Logger *slog.Logger
	Table  *access.Table
	Doors  []wire.DoorConfig
}

// Port executes management commands against the access table. One port
// serves one stream at a time; the table does its own locking, so a
// port may run concurrently with the door dispatch loop.
type Port struct {
	log   *slog.Logger
	table *access.Table
	doors []wire.DoorConfig
}

func NewPort(deps Dependencies) (*Port, error) {
	if deps.Table == nil {
		return nil, ErrNilTable
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
	}
	return &Port{log: log, table: deps.Table, doors: deps.Doors}, nil
}

// Descriptor reports the device shape announced to clients.
func (p *Port) Descriptor() wire.DeviceDescriptor {
	return wire.DeviceDescriptor{
		Major:            wire.ProtocolMajor,
		Minor:            wire.ProtocolMinor,
		NumDoors:         uint8(len(p.doors)),
		NumAccessRecords: uint16(p.table.Capacity()),
	}
}

// Execute runs one command. Payload lengths are exact: a short or long
// payload is rejected, never sliced.
func (p *Port) Execute(cmd wire.Command, payload []byte) (wire.Status, []byte) {
	switch cmd {
	case wire.CmdGetDeviceDescriptor:
		if len(payload) != 0 {
			return wire.StatusInvalid, nil
		}
		return wire.StatusOK, wire.AppendDescriptor(nil, p.Descriptor())

	case wire.CmdGetDoorConfig:
		if len(payload) != 1 {
			return wire.StatusInvalid, nil
		}
		idx := int(payload[0])
		if idx >= len(p.doors) {
			return wire.StatusNotFound, nil
		}
		return wire.StatusOK, wire.AppendDoorConfig(nil, p.doors[idx])

	case wire.CmdGetAccessRecord:
		if len(payload) != 2 {
			return wire.StatusInvalid, nil
		}
		rec, err := p.table.Get(int(binary.LittleEndian.Uint16(payload)))
		if err != nil {
			return wire.StatusNotFound, nil
		}
		return wire.StatusOK, wire.AppendAccessRecord(nil, rec)

	case wire.CmdSetAccessRecord:
		if len(payload) != 2+wire.AccessRecordLen {
			return wire.StatusInvalid, nil
		}
		rec, err := wire.DecodeAccessRecord(payload[2:])
		if err != nil {
			return wire.StatusInvalid, nil
		}
		if err := p.table.Set(int(binary.LittleEndian.Uint16(payload)), rec); err != nil {
			return wire.StatusNotFound, nil
		}
		return wire.StatusOK, nil

	case wire.CmdSetAccess:
		if len(payload) != wire.AccessRecordLen {
			return wire.StatusInvalid, nil
		}
		rec, err := wire.DecodeAccessRecord(payload)
		if err != nil || rec.Free() {
			// Nothing to grant; a free slot would not hold it anyway.
			return wire.StatusInvalid, nil
		}
		idx, err := p.table.Put(rec)
		if err != nil {
			return wire.StatusNoSpace, nil
		}
		return wire.StatusOK, binary.LittleEndian.AppendUint16(nil, uint16(idx))

	case wire.CmdRemoveAllAccess:
		if len(payload) != 0 {
			return wire.StatusInvalid, nil
		}
		p.table.Clear()
		return wire.StatusOK, nil
	}
	return wire.StatusInvalid, nil
}

// Serve answers requests on rw until the stream ends or ctx is
// cancelled. Cancellation closes rw to unblock the pending read. A
// clean EOF from the peer is not an error.
func (p *Port) Serve(ctx context.Context, rw io.ReadWriteCloser) error {
	stop := context.AfterFunc(ctx, func() { _ = rw.Close() })
	defer stop()

	for {
		cmd, payload, err := wire.ReadRequest(rw)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("ctrl: read request: %w", err)
		}

		status, resp := p.Execute(cmd, payload)
		p.log.Debug("command", "cmd", cmd.String(), "status", status.String())

		if err := wire.WriteResponse(rw, status, resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ctrl: write response: %w", err)
		}
	}
}
