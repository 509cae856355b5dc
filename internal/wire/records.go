// Package wire implements the device's external binary layouts: the
// descriptor, door-config and access-record blobs exchanged over the
// management port and stored in memory images. Every layout is
// little-endian and byte-exact, placed by explicit offset, so the Go
// structs can evolve without disturbing the format.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/latchlab/latchd/internal/latch/access"
)

// Protocol version reported in the device descriptor.
const (
	ProtocolMajor = 1
	ProtocolMinor = 0
)

// Blob sizes in bytes.
const (
	DescriptorLen   = 5
	DoorConfigLen   = 2
	AccessRecordLen = 5
)

// Access-record perms byte: low two bits the credential type, bit 2 the
// invalid marker, high nibble the door mask.
const (
	permsTypeMask  = 0x03
	permsInvalid   = 0x04
	permsDoorShift = 4
)

// ErrShortBuffer is returned when a blob is truncated.
var ErrShortBuffer = errors.New("wire: short buffer")

// DeviceDescriptor announces the device's shape to management clients.
type DeviceDescriptor struct {
	Major            uint8
	Minor            uint8
	NumDoors         uint8
	NumAccessRecords uint16
}

// AppendDescriptor appends the 5-byte descriptor layout to b.
func AppendDescriptor(b []byte, d DeviceDescriptor) []byte {
	b = append(b, d.Major, d.Minor, d.NumDoors)
	return binary.LittleEndian.AppendUint16(b, d.NumAccessRecords)
}

// DecodeDescriptor reads a descriptor from the front of b.
func DecodeDescriptor(b []byte) (DeviceDescriptor, error) {
	if len(b) < DescriptorLen {
		return DeviceDescriptor{}, ErrShortBuffer
	}
	return DeviceDescriptor{
		Major:            b[0],
		Minor:            b[1],
		NumDoors:         b[2],
		NumAccessRecords: binary.LittleEndian.Uint16(b[3:5]),
	}, nil
}

// DoorConfig is the per-door configuration blob.
type DoorConfig struct {
	OpenTime uint16 // milliseconds the relay holds after a grant
}

// AppendDoorConfig appends the 2-byte door config layout to b.
func AppendDoorConfig(b []byte, c DoorConfig) []byte {
	return binary.LittleEndian.AppendUint16(b, c.OpenTime)
}

// DecodeDoorConfig reads a door config from the front of b.
func DecodeDoorConfig(b []byte) (DoorConfig, error) {
	if len(b) < DoorConfigLen {
		return DoorConfig{}, ErrShortBuffer
	}
	return DoorConfig{OpenTime: binary.LittleEndian.Uint16(b)}, nil
}

// AppendAccessRecord appends the 5-byte record layout to b: key u32 LE,
// then the perms byte.
func AppendAccessRecord(b []byte, rec access.Record) []byte {
	b = binary.LittleEndian.AppendUint32(b, rec.Key)
	perms := byte(rec.Type) & permsTypeMask
	if rec.Invalid {
		perms |= permsInvalid
	}
	perms |= (rec.Doors & 0x0F) << permsDoorShift
	return append(b, perms)
}

// DecodeAccessRecord reads a record from the front of b. A record
// carrying the invalid marker decodes as an empty invalid record: its
// stored key and grants are not trusted.
func DecodeAccessRecord(b []byte) (access.Record, error) {
	if len(b) < AccessRecordLen {
		return access.Record{}, ErrShortBuffer
	}
	perms := b[4]
	if perms&permsInvalid != 0 {
		return access.Record{Invalid: true}, nil
	}
	return access.Record{
		Key:   binary.LittleEndian.Uint32(b),
		Type:  access.Type(perms & permsTypeMask),
		Doors: perms >> permsDoorShift,
	}, nil
}
