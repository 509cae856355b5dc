package wire

import (
	"errors"
	"fmt"
	"io"
)

// Management-port framing: a request is {cmd u8, len u8, payload}, a
// response {status u8, len u8, payload}. Payload layouts are the blobs
// defined in this package.

// Command selects a management operation.
type Command uint8

const (
	CmdGetDeviceDescriptor Command = iota
	CmdGetDoorConfig
	CmdGetAccessRecord
	CmdSetAccessRecord
	CmdSetAccess
	CmdRemoveAllAccess
)

var commandNames = [...]string{
	"get_device_descriptor",
	"get_door_config",
	"get_access_record",
	"set_access_record",
	"set_access",
	"remove_all_access",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// Status is the response code of a management operation.
type Status uint8

const (
	StatusOK Status = iota
	StatusInvalid
	StatusNotFound
	StatusNoSpace
)

var statusNames = [...]string{"ok", "invalid", "not_found", "no_space"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MaxPayload is the largest payload the one-byte length field carries.
const MaxPayload = 255

var (
	// ErrPayloadSize is returned when a payload exceeds MaxPayload.
	ErrPayloadSize = errors.New("wire: payload too large")

	// ErrTruncatedFrame is returned when a frame ends mid-payload.
	ErrTruncatedFrame = errors.New("wire: truncated frame")
)

// WriteRequest writes one request frame.
func WriteRequest(w io.Writer, cmd Command, payload []byte) error {
	return writeFrame(w, byte(cmd), payload)
}

// ReadRequest reads one request frame.
func ReadRequest(r io.Reader) (Command, []byte, error) {
	tag, payload, err := readFrame(r)
	return Command(tag), payload, err
}

// WriteResponse writes one response frame.
func WriteResponse(w io.Writer, st Status, payload []byte) error {
	return writeFrame(w, byte(st), payload)
}

// ReadResponse reads one response frame.
func ReadResponse(r io.Reader) (Status, []byte, error) {
	tag, payload, err := readFrame(r)
	return Status(tag), payload, err
}

// writeFrame emits the frame in a single Write so concurrent writers on
// a shared character device cannot interleave partial frames.
func writeFrame(w io.Writer, tag byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadSize
	}
	buf := make([]byte, 0, 2+len(payload))
	buf = append(buf, tag, byte(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) (byte, []byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	n := int(hdr[1])
	if n == 0 {
		return hdr[0], nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrTruncatedFrame, err)
	}
	return hdr[0], payload, nil
}
