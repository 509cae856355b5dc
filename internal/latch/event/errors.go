package event

import "errors"

var (
	// ErrNilSource is returned when posting or registering with a nil
	// source.
	ErrNilSource = errors.New("event: nil source")

	// ErrNilHandler is returned when registering a nil handler func.
	ErrNilHandler = errors.New("event: nil handler")

	// ErrQueueFull is returned by Post when every pool slot is occupied.
	// The event is dropped; the queue never blocks a producer.
	ErrQueueFull = errors.New("event: queue full")

	// ErrNotRegistered is returned when deregistering a handler the
	// engine does not hold.
	ErrNotRegistered = errors.New("event: not registered")
)
