package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError is a single validation failure.
type ValidationError struct {
	Field   string // config field path, e.g. "engine.queue_depth"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// The door mask on the wire is four bits, so door IDs stop at 3 and a
// device carries at most four doors. Hold times travel as u16
// milliseconds.
const (
	maxDoorID      = 3
	maxDoors       = maxDoorID + 1
	maxOpenTime    = 65535 * time.Millisecond
	maxQueueDepth  = 1024
	maxRecordSlots = 65535
)

// Validate checks the Config and returns all validation errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateLog()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateAccess()...)
	errs = append(errs, c.validateDoors()...)
	return errs
}

func (c *Config) validateLog() []ValidationError {
	var errs []ValidationError

	if c.Log.Level != "" && !slices.Contains(ValidLogLevels(), c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateEngine() []ValidationError {
	var errs []ValidationError

	if c.Engine.QueueDepth < 1 {
		errs = append(errs, ValidationError{
			Field:   "engine.queue_depth",
			Value:   c.Engine.QueueDepth,
			Message: "must be at least 1",
		})
	}
	if c.Engine.QueueDepth > maxQueueDepth {
		errs = append(errs, ValidationError{
			Field:   "engine.queue_depth",
			Value:   c.Engine.QueueDepth,
			Message: fmt.Sprintf("exceeds maximum of %d", maxQueueDepth),
		})
	}

	return errs
}

func (c *Config) validateAccess() []ValidationError {
	var errs []ValidationError

	if c.Access.Capacity < 1 {
		errs = append(errs, ValidationError{
			Field:   "access.capacity",
			Value:   c.Access.Capacity,
			Message: "must be at least 1",
		})
	}
	if c.Access.Capacity > maxRecordSlots {
		errs = append(errs, ValidationError{
			Field:   "access.capacity",
			Value:   c.Access.Capacity,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRecordSlots),
		})
	}

	return errs
}

func (c *Config) validateDoors() []ValidationError {
	var errs []ValidationError

	if len(c.Doors) == 0 {
		errs = append(errs, ValidationError{
			Field:   "doors",
			Value:   len(c.Doors),
			Message: "at least one door is required",
		})
	}
	if len(c.Doors) > maxDoors {
		errs = append(errs, ValidationError{
			Field:   "doors",
			Value:   len(c.Doors),
			Message: fmt.Sprintf("exceeds maximum of %d doors", maxDoors),
		})
	}

	seen := make(map[uint8]bool)
	for i, d := range c.Doors {
		field := fmt.Sprintf("doors[%d]", i)

		if d.ID > maxDoorID {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Value:   d.ID,
				Message: fmt.Sprintf("exceeds maximum door ID %d", maxDoorID),
			})
		}
		if seen[d.ID] {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Value:   d.ID,
				Message: "duplicate door ID",
			})
		}
		seen[d.ID] = true

		if d.OpenTime < 0 || d.OpenTime > maxOpenTime {
			errs = append(errs, ValidationError{
				Field:   field + ".open_time",
				Value:   d.OpenTime,
				Message: fmt.Sprintf("must be between 0 and %v", maxOpenTime),
			})
		}
		if d.IdleTimeout < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".idle_timeout",
				Value:   d.IdleTimeout,
				Message: "must be non-negative (0 uses the default)",
			})
		}
	}

	return errs
}
