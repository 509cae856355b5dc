package event

import "log/slog"

// Option configures an Engine at construction.
type Option func(*Engine)

// WithDepth sets the pool size: the hard cap on queued plus in-flight
// events. Values below one are clamped to one.
func WithDepth(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.initPool(n)
	}
}

// WithLogger attaches a logger for drop diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithIdleHook registers f to observe the dispatch loop parking on an
// empty queue (true) and waking for new events (false). f runs on the
// dispatch goroutine and must not block.
func WithIdleHook(f func(idle bool)) Option {
	return func(e *Engine) {
		e.idle = f
	}
}
