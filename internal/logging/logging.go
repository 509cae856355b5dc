// Package logging builds the controller's JSON log stream.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
)

// ParseLevel converts a config level string to a slog.Level, case
// insensitively. Unknown strings fall back to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the process logger. A non-empty path appends JSON lines
// to that file and the returned closer owns it. With no file the log
// goes to stderr, or nowhere when quiet is set; the console frontend
// runs quiet because stderr writes would tear the terminal it owns.
func Open(path, level string, quiet bool) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
		}
		return slog.New(slog.NewJSONHandler(file, opts)), file, nil
	}
	if quiet {
		return Nop(), nopCloser{}, nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nopCloser{}, nil
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(math.MaxInt)}))
}
