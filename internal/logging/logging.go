// Package logging builds the zerolog loggers used across backends and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON lines to w at the named level.
// An empty level means info.
func New(level string, w io.Writer) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("logging: %w", err)
		}
		lvl = parsed
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Console returns a human-readable logger on stderr for interactive use.
func Console(level string) (zerolog.Logger, error) {
	logger, err := New(level, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	if err != nil {
		return zerolog.Nop(), err
	}
	return logger, nil
}
