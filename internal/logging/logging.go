// Package logging builds the zerolog.Logger this module's connections
// and subscriptions log through: level/format handling restyled as a
// constructor a library can call per-instance instead of mutating a
// process-global logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the log output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config controls logger construction.
type Config struct {
	Level     string // "trace", "debug", "info", "warn", "error"; defaults to "info"
	Format    Format
	Component string // e.g. "tcpq", "udpm", "registry"
}

// New builds a zerolog.Logger with a timestamp, the given component
// field, and the requested level/format. Defaults to info level, JSON
// format, when Config is the zero value.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stderr
	if cfg.Format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if cfg.Level == "" || err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", cfg.Component).
		Logger()

	return logger
}

// Nop returns a logger that discards everything, used as a default when
// a caller does not supply one.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
