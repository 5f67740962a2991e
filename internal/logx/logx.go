// Package logx provides leveled, structured logging for the simulator,
// shaped after the project's usual small logging wrapper but backed by
// github.com/rs/zerolog instead of the standard library logger so field
// values stay structured (queue indices, cycle counts, exception causes)
// rather than interpolated into a message string.
package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's level enum so callers don't need to import
// zerolog directly just to set a log level.
type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// Config holds logging configuration.
type Config struct {
	Level  Level
	Output io.Writer
	Pretty bool
}

// DefaultConfig returns a sensible default: info level, stderr, plain
// console writer (human-readable during local simulator runs).
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr, Pretty: true}
}

// New builds a zerolog.Logger from cfg, defaulting Output to os.Stderr.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

var (
	mu      sync.RWMutex
	current = New(DefaultConfig())
)

// Default returns the process-wide default logger.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}
