// Package logging provides the logging capability injected into every
// component. Components depend on the Logger interface, never on a concrete
// backend, so tests can pass Nop and the CLI can choose console or JSON output.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the capability handed to components. Key/value pairs follow the
// usual alternating convention: "key", value, "key", value.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type zeroLogger struct {
	log zerolog.Logger
}

// Options controls the zerolog backend.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// Console switches to human-readable console output instead of JSON.
	Console bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a zerolog-backed Logger tagged with the component name.
func New(component string, opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level := parseLevel(opts.Level)
	log := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
	return &zeroLogger{log: log}
}

// ForComponent returns a copy of l tagged with a different component name.
// Loggers built by other constructors are returned unchanged.
func ForComponent(l Logger, component string) Logger {
	zl, ok := l.(*zeroLogger)
	if !ok {
		return l
	}
	return &zeroLogger{log: zl.log.With().Str("component", component).Logger()}
}

func parseLevel(s string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

func (l *zeroLogger) Debug(msg string, kv ...any) { l.emit(l.log.Debug(), msg, kv) }
func (l *zeroLogger) Info(msg string, kv ...any)  { l.emit(l.log.Info(), msg, kv) }
func (l *zeroLogger) Warn(msg string, kv ...any)  { l.emit(l.log.Warn(), msg, kv) }
func (l *zeroLogger) Error(msg string, kv ...any) { l.emit(l.log.Error(), msg, kv) }

func (l *zeroLogger) emit(e *zerolog.Event, msg string, kv []any) {
	if len(kv) > 0 {
		e = e.Fields(kv)
	}
	e.Msg(msg)
}

// Nop discards everything. Handy default for tests and optional dependencies.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
