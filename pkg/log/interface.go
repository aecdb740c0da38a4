// Package log provides structured logging for exotrain.
//
// Two backends implement Logger: a zerolog logger used by the pipeline and the
// trainer, and TestLogger which captures JSON lines in memory for assertions.
// SetupLogger additionally configures log/slog for code that logs through the
// standard library.
//
//	logger := log.NewZerologLogger(os.Stderr, log.LevelInfo, false).With(
//	    log.RunIDKey, runID,
//	    log.ComponentKey, "nn",
//	)
//	logger.Info("epoch finished", log.EpochKey, 3, log.LossKey, 0.41)
package log

import (
	"context"
)

// Logger is a structured logger taking alternating key/value fields.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)

	// Error logs at error level. A value of type error under any key is
	// rendered with its message.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with slog-compatible values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level.
func ParseLevel(name string) (Level, error) {
	l, err := ToLogLevel(name)
	if err != nil {
		return LevelInfo, err
	}
	return Level(l), nil
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

func (nopLogger) Info(string, ...any) {}

func (nopLogger) Warn(string, ...any) {}

func (nopLogger) Error(string, ...any) {}

func (n nopLogger) With(...any) Logger {
	return n
}

func (nopLogger) Enabled(context.Context, Level) bool {
	return false
}
