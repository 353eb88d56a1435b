// Package logging wraps zerolog with subsystem-scoped child loggers.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Console styles accepted by NewStyled.
const (
	StyleConsole = "console"
	StyleJSON    = "json"
)

// Logger wraps zerolog to provide subsystem-scoped child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New creates a root logger writing to the given writer at the specified level.
// If w is nil, defaults to pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	return NewStyled(w, level, StyleConsole)
}

// NewStyled is New with an explicit output style. With a nil writer, the
// json style writes raw JSON lines to stderr instead of console output.
func NewStyled(w io.Writer, level, style string) *Logger {
	if w == nil {
		if style == StyleJSON {
			w = os.Stderr
		} else {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		}
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	zl = zl.Level(ParseLevel(level))
	return &Logger{zl: zl}
}

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// WithLevel returns a copy of the logger filtering at level.
func (l *Logger) WithLevel(level string) *Logger {
	return &Logger{zl: l.zl.Level(ParseLevel(level))}
}

// Level returns the logger's minimum level name.
func (l *Logger) Level() string {
	if l.zl.GetLevel() == zerolog.Disabled {
		return "silent"
	}
	return l.zl.GetLevel().String()
}

// Debug logs at debug level.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info logs at info level.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn logs at warn level.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error logs at error level.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Fatal logs at fatal level and exits.
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// Zerolog returns the underlying zerolog.Logger for advanced use.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// ValidLevel reports whether s names a level ParseLevel understands.
func ValidLevel(s string) bool {
	switch s {
	case "trace", "debug", "info", "warn", "error", "fatal", "silent":
		return true
	}
	return false
}

// ParseLevel maps a level name to a zerolog level; unknown names are info.
func ParseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "silent":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
