// Package logging wraps github.com/charmbracelet/log to give the core
// the leveled, timestamped logging the teacher's CLI lacked (bare
// fmt.Printf) and the original Rust source's log_println!/
// log_eprintln! macros implied, without hand-rolling a logger.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is a thin facade over *log.Logger so call sites don't depend
// on the charmbracelet/log package directly, matching the original's
// macro-call-site simplicity: Info for log_println!, Error/Warn for
// log_eprintln!'s "[!]"-prefixed diagnostics.
type Logger struct {
	inner *log.Logger
}

// New creates a Logger writing to w (os.Stderr in production, an
// in-memory buffer in tests) at the given level.
func New(w io.Writer, level log.Level) *Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
	})
	return &Logger{inner: l}
}

// Default is the process-wide logger used where no Logger has been
// threaded through explicitly (mirroring the original's global
// log_println! call sites, which had no logger instance to pass).
var Default = New(os.Stderr, log.InfoLevel)

func (l *Logger) Debug(msg string, kv ...any) { l.inner.Debug(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.inner.Info(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.inner.Warn(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.inner.Error(msg, kv...) }

func (l *Logger) SetLevel(level log.Level) { l.inner.SetLevel(level) }

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{inner: l.inner.With(kv...)}
}
