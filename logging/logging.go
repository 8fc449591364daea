// Package logging builds the structured loggers used across the app.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger creates a [log.Logger] writing to w with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true})
	SetLogLevel(logger, level)
	return logger
}

// WithComponent creates a child logger tagging every entry with the component name.
func WithComponent(l *log.Logger, component string) *log.Logger {
	return l.With("component", component)
}

// SetLogLevel parses level ("debug", "info", "warn", "error") and applies it, falling back to info.
func SetLogLevel(l *log.Logger, level string) {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		parsed = log.InfoLevel
	}
	l.SetLevel(parsed)
}

// ToFile routes a logger to a file so a full screen terminal UI isn't drawn over. The returned func closes it.
func ToFile(l *log.Logger, filename string) (cleanup func(), err error) {
	if filename == "" {
		l.SetOutput(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.SetOutput(f)
	return func() { _ = f.Close() }, nil
}
