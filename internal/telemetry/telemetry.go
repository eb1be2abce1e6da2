// Package telemetry wraps charmbracelet/log into the small, nil-safe
// logger the engine and its surrounding glue use. A nil *Logger is a
// valid no-op logger so unit tests never have to wire one up.
package telemetry

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger tags every message with a component prefix.
type Logger struct {
	inner *log.Logger
}

// New builds a Logger writing to stderr with the given component prefix.
func New(component string) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          component,
		ReportTimestamp: true,
	})
	return &Logger{inner: l}
}

// With returns a Logger sharing the same sink under a different prefix,
// e.g. telemetry.New("engine").With("voicegroup").
func (lg *Logger) With(component string) *Logger {
	if lg == nil {
		return nil
	}
	return &Logger{inner: lg.inner.WithPrefix(component)}
}

func (lg *Logger) Debug(msg string, kv ...interface{}) {
	if lg == nil {
		return
	}
	lg.inner.Debug(msg, kv...)
}

func (lg *Logger) Warn(msg string, kv ...interface{}) {
	if lg == nil {
		return
	}
	lg.inner.Warn(msg, kv...)
}

func (lg *Logger) Error(msg string, kv ...interface{}) {
	if lg == nil {
		return
	}
	lg.inner.Error(msg, kv...)
}
