// Package logging provides the structured logger used across robot-ctrl,
// mirroring the teacher SDK's logging.Logger surface so components can be
// constructed and tested the same way (NewLogger for production, NewTestLogger
// for *testing.T-scoped loggers).
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Level is a logging severity, kept distinct from eventlog.Level which is the
// domain-facing operator event severity rather than a process diagnostic one.
type Level int8

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// Logger wraps a zap.SugaredLogger with named sub-loggers the way every
// component in this module expects to receive one at construction time.
type Logger struct {
	*zap.SugaredLogger
	name string
}

// NewLogger builds a production logger named for the component that owns it.
func NewLogger(name string) *Logger {
	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	return &Logger{SugaredLogger: zl.Sugar().Named(name), name: name}
}

// NewTestLogger builds a logger that writes through t.Log, for use in _test.go
// files in place of NewLogger.
func NewTestLogger(t testing.TB) *Logger {
	zl := zaptest.NewLogger(t)
	return &Logger{SugaredLogger: zl.Sugar(), name: "test"}
}

// Named returns a child logger scoped under an additional name component.
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name), name: l.name + "." + name}
}
