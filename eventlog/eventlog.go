// Package eventlog implements the leveled, drainable event queue (C8) that
// the motion FSM appends to and the status emitter drains once per status
// tick. The queue has no capacity limit: events accumulate until drained.
package eventlog

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of an Event as seen by an operator, distinct from the
// process-diagnostic logging.Level used for internal zap output.
type Level string

const (
	Debug     Level = "Debug"
	Info      Level = "Info"
	Warning   Level = "Warning"
	Error     Level = "Error"
	Critical  Level = "Critical"
	Kinematic Level = "Kinematic"
	EtherCAT  Level = "EtherCAT"
)

// Event is a single operator-facing record. ID is a UUID-v4 as a 32-hex
// string with the hyphens stripped; uuid.New() places the version nibble
// ('4') at the 13th character.
type Event struct {
	ID      string      `json:"id"`
	Level   Level       `json:"level"`
	Time    time.Time   `json:"time"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// Log is a single-producer/single-consumer FIFO: the cyclic control thread
// appends, the status emitter drains. The mutex exists only to make the type
// safe to share across the two goroutines; it is held for the duration of a
// single append or a single drain, never across a tick.
type Log struct {
	mu     sync.Mutex
	events []Event
}

// New returns an empty event log.
func New() *Log {
	return &Log{}
}

func (l *Log) append(level Level, message string, detail interface{}) Event {
	ev := Event{
		ID:      strings.ReplaceAll(uuid.New().String(), "-", ""),
		Level:   level,
		Time:    time.Now(),
		Message: message,
		Detail:  detail,
	}
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return ev
}

func (l *Log) Debug(message string, detail ...interface{}) Event {
	return l.append(Debug, message, firstDetail(detail))
}

func (l *Log) Info(message string, detail ...interface{}) Event {
	return l.append(Info, message, firstDetail(detail))
}

func (l *Log) Warning(message string, detail ...interface{}) Event {
	return l.append(Warning, message, firstDetail(detail))
}

func (l *Log) Error(message string, detail ...interface{}) Event {
	return l.append(Error, message, firstDetail(detail))
}

func (l *Log) Critical(message string, detail ...interface{}) Event {
	return l.append(Critical, message, firstDetail(detail))
}

func (l *Log) Kinematic(message string, detail ...interface{}) Event {
	return l.append(Kinematic, message, firstDetail(detail))
}

func (l *Log) EtherCAT(message string, detail ...interface{}) Event {
	return l.append(EtherCAT, message, firstDetail(detail))
}

func firstDetail(detail []interface{}) interface{} {
	if len(detail) == 0 {
		return nil
	}
	return detail[0]
}

// Drain removes and returns every event currently queued, in FIFO order. It
// is the only way events leave the log; each drained event is guaranteed to
// appear exactly once.
func (l *Log) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return nil
	}
	drained := l.events
	l.events = nil
	return drained
}

// Len reports the number of events currently queued, mostly useful for tests.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
