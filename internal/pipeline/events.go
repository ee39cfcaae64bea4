package pipeline

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventActive    EventKind = "active"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventRetrying  EventKind = "retrying"
	EventPaused    EventKind = "paused"
	EventResumed   EventKind = "resumed"
	EventRemoved   EventKind = "removed"
	EventDrained   EventKind = "drained"
)

// Event is one lifecycle transition. Job-level events carry JobID/Type;
// queue-level events (paused, resumed, drained) leave them zero.
type Event struct {
	Kind     EventKind
	Queue    string
	JobID    uuid.UUID
	Type     string
	Attempts int
	Progress int
	Err      error
	Elapsed  time.Duration
	At       time.Time
}

// Sink receives every lifecycle event from every queue. Implementations must
// be safe for concurrent use and must not call back into the publishing
// queue — events may be delivered from its dispatch goroutines.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink fans one event out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
