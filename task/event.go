package task

import (
	"context"
	"time"

	"github.com/hupe1980/agentpipe/core"
)

// EventKind identifies which transition produced an Event.
type EventKind string

const (
	EventSubmitted EventKind = "submitted"
	EventWorking   EventKind = "working"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// Event is published once per lifecycle transition.
type Event struct {
	Kind      EventKind     `json:"kind"`
	TaskID    string        `json:"task_id"`
	ContextID string        `json:"context_id"`
	State     State         `json:"state"`
	Message   *core.Message `json:"message,omitempty"`
	Final     bool          `json:"final"`
	Timestamp time.Time     `json:"timestamp"`
}

// Sink receives lifecycle events. Publish must preserve call order for a task.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// MultiSink fans one event out to several sinks in order, stopping at the
// first error.
type MultiSink []Sink

// Publish implements Sink.
func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
