// Package bus forwards task lifecycle events to a NATS subject so other
// processes can observe tasks without holding the HTTP stream open.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/task"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "agentpipe.tasks"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// SinkOptions configures a Sink.
type SinkOptions struct {
	// Subject is the prefix; events go to "<Subject>.<task id>".
	Subject string
	Logger  logging.Logger
}

// Sink is a task.Sink that publishes every event as JSON.
type Sink struct {
	pub     Publisher
	subject string
	logger  logging.Logger
}

// NewSink creates a Sink over pub.
func NewSink(pub Publisher, optFns ...func(o *SinkOptions)) *Sink {
	opts := SinkOptions{
		Subject: DefaultSubject,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Subject == "" {
		opts.Subject = DefaultSubject
	}

	return &Sink{
		pub:     pub,
		subject: strings.TrimSuffix(opts.Subject, "."),
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Subject returns the subject an event for taskID is published on.
func (s *Sink) Subject(taskID string) string {
	return s.subject + "." + taskID
}

// Publish implements task.Sink.
func (s *Sink) Publish(ctx context.Context, ev task.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := s.Subject(ev.TaskID)
	if err := s.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	s.logger.Debug("published task event", "subject", subject, "kind", ev.Kind)
	return nil
}

// Decode parses an event published by Sink.
func Decode(data []byte) (task.Event, error) {
	var ev task.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return task.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Connect dials a NATS server. The caller owns the connection and must Drain
// or Close it.
func Connect(url, name string) (*nats.Conn, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}
