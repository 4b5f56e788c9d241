package testutil

import (
	"github.com/hupe1980/agentpipe/core"
)

// EventBuilder provides a fluent helper for constructing stage events in tests.
// Example:
//
//	ev := NewEventBuilder(1, "classifier").Text("Positive").Build()
//
// Messages added through Text are authored by the event's agent.
type EventBuilder struct {
	stage    int
	agent    string
	messages []core.Message
}

// NewEventBuilder creates a builder for the event of stage produced by agent.
func NewEventBuilder(stage int, agent string) *EventBuilder {
	return &EventBuilder{stage: stage, agent: agent}
}

// Text appends an assistant message authored by the event's agent (chainable).
func (b *EventBuilder) Text(text string) *EventBuilder {
	b.messages = append(b.messages, core.NewAssistantMessage(b.agent, text))
	return b
}

// Message appends msg unchanged (chainable).
func (b *EventBuilder) Message(msg core.Message) *EventBuilder {
	b.messages = append(b.messages, msg)
	return b
}

// Build returns the event. An event without messages carries an empty,
// non-nil slice, matching what pipelines emit for silent stages.
func (b *EventBuilder) Build() core.OutputEvent {
	msgs := append([]core.Message{}, b.messages...)
	return core.OutputEvent{Stage: b.stage, Agent: b.agent, Messages: msgs}
}
