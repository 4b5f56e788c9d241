package testutil

import (
	"github.com/hupe1980/agentpipe/core"
)

// HistoryBuilder helps construct conversation histories with fluent chaining.
// Example:
//
//	history := NewHistoryBuilder().User("hi").Assistant("summarizer", "greeting").Build()
type HistoryBuilder struct {
	msgs []core.Message
}

// NewHistoryBuilder creates an empty builder.
func NewHistoryBuilder() *HistoryBuilder { return &HistoryBuilder{} }

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewUserMessage(text))
	return b
}

// Assistant appends a message produced by author (chainable).
func (b *HistoryBuilder) Assistant(author, text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewAssistantMessage(author, text))
	return b
}

// System appends a system message (chainable).
func (b *HistoryBuilder) System(text string) *HistoryBuilder {
	b.msgs = append(b.msgs, core.NewSystemMessage(text))
	return b
}

// Event appends the messages of a stage event (chainable).
func (b *HistoryBuilder) Event(ev core.OutputEvent) *HistoryBuilder {
	b.msgs = append(b.msgs, ev.Messages...)
	return b
}

// Build returns a copy of the accumulated history.
func (b *HistoryBuilder) Build() []core.Message {
	return append([]core.Message(nil), b.msgs...)
}

// Conversation returns the accumulated history as a Conversation.
func (b *HistoryBuilder) Conversation() core.Conversation {
	return core.NewConversation(b.msgs...)
}
