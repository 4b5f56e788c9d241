package core

import "github.com/google/uuid"

// OutputEvent is emitted by a pipeline after each completed stage. Messages
// holds only what that stage produced, never the full history. Stage indexes
// start at 0 and strictly increase within one run.
type OutputEvent struct {
	Stage    int       `json:"stage"`
	Agent    string    `json:"agent"`
	Messages []Message `json:"messages"`
}

// Text joins the text of all messages in the event with newlines.
func (e OutputEvent) Text() string {
	return JoinText(e.Messages)
}

// JoinText concatenates message texts separated by newlines, skipping empty ones.
func JoinText(msgs []Message) string {
	var out string
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += m.Text
	}
	return out
}

// NewID generates a new unique identifier for tasks and runs.
func NewID() string { return uuid.NewString() }
