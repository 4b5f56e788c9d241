package core

import "strings"

// Conversation is the ordered, append-only message history threaded through a
// pipeline run. Append never mutates the receiver: it returns a new
// Conversation, so a snapshot handed to a participant stays stable while the
// run grows its own copy.
type Conversation struct {
	messages []Message
}

// NewConversation creates a conversation seeded with msgs (copied).
func NewConversation(msgs ...Message) Conversation {
	return Conversation{messages: append([]Message(nil), msgs...)}
}

// Append returns a new conversation with msgs added after the existing history.
func (c Conversation) Append(msgs ...Message) Conversation {
	next := make([]Message, 0, len(c.messages)+len(msgs))
	next = append(next, c.messages...)
	next = append(next, msgs...)
	return Conversation{messages: next}
}

// Messages returns a copy of the history in insertion order.
func (c Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c Conversation) Len() int { return len(c.messages) }

// Last returns the most recent message, if any.
func (c Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Transcript renders the history as "[author] text" lines.
func (c Conversation) Transcript() string {
	var b strings.Builder
	for i, m := range c.messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[")
		b.WriteString(m.AuthorName())
		b.WriteString("] ")
		b.WriteString(m.Text)
	}
	return b.String()
}
