package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversation_AppendPreservesOrder(t *testing.T) {
	msgs := []Message{
		NewUserMessage("m1"),
		NewAssistantMessage("a", "m2"),
		NewAssistantMessage("b", "m3"),
		NewSystemMessage("m4"),
	}

	conv := NewConversation()
	for _, m := range msgs {
		conv = conv.Append(m)
	}

	assert.Equal(t, len(msgs), conv.Len())
	assert.Equal(t, msgs, conv.Messages())
}

func TestConversation_AppendDoesNotMutateReceiver(t *testing.T) {
	base := NewConversation(NewUserMessage("seed"))
	next := base.Append(NewAssistantMessage("a", "reply"))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, next.Len())

	// Appending twice to the same snapshot must not clobber the other branch.
	other := base.Append(NewAssistantMessage("b", "different"))
	assert.Equal(t, "reply", next.Messages()[1].Text)
	assert.Equal(t, "different", other.Messages()[1].Text)
}

func TestConversation_MessagesIsDefensiveCopy(t *testing.T) {
	conv := NewConversation(NewUserMessage("seed"))
	out := conv.Messages()
	out[0].Text = "tampered"

	assert.Equal(t, "seed", conv.Messages()[0].Text)
}

func TestConversation_LastAndTranscript(t *testing.T) {
	var empty Conversation
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.Equal(t, "", empty.Transcript())

	conv := NewConversation(NewUserMessage("I love the app"), NewAssistantMessage("summarizer", "User praises app."))
	last, ok := conv.Last()
	assert.True(t, ok)
	assert.Equal(t, "summarizer", last.Author)
	assert.Equal(t, "[user] I love the app\n[summarizer] User praises app.", conv.Transcript())
}
