package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputEvent_Text(t *testing.T) {
	ev := OutputEvent{
		Stage: 1,
		Agent: "classifier",
		Messages: []Message{
			NewAssistantMessage("classifier", "Negative"),
			NewAssistantMessage("classifier", ""),
			NewAssistantMessage("classifier", "Confidence: high"),
		},
	}
	assert.Equal(t, "Negative\nConfidence: high", ev.Text())
}

func TestOutputEvent_TextEmpty(t *testing.T) {
	assert.Equal(t, "", OutputEvent{Stage: 0, Agent: "quiet"}.Text())
}

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
