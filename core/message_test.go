package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_DefaultAuthorByRole(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		author string
	}{
		{"user", NewUserMessage("hi"), "user"},
		{"assistant default", NewMessage(RoleAssistant, "", "ok"), "assistant"},
		{"assistant named", NewAssistantMessage("summarizer", "ok"), "summarizer"},
		{"system", NewSystemMessage("be brief"), "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.author, tt.msg.Author)
			assert.Equal(t, tt.author, tt.msg.AuthorName())
		})
	}
}

func TestMessage_AuthorNameFallback(t *testing.T) {
	m := Message{Role: RoleAssistant, Text: "raw"}
	assert.Equal(t, "assistant", m.AuthorName())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Assistant ")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	r, err = ParseRole("agent")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	_, err = ParseRole("tool")
	assert.Error(t, err)
}

func TestRole_JSON(t *testing.T) {
	b, err := json.Marshal(NewAssistantMessage("classifier", "Positive"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","author":"classifier","text":"Positive"}`, string(b))

	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"system","text":"x"}`), &m))
	assert.Equal(t, RoleSystem, m.Role)

	_, err = json.Marshal(Message{Role: Role(9)})
	assert.Error(t, err)
}
