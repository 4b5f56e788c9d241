package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, []core.Message) (string, error) {
	return m.text, m.err
}

func testHistory() []core.Message {
	return []core.Message{
		core.NewUserMessage("hello"),
		core.NewAssistantMessage("summarizer", "greeting"),
	}
}

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, history []core.Message) (string, error) {
		return "history starts with " + history[0].Text, nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "history starts with hello", got)
}

func TestInstruction_Provider(t *testing.T) {
	got, err := NewInstructionFromProvider(mockProvider{text: "from provider"}).Resolve(context.Background(), testHistory())
	require.NoError(t, err)
	assert.Equal(t, "from provider", got)

	boom := errors.New("provider failed")
	_, err = NewInstructionFromProvider(mockProvider{err: boom}).Resolve(context.Background(), testHistory())
	assert.ErrorIs(t, err, boom)
}

func TestInstruction_Template(t *testing.T) {
	t.Run("plain text stays static", func(t *testing.T) {
		inst := NewInstructionFromTemplate("Classify the feedback.")
		assert.True(t, inst.IsStatic())
	})

	t.Run("renders conversation fields", func(t *testing.T) {
		inst := NewInstructionFromTemplate("Turn {{.Turns}}: reply to {{.Author}} about {{.Last}}.")
		assert.False(t, inst.IsStatic())

		got, err := inst.Resolve(context.Background(), testHistory())
		require.NoError(t, err)
		assert.Equal(t, "Turn 2: reply to summarizer about greeting.", got)
	})

	t.Run("transcript", func(t *testing.T) {
		got, err := NewInstructionFromTemplate("{{.Transcript}}").Resolve(context.Background(), testHistory())
		require.NoError(t, err)
		assert.Equal(t, "[user] hello\n[summarizer] greeting", got)
	})

	t.Run("empty history", func(t *testing.T) {
		got, err := NewInstructionFromTemplate("last={{.Last}}").Resolve(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "last=", got)
	})

	t.Run("unknown field fails at resolve", func(t *testing.T) {
		_, err := NewInstructionFromTemplate("{{.Missing}}").Resolve(context.Background(), testHistory())
		assert.Error(t, err)
	})
}
