package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

type fakeSender struct {
	contextID string
	text      string
	reply     core.Message
	err       error
}

func (f *fakeSender) SendText(_ context.Context, contextID, text string) (core.Message, error) {
	f.contextID = contextID
	f.text = text
	return f.reply, f.err
}

func TestRemoteAgent_SingleMessageIsForwarded(t *testing.T) {
	sender := &fakeSender{reply: core.NewAssistantMessage("title-agent", "Go in Production")}
	agent := NewRemoteAgent("titles", sender, func(o *RemoteAgentOptions) { o.ContextID = "ctx-1" })

	msgs, err := agent.Invoke(context.Background(), []core.Message{core.NewUserMessage("A post about Go")})
	require.NoError(t, err)

	assert.Equal(t, "ctx-1", sender.contextID)
	assert.Equal(t, "A post about Go", sender.text)
	require.Len(t, msgs, 1)
	assert.Equal(t, core.NewAssistantMessage("titles", "Go in Production"), msgs[0])
}

func TestRemoteAgent_HistoryIsSentAsTranscript(t *testing.T) {
	sender := &fakeSender{reply: core.NewAssistantMessage("remote", "ok")}
	agent := NewRemoteAgent("titles", sender)

	_, err := agent.Invoke(context.Background(), []core.Message{
		core.NewUserMessage("draft"),
		core.NewAssistantMessage("editor", "tightened draft"),
	})
	require.NoError(t, err)

	assert.Equal(t, "[user] draft\n[editor] tightened draft", sender.text)
	assert.NotEmpty(t, sender.contextID)
}

func TestRemoteAgent_Errors(t *testing.T) {
	sender := &fakeSender{err: assert.AnError}
	agent := NewRemoteAgent("titles", sender)

	_, err := agent.Invoke(context.Background(), []core.Message{core.NewUserMessage("x")})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = agent.Invoke(context.Background(), nil)
	assert.Error(t, err)
}
