package agent

import (
	"context"
	"errors"

	"github.com/hupe1980/agentpipe/core"
)

// Sender delivers text to a remote task server and returns the worker's
// reply. a2a.Client implements it.
type Sender interface {
	SendText(ctx context.Context, contextID, text string) (core.Message, error)
}

// RemoteAgentOptions configures a RemoteAgent.
type RemoteAgentOptions struct {
	// ContextID groups all remote tasks of this agent. A fresh id is used per
	// invocation when empty.
	ContextID string
}

// RemoteAgent is a participant whose work runs as a task on another server.
// A single-message history is forwarded as is; longer histories are sent as a
// transcript so the remote worker sees the whole conversation.
type RemoteAgent struct {
	BaseAgent
	sender    Sender
	contextID string
}

// NewRemoteAgent creates a RemoteAgent.
func NewRemoteAgent(name string, sender Sender, optFns ...func(o *RemoteAgentOptions)) *RemoteAgent {
	opts := RemoteAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RemoteAgent{BaseAgent: NewBaseAgent(name), sender: sender, contextID: opts.ContextID}
}

// Invoke implements core.Handle.
func (r *RemoteAgent) Invoke(ctx context.Context, history []core.Message) ([]core.Message, error) {
	if len(history) == 0 {
		return nil, errors.New("remote agent requires a non-empty history")
	}

	text := history[0].Text
	if len(history) > 1 {
		text = core.NewConversation(history...).Transcript()
	}

	contextID := r.contextID
	if contextID == "" {
		contextID = core.NewID()
	}

	reply, err := r.sender.SendText(ctx, contextID, text)
	if err != nil {
		return nil, err
	}
	if reply.Text == "" {
		return nil, nil
	}
	return []core.Message{core.NewAssistantMessage(r.Name(), reply.Text)}, nil
}
