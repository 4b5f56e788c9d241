package agent

import (
	"context"

	"github.com/hupe1980/agentpipe/core"
)

// FuncAgent turns a text function into a participant. The returned text
// becomes one assistant message authored by the agent; an empty string
// produces no message.
type FuncAgent struct {
	BaseAgent
	fn func(ctx context.Context, history []core.Message) (string, error)
}

// NewFuncAgent creates a FuncAgent.
func NewFuncAgent(name string, fn func(ctx context.Context, history []core.Message) (string, error)) *FuncAgent {
	return &FuncAgent{BaseAgent: NewBaseAgent(name), fn: fn}
}

// Invoke implements core.Handle.
func (f *FuncAgent) Invoke(ctx context.Context, history []core.Message) ([]core.Message, error) {
	text, err := f.fn(ctx, history)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return []core.Message{core.NewAssistantMessage(f.Name(), text)}, nil
}
