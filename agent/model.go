package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/model"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	EnableStreaming    bool
	MaxHistoryMessages int // 0 keeps the whole history
	Logger             logging.Logger
}

// ModelAgent answers with a language model.
//
// Every Invoke is an isolated exchange: the agent sends its instructions plus
// the history it was handed and keeps nothing between calls, which makes one
// ModelAgent safe to share across concurrent pipeline runs.
//
// Messages written by other agents are presented to the model as user turns
// prefixed with their author, so the model always answers as itself.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	enableStreaming    bool
	maxHistoryMessages int
	logger             logging.Logger
}

// NewModelAgent creates a new model-based agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
		logger:             logging.OrNoOp(opts.Logger),
	}
}

// NewModelAgentFromIdentity creates a ModelAgent named after identity. The
// identity's instructions, when set, are treated as a template (see
// NewInstructionFromTemplate).
func NewModelAgentFromIdentity(identity core.Identity, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	fns := make([]func(o *ModelAgentOptions), 0, len(optFns)+1)
	if identity.Instructions != "" {
		fns = append(fns, func(o *ModelAgentOptions) {
			o.Instruction = NewInstructionFromTemplate(identity.Instructions)
		})
	}
	fns = append(fns, optFns...)
	return NewModelAgent(identity.Name, llm, fns...)
}

// Invoke implements core.Handle. It returns a single assistant message, or no
// message when the model produced no text.
func (m *ModelAgent) Invoke(ctx context.Context, history []core.Message) ([]core.Message, error) {
	instructions, err := m.instruction.Resolve(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("resolve instructions: %w", err)
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     m.perspective(history),
		Stream:       m.enableStreaming,
	}

	began := time.Now()
	resp, err := model.Complete(ctx, m.llm, req)
	m.logCall(time.Since(began), err)
	if err != nil {
		return nil, err
	}

	if resp.Text == "" {
		return nil, nil
	}
	return []core.Message{core.NewAssistantMessage(m.Name(), resp.Text)}, nil
}

// perspective trims history and rewrites other agents' turns as attributed
// user messages.
func (m *ModelAgent) perspective(history []core.Message) []core.Message {
	if m.maxHistoryMessages > 0 && len(history) > m.maxHistoryMessages {
		history = history[len(history)-m.maxHistoryMessages:]
	}

	out := make([]core.Message, 0, len(history))
	for _, msg := range history {
		if msg.Role == core.RoleAssistant && msg.AuthorName() != m.Name() {
			msg = core.NewMessage(core.RoleUser, msg.Author, fmt.Sprintf("%s: %s", msg.AuthorName(), msg.Text))
		}
		out = append(out, msg)
	}
	return out
}

func (m *ModelAgent) logCall(dur time.Duration, err error) {
	if sl, ok := m.logger.(interface {
		LogWorkerCall(agent, model string, dur time.Duration, err error)
	}); ok {
		sl.LogWorkerCall(m.Name(), m.llm.Info().Name, dur, err)
		return
	}
	if err != nil {
		m.logger.Warn("model call failed", "agent", m.Name(), "error", err)
	}
}
