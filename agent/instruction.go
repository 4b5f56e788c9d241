package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/util"
)

// Provider supplies instruction text derived from the conversation a stage
// is about to answer.
type Provider interface {
	Instruction(ctx context.Context, history []core.Message) (string, error)
}

// Func adapts an ordinary function to Provider.
type Func func(ctx context.Context, history []core.Message) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, history []core.Message) (string, error) {
	return f(ctx, history)
}

// Instruction is either static text, a text/template rendered against the
// conversation, or a dynamic Provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered on every call.
// The template sees {{.Last}} (text of the latest message), {{.Author}}
// (its author), {{.Transcript}} and {{.Turns}}. Text without template
// markers behaves like NewInstructionFromText.
func NewInstructionFromTemplate(text string) Instruction {
	if !strings.Contains(text, "{{") {
		return NewInstructionFromText(text)
	}
	return Instruction{provider: Func(func(_ context.Context, history []core.Message) (string, error) {
		return util.RenderTemplate(text, templateData(history))
	})}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, history []core.Message) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is fixed text.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text for history.
func (i Instruction) Resolve(ctx context.Context, history []core.Message) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, history)
	}
	return i.text, nil
}

func templateData(history []core.Message) map[string]any {
	conv := core.NewConversation(history...)
	data := map[string]any{
		"Last":       "",
		"Author":     "",
		"Transcript": conv.Transcript(),
		"Turns":      conv.Len(),
	}
	if last, ok := conv.Last(); ok {
		data["Last"] = last.Text
		data["Author"] = last.AuthorName()
	}
	return data
}
