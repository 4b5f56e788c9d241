package agent

import "fmt"

// BaseAgent bundles the identity helpers shared by all agents in this package.
// Embed it in concrete implementations and supply an Invoke method to satisfy
// core.Handle.
type BaseAgent struct {
	name        string // Human-readable name, also the message author
	description string // Detailed description of agent's purpose
}

// NewBaseAgent constructs a BaseAgent with generated description (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description. Call it while wiring, before
// the agent is shared between goroutines.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }
