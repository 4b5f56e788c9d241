package core

import "context"

// Handle is the single capability every agent in agentpipe implements.
//
// Invoke receives the entire conversation so far and returns the messages the
// agent produced (zero or more). Implementations must not retain or mutate the
// history slice. A Handle is created once per Identity and reused across runs
// and goroutines, so implementations must be safe for concurrent use and must
// keep no per-call conversational state between invocations.
type Handle interface {
	Name() string
	Invoke(ctx context.Context, history []Message) ([]Message, error)
}

// HandleFunc adapts an ordinary function to the Handle interface.
type HandleFunc struct {
	AgentName string
	Fn        func(ctx context.Context, history []Message) ([]Message, error)
}

// Name implements Handle.
func (h HandleFunc) Name() string { return h.AgentName }

// Invoke implements Handle.
func (h HandleFunc) Invoke(ctx context.Context, history []Message) ([]Message, error) {
	return h.Fn(ctx, history)
}

// Identity describes one logical agent. Within a process two identities are
// the same agent when their names match; Instructions and Model only inform
// how the worker is built.
type Identity struct {
	Name         string `json:"name" yaml:"name"`
	Instructions string `json:"instructions" yaml:"instructions"`
	Model        string `json:"model,omitempty" yaml:"model,omitempty"`
}

// Key returns the cache key for the identity.
func (i Identity) Key() string { return i.Name }
