// Package a2a exposes a single agent as a remotely callable task server and
// provides the matching client.
//
// An inbound message becomes a tracked task (see package task). The Executor
// validates the message, obtains the agent's worker from a worker.Cache and
// drives the task to a terminal state; the Handler owns task ids, the store
// and cancellation. Transport lives in package server.
package a2a

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentpipe/core"
)

// ErrTaskExists is returned when a message names a task id that is already
// tracked.
var ErrTaskExists = errors.New("task already exists")

// AgentCard describes the served agent to other agents.
type AgentCard struct {
	Name               string       `json:"name" yaml:"name"`
	Description        string       `json:"description" yaml:"description"`
	URL                string       `json:"url" yaml:"url"`
	Version            string       `json:"version" yaml:"version"`
	DefaultInputModes  []string     `json:"defaultInputModes" yaml:"default_input_modes"`
	DefaultOutputModes []string     `json:"defaultOutputModes" yaml:"default_output_modes"`
	Capabilities       Capabilities `json:"capabilities" yaml:"capabilities"`
	Skills             []Skill      `json:"skills" yaml:"skills"`
}

// Capabilities lists optional protocol features the agent supports.
type Capabilities struct {
	Streaming         bool `json:"streaming,omitempty" yaml:"streaming"`
	PushNotifications bool `json:"pushNotifications,omitempty" yaml:"push_notifications"`
}

// Skill is one operation the agent can perform.
type Skill struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
	Examples    []string `json:"examples,omitempty" yaml:"examples"`
}

// TitleAgentCard returns the card of the blog title agent served on host:port.
func TitleAgentCard(host string, port int) AgentCard {
	return AgentCard{
		Name: "AI Foundry Title Agent",
		Description: "An intelligent title generator agent powered by Foundry. " +
			"I can help you generate catchy titles for your articles.",
		URL:                fmt.Sprintf("http://%s:%d/", host, port),
		Version:            "1.0.0",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       Capabilities{Streaming: true},
		Skills: []Skill{{
			ID:          "generate_blog_title",
			Name:        "Generate Blog Title",
			Description: "Generates a blog title based on a topic",
			Tags:        []string{"title"},
			Examples:    []string{"Can you give me a title for this article?"},
		}},
	}
}

// Part is the wire form of one message part.
type Part struct {
	Kind     string         `json:"kind,omitempty"` // "text" (default), "data" or "file"
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	URI      string         `json:"uri,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Name     string         `json:"name,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToCore converts the wire part into a core.Part.
func (p Part) ToCore() core.Part {
	switch p.Kind {
	case "data":
		return core.DataPart{Data: p.Data, Metadata: p.Metadata}
	case "file":
		return core.FilePart{URI: p.URI, MimeType: p.MimeType, Name: p.Name, Metadata: p.Metadata}
	default:
		return core.TextPart{Text: p.Text, Metadata: p.Metadata}
	}
}

// TextPart builds a wire text part.
func TextPart(text string) Part { return Part{Kind: "text", Text: text} }

// SendRequest is the inbound message of one task.
type SendRequest struct {
	TaskID    string `json:"task_id,omitempty"`
	ContextID string `json:"context_id,omitempty"`
	Parts     []Part `json:"parts"`
}

// CoreParts converts all wire parts.
func (r SendRequest) CoreParts() []core.Part {
	parts := make([]core.Part, 0, len(r.Parts))
	for _, p := range r.Parts {
		parts = append(parts, p.ToCore())
	}
	return parts
}
