package core

import (
	"fmt"
	"strings"
)

// Role is the closed set of conversation roles.
type Role uint8

const (
	// RoleUser marks human-produced content.
	RoleUser Role = iota
	// RoleAssistant marks agent-produced content.
	RoleAssistant
	// RoleSystem marks instructions injected by the host.
	RoleSystem
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	case RoleSystem:
		return "system"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// DefaultAuthor is the author name used when a message carries none.
func (r Role) DefaultAuthor() string { return r.String() }

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool { return r <= RoleSystem }

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "assistant", "agent":
		return RoleAssistant, nil
	case "system":
		return RoleSystem, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Message is one immutable conversation entry. Treat values as read-only once
// created; Conversation copies them on every append.
type Message struct {
	Role   Role   `json:"role"`
	Author string `json:"author,omitempty"`
	Text   string `json:"text"`
}

// NewMessage creates a message; an empty author falls back to the role default.
func NewMessage(role Role, author, text string) Message {
	if author == "" {
		author = role.DefaultAuthor()
	}
	return Message{Role: role, Author: author, Text: text}
}

// NewUserMessage creates a user-authored message.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, "", text) }

// NewAssistantMessage creates an agent-produced message attributed to author.
func NewAssistantMessage(author, text string) Message {
	return NewMessage(RoleAssistant, author, text)
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, "", text) }

// AuthorName returns the author or, when absent, the default for the role.
func (m Message) AuthorName() string {
	if m.Author != "" {
		return m.Author
	}
	return m.Role.DefaultAuthor()
}
