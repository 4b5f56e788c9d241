package task

import (
	"errors"
	"time"

	"github.com/hupe1980/agentpipe/core"
)

var (
	// ErrNotFound is returned by stores when no task exists for an id.
	ErrNotFound = errors.New("task not found")
	// ErrTerminalState is returned when a transition is attempted out of a
	// terminal state.
	ErrTerminalState = errors.New("task is in a terminal state")
	// ErrInvalidTransition is returned when the transition table has no edge
	// for the requested event in the current state.
	ErrInvalidTransition = errors.New("invalid task transition")
)

// State enumerates the mutually exclusive states a task may be in. The zero
// value means the task has not been submitted yet.
type State string

const (
	StateUnknown       State = ""
	StateSubmitted     State = "submitted"
	StateWorking       State = "working"
	StateInputRequired State = "input-required"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateCanceled      State = "canceled"
)

// IsTerminal reports whether no transition may leave s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	if s == StateUnknown {
		return "unknown"
	}
	return string(s)
}

// Task is one tracked unit of remote request execution.
type Task struct {
	ID        string        `json:"id"`
	ContextID string        `json:"context_id"`
	State     State         `json:"state"`
	Result    *core.Message `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	// Canceled marks a failed task that ended through cancellation.
	Canceled bool      `json:"canceled,omitempty"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// Clone returns a copy safe for independent mutation.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Result != nil {
		r := *t.Result
		cp.Result = &r
	}
	return &cp
}
