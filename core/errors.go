package core

import (
	"errors"
	"fmt"
)

// ErrNoParticipants is returned when a pipeline is built without agents.
var ErrNoParticipants = errors.New("pipeline requires at least one participant")

// ValidationError reports a malformed inbound request. Its message is safe to
// show to callers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError creates a ValidationError.
func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

// WorkerError wraps an opaque failure returned by a worker invocation. The
// wrapped cause is meant for logs, not for callers.
type WorkerError struct {
	Agent string
	Err   error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s failed: %v", e.Agent, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// PipelineError reports that a stage failed and the run was aborted. Events for
// stages before Stage were already emitted and remain valid.
type PipelineError struct {
	Pipeline string
	Stage    int
	Agent    string
	Err      error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline %s aborted at stage %d (%s): %v", e.Pipeline, e.Stage, e.Agent, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// CacheCreationError reports that a worker factory failed. Failed creations are
// never memoized.
type CacheCreationError struct {
	Identity string
	Err      error
}

func (e *CacheCreationError) Error() string {
	return fmt.Sprintf("create worker %s: %v", e.Identity, e.Err)
}

func (e *CacheCreationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
