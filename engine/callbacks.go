package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpipe/core"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
type CallbackType string

const (
	// CallbackBeforeRun is triggered before the first stage starts.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterStage is triggered for every stage event before it is
	// delivered to the caller.
	CallbackAfterStage CallbackType = "after_stage"

	// CallbackAfterRun is triggered when a run finished without error.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnError is triggered when a run ends with an error.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries what a callback may inspect about the run.
type CallbackContext struct {
	RunID        string
	Pipeline     string
	Input        string
	CallbackType CallbackType

	// Event is set for after_stage callbacks.
	Event *core.OutputEvent

	// Err is set for on_error callbacks.
	Err error

	Metadata map[string]any
}

// Callback is executed at one lifecycle point.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a FunctionCallback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty CallbackManager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callback; callbacks of a type run in registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks of callbackType, stopping at the first
// error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes one line per execution.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	message := fmt.Sprintf("[%s] pipeline=%s run=%s", c.callbackType, callbackCtx.Pipeline, callbackCtx.RunID)
	if ev := callbackCtx.Event; ev != nil {
		message += fmt.Sprintf(" stage=%d agent=%s", ev.Stage, ev.Agent)
	}
	if callbackCtx.Err != nil {
		message += fmt.Sprintf(" error=%v", callbackCtx.Err)
	}
	c.logger(message)
	return nil
}
