package a2a

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
	"github.com/hupe1980/agentpipe/task"
	"github.com/hupe1980/agentpipe/worker"
)

const (
	cancelNotice = "Task cancelled by user"
	noResponse   = "No response received"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// DisplayName is used in caller-visible failure messages. Defaults to the
	// identity name.
	DisplayName string
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

// Executor runs inbound requests for one fixed agent identity.
//
// Every path through Execute ends in a lifecycle transition: validation
// failures and worker failures become failed tasks, and the internal cause of
// a worker failure is logged, never shown to the caller.
type Executor struct {
	identity    core.Identity
	factory     worker.Factory
	cache       *worker.Cache
	displayName string
	logger      logging.Logger
	metrics     *metrics.Metrics
}

// NewExecutor creates an Executor serving identity. Workers are created with
// factory through cache, once per identity.
func NewExecutor(identity core.Identity, factory worker.Factory, cache *worker.Cache, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		DisplayName: identity.Name,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		identity:    identity,
		factory:     factory,
		cache:       cache,
		displayName: opts.DisplayName,
		logger:      logging.OrNoOp(opts.Logger),
		metrics:     opts.Metrics,
	}
}

// Identity returns the identity this executor serves.
func (e *Executor) Identity() core.Identity { return e.identity }

// Execute processes one request on lc. A lifecycle that was not submitted yet
// is submitted first. The returned error only reports lifecycle failures
// (store or sink); request outcomes are delivered as transitions.
//
// Transitions are applied with a context detached from ctx's cancellation, so
// a caller that goes away mid-request still ends the task with exactly one
// terminal event. ctx itself bounds the worker call.
func (e *Executor) Execute(ctx context.Context, parts []core.Part, contextID string, lc *task.Lifecycle) error {
	tctx := context.WithoutCancel(ctx)
	if lc.State() == task.StateUnknown {
		if err := lc.Submit(tctx); err != nil {
			return err
		}
	}

	text, err := validate(parts)
	if err != nil {
		e.logger.Info("rejected invalid request", "agent", e.identity.Name, "context_id", contextID, "reason", err.Error())
		e.metrics.IncRequestFailure(e.identity.Name, "validation")
		return e.settle(lc.Fail(tctx, e.reply("Invalid request: "+err.Error())))
	}

	w, err := e.cache.GetOrCreate(ctx, e.identity, e.factory)
	if err != nil {
		e.logger.Error("worker creation failed", "agent", e.identity.Name, "context_id", contextID, "error", err)
		e.metrics.IncRequestFailure(e.identity.Name, "cache")
		return e.settle(lc.Fail(tctx, e.failure()))
	}

	if err := lc.StartWork(tctx); err != nil {
		return e.settle(err)
	}

	msgs, err := invoke(ctx, w, []core.Message{core.NewUserMessage(text)})
	if err != nil {
		werr := &core.WorkerError{Agent: w.Name(), Err: err}
		e.logger.Error("error processing request", "agent", e.identity.Name, "context_id", contextID, "error", werr)
		e.metrics.IncRequestFailure(e.identity.Name, "worker")
		return e.settle(lc.Fail(tctx, e.failure()))
	}

	return e.settle(lc.Complete(tctx, e.reply(responseText(msgs))))
}

// Cancel moves the task to failed with a cancellation notice. The in-flight
// worker call, if any, is not interrupted. Canceling a task that already
// ended is a no-op.
func (e *Executor) Cancel(ctx context.Context, lc *task.Lifecycle) error {
	t := lc.Task()
	e.logger.Info("cancelling execution", "agent", e.identity.Name, "task_id", t.ID, "context_id", t.ContextID)
	return e.settle(lc.Cancel(context.WithoutCancel(ctx), e.reply(cancelNotice)))
}

// invoke calls w and converts a panic into an error.
func invoke(ctx context.Context, w core.Handle, history []core.Message) (msgs []core.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.Invoke(ctx, history)
}

// settle swallows the race where another transition already ended the task.
func (e *Executor) settle(err error) error {
	if errors.Is(err, task.ErrTerminalState) {
		e.logger.Debug("task already terminal", "agent", e.identity.Name, "error", err)
		return nil
	}
	return err
}

func (e *Executor) failure() core.Message {
	return e.reply(fmt.Sprintf("%s failed to process the request.", e.displayName))
}

func (e *Executor) reply(text string) core.Message {
	return core.NewAssistantMessage(e.identity.Name, text)
}

func validate(parts []core.Part) (string, error) {
	if len(parts) == 0 {
		return "", core.NewValidationError("No message parts provided")
	}
	text, ok := core.FirstText(parts)
	if !ok {
		return "", core.NewValidationError("Message part does not contain text")
	}
	return text, nil
}

// responseText returns the text of the worker's last non-empty assistant
// message.
func responseText(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleAssistant && strings.TrimSpace(msgs[i].Text) != "" {
			return msgs[i].Text
		}
	}
	return noResponse
}
