package a2a

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
	"github.com/hupe1980/agentpipe/task"
)

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Store   task.Store
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Handler is the protocol-facing front of an Executor. It assigns task ids,
// persists tasks and routes cancellation to the lifecycle that owns a task.
//
// While a task is in flight its Lifecycle is registered under the task id,
// so a concurrent cancel acts on the same state machine as the executing
// request and its notice is published on that request's event stream.
type Handler struct {
	card     AgentCard
	executor *Executor
	store    task.Store
	logger   logging.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	active map[string]*task.Lifecycle
}

// NewHandler creates a Handler.
func NewHandler(card AgentCard, executor *Executor, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = task.NewInMemoryStore()
	}

	return &Handler{
		card:     card,
		executor: executor,
		store:    opts.Store,
		logger:   logging.OrNoOp(opts.Logger),
		metrics:  opts.Metrics,
		active:   make(map[string]*task.Lifecycle),
	}
}

// Card returns the agent card.
func (h *Handler) Card() AgentCard { return h.card }

// SendMessage runs one request to completion. Lifecycle events are published
// to sink (nil discards them). The final task is returned even when the
// request failed; the error only reports infrastructure failures.
func (h *Handler) SendMessage(ctx context.Context, req SendRequest, sink task.Sink) (*task.Task, error) {
	if sink == nil {
		sink = task.Discard
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = core.NewID()
	} else if _, err := h.store.Get(ctx, taskID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskExists, taskID)
	} else if !errors.Is(err, task.ErrNotFound) {
		return nil, err
	}

	contextID := req.ContextID
	if contextID == "" {
		contextID = core.NewID()
	}

	lc := task.NewLifecycle(taskID, contextID, h.store, sink, h.lifecycleOptions)
	if !h.track(taskID, lc) {
		return nil, fmt.Errorf("%w: %s", ErrTaskExists, taskID)
	}
	defer h.untrack(taskID)

	if err := lc.Submit(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	if err := h.executor.Execute(ctx, req.CoreParts(), contextID, lc); err != nil {
		return lc.Task(), err
	}
	return lc.Task(), nil
}

// CancelTask cancels taskID. Events go to the stream of the in-flight request
// when there is one, otherwise to sink. Unknown tasks yield task.ErrNotFound;
// tasks that already ended are returned unchanged.
func (h *Handler) CancelTask(ctx context.Context, taskID string, sink task.Sink) (*task.Task, error) {
	if sink == nil {
		sink = task.Discard
	}

	lc, ok := h.lookup(taskID)
	if !ok {
		var err error
		lc, err = task.Resume(ctx, taskID, h.store, sink, h.lifecycleOptions)
		if err != nil {
			return nil, err
		}
	}

	if err := h.executor.Cancel(ctx, lc); err != nil {
		return nil, err
	}
	return lc.Task(), nil
}

// GetTask returns the stored task.
func (h *Handler) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	return h.store.Get(ctx, taskID)
}

func (h *Handler) lifecycleOptions(o *task.LifecycleOptions) {
	o.Logger = h.logger
	o.Metrics = h.metrics
}

func (h *Handler) track(taskID string, lc *task.Lifecycle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.active[taskID]; exists {
		return false
	}
	h.active[taskID] = lc
	return true
}

func (h *Handler) untrack(taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.active, taskID)
}

func (h *Handler) lookup(taskID string) (*task.Lifecycle, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lc, ok := h.active[taskID]
	return lc, ok
}
