package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
)

type action string

const (
	actionSubmit   action = "submit"
	actionStart    action = "start_work"
	actionComplete action = "complete"
	actionFail     action = "fail"
	actionCancel   action = "cancel"
)

type edge struct {
	from []State
	to   State
	kind EventKind
}

// transitions is the lifecycle table. Fail and cancel are accepted from
// submitted as well as working so that requests rejected before any work
// starts still end in a terminal state.
var transitions = map[action]edge{
	actionSubmit:   {from: []State{StateUnknown}, to: StateSubmitted, kind: EventSubmitted},
	actionStart:    {from: []State{StateSubmitted}, to: StateWorking, kind: EventWorking},
	actionComplete: {from: []State{StateWorking}, to: StateCompleted, kind: EventCompleted},
	actionFail:     {from: []State{StateSubmitted, StateWorking}, to: StateFailed, kind: EventFailed},
	actionCancel:   {from: []State{StateSubmitted, StateWorking}, to: StateFailed, kind: EventFailed},
}

// LifecycleOptions configures a Lifecycle.
type LifecycleOptions struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// Lifecycle drives one task through its state machine. It is the single
// writer for its task: every transition persists the task and publishes
// exactly one event, serialized by an internal mutex.
type Lifecycle struct {
	mu      sync.Mutex
	task    *Task
	store   Store
	sink    Sink
	logger  logging.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

// NewLifecycle creates a lifecycle for a task that has not been submitted yet.
func NewLifecycle(taskID, contextID string, store Store, sink Sink, optFns ...func(o *LifecycleOptions)) *Lifecycle {
	l := newLifecycle(store, sink, optFns...)
	l.task = &Task{ID: taskID, ContextID: contextID, State: StateUnknown}
	return l
}

// Resume loads an existing task from store and returns a lifecycle bound to it.
func Resume(ctx context.Context, taskID string, store Store, sink Sink, optFns ...func(o *LifecycleOptions)) (*Lifecycle, error) {
	t, err := store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	l := newLifecycle(store, sink, optFns...)
	l.task = t
	return l, nil
}

func newLifecycle(store Store, sink Sink, optFns ...func(o *LifecycleOptions)) *Lifecycle {
	opts := LifecycleOptions{Logger: logging.NoOpLogger{}, Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if sink == nil {
		sink = Discard
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Lifecycle{
		store:   store,
		sink:    sink,
		logger:  logging.OrNoOp(opts.Logger),
		metrics: opts.Metrics,
		clock:   opts.Clock,
	}
}

// Task returns a snapshot of the current task.
func (l *Lifecycle) Task() *Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.task.Clone()
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.task.State
}

// Submit records the task as submitted.
func (l *Lifecycle) Submit(ctx context.Context) error {
	return l.apply(ctx, actionSubmit, nil)
}

// StartWork moves a submitted task to working. Calling it on a task that is
// already working is a no-op and publishes nothing.
func (l *Lifecycle) StartWork(ctx context.Context) error {
	return l.apply(ctx, actionStart, nil)
}

// Complete finishes the task with msg as its result.
func (l *Lifecycle) Complete(ctx context.Context, msg core.Message) error {
	return l.apply(ctx, actionComplete, &msg)
}

// Fail finishes the task with msg describing the failure.
func (l *Lifecycle) Fail(ctx context.Context, msg core.Message) error {
	return l.apply(ctx, actionFail, &msg)
}

// Cancel finishes the task as failed and marks it canceled.
func (l *Lifecycle) Cancel(ctx context.Context, msg core.Message) error {
	return l.apply(ctx, actionCancel, &msg)
}

func (l *Lifecycle) apply(ctx context.Context, act action, msg *core.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.task.State
	if from.IsTerminal() {
		return fmt.Errorf("%w: cannot %s task %s in state %s", ErrTerminalState, act, l.task.ID, from)
	}
	if act == actionStart && from == StateWorking {
		return nil
	}

	e := transitions[act]
	if !allowed(e.from, from) {
		return fmt.Errorf("%w: cannot %s task %s in state %s", ErrInvalidTransition, act, l.task.ID, from)
	}

	now := l.clock().UTC()
	next := l.task.Clone()
	next.State = e.to
	next.Updated = now
	if from == StateUnknown {
		next.Created = now
	}
	switch act {
	case actionComplete:
		next.Result = msg
	case actionFail:
		next.Error = msg.Text
	case actionCancel:
		next.Error = msg.Text
		next.Canceled = true
	}

	if err := l.store.Put(ctx, next); err != nil {
		return fmt.Errorf("persist task %s: %w", next.ID, err)
	}
	l.task = next

	l.metrics.IncTransition(string(e.to))
	if sl, ok := l.logger.(interface{ LogTransition(taskID, from, to string) }); ok {
		sl.LogTransition(next.ID, from.String(), e.to.String())
	} else {
		l.logger.Debug("task transition", "task_id", next.ID, "from", from.String(), "to", e.to.String())
	}

	ev := Event{
		Kind:      e.kind,
		TaskID:    next.ID,
		ContextID: next.ContextID,
		State:     e.to,
		Message:   copyMessage(msg),
		Final:     e.to.IsTerminal(),
		Timestamp: now,
	}
	if err := l.sink.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s event for task %s: %w", e.kind, next.ID, err)
	}
	return nil
}

func allowed(from []State, s State) bool {
	for _, f := range from {
		if f == s {
			return true
		}
	}
	return false
}

func copyMessage(m *core.Message) *core.Message {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
