package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
)

var (
	// ErrPipelineNotFound is returned when invoking an unregistered pipeline.
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrRunNotFound is returned when stopping a run that is not active.
	ErrRunNotFound = errors.New("run not found")
)

// Pipeline is a named, runnable pipeline. *agent.Sequential implements it.
type Pipeline interface {
	Name() string
	Run(ctx context.Context, input string) (<-chan core.OutputEvent, <-chan error)
}

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentRuns limits the number of pipeline runs executing at the
	// same time. Further runs wait for a slot. Set to 0 for unlimited.
	MaxConcurrentRuns int

	// EventBufferSize sets the buffer of the event channel returned by Invoke.
	EventBufferSize int
}

// DefaultConfig provides the default engine configuration.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	EventBufferSize:   16,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// Callbacks hook into run lifecycle points. Optional.
	Callbacks *CallbackManager

	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Engine owns a registry of pipelines and executes runs of them.
//
// Registration and run tracking are guarded by separate mutexes; each run is
// executed on its own goroutine and may be stopped by id.
type Engine struct {
	config    Config
	callbacks *CallbackManager
	logger    logging.Logger
	slots     *semaphore.Weighted

	mu        sync.RWMutex
	pipelines map[string]Pipeline

	runsMu sync.Mutex
	runs   map[string]context.CancelFunc
}

// New creates a new Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Config.EventBufferSize < 0 {
		opts.Config.EventBufferSize = 0
	}

	e := &Engine{
		config:    opts.Config,
		callbacks: opts.Callbacks,
		logger:    logging.OrNoOp(opts.Logger),
		pipelines: make(map[string]Pipeline),
		runs:      make(map[string]context.CancelFunc),
	}
	if opts.Config.MaxConcurrentRuns > 0 {
		e.slots = semaphore.NewWeighted(int64(opts.Config.MaxConcurrentRuns))
	}
	return e
}

// Register adds or replaces a pipeline under its name.
func (e *Engine) Register(p Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipelines[p.Name()] = p
}

// GetPipeline looks up a registered pipeline.
func (e *Engine) GetPipeline(name string) (Pipeline, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pipelines[name]
	return p, ok
}

// Pipelines returns the registered pipeline names in sorted order.
func (e *Engine) Pipelines() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.pipelines))
	for name := range e.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Invoke starts a run of the named pipeline and returns its id together with
// the run's event and error channels. Both channels are closed when the run
// ends; at most one error is delivered.
func (e *Engine) Invoke(ctx context.Context, name, input string) (string, <-chan core.OutputEvent, <-chan error, error) {
	p, ok := e.GetPipeline(name)
	if !ok {
		return "", nil, nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}

	runID := core.NewID()
	out := make(chan core.OutputEvent, e.config.EventBufferSize)
	errCh := make(chan error, 1)

	runCtx, cancel := context.WithCancel(ctx)
	e.track(runID, cancel)

	go func() {
		defer close(errCh)
		defer close(out)
		defer e.untrack(runID)
		defer cancel()

		if err := e.run(runCtx, runID, p, input, out); err != nil {
			errCh <- err
		}
	}()

	return runID, out, errCh, nil
}

// InvokeSync runs the named pipeline to completion and returns every stage
// event. Events produced before a failure are returned with the error.
func (e *Engine) InvokeSync(ctx context.Context, name, input string) (string, []core.OutputEvent, error) {
	runID, events, errs, err := e.Invoke(ctx, name, input)
	if err != nil {
		return "", nil, err
	}

	var out []core.OutputEvent
	for ev := range events {
		out = append(out, ev)
	}
	return runID, out, <-errs
}

// Stop cancels an active run.
func (e *Engine) Stop(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.runs[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	return nil
}

// ActiveRuns returns the number of runs that have not finished yet.
func (e *Engine) ActiveRuns() int {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	return len(e.runs)
}

func (e *Engine) run(ctx context.Context, runID string, p Pipeline, input string, out chan<- core.OutputEvent) error {
	if e.slots != nil {
		if err := e.slots.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("wait for run slot: %w", err)
		}
		defer e.slots.Release(1)
	}

	cbCtx := &CallbackContext{RunID: runID, Pipeline: p.Name(), Input: input}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, cbCtx); err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	e.logger.Debug("engine run started", "run_id", runID, "pipeline", p.Name())

	// Returning early cancels ctx, which unblocks and ends the pipeline.
	events, errs := p.Run(ctx, input)
	for ev := range events {
		stage := ev
		cbCtx.Event = &stage
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterStage, cbCtx); err != nil {
			return e.fail(ctx, cbCtx, err)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return e.fail(ctx, cbCtx, ctx.Err())
		}
	}
	cbCtx.Event = nil

	if err := <-errs; err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, cbCtx); err != nil {
		return e.fail(ctx, cbCtx, err)
	}

	e.logger.Debug("engine run finished", "run_id", runID, "pipeline", p.Name())
	return nil
}

func (e *Engine) fail(ctx context.Context, cbCtx *CallbackContext, err error) error {
	e.logger.Warn("engine run failed", "run_id", cbCtx.RunID, "pipeline", cbCtx.Pipeline, "error", err)

	cbCtx.Err = err
	if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, cbCtx); cbErr != nil {
		e.logger.Warn("on_error callback failed", "run_id", cbCtx.RunID, "error", cbErr)
	}
	return err
}

func (e *Engine) track(runID string, cancel context.CancelFunc) {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	e.runs[runID] = cancel
}

func (e *Engine) untrack(runID string) {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	delete(e.runs, runID)
}
