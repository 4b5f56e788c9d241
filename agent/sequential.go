package agent

import (
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/util"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
)

// DefaultEventBuffer is the number of stage events a run buffers before the
// pipeline waits for the consumer.
const DefaultEventBuffer = 4

// Options configures a Sequential pipeline.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics

	// EventBuffer bounds the event channel returned by Run.
	EventBuffer int

	// InputTemplate, when set, rewrites the initial input before the run
	// starts. The input is available as {{.Input}}.
	InputTemplate string
}

// Result is the drained outcome of a run.
type Result struct {
	Events       []core.OutputEvent
	Conversation core.Conversation
}

// Sequential coordinates the execution of multiple participants in order.
//
// Each participant receives the entire conversation produced so far (the
// initial user message followed by every earlier participant's messages) and
// its output is appended before the next participant runs. After every stage
// exactly one core.OutputEvent carrying only that stage's messages is emitted.
// The first failure aborts the run; events already emitted stay valid.
//
// A Sequential holds no per-run state, so one value may serve any number of
// concurrent runs. Each call to Run is a fresh run.
type Sequential struct {
	BaseAgent
	participants []core.Handle
	logger       logging.Logger
	metrics      *metrics.Metrics
	eventBuffer  int
	input        *template.Template
}

// NewSequential creates a pipeline over participants. It fails with
// core.ErrNoParticipants when none are given and when the input template does
// not parse.
func NewSequential(name string, participants []core.Handle, optFns ...func(o *Options)) (*Sequential, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("pipeline %s: %w", name, core.ErrNoParticipants)
	}
	for i, p := range participants {
		if p == nil {
			return nil, fmt.Errorf("pipeline %s: participant %d is nil", name, i)
		}
	}

	opts := Options{
		Logger:      logging.NoOpLogger{},
		EventBuffer: DefaultEventBuffer,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}

	s := &Sequential{
		BaseAgent:    NewBaseAgent(name),
		participants: append([]core.Handle(nil), participants...),
		logger:       logging.OrNoOp(opts.Logger),
		metrics:      opts.Metrics,
		eventBuffer:  opts.EventBuffer,
	}

	if opts.InputTemplate != "" {
		tmpl, err := util.ParseTemplate(name, opts.InputTemplate)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: parse input template: %w", name, err)
		}
		s.input = tmpl
	}

	return s, nil
}

// Participants returns the pipeline's participants in execution order.
func (s *Sequential) Participants() []core.Handle {
	return append([]core.Handle(nil), s.participants...)
}

// Run starts a run seeded with input as a single user message. The event
// channel yields one event per completed stage in stage order and is closed
// when the run ends. At most one error (a *core.PipelineError for stage
// failures) is sent on the error channel before it closes.
//
// Consumers must drain the event channel or cancel ctx; the pipeline blocks
// when the buffer is full.
func (s *Sequential) Run(ctx context.Context, input string) (<-chan core.OutputEvent, <-chan error) {
	events := make(chan core.OutputEvent, s.eventBuffer)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(events)

		emit := func(ev core.OutputEvent) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if _, err := s.start(ctx, input, emit); err != nil {
			errCh <- err
		}
	}()

	return events, errCh
}

// RunSync executes a run to completion. On failure the events emitted before
// the abort are returned together with the error.
func (s *Sequential) RunSync(ctx context.Context, input string) (Result, error) {
	var res Result
	conv, err := s.start(ctx, input, func(ev core.OutputEvent) error {
		res.Events = append(res.Events, ev)
		return nil
	})
	res.Conversation = conv
	return res, err
}

// Invoke implements core.Handle so a pipeline can be a participant of another
// pipeline. It returns every message the stages appended to history.
func (s *Sequential) Invoke(ctx context.Context, history []core.Message) ([]core.Message, error) {
	conv, err := s.execute(ctx, core.NewConversation(history...), func(core.OutputEvent) error { return nil })
	if err != nil {
		return nil, err
	}
	return conv.Messages()[len(history):], nil
}

func (s *Sequential) start(ctx context.Context, input string, emit func(core.OutputEvent) error) (core.Conversation, error) {
	s.metrics.IncActiveRuns()
	defer s.metrics.DecActiveRuns()

	text, err := s.RenderInput(input)
	if err != nil {
		return core.Conversation{}, err
	}

	s.logger.Debug("pipeline run started", "pipeline", s.Name(), "stages", len(s.participants))
	conv, err := s.execute(ctx, core.NewConversation(core.NewUserMessage(text)), emit)
	if err != nil {
		s.logger.Warn("pipeline run aborted", "pipeline", s.Name(), "error", err)
		return conv, err
	}
	s.logger.Debug("pipeline run finished", "pipeline", s.Name(), "messages", conv.Len())
	return conv, nil
}

func (s *Sequential) execute(ctx context.Context, conv core.Conversation, emit func(core.OutputEvent) error) (core.Conversation, error) {
	for stage, p := range s.participants {
		if err := ctx.Err(); err != nil {
			return conv, s.abort(stage, p, err)
		}

		began := time.Now()
		produced, err := invokeStage(ctx, p, conv.Messages())
		dur := time.Since(began)

		s.observe(stage, p.Name(), dur, err)
		if err != nil {
			return conv, s.abort(stage, p, &core.WorkerError{Agent: p.Name(), Err: err})
		}

		conv = conv.Append(produced...)

		ev := core.OutputEvent{
			Stage:    stage,
			Agent:    p.Name(),
			Messages: append(make([]core.Message, 0, len(produced)), produced...),
		}
		if err := emit(ev); err != nil {
			return conv, s.abort(stage, p, err)
		}
	}
	return conv, nil
}

// invokeStage calls p and reports a panic as an error.
func invokeStage(ctx context.Context, p core.Handle, history []core.Message) (msgs []core.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.Invoke(ctx, history)
}

func (s *Sequential) abort(stage int, p core.Handle, err error) error {
	return &core.PipelineError{Pipeline: s.Name(), Stage: stage, Agent: p.Name(), Err: err}
}

func (s *Sequential) observe(stage int, agent string, dur time.Duration, err error) {
	s.metrics.ObserveStage(s.Name(), agent, dur, err)
	if sl, ok := s.logger.(interface {
		LogStage(pipeline, agent string, stage int, dur time.Duration, err error)
	}); ok {
		sl.LogStage(s.Name(), agent, stage, dur, err)
	}
}

// RenderInput returns the text of the user message a run over input starts with.
func (s *Sequential) RenderInput(input string) (string, error) {
	if s.input == nil {
		return input, nil
	}
	text, err := util.ExecuteTemplate(s.input, map[string]any{"Input": input})
	if err != nil {
		return "", fmt.Errorf("pipeline %s: render input: %w", s.Name(), err)
	}
	return text, nil
}
