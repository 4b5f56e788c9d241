// Package agentpipe provides a high-level façade over the engine, the worker
// cache and the model providers, enabling rapid construction of sequential
// multi-agent pipelines. Most applications interact with this package by:
//  1. Creating an AgentPipe via New()
//  2. Building pipelines from config.PipelineDef values (or registering
//     hand-made engine.Pipeline values)
//  3. Invoking pipelines asynchronously (Invoke) or synchronously (InvokeSync)
//
// Participants are resolved through one worker cache, so an identity shared
// by several pipelines is backed by a single worker.
package agentpipe

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/engine"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/metrics"
	"github.com/hupe1980/agentpipe/worker"
)

// Options configures the AgentPipe instance.
type Options struct {
	// Engine configuration (concurrency, buffers).
	EngineConfig engine.Config

	// Callbacks hook into run lifecycle points. Optional.
	Callbacks *engine.CallbackManager

	// EventBuffer bounds the per-run event channel of built pipelines.
	EventBuffer int

	// Metrics is shared by the engine, pipelines and worker cache. Optional.
	Metrics *metrics.Metrics

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentPipe is the high-level façade aggregating the engine and the workers.
type AgentPipe struct {
	opts    Options
	engine  *engine.Engine
	workers *worker.Cache
	logger  logging.Logger
}

// New creates a new AgentPipe instance.
func New(optFns ...func(o *Options)) *AgentPipe {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		EventBuffer:  agent.DefaultEventBuffer,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	workers := worker.NewCache(func(o *worker.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &AgentPipe{opts: opts, engine: e, workers: workers, logger: opts.Logger}
}

// Engine returns the underlying engine.
func (p *AgentPipe) Engine() *engine.Engine { return p.engine }

// Workers returns the worker cache shared by every built pipeline.
func (p *AgentPipe) Workers() *worker.Cache { return p.workers }

// RegisterPipeline adds a pipeline to the underlying engine.
func (p *AgentPipe) RegisterPipeline(pl engine.Pipeline) { p.engine.Register(pl) }

// Build resolves every participant of def through the worker cache, creates
// the pipeline and registers it.
func (p *AgentPipe) Build(ctx context.Context, def config.PipelineDef, factory worker.Factory) (*agent.Sequential, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	participants := make([]core.Handle, 0, len(def.Participants))
	for _, id := range def.Participants {
		h, err := p.workers.GetOrCreate(ctx, id, factory)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", def.Name, err)
		}
		participants = append(participants, h)
	}

	seq, err := agent.NewSequential(def.Name, participants, func(o *agent.Options) {
		o.Logger = p.logger
		o.Metrics = p.opts.Metrics
		o.EventBuffer = p.opts.EventBuffer
		o.InputTemplate = def.InputTemplate
	})
	if err != nil {
		return nil, err
	}

	p.engine.Register(seq)
	p.logger.Info("pipeline registered", "pipeline", def.Name, "stages", len(participants))
	return seq, nil
}

// BuildAll builds every definition in order and stops at the first failure.
func (p *AgentPipe) BuildAll(ctx context.Context, defs []config.PipelineDef, factory worker.Factory) error {
	for _, def := range defs {
		if _, err := p.Build(ctx, def, factory); err != nil {
			return err
		}
	}
	return nil
}

// Invoke starts an asynchronous run returning event & error channels.
func (p *AgentPipe) Invoke(ctx context.Context, pipeline, input string) (string, <-chan core.OutputEvent, <-chan error, error) {
	return p.engine.Invoke(ctx, pipeline, input)
}

// InvokeSync is a synchronous helper that drains the run and returns its
// events together with the run id.
func (p *AgentPipe) InvokeSync(ctx context.Context, pipeline, input string) (string, []core.OutputEvent, error) {
	return p.engine.InvokeSync(ctx, pipeline, input)
}
