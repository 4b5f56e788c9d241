package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/core"
)

func echoStage(name string) core.Handle {
	return agent.NewFuncAgent(name, func(_ context.Context, history []core.Message) (string, error) {
		return strings.ToUpper(history[len(history)-1].Text), nil
	})
}

func mustPipeline(t *testing.T, name string, stages ...core.Handle) *agent.Sequential {
	t.Helper()
	p, err := agent.NewSequential(name, stages)
	require.NoError(t, err)
	return p
}

func TestEngine_RegisterAndList(t *testing.T) {
	e := New()
	e.Register(mustPipeline(t, "b", echoStage("x")))
	e.Register(mustPipeline(t, "a", echoStage("x")))

	assert.Equal(t, []string{"a", "b"}, e.Pipelines())
	_, ok := e.GetPipeline("a")
	assert.True(t, ok)
}

func TestEngine_InvokeUnknownPipeline(t *testing.T) {
	_, _, _, err := New().Invoke(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrPipelineNotFound)
}

func TestEngine_InvokeSync(t *testing.T) {
	e := New()
	e.Register(mustPipeline(t, "feedback", echoStage("summarizer"), echoStage("classifier")))

	runID, events, err := e.InvokeSync(context.Background(), "feedback", "ok")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	require.Len(t, events, 2)
	assert.Equal(t, "summarizer", events[0].Agent)
	assert.Equal(t, "classifier", events[1].Agent)
	assert.Zero(t, e.ActiveRuns())
}

func TestEngine_InvokeSync_Failure(t *testing.T) {
	broken := agent.NewFuncAgent("broken", func(context.Context, []core.Message) (string, error) {
		return "", errors.New("model unavailable")
	})

	e := New()
	e.Register(mustPipeline(t, "feedback", echoStage("summarizer"), broken, echoStage("action")))

	_, events, err := e.InvokeSync(context.Background(), "feedback", "ok")
	require.Error(t, err)
	assert.Len(t, events, 1)

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Stage)
}

func TestEngine_BoundsConcurrentRuns(t *testing.T) {
	var current, peak atomic.Int32
	slow := agent.NewFuncAgent("slow", func(context.Context, []core.Message) (string, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return "done", nil
	})

	e := New(func(o *Options) { o.Config.MaxConcurrentRuns = 2 })
	e.Register(mustPipeline(t, "slow", slow))

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.InvokeSync(context.Background(), "slow", "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestEngine_Stop(t *testing.T) {
	started := make(chan struct{})
	blocking := agent.NewFuncAgent("blocking", func(ctx context.Context, _ []core.Message) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})

	e := New()
	e.Register(mustPipeline(t, "blocking", blocking))

	runID, events, errs, err := e.Invoke(context.Background(), "blocking", "x")
	require.NoError(t, err)

	<-started
	require.NoError(t, e.Stop(runID))

	for range events {
	}
	assert.ErrorIs(t, <-errs, context.Canceled)

	assert.ErrorIs(t, e.Stop(runID), ErrRunNotFound)
}

func TestEngine_Callbacks(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(_ context.Context, c *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		entry := string(c.CallbackType)
		if c.Event != nil {
			entry += ":" + c.Event.Agent
		}
		calls = append(calls, entry)
		return nil
	}

	cm := NewCallbackManager()
	for _, ct := range []CallbackType{CallbackBeforeRun, CallbackAfterStage, CallbackAfterRun, CallbackOnError} {
		cm.RegisterCallback(NewFunctionCallback(ct, record))
	}

	e := New(func(o *Options) { o.Callbacks = cm })
	e.Register(mustPipeline(t, "p", echoStage("a"), echoStage("b")))

	_, _, err := e.InvokeSync(context.Background(), "p", "x")
	require.NoError(t, err)

	assert.Equal(t, []string{"before_run", "after_stage:a", "after_stage:b", "after_run"}, calls)
}

func TestEngine_CallbackErrorAbortsRun(t *testing.T) {
	var onError atomic.Bool

	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackAfterStage, func(context.Context, *CallbackContext) error {
		return errors.New("rejected")
	}))
	cm.RegisterCallback(NewFunctionCallback(CallbackOnError, func(_ context.Context, c *CallbackContext) error {
		onError.Store(c.Err != nil)
		return nil
	}))

	var lines []string
	cm.RegisterCallback(NewLoggingCallback(CallbackOnError, func(msg string) { lines = append(lines, msg) }))

	e := New(func(o *Options) { o.Callbacks = cm })
	e.Register(mustPipeline(t, "p", echoStage("a"), echoStage("b")))

	_, events, err := e.InvokeSync(context.Background(), "p", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
	assert.Empty(t, events)
	assert.True(t, onError.Load())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[on_error] pipeline=p")
}
