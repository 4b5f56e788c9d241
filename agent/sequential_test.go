package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/internal/testutil"
	"github.com/hupe1980/agentpipe/metrics"
)

func drain(t *testing.T, events <-chan core.OutputEvent, errs <-chan error) ([]core.OutputEvent, error) {
	t.Helper()

	var (
		got []core.OutputEvent
		err error
	)
	for ev := range events {
		got = append(got, ev)
	}
	for e := range errs {
		err = e
	}
	return got, err
}

func TestNewSequential_RequiresParticipants(t *testing.T) {
	_, err := NewSequential("empty", nil)
	assert.ErrorIs(t, err, core.ErrNoParticipants)
}

func TestNewSequential_RejectsBadTemplate(t *testing.T) {
	_, err := NewSequential("p", []core.Handle{upperEcho("echo")}, func(o *Options) {
		o.InputTemplate = "{{.Input"
	})
	assert.Error(t, err)
}

func TestSequential_Run_SingleStageUppercaseEcho(t *testing.T) {
	p, err := NewSequential("echo-pipeline", []core.Handle{upperEcho("echo")})
	require.NoError(t, err)

	stream, errs := p.Run(context.Background(), "I love the app")
	events, err := drain(t, stream, errs)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Stage)
	assert.Equal(t, "echo", events[0].Agent)
	require.Len(t, events[0].Messages, 1)
	assert.Equal(t, core.RoleAssistant, events[0].Messages[0].Role)
	assert.Equal(t, "I LOVE THE APP", events[0].Messages[0].Text)
}

func TestSequential_Run_EachStageSeesFullHistory(t *testing.T) {
	first := NewMockHandle("summarizer")
	second := NewMockHandle("classifier")
	third := NewMockHandle("action")

	input := core.NewUserMessage("The app crashes on login")
	summary := core.NewAssistantMessage("summarizer", "Login crash")
	label := core.NewAssistantMessage("classifier", "Negative")
	action := core.NewAssistantMessage("action", "Escalate to support")

	first.On("Invoke", mock.Anything, []core.Message{input}).Return([]core.Message{summary}, nil).Once()
	second.On("Invoke", mock.Anything, []core.Message{input, summary}).Return([]core.Message{label}, nil).Once()
	third.On("Invoke", mock.Anything, []core.Message{input, summary, label}).Return([]core.Message{action}, nil).Once()

	p, err := NewSequential("feedback", []core.Handle{first, second, third})
	require.NoError(t, err)

	stream, errs := p.Run(context.Background(), input.Text)
	events, err := drain(t, stream, errs)
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i, ev.Stage)
		require.Len(t, ev.Messages, 1, "event carries only its stage's messages")
	}
	assert.Equal(t, "Login crash", events[0].Text())
	assert.Equal(t, "Negative", events[1].Text())
	assert.Equal(t, "Escalate to support", events[2].Text())

	first.AssertExpectations(t)
	second.AssertExpectations(t)
	third.AssertExpectations(t)
}

func TestSequential_Run_MiddleStageFailureAborts(t *testing.T) {
	first := NewMockHandle("summarizer")
	second := NewMockHandle("classifier")
	third := NewMockHandle("action")

	first.On("Invoke", mock.Anything, mock.Anything).
		Return([]core.Message{core.NewAssistantMessage("summarizer", "summary")}, nil)
	second.On("Invoke", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	p, err := NewSequential("feedback", []core.Handle{first, second, third})
	require.NoError(t, err)

	stream, errs := p.Run(context.Background(), "feedback")
	events, err := drain(t, stream, errs)

	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Stage)

	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "feedback", pe.Pipeline)
	assert.Equal(t, 1, pe.Stage)
	assert.Equal(t, "classifier", pe.Agent)

	var we *core.WorkerError
	require.ErrorAs(t, err, &we)
	assert.ErrorIs(t, err, assert.AnError)

	third.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestSequential_Run_ZeroMessageStageStillEmits(t *testing.T) {
	quiet := NewFuncAgent("quiet", func(context.Context, []core.Message) (string, error) { return "", nil })

	p, err := NewSequential("p", []core.Handle{quiet, upperEcho("echo")})
	require.NoError(t, err)

	stream, errs := p.Run(context.Background(), "hi")
	events, err := drain(t, stream, errs)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Empty(t, events[0].Messages)
	assert.Equal(t, "HI", events[1].Text())
}

func TestSequential_EventsRebuildConversation(t *testing.T) {
	quiet := NewFuncAgent("quiet", func(context.Context, []core.Message) (string, error) { return "", nil })

	p, err := NewSequential("p", []core.Handle{upperEcho("echo"), quiet, upperEcho("shout")})
	require.NoError(t, err)

	res, err := p.RunSync(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, []core.OutputEvent{
		testutil.NewEventBuilder(0, "echo").Text("HI").Build(),
		testutil.NewEventBuilder(1, "quiet").Build(),
		testutil.NewEventBuilder(2, "shout").Text("HI").Build(),
	}, res.Events)

	rebuilt := testutil.NewHistoryBuilder().User("hi")
	for _, ev := range res.Events {
		rebuilt.Event(ev)
	}
	assert.Equal(t, rebuilt.Build(), res.Conversation.Messages())
}

func TestSequential_Run_InputTemplate(t *testing.T) {
	p, err := NewSequential("feedback", []core.Handle{upperEcho("echo")}, func(o *Options) {
		o.InputTemplate = "Customer feedback: {{.Input}}"
	})
	require.NoError(t, err)

	res, err := p.RunSync(context.Background(), "great support")
	require.NoError(t, err)

	msgs := res.Conversation.Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "Customer feedback: great support", msgs[0].Text)
	assert.Equal(t, "CUSTOMER FEEDBACK: GREAT SUPPORT", res.Events[0].Text())
}

func TestSequential_RunSync(t *testing.T) {
	p, err := NewSequential("p", []core.Handle{upperEcho("a"), upperEcho("b")})
	require.NoError(t, err)

	res, err := p.RunSync(context.Background(), "go")
	require.NoError(t, err)

	assert.Len(t, res.Events, 2)
	assert.Equal(t, 3, res.Conversation.Len())
	assert.Equal(t, "[user] go\n[a] GO\n[b] GO", res.Conversation.Transcript())
}

func TestSequential_RunSync_ReturnsEventsBeforeAbort(t *testing.T) {
	broken := NewFuncAgent("broken", func(context.Context, []core.Message) (string, error) {
		return "", errors.New("upstream unavailable")
	})

	p, err := NewSequential("p", []core.Handle{upperEcho("a"), broken, upperEcho("c")})
	require.NoError(t, err)

	res, err := p.RunSync(context.Background(), "go")
	require.Error(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, 2, res.Conversation.Len())
}

func TestSequential_Run_CanceledContext(t *testing.T) {
	p, err := NewSequential("p", []core.Handle{upperEcho("a")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream, errs := p.Run(ctx, "go")
	events, err := drain(t, stream, errs)
	assert.Empty(t, events)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSequential_Run_SlowConsumerDoesNotLoseEvents(t *testing.T) {
	handles := make([]core.Handle, 10)
	for i := range handles {
		handles[i] = upperEcho("echo")
	}
	p, err := NewSequential("long", handles, func(o *Options) { o.EventBuffer = 1 })
	require.NoError(t, err)

	events, errs := p.Run(context.Background(), "x")
	var stages []int
	for ev := range events {
		time.Sleep(time.Millisecond)
		stages = append(stages, ev.Stage)
	}
	for e := range errs {
		require.NoError(t, e)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, stages)
}

func TestSequential_ConcurrentRunsAreIndependent(t *testing.T) {
	p, err := NewSequential("p", []core.Handle{upperEcho("a"), upperEcho("b")})
	require.NoError(t, err)

	inputs := []string{"one", "two", "three", "four"}
	results := make(chan Result, len(inputs))
	for _, in := range inputs {
		go func(in string) {
			res, err := p.RunSync(context.Background(), in)
			assert.NoError(t, err)
			results <- res
		}(in)
	}

	for range inputs {
		res := <-results
		msgs := res.Conversation.Messages()
		require.Len(t, msgs, 3)
		assert.Equal(t, strings.ToUpper(msgs[0].Text), msgs[1].Text)
		assert.Equal(t, msgs[1].Text, msgs[2].Text)
	}
}

func TestSequential_NestsAsHandle(t *testing.T) {
	inner, err := NewSequential("inner", []core.Handle{upperEcho("a"), upperEcho("b")})
	require.NoError(t, err)

	outer, err := NewSequential("outer", []core.Handle{inner, upperEcho("c")})
	require.NoError(t, err)

	res, err := outer.RunSync(context.Background(), "nest")
	require.NoError(t, err)

	require.Len(t, res.Events, 2)
	assert.Equal(t, "inner", res.Events[0].Agent)
	assert.Len(t, res.Events[0].Messages, 2)
	assert.Equal(t, 4, res.Conversation.Len())
}

func TestSequential_ObservesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNew(reg)

	p, err := NewSequential("measured", []core.Handle{upperEcho("a")}, func(o *Options) { o.Metrics = m })
	require.NoError(t, err)

	_, err = p.RunSync(context.Background(), "x")
	require.NoError(t, err)

	count, err := promtestutil.GatherAndCount(reg, "agentpipe_pipeline_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSequential_Run_PanickingStageAborts(t *testing.T) {
	broken := NewFuncAgent("broken", func(context.Context, []core.Message) (string, error) {
		var m map[string]int
		m["stage"] = 1
		return "", nil
	})

	p, err := NewSequential("p", []core.Handle{upperEcho("a"), broken, upperEcho("c")})
	require.NoError(t, err)

	stream, errs := p.Run(context.Background(), "go")
	events, err := drain(t, stream, errs)

	require.Len(t, events, 1)
	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Stage)
	assert.Equal(t, "broken", pe.Agent)
	assert.Contains(t, err.Error(), "panic")
}
