package agentpipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/model/anthropic"
	"github.com/hupe1980/agentpipe/model/openai"
)

func mockProvider() config.ProviderConfig {
	return config.DefaultConfig().Provider
}

func TestBuild_FeedbackPipeline(t *testing.T) {
	p := New()
	ctx := context.Background()

	seq, err := p.Build(ctx, config.FeedbackPipeline(), NewWorkerFactory(mockProvider(), nil))
	require.NoError(t, err)
	assert.Len(t, seq.Participants(), 3)
	assert.Equal(t, []string{"feedback"}, p.Engine().Pipelines())

	runID, events, err := p.InvokeSync(ctx, "feedback", "Great support!")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Len(t, events, 3)
	for i, name := range []string{"summarizer", "classifier", "action"} {
		assert.Equal(t, i, events[i].Stage)
		assert.Equal(t, name, events[i].Agent)
		require.Len(t, events[i].Messages, 1)
		assert.Equal(t, name, events[i].Messages[0].Author)
	}
	assert.Contains(t, events[0].Text(), "Customer feedback: Great support!")
}

func TestBuild_SharesWorkersAcrossPipelines(t *testing.T) {
	p := New()
	ctx := context.Background()
	factory := NewWorkerFactory(mockProvider(), nil)

	shared := core.Identity{Name: "summarizer", Instructions: "Summarize."}
	defs := []config.PipelineDef{
		{Name: "a", Participants: []core.Identity{shared, {Name: "writer"}}},
		{Name: "b", Participants: []core.Identity{shared}},
	}
	require.NoError(t, p.BuildAll(ctx, defs, factory))

	assert.Equal(t, 2, p.Workers().Len())
	assert.Equal(t, []string{"a", "b"}, p.Engine().Pipelines())
}

func TestBuild_InvalidDefinition(t *testing.T) {
	p := New()
	_, err := p.Build(context.Background(), config.PipelineDef{Name: "empty"}, NewWorkerFactory(mockProvider(), nil))
	assert.ErrorIs(t, err, core.ErrNoParticipants)
}

func TestBuild_FactoryFailure(t *testing.T) {
	p := New()
	cfg := mockProvider()
	cfg.Name = "cohere"

	_, err := p.Build(context.Background(), config.FeedbackPipeline(), NewWorkerFactory(cfg, nil))
	assert.Error(t, err)
	assert.Empty(t, p.Engine().Pipelines())
}

func TestNewModel(t *testing.T) {
	cfg := mockProvider()

	m, err := NewModel(cfg, "")
	require.NoError(t, err)
	assert.IsType(t, &model.MockModel{}, m)
	assert.Equal(t, cfg.Model, m.Info().Name)

	cfg.Name = config.ProviderOpenAI
	cfg.APIKey = "test"
	m, err = NewModel(cfg, "gpt-4o")
	require.NoError(t, err)
	assert.IsType(t, &openai.Model{}, m)
	assert.Equal(t, "gpt-4o", m.Info().Name)

	cfg.Name = config.ProviderAnthropic
	m, err = NewModel(cfg, "claude-sonnet-4-0")
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Model{}, m)

	cfg.Name = "cohere"
	_, err = NewModel(cfg, "")
	assert.Error(t, err)
}
