package agentpipe

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentpipe/agent"
	"github.com/hupe1980/agentpipe/config"
	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
	"github.com/hupe1980/agentpipe/model"
	"github.com/hupe1980/agentpipe/model/anthropic"
	"github.com/hupe1980/agentpipe/model/openai"
	"github.com/hupe1980/agentpipe/worker"
)

// NewModel builds the model client described by cfg. A non-empty name
// overrides cfg.Model.
func NewModel(cfg config.ProviderConfig, name string) (model.Model, error) {
	if name == "" {
		name = cfg.Model
	}

	switch cfg.Name {
	case config.ProviderMock:
		return model.NewMockModel(name, config.ProviderMock), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = name
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.RequestTimeout = cfg.Timeout
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(name)
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.RequestTimeout = cfg.Timeout
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Name)
	}
}

// NewWorkerFactory returns a factory creating one ModelAgent per identity on
// the provider described by cfg. An identity naming its own model gets a
// client for that model.
func NewWorkerFactory(cfg config.ProviderConfig, logger logging.Logger) worker.Factory {
	logger = logging.OrNoOp(logger)
	return func(_ context.Context, id core.Identity) (core.Handle, error) {
		llm, err := NewModel(cfg, id.Model)
		if err != nil {
			return nil, err
		}
		return agent.NewModelAgentFromIdentity(id, llm, func(o *agent.ModelAgentOptions) {
			o.Logger = logger
		}), nil
	}
}
