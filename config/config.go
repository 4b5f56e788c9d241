// Package config provides configuration loading for agentpipe.
//
// Settings come from (highest precedence first) environment variables, an
// optional YAML file and built-in defaults. Every key can be set through an
// AGENTPIPE_ prefixed variable (provider.model -> AGENTPIPE_PROVIDER_MODEL);
// a few keys also honour the variable names used by the hosted agent labs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete agentpipe configuration.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Agent    AgentConfig    `mapstructure:"agent" yaml:"agent"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// PipelinesFile points at a YAML file with pipeline definitions. The
	// built-in feedback pipeline is used when empty.
	PipelinesFile string `mapstructure:"pipelines_file" yaml:"pipelines_file"`
}

// Supported provider names.
const (
	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures the language model backend.
type ProviderConfig struct {
	// Name is one of "mock", "openai" or "anthropic".
	Name        string        `mapstructure:"name" yaml:"name"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int64         `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AgentConfig describes the agent served by the task server.
type AgentConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	DisplayName  string `mapstructure:"display_name" yaml:"display_name"`
	Instructions string `mapstructure:"instructions" yaml:"instructions"`
}

// ServerConfig configures the HTTP task server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// RemoteURL is the task server the send command talks to.
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
}

// EngineConfig bounds pipeline execution.
type EngineConfig struct {
	MaxConcurrentRuns int `mapstructure:"max_concurrent_runs" yaml:"max_concurrent_runs"`
	EventBuffer       int `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// NATSConfig configures the optional task event relay.
type NATSConfig struct {
	// URL of the NATS server; the relay is disabled when empty.
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Addr returns host:port for listening.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DefaultTitleInstructions are the instructions of the blog title agent.
const DefaultTitleInstructions = "You are a helpful AI assistant that generates creative and concise titles. " +
	"Based on user input or content, generate an appropriate title that captures " +
	"the essence of the topic. Keep titles brief, engaging, and professional."

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        "mock",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     2 * time.Minute,
		},
		Agent: AgentConfig{
			Name:         "title-agent",
			DisplayName:  "Title Agent",
			Instructions: DefaultTitleInstructions,
		},
		Server: ServerConfig{
			Host:      "localhost",
			Port:      5000,
			RemoteURL: "http://localhost:5000",
		},
		Engine: EngineConfig{
			MaxConcurrentRuns: 10,
			EventBuffer:       16,
		},
		NATS: NATSConfig{
			Subject: "agentpipe.tasks",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envAliases maps keys to additional environment variable names, in
// precedence order after the AGENTPIPE_ variable.
var envAliases = map[string][]string{
	"provider.model":    {"MODEL_DEPLOYMENT_NAME", "AZURE_AI_MODEL_DEPLOYMENT_NAME"},
	"provider.base_url": {"AGENT_ENDPOINT", "AZURE_AI_PROJECT_ENDPOINT"},
	"server.host":       {"SERVER_URL"},
	"server.port":       {"TITLE_AGENT_PORT"},
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("AGENTPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{"AGENTPIPE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("provider.name", d.Provider.Name)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", d.Provider.APIKey)
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.temperature", d.Provider.Temperature)
	v.SetDefault("provider.max_tokens", d.Provider.MaxTokens)
	v.SetDefault("provider.timeout", d.Provider.Timeout)

	v.SetDefault("agent.name", d.Agent.Name)
	v.SetDefault("agent.display_name", d.Agent.DisplayName)
	v.SetDefault("agent.instructions", d.Agent.Instructions)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.remote_url", d.Server.RemoteURL)

	v.SetDefault("engine.max_concurrent_runs", d.Engine.MaxConcurrentRuns)
	v.SetDefault("engine.event_buffer", d.Engine.EventBuffer)

	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.subject", d.NATS.Subject)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("pipelines_file", d.PipelinesFile)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderMock, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("provider.name must be one of mock, openai, anthropic (got %q)", c.Provider.Name)
	}
	if c.Provider.Name != ProviderMock && c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("provider.temperature must be between 0 and 2")
	}
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		return fmt.Errorf("engine.max_concurrent_runs must not be negative")
	}
	return nil
}
