package llm

import (
	"fmt"
	"time"

	"github.com/datacendia/council/internal/types"
)

// ProviderType selects the backend adapter.
type ProviderType string

const (
	ProviderOllama ProviderType = "ollama"
	ProviderMock   ProviderType = "mock"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second
)

// Config is the llm section of the application config.
type Config struct {
	Provider      ProviderType  `mapstructure:"provider" yaml:"provider" validate:"required,oneof=ollama mock"`
	BaseURL       string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
	StreamTimeout time.Duration `mapstructure:"stream_timeout" yaml:"stream_timeout" validate:"gte=0"`
	KeepAlive     string        `mapstructure:"keep_alive" yaml:"keep_alive"`

	// RequestsPerSecond throttles all outbound calls when positive.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`

	Defaults Options `mapstructure:"defaults" yaml:"defaults"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderOllama,
		BaseURL:  DefaultBaseURL,
		Timeout:  DefaultTimeout,
		Defaults: Options{Temperature: 0.7, TopP: 0.9},
	}
}

// Validate checks the fields the struct tags cannot express.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderMock:
	case "":
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm.provider cannot be empty")
	default:
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("invalid llm.provider '%s', must be one of: ollama, mock", c.Provider))
	}

	if c.Timeout < 0 || c.StreamTimeout < 0 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "llm timeouts cannot be negative")
	}

	if c.Defaults.Temperature < 0 || c.Defaults.Temperature > 2 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("llm.defaults.temperature must be between 0 and 2, got %v", c.Defaults.Temperature))
	}
	if c.Defaults.TopP < 0 || c.Defaults.TopP > 1 {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			fmt.Sprintf("llm.defaults.top_p must be between 0 and 1, got %v", c.Defaults.TopP))
	}

	return nil
}

// GetBaseURL returns the configured base URL or the local Ollama default.
func (c *Config) GetBaseURL() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

// GetTimeout returns the per-call deadline, defaulting to two minutes.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
