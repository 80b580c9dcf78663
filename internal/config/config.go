package config

import (
	"time"

	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/guardrail/builtin"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/observability"
)

// Config is the root configuration for the council service.
type Config struct {
	Core       CoreConfig                  `mapstructure:"core" yaml:"core" validate:"required"`
	LLM        llm.Config                  `mapstructure:"llm" yaml:"llm"`
	Monitor    MonitorConfig               `mapstructure:"monitor" yaml:"monitor"`
	Council    council.Config              `mapstructure:"council" yaml:"council"`
	Agents     AgentsConfig                `mapstructure:"agents" yaml:"agents"`
	Database   database.Config             `mapstructure:"database" yaml:"database"`
	Server     ServerConfig                `mapstructure:"server" yaml:"server"`
	Logging    observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing    observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics    observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Guardrails []builtin.GuardrailConfig   `mapstructure:"guardrails" yaml:"guardrails,omitempty"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir" validate:"required"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// MonitorConfig controls the backend availability probe.
type MonitorConfig struct {
	Interval     time.Duration `mapstructure:"interval" yaml:"interval" validate:"min=1s"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout" validate:"min=100ms"`

	// PreWarm loads every agent model into memory when the server starts.
	PreWarm bool `mapstructure:"prewarm" yaml:"prewarm"`
}

// AgentsConfig selects the agent catalog. An empty path uses the built-in one.
type AgentsConfig struct {
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
}

// ServerConfig contains the HTTP API settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`

	// EventBufferSize is the per-subscriber buffer for streamed events.
	EventBufferSize int `mapstructure:"event_buffer_size" yaml:"event_buffer_size" validate:"min=1"`

	// DefaultListLimit caps list endpoints without an explicit limit.
	DefaultListLimit int `mapstructure:"default_list_limit" yaml:"default_list_limit" validate:"min=1,max=1000"`
}
