package config

import (
	"path/filepath"
	"time"

	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/observability"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := DefaultHomeDir()
	return DefaultConfigFor(homeDir)
}

// DefaultConfigFor returns the defaults rooted at homeDir.
func DefaultConfigFor(homeDir string) *Config {
	dataDir := filepath.Join(homeDir, "data")

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			DataDir: dataDir,
		},
		LLM: llm.DefaultConfig(),
		Monitor: MonitorConfig{
			Interval:     30 * time.Second,
			ProbeTimeout: 5 * time.Second,
		},
		Council:  council.DefaultConfig(),
		Database: database.DefaultConfig(filepath.Join(dataDir, "council.db")),
		Server: ServerConfig{
			Address:          "127.0.0.1:8420",
			ReadTimeout:      30 * time.Second,
			ShutdownTimeout:  15 * time.Second,
			EventBufferSize:  256,
			DefaultListLimit: 50,
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracing: observability.TracingConfig{
			ServiceName: "council",
			SampleRate:  1.0,
		},
		Metrics: observability.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
