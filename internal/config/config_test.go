package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfigFor(t.TempDir())
	require.NoError(t, NewValidator().Validate(cfg))

	assert.Equal(t, llm.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "matter-lead", cfg.Council.ChiefCode)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, filepath.Join(cfg.Core.DataDir, "council.db"), cfg.Database.Path)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://gpu-box:11434
  timeout: 45s
council:
  max_cross_examinations: 2
  default_locale: fr
server:
  address: 0.0.0.0:9000
`)

	cfg, err := NewConfigLoader(nil).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, llm.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, 2, cfg.Council.MaxCrossExaminations)
	assert.Equal(t, "fr", cfg.Council.DefaultLocale)
	assert.Equal(t, 1000, cfg.Council.TruncateChars)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address)
	assert.Equal(t, filepath.Dir(path), cfg.Core.HomeDir)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("COUNCIL_TEST_OLLAMA", "http://10.0.0.5:11434")
	path := writeConfig(t, `
llm:
  base_url: ${COUNCIL_TEST_OLLAMA}
`)

	cfg, err := NewConfigLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.LLM.BaseURL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("COUNCIL_SERVER_ADDRESS", "127.0.0.1:7000")
	t.Setenv("COUNCIL_LLM_PROVIDER", "mock")

	cfg, err := NewConfigLoader(nil).LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Address)
	assert.Equal(t, llm.ProviderMock, cfg.LLM.Provider)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad provider", "llm:\n  provider: openai\n", "llm"},
		{"bad locale", "council:\n  default_locale: not-a-locale!!\n", "council"},
		{"bad log level", "logging:\n  level: loud\n", "logging"},
		{"bad address", "server:\n  address: nowhere\n", "server.address"},
		{"bad buffer", "server:\n  event_buffer_size: 0\n", "server.event_buffer_size"},
		{"bad guardrail", "guardrails:\n  - type: telepathy\n", "guardrails"},
		{"missing catalog", "agents:\n  catalog_path: /nonexistent/catalog.yaml\n", "agents"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigLoader(nil).Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, types.HasCode(err, types.CONFIG_VALIDATION_FAILED))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_RelativePathsAnchoredAtHome(t *testing.T) {
	path := writeConfig(t, `
database:
  path: data/audit.db
`)
	home := filepath.Dir(path)

	cfg, err := NewConfigLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "audit.db"), cfg.Database.Path)
	assert.Empty(t, cfg.Agents.CatalogPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewConfigLoader(nil).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, types.HasCode(err, types.CONFIG_LOAD_FAILED))
}

func TestWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := DefaultConfigPath(dir)
	cfg := DefaultConfigFor(dir)
	cfg.Council.MaxCrossExaminations = 1

	require.NoError(t, Write(path, cfg, false))
	assert.Error(t, Write(path, cfg, false))
	require.NoError(t, Write(path, cfg, true))

	loaded, err := NewConfigLoader(nil).Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Council.MaxCrossExaminations)
	assert.Equal(t, cfg.Server, loaded.Server)
	assert.Equal(t, cfg.Monitor, loaded.Monitor)
}

func TestCamelToSnake(t *testing.T) {
	assert.Equal(t, "base_url", camelToSnake("BaseURL"))
	assert.Equal(t, "llm", camelToSnake("LLM"))
	assert.Equal(t, "event_buffer_size", camelToSnake("EventBufferSize"))
	assert.Equal(t, "server.address", formatFieldPath("Config.Server.Address"))
}

func TestDefaultHomeDir_Env(t *testing.T) {
	t.Setenv(EnvHome, "/srv/council")
	assert.Equal(t, "/srv/council", DefaultHomeDir())
}
