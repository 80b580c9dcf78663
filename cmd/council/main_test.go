package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/config"
)

// runCLI executes the root command with fresh flag state.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	*globalFlags = GlobalFlags{OutputFormat: "text"}
	deliberateFlags = struct {
		context string
		agents  []string
		quick   bool
		noCross bool
		locale  string
		noSave  bool
	}{}
	premortemFlags.context, premortemFlags.horizon, premortemFlags.participants = "", "", nil
	ghostboardFlags.context, ghostboardFlags.directors = "", nil
	agentsFlags.noProbe = false
	configInitForce = false
	sessionsListLimit = 20

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func offline(home string, args ...string) []string {
	return append([]string{"--home", home, "--offline"}, args...)
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "council "))

	out, _, err = runCLI(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["go_version"])
}

func TestInvalidOutputFormat(t *testing.T) {
	_, _, err := runCLI(t, "version", "-o", "xml")
	var cliErr *internal.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, internal.ExitUsage, cliErr.Code)
}

func TestConfigInitAndGet(t *testing.T) {
	home := t.TempDir()

	out, _, err := runCLI(t, "--home", home, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(home, "config.yaml"))

	_, _, err = runCLI(t, "--home", home, "config", "init")
	assert.Error(t, err)

	_, _, err = runCLI(t, "--home", home, "config", "init", "--force")
	require.NoError(t, err)

	out, _, err = runCLI(t, "--home", home, "config", "get", "server.address")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8420", strings.TrimSpace(out))

	_, _, err = runCLI(t, "--home", home, "config", "get", "server.nope")
	assert.Error(t, err)

	out, _, err = runCLI(t, "--home", home, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	out, _, err = runCLI(t, "--home", home, "config", "show", "-o", "json")
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	assert.Contains(t, tree, "llm")
	assert.Contains(t, tree, "council")
}

func TestAgents_Offline(t *testing.T) {
	home := t.TempDir()
	catalog, err := agent.DefaultCatalog()
	require.NoError(t, err)

	out, _, err := runCLI(t, offline(home, "agents", "-o", "json")...)
	require.NoError(t, err)

	var body struct {
		Agents []agent.Agent        `json:"agents"`
		Counts map[agent.Status]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Len(t, body.Agents, len(catalog.Agents))
	assert.Equal(t, len(catalog.Agents), body.Counts[agent.StatusOnline])

	out, _, err = runCLI(t, offline(home, "agents", "--no-probe")...)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "0 online")
}

func TestDeliberate_OfflineStoresSession(t *testing.T) {
	home := t.TempDir()

	out, _, err := runCLI(t, offline(home, "deliberate", "-o", "json", "Should", "we", "expand?")...)
	require.NoError(t, err)

	var res struct {
		Session struct {
			ID         string `json:"id"`
			Question   string `json:"question"`
			Synthesis  string `json:"synthesis"`
			Confidence int    `json:"confidence"`
		} `json:"session"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, "model", res.Source)
	assert.Equal(t, "Should we expand?", res.Session.Question)
	assert.NotEmpty(t, res.Session.Synthesis)
	assert.GreaterOrEqual(t, res.Session.Confidence, 70)
	assert.LessOrEqual(t, res.Session.Confidence, 95)

	out, _, err = runCLI(t, offline(home, "sessions", "list", "-o", "json")...)
	require.NoError(t, err)
	assert.Contains(t, out, res.Session.ID)

	out, _, err = runCLI(t, offline(home, "sessions", "show", res.Session.ID)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Should we expand?")
	assert.Contains(t, out, "Confidence:")
}

func TestDeliberate_TextWithoutTerminal(t *testing.T) {
	home := t.TempDir()

	out, stderr, err := runCLI(t, offline(home, "deliberate", "--no-save", "--no-cross", "Raise prices?")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Initial analysis")
	assert.Contains(t, out, "Synthesis")
	assert.NotContains(t, out, "Cross-examination")
	assert.NotContains(t, stderr, "Saved as")
}

func TestDeliberate_BlankQuestion(t *testing.T) {
	_, _, err := runCLI(t, offline(t.TempDir(), "deliberate", "   ")...)
	var cliErr *internal.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, internal.ExitUsage, cliErr.Code)
}

func TestSessionsShow_Errors(t *testing.T) {
	home := t.TempDir()

	_, _, err := runCLI(t, offline(home, "sessions", "show", "not-an-id")...)
	assert.Error(t, err)

	_, _, err = runCLI(t, offline(home, "sessions", "show", "0b3c1a52-6a4e-4d3b-9a52-6f1f0f3e2a11")...)
	assert.Error(t, err)

	out, _, err := runCLI(t, offline(home, "sessions", "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No deliberations")
}

func TestPreMortem_Offline(t *testing.T) {
	out, _, err := runCLI(t, offline(t.TempDir(), "premortem", "-o", "json", "Move", "to", "the", "cloud")...)
	require.NoError(t, err)

	var body struct {
		ID     string `json:"id"`
		Result struct {
			FailureModes []map[string]any `json:"failure_modes"`
			RiskScore    int              `json:"risk_score"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body), out)
	assert.NotEmpty(t, body.ID)
	assert.NotEmpty(t, body.Result.FailureModes)
	assert.Positive(t, body.Result.RiskScore)
}

func TestGhostBoard_Offline(t *testing.T) {
	out, _, err := runCLI(t, offline(t.TempDir(), "ghostboard", "Raise a Series B")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Proposal: Raise a Series B")
	assert.Contains(t, out, "questions from")
}

func TestWarm_Offline(t *testing.T) {
	out, _, err := runCLI(t, offline(t.TempDir(), "warm")...)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded in")
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	flags := &GlobalFlags{HomeDir: t.TempDir(), Offline: true, Verbose: true, OutputFormat: "text"}
	cfg, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, "mock", string(cfg.LLM.Provider))
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, config.DefaultConfigPath(flags.HomeDir), flags.ConfigPath())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
