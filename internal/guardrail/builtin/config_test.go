package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/guardrail"
	"github.com/datacendia/council/internal/types"
)

func TestParseGuardrailConfigs(t *testing.T) {
	configs := []GuardrailConfig{
		{Type: "rate", Config: map[string]any{"max_requests": 30, "window": "1m", "per_agent": true}},
		{Type: "content", Config: map[string]any{
			"patterns": []any{
				map[string]any{"pattern": "(?i)ignore previous instructions", "action": "block"},
			},
		}},
		{Type: "pii", Config: map[string]any{"action": "redact", "kinds": []any{"ssn", "email"}}},
	}

	guards, err := ParseGuardrailConfigs(configs)
	require.NoError(t, err)
	require.Len(t, guards, 3)
	assert.Equal(t, guardrail.GuardrailTypeRate, guards[0].Type())
	assert.Equal(t, guardrail.GuardrailTypeContent, guards[1].Type())
	assert.Equal(t, guardrail.GuardrailTypePII, guards[2].Type())

	rl := guards[0].(*RateLimiter)
	assert.True(t, rl.config.PerAgent)
	assert.Equal(t, 30, rl.config.BurstSize)
}

func TestParseGuardrailConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config GuardrailConfig
	}{
		{"missing type", GuardrailConfig{Config: map[string]any{}}},
		{"unknown type", GuardrailConfig{Type: "scope", Config: map[string]any{}}},
		{"bad window", GuardrailConfig{Type: "rate", Config: map[string]any{"max_requests": 1, "window": "soon"}}},
		{"no patterns", GuardrailConfig{Type: "content", Config: map[string]any{}}},
		{"unused key", GuardrailConfig{Type: "pii", Config: map[string]any{"enabled_patterns": []any{"ssn"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGuardrailConfig(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestParseGuardrailConfigs_WrapsWithCode(t *testing.T) {
	_, err := ParseGuardrailConfigs([]GuardrailConfig{{Type: "nope"}})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, guardrail.ErrGuardrailConfigInvalid))
}

func TestSupportedGuardrailTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{"content", "pii", "rate"}, SupportedGuardrailTypes())
}
