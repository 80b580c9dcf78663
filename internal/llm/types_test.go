package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_UnmarshalJSON(t *testing.T) {
	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"assistant"`), &r))
	assert.Equal(t, RoleAssistant, r)
	assert.Error(t, json.Unmarshal([]byte(`"tool"`), &r))
}

func TestCompletionRequest_Validate(t *testing.T) {
	valid := CompletionRequest{Model: "m", Messages: []Message{NewUserMessage("q")}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *CompletionRequest)
	}{
		{"no model", func(r *CompletionRequest) { r.Model = "" }},
		{"no messages", func(r *CompletionRequest) { r.Messages = nil }},
		{"empty content", func(r *CompletionRequest) { r.Messages = []Message{NewUserMessage("")} }},
		{"bad role", func(r *CompletionRequest) { r.Messages = []Message{{Role: "tool", Content: "x"}} }},
		{"temperature", func(r *CompletionRequest) { r.Options.Temperature = 2.5 }},
		{"top_p", func(r *CompletionRequest) { r.Options.TopP = 1.5 }},
		{"top_k", func(r *CompletionRequest) { r.Options.TopK = -1 }},
		{"num_predict", func(r *CompletionRequest) { r.Options.NumPredict = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Messages = append([]Message(nil), valid.Messages...)
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestOptions_WireNames(t *testing.T) {
	data, err := json.Marshal(Options{Temperature: 0.3, TopP: 0.8, TopK: 40, NumPredict: 256, Stop: []string{"END"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":0.3,"top_p":0.8,"top_k":40,"num_predict":256,"stop":["END"]}`, string(data))

	assert.True(t, Options{}.IsZero())
	assert.False(t, Options{TopK: 1}.IsZero())
}

func TestCallOptions(t *testing.T) {
	cfg := applyCallOptions(Options{Temperature: 0.7},
		WithTopP(0.5), WithTopK(10), WithAgent("cmo"), WithSystem("sys"))

	assert.Equal(t, 0.7, cfg.options.Temperature)
	assert.Equal(t, 0.5, cfg.options.TopP)
	assert.Equal(t, 10, cfg.options.TopK)
	assert.Equal(t, "cmo", cfg.agent)
	assert.Equal(t, "sys", cfg.system)

	cfg = applyCallOptions(Options{Temperature: 0.7}, WithOptions(Options{NumPredict: 5}))
	assert.Equal(t, Options{NumPredict: 5}, cfg.options)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.GetBaseURL())
	assert.Equal(t, DefaultTimeout, cfg.GetTimeout())

	bad := cfg
	bad.Provider = "openai"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Defaults.Temperature = 5
	assert.Error(t, bad.Validate())

	empty := Config{Provider: ProviderMock}
	assert.Equal(t, DefaultTimeout, empty.GetTimeout())
	assert.Equal(t, DefaultBaseURL, empty.GetBaseURL())
}
