package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/llm"
)

func userReq(model string) llm.CompletionRequest {
	return llm.CompletionRequest{Model: model, Messages: []llm.Message{llm.NewUserMessage("q")}}
}

func TestMockProvider_ResponseRotation(t *testing.T) {
	p := NewMockProvider("one", "two")

	for _, want := range []string{"one", "two", "one"} {
		resp, err := p.Complete(context.Background(), userReq("m"))
		require.NoError(t, err)
		assert.Equal(t, want, resp.Content)
	}
	assert.Len(t, p.GetCalls(), 3)

	p.Reset()
	assert.Empty(t, p.GetCalls())
	resp, err := p.Complete(context.Background(), userReq("m"))
	require.NoError(t, err)
	assert.Equal(t, "one", resp.Content)
}

func TestMockProvider_PerModelScript(t *testing.T) {
	boom := errors.New("boom")
	p := NewMockProvider("default")
	p.SetModelResponse("llama3.2", "llama says hi")
	p.SetModelError("mistral", boom)
	p.SetResponder(func(call MockCall) (string, error) { return "responder for " + call.Model, nil })

	resp, err := p.Complete(context.Background(), userReq("llama3.2"))
	require.NoError(t, err)
	assert.Equal(t, "llama says hi", resp.Content)

	_, err = p.Complete(context.Background(), userReq("mistral"))
	assert.ErrorIs(t, err, boom)

	resp, err = p.Complete(context.Background(), userReq("qwen"))
	require.NoError(t, err)
	assert.Equal(t, "responder for qwen", resp.Content)
}

func TestMockProvider_LatencyHonoursContext(t *testing.T) {
	p := NewMockProvider("slow")
	p.SetModelLatency("m", time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Complete(ctx, userReq("m"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockProvider_Unavailable(t *testing.T) {
	p := NewMockProvider()
	p.SetUnavailable(true)

	_, err := p.ListModels(context.Background())
	assert.True(t, llm.IsUnavailable(err))
	_, err = p.Generate(context.Background(), llm.GenerateRequest{Model: "m", Prompt: "p"})
	assert.True(t, llm.IsUnavailable(err))
	assert.True(t, p.Health(context.Background()).IsUnhealthy())

	p.SetUnavailable(false)
	p.SetModels("a", "b")
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, models)
}

func TestMockProvider_StreamChunks(t *testing.T) {
	p := NewMockProvider("abcdefghijkl")
	p.SetMalformedEvery(2)

	chunks, err := p.Stream(context.Background(), userReq("m"))
	require.NoError(t, err)

	var parts []string
	malformed := 0
	var last llm.StreamChunk
	for c := range chunks {
		last = c
		if c.Malformed {
			malformed++
			continue
		}
		if c.Content != "" {
			parts = append(parts, c.Content)
		}
	}

	assert.Equal(t, []string{"abcde", "fghij", "kl"}, parts)
	assert.Equal(t, 1, malformed)
	assert.True(t, last.Done)
}

func TestMockProvider_RecordsGenerate(t *testing.T) {
	p := NewMockProvider("ok")
	_, err := p.Generate(context.Background(), llm.GenerateRequest{Model: "m", Prompt: "p", System: "s", Agent: "cfo"})
	require.NoError(t, err)

	calls := p.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "generate", calls[0].Kind)
	assert.Equal(t, "s", calls[0].System)
	assert.Equal(t, "cfo", calls[0].Agent)
}
