package llm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/datacendia/council/internal/guardrail"
	"github.com/datacendia/council/internal/guardrail/builtin"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/llm/providers"
	"github.com/datacendia/council/internal/types"
)

type recordedCall struct {
	model, agent, kind string
	err                error
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordModelCall(model, agent, kind string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{model, agent, kind, err})
}

func TestGateway_CompleteInjectsSafetyPreamble(t *testing.T) {
	mock := providers.NewMockProvider("Arr, matey")
	gw := llm.NewGateway(mock)

	messages := []llm.Message{
		llm.NewSystemMessage("Talk like a pirate."),
		llm.NewUserMessage("Hello"),
	}
	resp, err := gw.Complete(context.Background(), "llama3.2", messages, llm.WithAgent("cfo"))
	require.NoError(t, err)
	assert.Equal(t, "Arr, matey", resp.Content)

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	sent := calls[0].Messages
	require.Len(t, sent, 2)
	assert.Equal(t, llm.SafetyPreamble+"\n\nTalk like a pirate.", sent[0].Content)
	assert.Equal(t, "cfo", calls[0].Agent)

	// caller's slice untouched
	assert.Equal(t, "Talk like a pirate.", messages[0].Content)
}

func TestGateway_EveryCallKindCarriesPreamble(t *testing.T) {
	mock := providers.NewMockProvider("ok")
	gw := llm.NewGateway(mock)
	ctx := context.Background()
	user := []llm.Message{llm.NewUserMessage("q")}

	_, err := gw.Complete(ctx, "m", user)
	require.NoError(t, err)
	_, err = gw.CompleteStream(ctx, "m", user, nil)
	require.NoError(t, err)
	_, err = gw.Generate(ctx, "m", "prompt", llm.WithSystem("be brief"))
	require.NoError(t, err)

	calls := mock.GetCalls()
	require.Len(t, calls, 3)
	for _, c := range calls[:2] {
		require.Len(t, c.Messages, 2)
		assert.Equal(t, llm.RoleSystem, c.Messages[0].Role)
		assert.Equal(t, llm.SafetyPreamble, c.Messages[0].Content)
	}
	assert.Equal(t, llm.SafetyPreamble+"\n\nbe brief", calls[2].System)
}

func TestGateway_CompleteStreamDeliversTokens(t *testing.T) {
	mock := providers.NewMockProvider("Revenue risk is moderate.")
	mock.SetMalformedEvery(1)
	gw := llm.NewGateway(mock)

	var tokens []string
	resp, err := gw.CompleteStream(context.Background(), "m",
		[]llm.Message{llm.NewUserMessage("q")},
		func(tok string) { tokens = append(tokens, tok) })
	require.NoError(t, err)

	assert.Equal(t, "Revenue risk is moderate.", strings.Join(tokens, ""))
	assert.Equal(t, "Revenue risk is moderate.", resp.Content)
	assert.Equal(t, len(tokens), resp.SkippedChunks)
	assert.Greater(t, len(tokens), 1)
}

func TestGateway_TimeoutIsDistinct(t *testing.T) {
	mock := providers.NewMockProvider("late")
	mock.SetLatency(time.Second)
	gw := llm.NewGateway(mock, llm.WithTimeout(20*time.Millisecond))

	_, err := gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("q")})
	require.Error(t, err)
	assert.True(t, llm.IsTimeout(err))
	assert.False(t, llm.IsUnavailable(err))
	assert.True(t, llm.IsRetryable(err))
}

func TestGateway_CallerCancellation(t *testing.T) {
	mock := providers.NewMockProvider("late")
	mock.SetLatency(time.Second)
	gw := llm.NewGateway(mock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := gw.Complete(ctx, "m", []llm.Message{llm.NewUserMessage("q")})
	require.Error(t, err)
	assert.Equal(t, llm.ErrContextCanceled, types.CodeOf(err))
}

func TestGateway_Unavailable(t *testing.T) {
	mock := providers.NewMockProvider()
	mock.SetUnavailable(true)
	rec := &fakeRecorder{}
	gw := llm.NewGateway(mock, llm.WithCallRecorder(rec))

	_, err := gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("q")}, llm.WithAgent("ciso"))
	require.Error(t, err)
	assert.True(t, llm.IsUnavailable(err))

	_, err = gw.Models(context.Background())
	assert.True(t, llm.IsUnavailable(err))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "ciso", rec.calls[0].agent)
	assert.Equal(t, "complete", rec.calls[0].kind)
	assert.Error(t, rec.calls[0].err)
}

func TestGateway_InvalidRequest(t *testing.T) {
	gw := llm.NewGateway(providers.NewMockProvider())

	_, err := gw.Complete(context.Background(), "", []llm.Message{llm.NewUserMessage("q")})
	assert.Equal(t, llm.ErrInvalidRequest, types.CodeOf(err))

	_, err = gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("q")}, llm.WithTemperature(3))
	assert.Equal(t, llm.ErrInvalidRequest, types.CodeOf(err))

	_, err = gw.Generate(context.Background(), "", "p")
	assert.Equal(t, llm.ErrInvalidRequest, types.CodeOf(err))
}

func TestGateway_DefaultAndCallOptions(t *testing.T) {
	mock := providers.NewMockProvider("ok")
	gw := llm.NewGateway(mock, llm.WithDefaultOptions(llm.Options{Temperature: 0.7, TopP: 0.9}))

	_, err := gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("q")},
		llm.WithTemperature(0.2), llm.WithNumPredict(64), llm.WithStop("</json>"))
	require.NoError(t, err)

	opts := mock.GetCalls()[0].Options
	assert.Equal(t, 0.2, opts.Temperature)
	assert.Equal(t, 0.9, opts.TopP)
	assert.Equal(t, 64, opts.NumPredict)
	assert.Equal(t, []string{"</json>"}, opts.Stop)
}

func TestGateway_Guardrails(t *testing.T) {
	pii, err := builtin.NewPIIDetector(builtin.PIIDetectorConfig{Kinds: []string{"email"}})
	require.NoError(t, err)
	filter, err := builtin.NewContentFilter(builtin.ContentFilterConfig{
		Patterns: []builtin.ContentPattern{{Pattern: `(?i)wire the funds`, Action: guardrail.GuardrailActionBlock}},
	})
	require.NoError(t, err)

	mock := providers.NewMockProvider()
	mock.SetResponder(func(call providers.MockCall) (string, error) {
		last := call.Messages[len(call.Messages)-1].Content
		if strings.Contains(last, "transfer") {
			return "Wire the funds immediately.", nil
		}
		return "Contact ceo@acme.com for sign-off.", nil
	})

	pipeline := guardrail.NewGuardrailPipeline(pii, filter).WithTracer(noop.NewTracerProvider().Tracer("test"))
	gw := llm.NewGateway(mock, llm.WithGuardrails(pipeline))

	resp, err := gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("ask bob@client.org")})
	require.NoError(t, err)
	assert.Equal(t, "Contact [REDACTED-EMAIL] for sign-off.", resp.Content)
	assert.Equal(t, "ask [REDACTED-EMAIL]", mock.GetCalls()[0].Messages[1].Content)

	_, err = gw.Complete(context.Background(), "m", []llm.Message{llm.NewUserMessage("transfer?")})
	require.Error(t, err)
	var blocked *guardrail.GuardrailBlockedError
	assert.True(t, errors.As(err, &blocked))
}

func TestGateway_RateLimitHonoursContext(t *testing.T) {
	gw := llm.NewGateway(providers.NewMockProvider("ok"), llm.WithRateLimit(0.001, 1))
	ctx := context.Background()
	msgs := []llm.Message{llm.NewUserMessage("q")}

	_, err := gw.Complete(ctx, "m", msgs)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = gw.Complete(ctx, "m", msgs)
	require.Error(t, err)
}

func TestGateway_FromConfig(t *testing.T) {
	mock := providers.NewMockProvider("ok")
	mock.SetModels("llama3.2", "mistral")
	cfg := llm.DefaultConfig()
	cfg.Provider = llm.ProviderMock
	gw := llm.NewGatewayFromConfig(mock, cfg)

	models, err := gw.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2", "mistral"}, models)
	assert.True(t, gw.Health(context.Background()).IsHealthy())
	assert.Equal(t, "mock", gw.Provider().Name())

	_, err = gw.Complete(context.Background(), "llama3.2", []llm.Message{llm.NewUserMessage("q")})
	require.NoError(t, err)
	assert.Equal(t, 0.7, mock.GetCalls()[0].Options.Temperature)
}

func TestGateway_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	mock := providers.NewMockProvider("ok")
	gw := llm.NewGateway(mock, llm.WithGatewayTracer(tp.Tracer("council/llm")))

	_, err := gw.Complete(context.Background(), "llama3.2", []llm.Message{llm.NewUserMessage("q")}, llm.WithAgent("cfo"))
	require.NoError(t, err)

	mock.SetUnavailable(true)
	_, err = gw.Generate(context.Background(), "llama3.2", "q")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.complete", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("llm.agent", "cfo"))
	assert.Equal(t, "llm.generate", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
