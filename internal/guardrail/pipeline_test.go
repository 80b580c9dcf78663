package guardrail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/datacendia/council/internal/types"
)

// stubGuardrail returns a fixed result (or error) and counts its calls.
type stubGuardrail struct {
	name   string
	result func(content string) GuardrailResult
	err    error
	calls  int
	seen   []string
}

func (s *stubGuardrail) Name() string        { return s.name }
func (s *stubGuardrail) Type() GuardrailType { return GuardrailTypeContent }

func (s *stubGuardrail) CheckInput(ctx context.Context, input GuardrailInput) (GuardrailResult, error) {
	return s.check(input.Content)
}

func (s *stubGuardrail) CheckOutput(ctx context.Context, output GuardrailOutput) (GuardrailResult, error) {
	return s.check(output.Content)
}

func (s *stubGuardrail) check(content string) (GuardrailResult, error) {
	s.calls++
	s.seen = append(s.seen, content)
	if s.err != nil {
		return GuardrailResult{}, s.err
	}
	return s.result(content), nil
}

func allowing(name string) *stubGuardrail {
	return &stubGuardrail{name: name, result: func(string) GuardrailResult { return NewAllowResult() }}
}

func blocking(name string) *stubGuardrail {
	return &stubGuardrail{name: name, result: func(string) GuardrailResult { return NewBlockResult("blocked by " + name) }}
}

func appending(name, suffix string) *stubGuardrail {
	return &stubGuardrail{name: name, result: func(c string) GuardrailResult { return NewRedactResult("redacted", c+suffix) }}
}

func warning(name string) *stubGuardrail {
	return &stubGuardrail{name: name, result: func(string) GuardrailResult { return NewWarnResult("careful") }}
}

func TestGuardrailPipeline_Empty(t *testing.T) {
	p := NewGuardrailPipeline()
	assert.Equal(t, 0, p.Len())

	in, err := p.ProcessInput(context.Background(), GuardrailInput{Content: "q"})
	require.NoError(t, err)
	assert.Equal(t, "q", in.Content)

	out, err := p.ProcessOutput(context.Background(), GuardrailOutput{Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, "a", out.Content)

	var nilPipeline *GuardrailPipeline
	assert.Equal(t, 0, nilPipeline.Len())
}

func TestGuardrailPipeline_RedactionsChain(t *testing.T) {
	g1 := appending("g1", "-1")
	g2 := appending("g2", "-2")
	p := NewGuardrailPipeline(g1, g2)

	in, err := p.ProcessInput(context.Background(), GuardrailInput{Content: "x", AgentName: "cfo"})
	require.NoError(t, err)
	assert.Equal(t, "x-1-2", in.Content)
	assert.Equal(t, "cfo", in.AgentName)
	assert.Equal(t, []string{"x-1"}, g2.seen)
}

func TestGuardrailPipeline_BlockStopsEarly(t *testing.T) {
	first := blocking("first")
	second := allowing("second")
	p := NewGuardrailPipeline(first, second)

	_, err := p.ProcessOutput(context.Background(), GuardrailOutput{Content: "answer"})
	require.Error(t, err)

	var blocked *GuardrailBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "first", blocked.GuardrailName)
	assert.Equal(t, "blocked by first", blocked.Reason)
	assert.True(t, types.HasCode(err, ErrGuardrailBlocked))
	assert.Equal(t, 0, second.calls)
}

func TestGuardrailPipeline_WarnLogsAndContinues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	after := allowing("after")
	p := NewGuardrailPipeline(warning("w"), after).WithLogger(logger)

	in, err := p.ProcessInput(context.Background(), GuardrailInput{Content: "q"})
	require.NoError(t, err)
	assert.Equal(t, "q", in.Content)
	assert.Equal(t, 1, after.calls)
	assert.True(t, strings.Contains(buf.String(), "guardrail warning"))
}

func TestGuardrailPipeline_CheckErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	p := NewGuardrailPipeline(&stubGuardrail{name: "err", err: boom})

	_, err := p.ProcessInput(context.Background(), GuardrailInput{Content: "q"})
	assert.ErrorIs(t, err, boom)
}

func TestGuardrailPipeline_WithTracer(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	p := NewGuardrailPipeline(appending("r", "!")).WithTracer(tracer)

	out, err := p.ProcessOutput(context.Background(), GuardrailOutput{Content: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok!", out.Content)
}

func TestGuardrailPipeline_AddIsImmutable(t *testing.T) {
	base := NewGuardrailPipeline(allowing("a"))
	extended := base.Add(allowing("b"), allowing("c"))

	assert.Len(t, base.Guardrails(), 1)
	assert.Len(t, extended.Guardrails(), 3)
	assert.Equal(t, "c", extended.Guardrails()[2].Name())
}
