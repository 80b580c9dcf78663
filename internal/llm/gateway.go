package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/datacendia/council/internal/guardrail"
	"github.com/datacendia/council/internal/types"
)

// CallRecorder receives one observation per model call. The metrics
// package implements it.
type CallRecorder interface {
	RecordModelCall(model, agent, kind string, duration time.Duration, err error)
}

// Gateway is the only path from the application to a model backend. Every
// call gets the safety preamble, the configured guardrails, the optional
// outbound rate limit and a hard deadline.
type Gateway struct {
	provider      Provider
	guards        *guardrail.GuardrailPipeline
	limiter       *rate.Limiter
	timeout       time.Duration
	streamTimeout time.Duration
	defaults      Options
	recorder      CallRecorder
	logger        *slog.Logger
	tracer        trace.Tracer
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGuardrails sets the guardrail pipeline run around every call.
func WithGuardrails(p *guardrail.GuardrailPipeline) GatewayOption {
	return func(g *Gateway) { g.guards = p }
}

// WithTimeout sets the per-call deadline of non-streaming calls.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithStreamTimeout bounds streaming calls. Zero means the caller context only.
func WithStreamTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.streamTimeout = d }
}

// WithRateLimit throttles outbound calls. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) GatewayOption {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithDefaultOptions sets sampling options applied before per-call options.
func WithDefaultOptions(o Options) GatewayOption {
	return func(g *Gateway) { g.defaults = o }
}

// WithCallRecorder sets the metrics sink.
func WithCallRecorder(r CallRecorder) GatewayOption {
	return func(g *Gateway) { g.recorder = r }
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// WithGatewayTracer sets the tracer.
func WithGatewayTracer(t trace.Tracer) GatewayOption {
	return func(g *Gateway) { g.tracer = t }
}

// NewGateway wraps provider.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGatewayFromConfig builds a Gateway from the llm config section.
// Extra options are applied after the config.
func NewGatewayFromConfig(provider Provider, cfg Config, opts ...GatewayOption) *Gateway {
	base := []GatewayOption{
		WithTimeout(cfg.GetTimeout()),
		WithStreamTimeout(cfg.StreamTimeout),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		WithDefaultOptions(cfg.Defaults),
	}
	return NewGateway(provider, append(base, opts...)...)
}

// Provider returns the wrapped backend adapter.
func (g *Gateway) Provider() Provider {
	return g.provider
}

// Complete sends messages to model and waits for the full response.
func (g *Gateway) Complete(ctx context.Context, model string, messages []Message, opts ...CallOption) (*CompletionResponse, error) {
	cfg := applyCallOptions(g.defaults, opts...)
	ctx, span := g.startSpan(ctx, "llm.complete", model, cfg.agent)
	defer span.End()

	start := time.Now()
	resp, err := g.complete(ctx, model, messages, cfg)
	g.finish(ctx, span, model, cfg.agent, "complete", start, err)
	return resp, err
}

func (g *Gateway) complete(ctx context.Context, model string, messages []Message, cfg callConfig) (*CompletionResponse, error) {
	req, err := g.prepare(ctx, model, messages, cfg)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Complete(callCtx, req)
	if err != nil {
		return nil, g.classify(ctx, callCtx, g.timeout, err)
	}

	content, err := g.checkOutput(ctx, model, cfg.agent, resp.Content)
	if err != nil {
		return nil, err
	}
	resp.Content = content
	return resp, nil
}

// CompleteStream sends messages to model and delivers each token to onToken
// as it arrives. It returns the aggregate once the stream ends. Malformed
// stream lines are skipped and counted in SkippedChunks.
func (g *Gateway) CompleteStream(ctx context.Context, model string, messages []Message, onToken func(string), opts ...CallOption) (*CompletionResponse, error) {
	cfg := applyCallOptions(g.defaults, opts...)
	ctx, span := g.startSpan(ctx, "llm.stream", model, cfg.agent)
	defer span.End()

	start := time.Now()
	resp, err := g.stream(ctx, model, messages, onToken, cfg)
	g.finish(ctx, span, model, cfg.agent, "stream", start, err)
	if resp != nil {
		span.SetAttributes(attribute.Int("llm.skipped_chunks", resp.SkippedChunks))
	}
	return resp, err
}

func (g *Gateway) stream(ctx context.Context, model string, messages []Message, onToken func(string), cfg callConfig) (*CompletionResponse, error) {
	req, err := g.prepare(ctx, model, messages, cfg)
	if err != nil {
		return nil, err
	}

	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if g.streamTimeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, g.streamTimeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	chunks, err := g.provider.Stream(streamCtx, req)
	if err != nil {
		return nil, g.classify(ctx, streamCtx, g.streamTimeout, err)
	}

	resp := &CompletionResponse{Model: model, FinishReason: FinishReasonStop}
	var sb strings.Builder

	for {
		select {
		case <-streamCtx.Done():
			return nil, g.classify(ctx, streamCtx, g.streamTimeout, streamCtx.Err())

		case chunk, ok := <-chunks:
			if !ok {
				return g.finishStream(ctx, cfg.agent, resp, sb.String(), start)
			}
			if chunk.Error != nil {
				return nil, g.classify(ctx, streamCtx, g.streamTimeout, chunk.Error)
			}
			if chunk.Malformed {
				resp.SkippedChunks++
				continue
			}
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if onToken != nil {
					onToken(chunk.Content)
				}
			}
			if chunk.Done {
				if chunk.FinishReason != "" {
					resp.FinishReason = chunk.FinishReason
				}
				return g.finishStream(ctx, cfg.agent, resp, sb.String(), start)
			}
		}
	}
}

func (g *Gateway) finishStream(ctx context.Context, agent string, resp *CompletionResponse, content string, start time.Time) (*CompletionResponse, error) {
	if resp.SkippedChunks > 0 {
		g.logger.WarnContext(ctx, "skipped malformed stream chunks",
			"model", resp.Model,
			"agent", agent,
			"skipped", resp.SkippedChunks,
		)
	}

	checked, err := g.checkOutput(ctx, resp.Model, agent, content)
	if err != nil {
		return nil, err
	}
	resp.Content = checked
	resp.Duration = time.Since(start)
	return resp, nil
}

// Generate sends a single prompt to model. The system prompt set with
// WithSystem is carried with the safety preamble prepended.
func (g *Gateway) Generate(ctx context.Context, model, prompt string, opts ...CallOption) (string, error) {
	cfg := applyCallOptions(g.defaults, opts...)
	ctx, span := g.startSpan(ctx, "llm.generate", model, cfg.agent)
	defer span.End()

	start := time.Now()
	out, err := g.generate(ctx, model, prompt, cfg)
	g.finish(ctx, span, model, cfg.agent, "generate", start, err)
	return out, err
}

func (g *Gateway) generate(ctx context.Context, model, prompt string, cfg callConfig) (string, error) {
	if model == "" {
		return "", NewInvalidRequestError("model is required")
	}

	checked, err := g.guards.ProcessInput(ctx, guardrail.GuardrailInput{Content: prompt, AgentName: cfg.agent, Model: model})
	if err != nil {
		return "", err
	}

	if err := g.wait(ctx); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Generate(callCtx, GenerateRequest{
		Model:   model,
		Prompt:  checked.Content,
		System:  WithSafetyPreamble(cfg.system),
		Options: cfg.options,
		Agent:   cfg.agent,
	})
	if err != nil {
		return "", g.classify(ctx, callCtx, g.timeout, err)
	}

	return g.checkOutput(ctx, model, cfg.agent, resp.Content)
}

// Models lists the models installed on the backend.
func (g *Gateway) Models(ctx context.Context) ([]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	models, err := g.provider.ListModels(callCtx)
	if err != nil {
		return nil, g.classify(ctx, callCtx, g.timeout, err)
	}
	return models, nil
}

// Health reports backend connectivity.
func (g *Gateway) Health(ctx context.Context) types.HealthStatus {
	return g.provider.Health(ctx)
}

// prepare injects the safety preamble, validates, runs input guardrails on
// the last user message and waits for the rate limiter.
func (g *Gateway) prepare(ctx context.Context, model string, messages []Message, cfg callConfig) (CompletionRequest, error) {
	req := CompletionRequest{
		Model:    model,
		Messages: InjectSafetyPreamble(messages),
		Options:  cfg.options,
		Agent:    cfg.agent,
	}
	if err := req.Validate(); err != nil {
		return req, types.WrapError(ErrInvalidRequest, "invalid completion request", err)
	}

	if g.guards.Len() > 0 {
		if idx := lastUserMessage(req.Messages); idx >= 0 {
			checked, err := g.guards.ProcessInput(ctx, guardrail.GuardrailInput{
				Content:   req.Messages[idx].Content,
				AgentName: cfg.agent,
				Model:     model,
			})
			if err != nil {
				return req, err
			}
			req.Messages[idx].Content = checked.Content
		}
	}

	return req, g.wait(ctx)
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return types.WrapError(ErrContextCanceled, "canceled while waiting for rate limiter", ctx.Err())
		}
		return types.WrapError(ErrTimeout, "rate limiter wait exceeds deadline", err)
	}
	return nil
}

func (g *Gateway) checkOutput(ctx context.Context, model, agent, content string) (string, error) {
	if g.guards.Len() == 0 {
		return content, nil
	}
	out, err := g.guards.ProcessOutput(ctx, guardrail.GuardrailOutput{Content: content, AgentName: agent, Model: model})
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// classify separates the gateway's own deadline from caller cancellation
// before falling back to transport translation.
func (g *Gateway) classify(parent, call context.Context, limit time.Duration, err error) error {
	if parent.Err() != nil {
		return types.WrapError(ErrContextCanceled, "model call canceled by caller", parent.Err())
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		e := NewTimeoutError(fmt.Sprintf("model did not respond within %s", limit))
		e.Cause = err
		return e
	}
	return TranslateError(g.provider.Name(), err)
}

func (g *Gateway) startSpan(ctx context.Context, name, model, agent string) (context.Context, trace.Span) {
	if g.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return g.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", g.provider.Name()),
		attribute.String("llm.model", model),
		attribute.String("llm.agent", agent),
	))
}

func (g *Gateway) finish(ctx context.Context, span trace.Span, model, agent, kind string, start time.Time, err error) {
	elapsed := time.Since(start)
	if g.recorder != nil {
		g.recorder.RecordModelCall(model, agent, kind, elapsed, err)
	}
	if err != nil {
		if g.tracer != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		g.logger.DebugContext(ctx, "model call failed",
			"kind", kind,
			"model", model,
			"agent", agent,
			"code", types.CodeOf(err),
			"error", err,
		)
		return
	}
	g.logger.DebugContext(ctx, "model call completed",
		"kind", kind,
		"model", model,
		"agent", agent,
		"duration", elapsed,
	)
}

func lastUserMessage(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}
