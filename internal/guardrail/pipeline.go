package guardrail

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GuardrailPipeline executes a sequence of guardrails on input and output
type GuardrailPipeline struct {
	guardrails []Guardrail
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewGuardrailPipeline creates a new pipeline with the given guardrails
func NewGuardrailPipeline(guardrails ...Guardrail) *GuardrailPipeline {
	return &GuardrailPipeline{
		guardrails: guardrails,
		logger:     slog.Default(),
	}
}

// WithTracer sets the OpenTelemetry tracer for the pipeline
func (p *GuardrailPipeline) WithTracer(tracer trace.Tracer) *GuardrailPipeline {
	p.tracer = tracer
	return p
}

// WithLogger sets the logger for the pipeline
func (p *GuardrailPipeline) WithLogger(logger *slog.Logger) *GuardrailPipeline {
	p.logger = logger
	return p
}

// Len returns the number of guardrails in the pipeline.
func (p *GuardrailPipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.guardrails)
}

// ProcessInput runs all guardrails on input sequentially
// - On block: immediately return GuardrailBlockedError
// - On redact: update input.Content with ModifiedContent for next guardrail
// - On warn: log warning and continue
// - On allow: continue to next guardrail
func (p *GuardrailPipeline) ProcessInput(ctx context.Context, input GuardrailInput) (GuardrailInput, error) {
	if p.Len() == 0 {
		return input, nil
	}

	current := input
	for _, g := range p.guardrails {
		g := g
		content, err := p.run(ctx, "guardrail.check_input", g, current.Content, func(ctx context.Context) (GuardrailResult, error) {
			return g.CheckInput(ctx, current)
		})
		if err != nil {
			return current, err
		}
		current.Content = content
	}

	return current, nil
}

// ProcessOutput runs all guardrails on output sequentially with the same
// semantics as ProcessInput.
func (p *GuardrailPipeline) ProcessOutput(ctx context.Context, output GuardrailOutput) (GuardrailOutput, error) {
	if p.Len() == 0 {
		return output, nil
	}

	current := output
	for _, g := range p.guardrails {
		g := g
		content, err := p.run(ctx, "guardrail.check_output", g, current.Content, func(ctx context.Context) (GuardrailResult, error) {
			return g.CheckOutput(ctx, current)
		})
		if err != nil {
			return current, err
		}
		current.Content = content
	}

	return current, nil
}

// run executes one check and returns the content for the next guardrail.
func (p *GuardrailPipeline) run(ctx context.Context, spanName string, g Guardrail, content string, check func(context.Context) (GuardrailResult, error)) (string, error) {
	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, spanName,
			trace.WithAttributes(
				attribute.String("guardrail.name", g.Name()),
				attribute.String("guardrail.type", string(g.Type())),
			),
		)
	}

	result, err := check(ctx)
	if span != nil {
		span.SetAttributes(
			attribute.String("guardrail.action", string(result.Action)),
			attribute.String("guardrail.reason", result.Reason),
		)
		span.End()
	}

	if err != nil {
		return content, err
	}

	switch result.Action {
	case GuardrailActionBlock:
		return content, NewGuardrailBlockedError(g.Name(), g.Type(), result.Reason)

	case GuardrailActionRedact:
		p.logger.InfoContext(ctx, "guardrail redacted content",
			"guardrail", g.Name(),
			"reason", result.Reason,
		)
		if result.ModifiedContent != "" {
			return result.ModifiedContent, nil
		}

	case GuardrailActionWarn:
		p.logger.WarnContext(ctx, "guardrail warning",
			"guardrail", g.Name(),
			"reason", result.Reason,
		)
	}

	return content, nil
}

// Add returns a new pipeline with additional guardrails
func (p *GuardrailPipeline) Add(guardrails ...Guardrail) *GuardrailPipeline {
	newGuardrails := make([]Guardrail, len(p.guardrails)+len(guardrails))
	copy(newGuardrails, p.guardrails)
	copy(newGuardrails[len(p.guardrails):], guardrails)

	return &GuardrailPipeline{
		guardrails: newGuardrails,
		tracer:     p.tracer,
		logger:     p.logger,
	}
}

// Guardrails returns the list of guardrails in the pipeline
func (p *GuardrailPipeline) Guardrails() []Guardrail {
	result := make([]Guardrail, len(p.guardrails))
	copy(result, p.guardrails)
	return result
}
