package guardrail

import "context"

// GuardrailType defines the category of guardrail
type GuardrailType string

const (
	GuardrailTypeContent GuardrailType = "content"
	GuardrailTypeRate    GuardrailType = "rate"
	GuardrailTypePII     GuardrailType = "pii"
)

// Guardrail inspects what goes to a model and what comes back from it.
type Guardrail interface {
	Name() string
	Type() GuardrailType
	CheckInput(ctx context.Context, input GuardrailInput) (GuardrailResult, error)
	CheckOutput(ctx context.Context, output GuardrailOutput) (GuardrailResult, error)
}
