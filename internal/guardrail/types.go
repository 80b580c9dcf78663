package guardrail

// GuardrailInput is the prompt side of a model exchange: the last user
// message, plus who is asking and which model is asked.
type GuardrailInput struct {
	Content   string         `json:"content"`
	AgentName string         `json:"agent_name,omitempty"`
	Model     string         `json:"model,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GuardrailOutput is the completed model response.
type GuardrailOutput struct {
	Content   string         `json:"content"`
	AgentName string         `json:"agent_name,omitempty"`
	Model     string         `json:"model,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GuardrailAction defines the action taken by a guardrail
type GuardrailAction string

const (
	GuardrailActionAllow  GuardrailAction = "allow"
	GuardrailActionBlock  GuardrailAction = "block"
	GuardrailActionRedact GuardrailAction = "redact"
	GuardrailActionWarn   GuardrailAction = "warn"
)

// IsValid reports whether the action is one of the known actions.
func (a GuardrailAction) IsValid() bool {
	switch a {
	case GuardrailActionAllow, GuardrailActionBlock, GuardrailActionRedact, GuardrailActionWarn:
		return true
	default:
		return false
	}
}

// GuardrailResult represents the result of a guardrail check
type GuardrailResult struct {
	Action          GuardrailAction `json:"action"`
	Reason          string          `json:"reason,omitempty"`
	ModifiedContent string          `json:"modified_content,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
}

// IsBlocked returns true if the action is block
func (r GuardrailResult) IsBlocked() bool {
	return r.Action == GuardrailActionBlock
}

// AllowContinue returns true if execution should continue (allow or warn)
func (r GuardrailResult) AllowContinue() bool {
	return r.Action == GuardrailActionAllow || r.Action == GuardrailActionWarn
}

// NewAllowResult creates a result that allows the operation
func NewAllowResult() GuardrailResult {
	return GuardrailResult{
		Action:   GuardrailActionAllow,
		Metadata: make(map[string]any),
	}
}

// NewBlockResult creates a result that blocks the operation
func NewBlockResult(reason string) GuardrailResult {
	return GuardrailResult{
		Action:   GuardrailActionBlock,
		Reason:   reason,
		Metadata: make(map[string]any),
	}
}

// NewRedactResult creates a result that redacts the content
func NewRedactResult(reason, modifiedContent string) GuardrailResult {
	return GuardrailResult{
		Action:          GuardrailActionRedact,
		Reason:          reason,
		ModifiedContent: modifiedContent,
		Metadata:        make(map[string]any),
	}
}

// NewWarnResult creates a result that warns but allows the operation
func NewWarnResult(reason string) GuardrailResult {
	return GuardrailResult{
		Action:   GuardrailActionWarn,
		Reason:   reason,
		Metadata: make(map[string]any),
	}
}
