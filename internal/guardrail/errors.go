package guardrail

import (
	"fmt"

	"github.com/datacendia/council/internal/types"
)

// Guardrail error codes
const (
	ErrGuardrailBlocked       types.ErrorCode = "GUARDRAIL_BLOCKED"
	ErrGuardrailConfigInvalid types.ErrorCode = "GUARDRAIL_CONFIG_INVALID"
)

// GuardrailBlockedError represents an error when a guardrail blocks an operation
type GuardrailBlockedError struct {
	GuardrailName string
	GuardrailType GuardrailType
	Reason        string
}

// Error implements the error interface
func (e *GuardrailBlockedError) Error() string {
	return fmt.Sprintf("guardrail '%s' (%s) blocked operation: %s",
		e.GuardrailName, e.GuardrailType, e.Reason)
}

// Is lets errors.Is match a blocked error against the GUARDRAIL_BLOCKED code.
func (e *GuardrailBlockedError) Is(target error) bool {
	return types.CodeOf(target) == ErrGuardrailBlocked
}

// NewGuardrailBlockedError creates a new GuardrailBlockedError
func NewGuardrailBlockedError(name string, guardType GuardrailType, reason string) *GuardrailBlockedError {
	return &GuardrailBlockedError{
		GuardrailName: name,
		GuardrailType: guardType,
		Reason:        reason,
	}
}
