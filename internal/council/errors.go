package council

import (
	"fmt"

	"github.com/datacendia/council/internal/types"
)

// Deliberation error codes
const (
	ErrNoAgentsOnline       types.ErrorCode = "NO_AGENTS_ONLINE"
	ErrDeliberationCanceled types.ErrorCode = "DELIBERATION_CANCELED"
	ErrInvalidRequest       types.ErrorCode = "DELIBERATION_INVALID_REQUEST"
	ErrSessionInvalid       types.ErrorCode = "SESSION_INVALID"
)

// NewNoAgentsOnlineError reports that no requested agent can take part.
func NewNoAgentsOnlineError(requested int) *types.CouncilError {
	if requested > 0 {
		return types.NewError(ErrNoAgentsOnline,
			fmt.Sprintf("none of the %d requested agents is online", requested))
	}
	return types.NewError(ErrNoAgentsOnline, "no agents are online")
}

// NewCanceledError wraps the context error that stopped a deliberation.
func NewCanceledError(cause error) *types.CouncilError {
	return types.WrapError(ErrDeliberationCanceled, "deliberation canceled", cause)
}

// NewInvalidRequestError reports a malformed deliberation request.
func NewInvalidRequestError(message string) *types.CouncilError {
	return types.NewError(ErrInvalidRequest, message)
}

func newSessionInvalidError(format string, args ...any) *types.CouncilError {
	return types.NewError(ErrSessionInvalid, fmt.Sprintf(format, args...))
}

// ErrAllAgentsFailed is returned when every initial analysis failed.
const ErrAllAgentsFailed types.ErrorCode = "DELIBERATION_ALL_AGENTS_FAILED"

func newAllAgentsFailedError(n int, cause error) *types.CouncilError {
	return types.WrapError(ErrAllAgentsFailed,
		fmt.Sprintf("all %d agents failed to answer", n), cause)
}
