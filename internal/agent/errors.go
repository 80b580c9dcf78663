package agent

import (
	"fmt"

	"github.com/datacendia/council/internal/types"
)

// Agent registry error codes
const (
	ErrAgentNotFound    types.ErrorCode = "AGENT_NOT_FOUND"
	ErrAgentUnavailable types.ErrorCode = "AGENT_UNAVAILABLE"
	ErrAgentBusy        types.ErrorCode = "AGENT_BUSY"
	ErrCatalogInvalid   types.ErrorCode = "AGENT_CATALOG_INVALID"
)

// NewNotFoundError is returned for an identifier that was never registered.
func NewNotFoundError(id string) *types.CouncilError {
	return types.NewError(ErrAgentNotFound, fmt.Sprintf("agent %q not found", id))
}

// NewUnavailableError is returned for a registered agent that is offline.
func NewUnavailableError(id string) *types.CouncilError {
	return types.NewRetryableError(ErrAgentUnavailable, fmt.Sprintf("agent %q is offline", id))
}

// NewBusyError is returned when the agent already has a query in flight.
func NewBusyError(id string) *types.CouncilError {
	return types.NewRetryableError(ErrAgentBusy, fmt.Sprintf("agent %q is busy", id))
}
