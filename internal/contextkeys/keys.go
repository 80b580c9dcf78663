// Package contextkeys provides the context keys shared by the council,
// api and observability packages. It has no dependencies so any of them
// can import it.
package contextkeys

import "context"

// Key is the type for all council context keys.
type Key string

const (
	// SessionID stores the deliberation session a call belongs to.
	SessionID Key = "council.session_id"

	// AgentID stores the agent being queried.
	AgentID Key = "council.agent_id"
)

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionID, sessionID)
}

// GetSessionID retrieves the session ID from context.
// Returns empty string if not set.
func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionID).(string)
	return v
}

// WithAgentID returns a new context with the agent ID set.
func WithAgentID(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, AgentID, agentID)
}

// GetAgentID retrieves the agent ID from context.
// Returns empty string if not set.
func GetAgentID(ctx context.Context) string {
	v, _ := ctx.Value(AgentID).(string)
	return v
}
