package events

import (
	"context"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/datacendia/council/internal/types"
)

// EventType identifies the category of an event.
type EventType string

// Deliberation lifecycle events
const (
	EventDeliberationStarted   EventType = "deliberation.started"
	EventDeliberationPhase     EventType = "deliberation.phase"
	EventDeliberationCompleted EventType = "deliberation.completed"
	EventDeliberationFailed    EventType = "deliberation.failed"
)

// Per-agent events inside a deliberation
const (
	EventAgentStarted   EventType = "agent.started"
	EventAgentToken     EventType = "agent.token"
	EventAgentCompleted EventType = "agent.completed"
	EventAgentFailed    EventType = "agent.failed"
)

// Cross-examination and synthesis events
const (
	EventChallenge      EventType = "cross.challenge"
	EventRebuttal       EventType = "cross.rebuttal"
	EventSynthesisStart EventType = "synthesis.started"
	EventSynthesisToken EventType = "synthesis.token"
)

// Availability events
const (
	EventAgentStatusChanged EventType = "agent.status_changed"
	EventBackendAvailable   EventType = "backend.available"
	EventBackendUnavailable EventType = "backend.unavailable"
	EventModelWarmed        EventType = "model.warmed"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsToken reports whether the event carries a single streamed token.
func (t EventType) IsToken() bool {
	return t == EventAgentToken || t == EventSynthesisToken
}

// Event is one notification on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// SessionID associates the event with a deliberation (empty for
	// availability events).
	SessionID types.ID `json:"session_id,omitempty"`

	// AgentID identifies the agent the event is about.
	AgentID string `json:"agent_id,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// Payload contains event-specific typed data (use type assertion to access)
	Payload any `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time and, when ctx carries a
// recording span, its trace identifiers.
func NewEvent(ctx context.Context, eventType EventType, sessionID types.ID, agentID string, payload any) Event {
	ev := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: sessionID,
		AgentID:   agentID,
		Payload:   payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
		ev.SpanID = sc.SpanID().String()
	}
	return ev
}

// Filter defines criteria for filtering events in subscriptions.
// Empty fields act as wildcards.
type Filter struct {
	Types     []EventType `json:"types,omitempty"`
	SessionID types.ID    `json:"session_id,omitempty"`
	AgentID   string      `json:"agent_id,omitempty"`
}

// Matches reports whether the event satisfies every non-empty criterion.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, event.Type) {
		return false
	}
	if !f.SessionID.IsZero() && event.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && event.AgentID != f.AgentID {
		return false
	}
	return true
}

// PhasePayload accompanies deliberation.phase events.
type PhasePayload struct {
	Phase string `json:"phase"`
}

// AgentPayload accompanies agent.started / agent.completed / agent.failed.
type AgentPayload struct {
	AgentName string        `json:"agent_name"`
	Content   string        `json:"content,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// TokenPayload accompanies token events.
type TokenPayload struct {
	Token string `json:"token"`
}

// CrossPayload accompanies cross.challenge and cross.rebuttal.
type CrossPayload struct {
	ChallengerID string `json:"challenger_id"`
	TargetID     string `json:"target_id"`
	Text         string `json:"text"`
}

// CompletedPayload accompanies deliberation.completed.
type CompletedPayload struct {
	Synthesis  string `json:"synthesis"`
	Confidence int    `json:"confidence"`
}

// FailedPayload accompanies deliberation.failed.
type FailedPayload struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// StatusPayload accompanies agent.status_changed.
type StatusPayload struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

// BackendPayload accompanies backend availability events.
type BackendPayload struct {
	Models []string `json:"models,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// WarmPayload accompanies model.warmed.
type WarmPayload struct {
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}
