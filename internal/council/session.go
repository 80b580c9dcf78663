package council

import (
	"time"

	"github.com/datacendia/council/internal/types"
)

// Phase is a step of the deliberation state machine.
type Phase string

const (
	PhaseInit             Phase = "init"
	PhaseInitialAnalysis  Phase = "initial_analysis"
	PhaseCrossExamination Phase = "cross_examination"
	PhaseSynthesis        Phase = "synthesis"
	PhaseComplete         Phase = "complete"
)

var phaseOrder = map[Phase]int{
	PhaseInit:             0,
	PhaseInitialAnalysis:  1,
	PhaseCrossExamination: 2,
	PhaseSynthesis:        3,
	PhaseComplete:         4,
}

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is a known value
func (p Phase) IsValid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// CanTransition reports whether the state machine may move from p to next.
// Phases only move forward; cross-examination may be skipped.
func (p Phase) CanTransition(next Phase) bool {
	from, ok1 := phaseOrder[p]
	to, ok2 := phaseOrder[next]
	if !ok1 || !ok2 || to <= from {
		return false
	}
	if to-from == 1 {
		return true
	}
	return p == PhaseInitialAnalysis && next == PhaseSynthesis
}

// AgentResponse is one agent's answer, or the placeholder standing in for it.
type AgentResponse struct {
	AgentID   string        `json:"agent_id"`
	AgentCode string        `json:"agent_code"`
	AgentName string        `json:"agent_name"`
	Content   string        `json:"content"`
	Duration  time.Duration `json:"duration"`
	Failed    bool          `json:"failed,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// CrossExamination is one challenge and the target's rebuttal.
type CrossExamination struct {
	ChallengerID string `json:"challenger_id"`
	TargetID     string `json:"target_id"`
	Rationale    string `json:"rationale,omitempty"`
	Challenge    string `json:"challenge"`
	Rebuttal     string `json:"rebuttal"`
	Failed       bool   `json:"failed,omitempty"`
}

// Session is the complete record of one deliberation. It is not modified
// after Deliberate returns it.
type Session struct {
	ID                types.ID           `json:"id"`
	Question          string             `json:"question"`
	Context           string             `json:"context,omitempty"`
	AgentIDs          []string           `json:"agent_ids"`
	Responses         []AgentResponse    `json:"responses"`
	CrossExaminations []CrossExamination `json:"cross_examinations"`
	Synthesis         string             `json:"synthesis"`
	SynthesizedBy     string             `json:"synthesized_by,omitempty"`
	Confidence        int                `json:"confidence"`
	Phase             Phase              `json:"phase"`
	Locale            string             `json:"locale,omitempty"`
	QuickMode         bool               `json:"quick_mode,omitempty"`
	Duration          time.Duration      `json:"duration"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Response returns the response attributed to agentID.
func (s *Session) Response(agentID string) (AgentResponse, bool) {
	for _, r := range s.Responses {
		if r.AgentID == agentID {
			return r, true
		}
	}
	return AgentResponse{}, false
}

// FailedResponses counts placeholder responses.
func (s *Session) FailedResponses() int {
	n := 0
	for _, r := range s.Responses {
		if r.Failed {
			n++
		}
	}
	return n
}

// Validate checks the session's membership invariants: every response
// belongs to a participating agent, and both sides of every
// cross-examination have a response.
func (s *Session) Validate() error {
	if s.ID.IsZero() {
		return newSessionInvalidError("session id is empty")
	}
	if s.Question == "" {
		return newSessionInvalidError("question is empty")
	}
	if !s.Phase.IsValid() {
		return newSessionInvalidError("unknown phase %q", s.Phase)
	}

	members := make(map[string]struct{}, len(s.AgentIDs))
	for _, id := range s.AgentIDs {
		members[id] = struct{}{}
	}

	responded := make(map[string]struct{}, len(s.Responses))
	for _, r := range s.Responses {
		if _, ok := members[r.AgentID]; !ok {
			return newSessionInvalidError("response from non-member agent %q", r.AgentID)
		}
		responded[r.AgentID] = struct{}{}
	}

	for _, x := range s.CrossExaminations {
		if _, ok := responded[x.ChallengerID]; !ok {
			return newSessionInvalidError("challenger %q has no response", x.ChallengerID)
		}
		if _, ok := responded[x.TargetID]; !ok {
			return newSessionInvalidError("target %q has no response", x.TargetID)
		}
	}

	if s.Confidence < confidenceBase || s.Confidence > confidenceCap {
		return newSessionInvalidError("confidence %d out of range", s.Confidence)
	}
	return nil
}
