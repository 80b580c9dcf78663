package council

import (
	"context"
	"time"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/types"
)

// Observer receives progress notifications during a deliberation. All
// callbacks are best-effort and do not affect control flow. AgentStart,
// Token and AgentComplete are called from concurrent goroutines during
// initial analysis.
type Observer interface {
	PhaseChange(phase Phase)
	AgentStart(a agent.Agent)
	Token(agentID, token string)
	AgentComplete(resp AgentResponse)
	Challenge(challengerID, targetID, text string)
	Rebuttal(targetID, text string)
	SynthesisStart()
	SynthesisToken(token string)
	Complete(synthesis string, confidence int)
	Failed(err error)
}

// ObserverFuncs implements Observer with optional function fields.
type ObserverFuncs struct {
	OnPhaseChange    func(phase Phase)
	OnAgentStart     func(a agent.Agent)
	OnToken          func(agentID, token string)
	OnAgentComplete  func(resp AgentResponse)
	OnChallenge      func(challengerID, targetID, text string)
	OnRebuttal       func(targetID, text string)
	OnSynthesisStart func()
	OnSynthesisToken func(token string)
	OnComplete       func(synthesis string, confidence int)
	OnFailed         func(err error)
}

func (f ObserverFuncs) PhaseChange(phase Phase) {
	if f.OnPhaseChange != nil {
		f.OnPhaseChange(phase)
	}
}

func (f ObserverFuncs) AgentStart(a agent.Agent) {
	if f.OnAgentStart != nil {
		f.OnAgentStart(a)
	}
}

func (f ObserverFuncs) Token(agentID, token string) {
	if f.OnToken != nil {
		f.OnToken(agentID, token)
	}
}

func (f ObserverFuncs) AgentComplete(resp AgentResponse) {
	if f.OnAgentComplete != nil {
		f.OnAgentComplete(resp)
	}
}

func (f ObserverFuncs) Challenge(challengerID, targetID, text string) {
	if f.OnChallenge != nil {
		f.OnChallenge(challengerID, targetID, text)
	}
}

func (f ObserverFuncs) Rebuttal(targetID, text string) {
	if f.OnRebuttal != nil {
		f.OnRebuttal(targetID, text)
	}
}

func (f ObserverFuncs) SynthesisStart() {
	if f.OnSynthesisStart != nil {
		f.OnSynthesisStart()
	}
}

func (f ObserverFuncs) SynthesisToken(token string) {
	if f.OnSynthesisToken != nil {
		f.OnSynthesisToken(token)
	}
}

func (f ObserverFuncs) Complete(synthesis string, confidence int) {
	if f.OnComplete != nil {
		f.OnComplete(synthesis, confidence)
	}
}

func (f ObserverFuncs) Failed(err error) {
	if f.OnFailed != nil {
		f.OnFailed(err)
	}
}

// NoopObserver ignores every notification.
var NoopObserver Observer = ObserverFuncs{}

// EventObserver publishes every notification as an event for sessionID.
// Publish failures are ignored.
type EventObserver struct {
	ctx       context.Context
	pub       events.Publisher
	sessionID types.ID
	chief     string
}

// NewEventObserver creates an observer publishing to pub. chiefID is used
// as the agent of synthesis events.
func NewEventObserver(ctx context.Context, pub events.Publisher, sessionID types.ID, chiefID string) *EventObserver {
	return &EventObserver{ctx: ctx, pub: pub, sessionID: sessionID, chief: chiefID}
}

func (e *EventObserver) emit(t events.EventType, agentID string, payload any) {
	_ = e.pub.Publish(e.ctx, events.NewEvent(e.ctx, t, e.sessionID, agentID, payload))
}

// PhaseChange publishes deliberation.started for the init phase and
// deliberation.phase afterwards.
func (e *EventObserver) PhaseChange(phase Phase) {
	t := events.EventDeliberationPhase
	if phase == PhaseInit {
		t = events.EventDeliberationStarted
	}
	e.emit(t, "", events.PhasePayload{Phase: phase.String()})
}

// AgentStart publishes agent.started.
func (e *EventObserver) AgentStart(a agent.Agent) {
	e.emit(events.EventAgentStarted, a.ID, events.AgentPayload{AgentName: a.Name})
}

// Token publishes agent.token.
func (e *EventObserver) Token(agentID, token string) {
	e.emit(events.EventAgentToken, agentID, events.TokenPayload{Token: token})
}

// AgentComplete publishes agent.completed, or agent.failed for a placeholder.
func (e *EventObserver) AgentComplete(resp AgentResponse) {
	t := events.EventAgentCompleted
	if resp.Failed {
		t = events.EventAgentFailed
	}
	e.emit(t, resp.AgentID, events.AgentPayload{
		AgentName: resp.AgentName,
		Content:   resp.Content,
		Duration:  resp.Duration.Round(time.Millisecond),
		Error:     resp.Error,
	})
}

// Challenge publishes cross.challenge attributed to the challenger.
func (e *EventObserver) Challenge(challengerID, targetID, text string) {
	e.emit(events.EventChallenge, challengerID, events.CrossPayload{
		ChallengerID: challengerID, TargetID: targetID, Text: text,
	})
}

// Rebuttal publishes cross.rebuttal attributed to the target.
func (e *EventObserver) Rebuttal(targetID, text string) {
	e.emit(events.EventRebuttal, targetID, events.CrossPayload{TargetID: targetID, Text: text})
}

// SynthesisStart publishes synthesis.started attributed to the chief.
func (e *EventObserver) SynthesisStart() {
	e.emit(events.EventSynthesisStart, e.chief, nil)
}

// SynthesisToken publishes synthesis.token.
func (e *EventObserver) SynthesisToken(token string) {
	e.emit(events.EventSynthesisToken, e.chief, events.TokenPayload{Token: token})
}

// Complete publishes deliberation.completed.
func (e *EventObserver) Complete(synthesis string, confidence int) {
	e.emit(events.EventDeliberationCompleted, "", events.CompletedPayload{
		Synthesis: synthesis, Confidence: confidence,
	})
}

// Failed publishes deliberation.failed with the error code.
func (e *EventObserver) Failed(err error) {
	e.emit(events.EventDeliberationFailed, "", events.FailedPayload{
		Code: string(types.CodeOf(err)), Error: err.Error(),
	})
}
