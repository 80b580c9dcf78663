package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

// SessionStore persists completed deliberations.
type SessionStore interface {
	Save(ctx context.Context, s *council.Session) error
}

// CouncilResult is a deliberation plus where it came from.
type CouncilResult struct {
	Session *council.Session `json:"session"`
	Source  Source           `json:"source"`
}

// CouncilSession runs streaming deliberations and stores them.
type CouncilSession struct {
	orch   *council.Orchestrator
	store  SessionStore
	logger *slog.Logger
}

// NewCouncilSession creates the council use-case. store may be nil.
func NewCouncilSession(orch *council.Orchestrator, store SessionStore, logger *slog.Logger) *CouncilSession {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouncilSession{orch: orch, store: store, logger: logger}
}

// Run deliberates with streaming enabled and saves the session. When the
// model backend is unreachable, or no agent is online for an unfiltered
// request, it returns a fallback session built from the agent personas
// without any model call. Invalid requests and cancellation are returned
// as errors.
func (c *CouncilSession) Run(ctx context.Context, req council.DeliberationRequest, obs council.Observer) (*CouncilResult, error) {
	req.Streaming = true

	s, err := c.orch.Deliberate(ctx, req, obs)
	if err == nil {
		if c.store != nil {
			if serr := c.store.Save(ctx, s); serr != nil {
				c.logger.ErrorContext(ctx, "failed to persist deliberation", "session_id", s.ID.String(), "error", serr)
				return nil, fmt.Errorf("save session: %w", serr)
			}
		}
		return &CouncilResult{Session: s, Source: SourceModel}, nil
	}

	if !c.shouldFallBack(req, err) {
		return nil, err
	}

	c.logger.WarnContext(ctx, "deliberation falling back to personas", "error", err)
	fb := FallbackSession(c.orch.Registry(), req)
	if obs != nil {
		obs.Complete(fb.Synthesis, fb.Confidence)
	}
	return &CouncilResult{Session: fb, Source: SourceFallback}, nil
}

func (c *CouncilSession) shouldFallBack(req council.DeliberationRequest, err error) bool {
	switch {
	case llm.IsUnavailable(err):
		return true
	case types.HasCode(err, council.ErrAllAgentsFailed):
		return true
	case types.HasCode(err, council.ErrNoAgentsOnline):
		return len(req.AgentIDs) == 0
	default:
		return false
	}
}

// FallbackSession builds a completed session from the requested agents'
// personas with the base confidence.
func FallbackSession(reg *agent.Registry, req council.DeliberationRequest) *council.Session {
	var agents []agent.Agent
	if len(req.AgentIDs) == 0 {
		agents = reg.List()
	} else {
		for _, id := range req.AgentIDs {
			if a, err := reg.Get(id); err == nil {
				agents = append(agents, a)
			}
		}
	}

	now := time.Now()
	s := &council.Session{
		ID:         req.SessionID,
		Question:   req.Question,
		Context:    req.Context,
		Phase:      council.PhaseComplete,
		Locale:     req.Locale,
		QuickMode:  true,
		Confidence: council.ConfidenceStreaming.Score(0, 0),
		CreatedAt:  now,
	}
	if s.ID.IsZero() {
		s.ID = types.NewID()
	}

	for _, a := range agents {
		s.AgentIDs = append(s.AgentIDs, a.ID)
		s.Responses = append(s.Responses, council.AgentResponse{
			AgentID:   a.ID,
			AgentCode: a.Code,
			AgentName: a.Name,
			Content: fmt.Sprintf("%s (%s) is not available for live analysis. Review the question against %s priorities before deciding.",
				a.Name, a.Role, a.Role),
		})
	}

	s.Synthesis = "The model backend is unavailable, so the council could not deliberate. " +
		"Each member's perspective is listed above; treat this as a checklist, not a recommendation."
	s.Duration = time.Since(now)
	return s
}
