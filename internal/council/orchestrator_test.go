package council

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/llm/providers"
	"github.com/datacendia/council/internal/types"
)

type phaseLog struct {
	mu     sync.Mutex
	phases []Phase
	starts []string
	done   []string
	chall  int
	rebut  int
	synth  strings.Builder
	final  int
}

func (l *phaseLog) observer() Observer {
	return ObserverFuncs{
		OnPhaseChange: func(p Phase) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.phases = append(l.phases, p)
		},
		OnAgentStart: func(a agent.Agent) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.starts = append(l.starts, a.ID)
		},
		OnAgentComplete: func(r AgentResponse) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.done = append(l.done, r.AgentID)
		},
		OnChallenge:      func(string, string, string) { l.chall++ },
		OnRebuttal:       func(string, string) { l.rebut++ },
		OnSynthesisToken: func(tok string) { l.synth.WriteString(tok) },
		OnComplete:       func(_ string, c int) { l.final = c },
	}
}

type staticBackend bool

func (b staticBackend) Available() bool { return bool(b) }

func TestDeliberate_FullSession(t *testing.T) {
	f := newFixture(t)
	log := &phaseLog{}

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question: "Should we file for an injunction?",
	}, log.observer())
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, []string{"lead", "lit", "opp", "ip", "res"}, s.AgentIDs)
	require.Len(t, s.Responses, 5)
	assert.Len(t, s.CrossExaminations, 3)
	assert.Equal(t, "opp", s.CrossExaminations[0].ChallengerID)
	assert.Equal(t, "lit", s.CrossExaminations[0].TargetID)
	assert.Equal(t, "answer from opp", s.CrossExaminations[0].Challenge)
	assert.Equal(t, "answer from lit", s.CrossExaminations[0].Rebuttal)

	assert.Equal(t, "answer from lead", s.Synthesis)
	assert.Equal(t, "lead", s.SynthesizedBy)
	assert.Equal(t, s.Synthesis, log.synth.String())
	assert.Equal(t, 95, s.Confidence) // 70 + 5*5 + 5*3 capped
	assert.Equal(t, PhaseComplete, s.Phase)

	assert.Equal(t, []Phase{PhaseInit, PhaseInitialAnalysis, PhaseCrossExamination, PhaseSynthesis, PhaseComplete}, log.phases)
	assert.ElementsMatch(t, s.AgentIDs, log.starts)
	assert.ElementsMatch(t, s.AgentIDs, log.done)
	assert.Equal(t, 3, log.chall)
	assert.Equal(t, 3, log.rebut)
	assert.Equal(t, s.Confidence, log.final)

	for _, a := range f.reg.List() {
		assert.Equal(t, agent.StatusOnline, a.Status, a.ID)
	}
}

func TestDeliberate_PreservesSelectionOrder(t *testing.T) {
	f := newFixture(t)
	f.mock.SetModelLatency("lit:1b", 80*time.Millisecond)
	f.mock.SetModelLatency("opp:1b", 40*time.Millisecond)
	log := &phaseLog{}

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp", "ip"},
		QuickMode: true,
	}, log.observer())
	require.NoError(t, err)

	var got []string
	for _, r := range s.Responses {
		got = append(got, r.AgentID)
	}
	assert.Equal(t, []string{"lit", "opp", "ip"}, got)
	assert.Equal(t, []string{"ip", "opp", "lit"}, log.done)
}

func TestDeliberate_ContainsSingleAgentFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.SetModelError("ip:1b", errors.New("out of memory"))

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q"}, nil)
	require.NoError(t, err)

	require.Len(t, s.Responses, 5)
	failed, ok := s.Response("ip")
	require.True(t, ok)
	assert.True(t, failed.Failed)
	assert.Contains(t, failed.Content, "Analysis unavailable")
	assert.NotEmpty(t, failed.Error)
	assert.Equal(t, 1, s.FailedResponses())

	for _, x := range s.CrossExaminations {
		assert.NotEqual(t, "ip", x.ChallengerID)
		assert.NotEqual(t, "ip", x.TargetID)
	}
	assert.Equal(t, "lead", s.SynthesizedBy)
	require.NoError(t, s.Validate())
}

func TestDeliberate_PlaceholdersCountTowardConfidence(t *testing.T) {
	f := newFixture(t)
	f.mock.SetModelError("ip:1b", errors.New("out of memory"))

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp", "ip"},
		QuickMode: true,
	}, nil)
	require.NoError(t, err)

	require.Len(t, s.Responses, 3)
	assert.Equal(t, 1, s.FailedResponses())
	assert.Equal(t, 85, s.Confidence) // 70 + 5*3
}

func TestDeliberate_CrossExaminationFailureIsContained(t *testing.T) {
	f := newFixture(t)
	f.mock.SetResponder(func(c providers.MockCall) (string, error) {
		if c.Kind == "stream" && c.Agent == "opp" {
			return "", errors.New("challenger crashed")
		}
		if c.Kind == "stream" && c.Agent == "lit" {
			return "", errors.New("rebuttal crashed")
		}
		return answerFromAgent(c)
	})

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q"}, nil)
	require.NoError(t, err)
	require.Len(t, s.CrossExaminations, 3)

	first := s.CrossExaminations[0]
	assert.True(t, first.Failed)
	assert.Contains(t, first.Challenge, "Challenge unavailable")
	assert.NotEmpty(t, first.Rebuttal)

	// ip -> res succeeds, res -> lit fails on the rebuttal leg
	assert.False(t, s.CrossExaminations[1].Failed)
	assert.True(t, s.CrossExaminations[2].Failed)
	assert.Contains(t, s.CrossExaminations[2].Rebuttal, "Rebuttal unavailable")

	// failed pairings still count
	assert.Equal(t, ConfidenceBasic.Score(5, 3), s.Confidence)
	assert.Equal(t, "lead", s.SynthesizedBy)
}

func TestDeliberate_NoAgentsOnline(t *testing.T) {
	f := newFixture(t)

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question: "q",
		AgentIDs: []string{"ghost", "phantom"},
	}, nil)
	assert.Nil(t, s)
	assert.True(t, types.HasCode(err, ErrNoAgentsOnline))

	f.reg.SetAll(agent.StatusOffline)
	s, err = f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q"}, nil)
	assert.Nil(t, s)
	assert.True(t, types.HasCode(err, ErrNoAgentsOnline))
	assert.Empty(t, f.mock.GetCalls())
}

func TestDeliberate_FilterSkipsOfflineAndDuplicates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.SetStatus("opp", agent.StatusOffline))

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question: "q",
		AgentIDs: []string{"res", "opp", "res", "lit"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"res", "lit"}, s.AgentIDs)
	require.Len(t, s.CrossExaminations, 1)
	assert.Equal(t, "res", s.CrossExaminations[0].ChallengerID)
}

func TestDeliberate_AllAgentsFailed(t *testing.T) {
	f := newFixture(t)
	f.mock.SetResponder(func(providers.MockCall) (string, error) {
		return "", errors.New("everything is down")
	})

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q", AgentIDs: []string{"lit", "opp"}}, nil)
	assert.Nil(t, s)
	assert.True(t, types.HasCode(err, ErrAllAgentsFailed))
}

func TestDeliberate_QuickModeSkipsCrossExamination(t *testing.T) {
	f := newFixture(t)
	log := &phaseLog{}

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q", QuickMode: true}, log.observer())
	require.NoError(t, err)
	assert.Empty(t, s.CrossExaminations)
	assert.Equal(t, []Phase{PhaseInit, PhaseInitialAnalysis, PhaseSynthesis, PhaseComplete}, log.phases)
	assert.Equal(t, 0, log.chall)
}

func TestDeliberate_SingleAgentSkipsCrossExamination(t *testing.T) {
	f := newFixture(t)

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q", AgentIDs: []string{"opp"}}, nil)
	require.NoError(t, err)
	assert.Empty(t, s.CrossExaminations)
	assert.Equal(t, ConfidenceBasic.Score(1, 0), s.Confidence)
}

func TestDeliberate_ChiefOfflineConcatenates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.reg.SetStatus("lead", agent.StatusOffline))

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
		QuickMode: true,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, s.SynthesizedBy)
	assert.Equal(t, "**Litigation Strategist**: answer from lit\n\n**Opposing Counsel**: answer from opp", s.Synthesis)
	assert.Empty(t, f.callsFor("lead:1b"))
}

func TestDeliberate_ChiefFailureConcatenates(t *testing.T) {
	f := newFixture(t)
	f.mock.SetModelError("lead:1b", errors.New("chief crashed"))

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
		QuickMode: true,
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, s.SynthesizedBy)
	assert.Contains(t, s.Synthesis, "**Opposing Counsel**: answer from opp")
}

func TestDeliberate_StreamingUsesStreamingCoefficient(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	tokens := map[string]*strings.Builder{}

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp", "res"},
		Streaming: true,
	}, ObserverFuncs{OnToken: func(id, tok string) {
		mu.Lock()
		defer mu.Unlock()
		if tokens[id] == nil {
			tokens[id] = &strings.Builder{}
		}
		tokens[id].WriteString(tok)
	}})
	require.NoError(t, err)

	// opp->lit and res->lit
	require.Len(t, s.CrossExaminations, 2)
	assert.Equal(t, ConfidenceStreaming.Score(3, 2), s.Confidence)
	assert.Equal(t, 89, s.Confidence)
	assert.Contains(t, tokens["lit"].String(), "answer from lit")
}

func TestDeliberate_LocaleInstruction(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
		Locale:    "fr-FR",
	}, nil)
	require.NoError(t, err)

	calls := f.mock.GetCalls()
	require.NotEmpty(t, calls)
	for _, c := range calls {
		last := c.Messages[len(c.Messages)-1]
		assert.True(t, strings.HasPrefix(last.Content, "Respond in French."), c.Agent)
	}

	_, err = f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q", Locale: "!!"}, nil)
	assert.True(t, types.HasCode(err, ErrInvalidRequest))
}

func TestDeliberate_Preconditions(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "   "}, nil)
	assert.True(t, types.HasCode(err, ErrInvalidRequest))

	down := newFixture(t, WithBackendStatus(staticBackend(false)))
	_, err = down.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q"}, nil)
	assert.True(t, llm.IsUnavailable(err))
	assert.Empty(t, down.mock.GetCalls())
}

func TestDeliberate_Canceled(t *testing.T) {
	f := newFixture(t)
	f.mock.SetLatency(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	s, err := f.orch.Deliberate(ctx, DeliberationRequest{Question: "q"}, nil)
	assert.Nil(t, s)
	assert.True(t, types.HasCode(err, ErrDeliberationCanceled))

	for _, a := range f.reg.List() {
		assert.Equal(t, agent.StatusOnline, a.Status, a.ID)
	}
}

func TestDeliberate_SessionID(t *testing.T) {
	f := newFixture(t)
	id := types.NewID()

	s, err := f.orch.Deliberate(context.Background(), DeliberationRequest{SessionID: id, Question: "q", QuickMode: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
}

func TestDeliberate_EventObserver(t *testing.T) {
	f := newFixture(t)
	bus := events.NewEventBus()
	defer bus.Close()

	id := types.NewID()
	ch, cleanup := bus.Subscribe(context.Background(), events.Filter{SessionID: id}, 1024)
	defer cleanup()

	obs := NewEventObserver(context.Background(), bus, id, "lead")
	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		SessionID: id,
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
	}, obs)
	require.NoError(t, err)

	seen := map[events.EventType]int{}
	var last events.Event
	for len(ch) > 0 {
		last = <-ch
		seen[last.Type]++
	}
	assert.Equal(t, 1, seen[events.EventDeliberationStarted])
	assert.Equal(t, 4, seen[events.EventDeliberationPhase])
	assert.Equal(t, 2, seen[events.EventAgentStarted])
	assert.Equal(t, 2, seen[events.EventAgentCompleted])
	assert.Equal(t, 1, seen[events.EventChallenge])
	assert.Equal(t, 1, seen[events.EventRebuttal])
	assert.Equal(t, 1, seen[events.EventSynthesisStart])
	assert.Positive(t, seen[events.EventSynthesisToken])
	assert.Positive(t, seen[events.EventAgentToken])
	assert.Equal(t, events.EventDeliberationCompleted, last.Type)
}

type failureCapture struct {
	*EventObserver
	err error
}

func (c *failureCapture) Failed(err error) {
	c.err = err
	c.EventObserver.Failed(err)
}

func TestDeliberate_FailurePublishesEvent(t *testing.T) {
	f := newFixture(t)
	f.mock.SetResponder(func(providers.MockCall) (string, error) {
		return "", errors.New("everything is down")
	})
	bus := events.NewEventBus()
	defer bus.Close()

	id := types.NewID()
	ch, cleanup := bus.Subscribe(context.Background(), events.Filter{SessionID: id}, 1024)
	defer cleanup()

	obs := &failureCapture{EventObserver: NewEventObserver(context.Background(), bus, id, "lead")}
	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		SessionID: id,
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
	}, obs)
	require.Error(t, err)
	assert.Equal(t, err, obs.err)

	var last events.Event
	seen := map[events.EventType]int{}
	for len(ch) > 0 {
		last = <-ch
		seen[last.Type]++
	}
	assert.Equal(t, 1, seen[events.EventDeliberationStarted])
	assert.Zero(t, seen[events.EventDeliberationCompleted])
	require.Equal(t, events.EventDeliberationFailed, last.Type)
	payload, ok := last.Payload.(events.FailedPayload)
	require.True(t, ok)
	assert.Equal(t, string(ErrAllAgentsFailed), payload.Code)
}

func TestDeliberate_PreconditionFailureNotifiesObserver(t *testing.T) {
	f := newFixture(t)
	f.reg.SetAll(agent.StatusOffline)

	var failed error
	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{Question: "q"},
		ObserverFuncs{OnFailed: func(err error) { failed = err }})
	require.Error(t, err)
	assert.True(t, types.HasCode(failed, ErrNoAgentsOnline))
}

type fakeRecorder struct {
	mu       sync.Mutex
	queries  int
	failed   int
	outcomes []string
}

func (r *fakeRecorder) RecordAgentQuery(_ string, _ time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	if failed {
		r.failed++
	}
}

func (r *fakeRecorder) RecordDeliberation(outcome string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestDeliberate_RecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	f := newFixture(t, WithRecorder(rec))
	f.mock.SetModelError("opp:1b", errors.New("boom"))

	_, err := f.orch.Deliberate(context.Background(), DeliberationRequest{
		Question:  "q",
		AgentIDs:  []string{"lit", "opp"},
		QuickMode: true,
	}, nil)
	require.NoError(t, err)

	// two analyses plus the chief synthesis
	assert.Equal(t, 3, rec.queries)
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, []string{"completed"}, rec.outcomes)
}
