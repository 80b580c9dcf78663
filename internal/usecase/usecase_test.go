package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/llm/providers"
	"github.com/datacendia/council/internal/types"
)

var boardDefs = []agent.Definition{
	{ID: "cfo", Code: "cfo", Name: "CFO", Role: "Finance", Model: "cfo:1b", SystemPrompt: "You guard the money."},
	{ID: "ciso", Code: "ciso", Name: "CISO", Role: "Security", Model: "ciso:1b", SystemPrompt: "You guard the systems."},
	{ID: "coo", Code: "coo", Name: "COO", Role: "Operations", Model: "coo:1b", SystemPrompt: "You run operations."},
	{ID: "lead", Code: "matter-lead", Name: "Lead", Role: "Chair", Model: "lead:1b", SystemPrompt: "You chair.", Chief: true},
}

func setup(t *testing.T) (*providers.MockProvider, *llm.Gateway, *agent.Registry) {
	t.Helper()
	reg, err := agent.NewRegistry(boardDefs)
	require.NoError(t, err)
	reg.SetAll(agent.StatusOnline)
	mock := providers.NewMockProvider()
	return mock, llm.NewGateway(mock), reg
}

func failureJSON(titles ...string) string {
	var parts []string
	for i, title := range titles {
		parts = append(parts, fmt.Sprintf(`{"title":%q,"description":"d","likelihood":%d,"impact":4,"mitigation":"m"}`, title, i+2))
	}
	return "Here you go:\n<json>{\"failure_modes\":[" + strings.Join(parts, ",") + "]}</json>"
}

func TestPreMortem_MergesModelReplies(t *testing.T) {
	mock, gw, reg := setup(t)
	mock.SetModelResponse("cfo:1b", failureJSON("Budget overrun", "Vendor lock-in"))
	mock.SetModelResponse("ciso:1b", failureJSON("budget overrun", "Data breach"))
	mock.SetModelResponse("coo:1b", "I refuse to answer in JSON")

	res, err := NewPreMortem(gw, reg, nil).Run(context.Background(), PreMortemInput{
		Decision:     "Migrate billing to a new vendor",
		Participants: []string{"cfo", "ciso", "coo"},
	})
	require.NoError(t, err)

	assert.Equal(t, SourceModel, res.Source)
	assert.Equal(t, "12 months", res.Horizon)
	require.Len(t, res.FailureModes, 3)
	var titles []string
	for _, fm := range res.FailureModes {
		titles = append(titles, fm.Title)
	}
	assert.ElementsMatch(t, []string{"Budget overrun", "Vendor lock-in", "Data breach"}, titles)
	assert.Equal(t, []string{"cfo", "ciso"}, res.Participants)
	for i := 1; i < len(res.FailureModes); i++ {
		assert.GreaterOrEqual(t, res.FailureModes[i-1].Severity(), res.FailureModes[i].Severity())
	}
	assert.Equal(t, RiskScore(res.FailureModes), res.RiskScore)

	calls := mock.GetCalls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, "generate", c.Kind)
		assert.True(t, strings.HasPrefix(c.System, llm.SafetyPreamble))
		assert.Contains(t, c.Prompt, "<json>")
		assert.Contains(t, c.Prompt, "Migrate billing")
	}
}

func TestPreMortem_FallbackWhenBackendUnavailable(t *testing.T) {
	mock, gw, reg := setup(t)
	mock.SetUnavailable(true)

	res, err := NewPreMortem(gw, reg, nil).Run(context.Background(), PreMortemInput{Decision: "Open a second office"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Len(t, res.FailureModes, len(DefaultFailureModes()))
	assert.Positive(t, res.RiskScore)
	assert.Empty(t, res.Participants)
}

func TestPreMortem_FallbackWhenNobodyOnline(t *testing.T) {
	mock, gw, reg := setup(t)
	reg.SetAll(agent.StatusOffline)

	res, err := NewPreMortem(gw, reg, nil).Run(context.Background(), PreMortemInput{Decision: "x"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.NotEmpty(t, res.FailureModes)
	assert.Empty(t, mock.GetCalls())
}

func TestPreMortem_ClampsRatings(t *testing.T) {
	mock, gw, reg := setup(t)
	mock.SetModelResponse("cfo:1b", `<json>{"failure_modes":[{"title":"t","likelihood":9,"impact":0}]}</json>`)

	res, err := NewPreMortem(gw, reg, nil).Run(context.Background(), PreMortemInput{Decision: "x", Participants: []string{"cfo"}})
	require.NoError(t, err)
	require.Len(t, res.FailureModes, 1)
	assert.Equal(t, 5, res.FailureModes[0].Likelihood)
	assert.Equal(t, 1, res.FailureModes[0].Impact)
	assert.Equal(t, 20, res.RiskScore)
}

func TestPreMortem_RequiresDecision(t *testing.T) {
	_, gw, reg := setup(t)
	_, err := NewPreMortem(gw, reg, nil).Run(context.Background(), PreMortemInput{Decision: " "})
	assert.Error(t, err)
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 0, RiskScore(nil))
	assert.Equal(t, 100, RiskScore([]FailureMode{{Likelihood: 5, Impact: 5}}))
	assert.Equal(t, 4, RiskScore([]FailureMode{{Likelihood: 1, Impact: 1}}))
}

func TestGhostBoard_MixedSources(t *testing.T) {
	mock, gw, reg := setup(t)
	mock.SetModelResponse("cfo:1b", "```json\n{\"questions\":[{\"question\":\"What is the IRR?\",\"concern\":\"Returns\",\"severity\":\"HIGH\"},{\"question\":\"  \"}]}\n```")
	mock.SetModelResponse("ciso:1b", "no json here")
	require.NoError(t, reg.SetStatus("coo", agent.StatusOffline))

	res, err := NewGhostBoard(gw, reg, nil).Run(context.Background(), GhostBoardInput{
		Proposal:  "Acquire a competitor",
		Directors: []string{"cfo", "ciso", "coo", "unknown"},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceModel, res.Source)
	require.Len(t, res.Directors, 3)

	cfo := res.Directors[0]
	assert.Equal(t, SourceModel, cfo.Source)
	require.Len(t, cfo.Questions, 1)
	assert.Equal(t, "high", cfo.Questions[0].Severity)

	assert.Equal(t, SourceFallback, res.Directors[1].Source)
	assert.Equal(t, DefaultBoardQuestions("ciso"), res.Directors[1].Questions)
	assert.Equal(t, SourceFallback, res.Directors[2].Source)

	for _, c := range mock.GetCalls() {
		assert.NotEqual(t, "coo:1b", c.Model)
	}
}

func TestGhostBoard_FallbackWhenBackendUnavailable(t *testing.T) {
	mock, gw, reg := setup(t)
	mock.SetUnavailable(true)

	res, err := NewGhostBoard(gw, reg, nil).Run(context.Background(), GhostBoardInput{Proposal: "Raise prices"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.NotEmpty(t, res.Directors)
	assert.Positive(t, res.QuestionCount())
}

func TestGhostBoard_NoKnownDirectors(t *testing.T) {
	_, gw, reg := setup(t)
	res, err := NewGhostBoard(gw, reg, nil).Run(context.Background(), GhostBoardInput{Proposal: "p", Directors: []string{"nobody"}})
	require.NoError(t, err)
	require.Len(t, res.Directors, 1)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Positive(t, res.QuestionCount())
}

type memStore struct {
	mu    sync.Mutex
	saved []*council.Session
	err   error
}

func (m *memStore) Save(_ context.Context, s *council.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, s)
	return nil
}

func newCouncil(t *testing.T, opts ...council.Option) (*providers.MockProvider, *agent.Registry, *council.Orchestrator) {
	t.Helper()
	mock, gw, reg := setup(t)
	mock.SetResponder(func(c providers.MockCall) (string, error) { return "view of " + c.Agent, nil })
	return mock, reg, council.NewOrchestrator(gw, reg, nil, opts...)
}

func TestCouncilSession_PersistsModelSession(t *testing.T) {
	_, _, orch := newCouncil(t)
	store := &memStore{}

	res, err := NewCouncilSession(orch, store, nil).Run(context.Background(), council.DeliberationRequest{
		Question: "Should we expand to Europe?",
		AgentIDs: []string{"cfo", "ciso", "coo"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceModel, res.Source)
	require.Len(t, store.saved, 1)
	assert.Equal(t, res.Session.ID, store.saved[0].ID)
	// streaming coefficient, no conflict rules
	assert.Equal(t, council.ConfidenceStreaming.Score(3, 0), res.Session.Confidence)
	assert.Equal(t, "lead", res.Session.SynthesizedBy)
}

func TestCouncilSession_FallbackWhenBackendUnavailable(t *testing.T) {
	mock, _, orch := newCouncil(t)
	mock.SetUnavailable(true)
	store := &memStore{}

	var completed int
	res, err := NewCouncilSession(orch, store, nil).Run(context.Background(), council.DeliberationRequest{
		Question: "Should we expand to Europe?",
	}, council.ObserverFuncs{OnComplete: func(_ string, c int) { completed = c }})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 70, res.Session.Confidence)
	assert.Len(t, res.Session.Responses, len(boardDefs))
	assert.NotEmpty(t, res.Session.Synthesis)
	assert.Equal(t, 70, completed)
	require.NoError(t, res.Session.Validate())
	assert.Empty(t, store.saved)
}

type downBackend struct{}

func (downBackend) Available() bool { return false }

func TestCouncilSession_FallbackWhenMonitorReportsDown(t *testing.T) {
	mock, _, orch := newCouncil(t, council.WithBackendStatus(downBackend{}))

	res, err := NewCouncilSession(orch, nil, nil).Run(context.Background(), council.DeliberationRequest{
		Question: "q",
		AgentIDs: []string{"cfo"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, []string{"cfo"}, res.Session.AgentIDs)
	assert.Empty(t, mock.GetCalls())
}

func TestCouncilSession_Errors(t *testing.T) {
	_, reg, orch := newCouncil(t)
	cs := NewCouncilSession(orch, &memStore{err: errors.New("disk full")}, nil)

	_, err := cs.Run(context.Background(), council.DeliberationRequest{Question: ""}, nil)
	assert.True(t, types.HasCode(err, council.ErrInvalidRequest))

	_, err = cs.Run(context.Background(), council.DeliberationRequest{Question: "q", AgentIDs: []string{"cfo"}}, nil)
	assert.ErrorContains(t, err, "disk full")

	reg.SetAll(agent.StatusOffline)
	_, err = cs.Run(context.Background(), council.DeliberationRequest{Question: "q", AgentIDs: []string{"cfo"}}, nil)
	assert.True(t, types.HasCode(err, council.ErrNoAgentsOnline))
}
