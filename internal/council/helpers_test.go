package council

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/llm/providers"
)

// testDefs gives every agent its own model so the mock can script them
// independently.
var testDefs = []agent.Definition{
	{ID: "lead", Code: "matter-lead", Name: "Matter Lead", Role: "Lead counsel", Model: "lead:1b", SystemPrompt: "You lead the matter.", Chief: true},
	{ID: "lit", Code: "litigation-strategist", Name: "Litigation Strategist", Role: "Strategy", Model: "lit:1b", SystemPrompt: "You plan litigation."},
	{ID: "opp", Code: "opposing-counsel", Name: "Opposing Counsel", Role: "Adversary", Model: "opp:1b", SystemPrompt: "You argue the other side."},
	{ID: "ip", Code: "ip-specialist", Name: "IP Specialist", Role: "IP", Model: "ip:1b", SystemPrompt: "You know patents."},
	{ID: "res", Code: "research-counsel", Name: "Research Counsel", Role: "Research", Model: "res:1b", SystemPrompt: "You research precedent."},
}

var testRules = []agent.ConflictRule{
	{Source: "opposing-counsel", Target: "litigation-strategist", Rationale: "adversarial stress test"},
	{Source: "ip-specialist", Target: "research-counsel", Rationale: "prior art"},
	{Source: "research-counsel", Target: "litigation-strategist", Rationale: "precedent"},
	{Source: "opposing-counsel", Target: "matter-lead", Rationale: "weak points"},
}

func answerFromAgent(c providers.MockCall) (string, error) {
	return "answer from " + c.Agent, nil
}

type fixture struct {
	mock *providers.MockProvider
	reg  *agent.Registry
	orch *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg, err := agent.NewRegistry(testDefs)
	require.NoError(t, err)
	reg.SetAll(agent.StatusOnline)

	mock := providers.NewMockProvider()
	mock.SetResponder(answerFromAgent)

	gw := llm.NewGateway(mock)
	return &fixture{
		mock: mock,
		reg:  reg,
		orch: NewOrchestrator(gw, reg, testRules, opts...),
	}
}

func (f *fixture) callsFor(model string) []providers.MockCall {
	var out []providers.MockCall
	for _, c := range f.mock.GetCalls() {
		if c.Model == model {
			out = append(out, c)
		}
	}
	return out
}
