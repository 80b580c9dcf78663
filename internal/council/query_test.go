package council

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

func TestQuery_Success(t *testing.T) {
	f := newFixture(t)
	q := f.orch.Querier()

	resp, err := q.Query(context.Background(), "lit", "Should we settle?", QueryOptions{Context: "Damages are capped."})
	require.NoError(t, err)
	assert.Equal(t, "answer from lit", resp.Content)
	assert.Equal(t, "litigation-strategist", resp.AgentCode)
	assert.False(t, resp.Failed)

	calls := f.callsFor("lit:1b")
	require.Len(t, calls, 1)
	sent := calls[0].Messages
	require.Len(t, sent, 3)
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.True(t, strings.HasPrefix(sent[0].Content, llm.SafetyPreamble))
	assert.True(t, strings.HasSuffix(sent[0].Content, "You plan litigation."))
	assert.Equal(t, "Context:\nDamages are capped.", sent[1].Content)
	assert.Equal(t, "Should we settle?", sent[2].Content)
	assert.Equal(t, "lit", calls[0].Agent)

	a, _ := f.reg.Get("lit")
	assert.Equal(t, agent.StatusOnline, a.Status)
}

func TestQuery_FailureRestoresOnline(t *testing.T) {
	f := newFixture(t)
	f.mock.SetModelError("lit:1b", errors.New("model crashed"))

	resp, err := f.orch.Querier().Query(context.Background(), "lit", "q", QueryOptions{})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Failed)
	assert.Contains(t, resp.Content, "unavailable")

	a, _ := f.reg.Get("lit")
	assert.Equal(t, agent.StatusOnline, a.Status)
}

func TestQuery_Preconditions(t *testing.T) {
	f := newFixture(t)
	q := f.orch.Querier()

	_, err := q.Query(context.Background(), "ghost", "q", QueryOptions{})
	assert.True(t, types.HasCode(err, agent.ErrAgentNotFound))

	require.NoError(t, f.reg.SetStatus("lit", agent.StatusOffline))
	_, err = q.Query(context.Background(), "lit", "q", QueryOptions{})
	assert.True(t, types.HasCode(err, agent.ErrAgentUnavailable))
	assert.Empty(t, f.callsFor("lit:1b"))
}

func TestQueryStream_DeliversTokens(t *testing.T) {
	f := newFixture(t)

	var tokens []string
	resp, err := f.orch.Querier().QueryStream(context.Background(), "opp", "q", QueryOptions{}, func(tok string) {
		tokens = append(tokens, tok)
	})
	require.NoError(t, err)
	assert.Equal(t, "answer from opp", resp.Content)
	assert.Equal(t, resp.Content, strings.Join(tokens, ""))
	assert.Greater(t, len(tokens), 1)
}

func TestBuildMessages_Instruction(t *testing.T) {
	msgs := BuildMessages(testDefs[0], "What now?", QueryOptions{Instruction: "Respond in French."})
	require.Len(t, msgs, 2)
	assert.Equal(t, "Respond in French.\n\nWhat now?", msgs[1].Content)
}
