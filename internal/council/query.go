package council

import (
	"context"
	"log/slog"
	"time"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/contextkeys"
	"github.com/datacendia/council/internal/llm"
)

// Completer is the part of the model gateway used by deliberations.
type Completer interface {
	Complete(ctx context.Context, model string, messages []llm.Message, opts ...llm.CallOption) (*llm.CompletionResponse, error)
	CompleteStream(ctx context.Context, model string, messages []llm.Message, onToken func(string), opts ...llm.CallOption) (*llm.CompletionResponse, error)
}

// QueryOptions tunes a single agent query.
type QueryOptions struct {
	// Context is supplied to the agent as a separate user message.
	Context string

	// Instruction is prefixed to the question, e.g. a language instruction.
	Instruction string

	Temperature float64
	NumPredict  int
}

func (o QueryOptions) callOptions(agentID string) []llm.CallOption {
	opts := []llm.CallOption{llm.WithAgent(agentID)}
	if o.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(o.Temperature))
	}
	if o.NumPredict > 0 {
		opts = append(opts, llm.WithNumPredict(o.NumPredict))
	}
	return opts
}

// Querier asks one agent one question.
type Querier struct {
	gw     Completer
	reg    *agent.Registry
	logger *slog.Logger
}

// NewQuerier creates a querier over gw and reg.
func NewQuerier(gw Completer, reg *agent.Registry, logger *slog.Logger) *Querier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Querier{gw: gw, reg: reg, logger: logger}
}

// Registry returns the registry the querier dispatches against.
func (q *Querier) Registry() *agent.Registry {
	return q.reg
}

// Query sends question to agentID and waits for the full answer.
//
// Unknown agents yield AGENT_NOT_FOUND and agents that are not online
// yield AGENT_UNAVAILABLE (or AGENT_BUSY); no response is returned for
// either. When the model call itself fails, Query returns both the error
// and a Failed placeholder response carrying the elapsed time. The agent
// is busy for the duration of the call and released afterwards whatever
// the outcome.
func (q *Querier) Query(ctx context.Context, agentID, question string, opts QueryOptions) (*AgentResponse, error) {
	return q.run(ctx, agentID, question, opts, nil)
}

// QueryStream is Query with each token delivered to onToken as it arrives.
func (q *Querier) QueryStream(ctx context.Context, agentID, question string, opts QueryOptions, onToken func(string)) (*AgentResponse, error) {
	if onToken == nil {
		onToken = func(string) {}
	}
	return q.run(ctx, agentID, question, opts, onToken)
}

func (q *Querier) run(ctx context.Context, agentID, question string, opts QueryOptions, onToken func(string)) (*AgentResponse, error) {
	a, err := q.reg.Get(agentID)
	if err != nil {
		return nil, err
	}

	release, err := q.reg.Acquire(agentID)
	if err != nil {
		return nil, err
	}
	defer release()
	ctx = contextkeys.WithAgentID(ctx, a.ID)

	messages := BuildMessages(a.Definition, question, opts)
	callOpts := opts.callOptions(a.ID)

	start := time.Now()
	var resp *llm.CompletionResponse
	if onToken != nil {
		resp, err = q.gw.CompleteStream(ctx, a.Model, messages, onToken, callOpts...)
	} else {
		resp, err = q.gw.Complete(ctx, a.Model, messages, callOpts...)
	}
	elapsed := time.Since(start)

	out := &AgentResponse{
		AgentID:   a.ID,
		AgentCode: a.Code,
		AgentName: a.Name,
		Duration:  elapsed,
	}
	if err != nil {
		q.logger.WarnContext(ctx, "agent query failed",
			"agent", a.ID,
			"model", a.Model,
			"duration", elapsed,
			"error", err,
		)
		out.Failed = true
		out.Error = err.Error()
		out.Content = placeholder("Analysis", err)
		return out, err
	}

	out.Content = resp.Content
	q.logger.DebugContext(ctx, "agent query completed",
		"agent", a.ID,
		"model", a.Model,
		"duration", elapsed,
		"chars", len(resp.Content),
	)
	return out, nil
}

// BuildMessages assembles the conversation for one query: the agent's
// persona as the system message, the optional context, then the question.
func BuildMessages(def agent.Definition, question string, opts QueryOptions) []llm.Message {
	messages := make([]llm.Message, 0, 3)
	messages = append(messages, llm.NewSystemMessage(def.SystemPrompt))
	if opts.Context != "" {
		messages = append(messages, llm.NewUserMessage("Context:\n"+opts.Context))
	}
	messages = append(messages, llm.NewUserMessage(withLocale(opts.Instruction, question)))
	return messages
}
