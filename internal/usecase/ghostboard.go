package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/llm"
)

// DefaultDirectors sit on the ghost board when the input names none.
var DefaultDirectors = []string{"cfo", "ciso", "coo", "cmo"}

// GhostBoardInput is a proposal to rehearse before a real board.
type GhostBoardInput struct {
	Proposal  string   `json:"proposal"`
	Context   string   `json:"context,omitempty"`
	Directors []string `json:"directors,omitempty"`
}

// BoardQuestion is one question a director would ask.
type BoardQuestion struct {
	Question string `json:"question"`
	Concern  string `json:"concern"`
	Severity string `json:"severity"`
}

// DirectorQuestions groups one director's questions.
type DirectorQuestions struct {
	AgentID   string          `json:"agent_id"`
	Name      string          `json:"name"`
	Role      string          `json:"role"`
	Questions []BoardQuestion `json:"questions"`
	Source    Source          `json:"source"`
}

// GhostBoardResult is the full rehearsal.
type GhostBoardResult struct {
	Proposal    string              `json:"proposal"`
	Directors   []DirectorQuestions `json:"directors"`
	Source      Source              `json:"source"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// QuestionCount returns the total number of questions.
func (r *GhostBoardResult) QuestionCount() int {
	n := 0
	for _, d := range r.Directors {
		n += len(d.Questions)
	}
	return n
}

type boardReply struct {
	Questions []BoardQuestion `json:"questions"`
}

// GhostBoard simulates the questions a board would ask about a proposal.
type GhostBoard struct {
	gen    Generator
	reg    *agent.Registry
	logger *slog.Logger
}

// NewGhostBoard creates the ghost-board use-case.
func NewGhostBoard(gen Generator, reg *agent.Registry, logger *slog.Logger) *GhostBoard {
	if logger == nil {
		logger = slog.Default()
	}
	return &GhostBoard{gen: gen, reg: reg, logger: logger}
}

// Run asks each director for questions concurrently. A director whose
// model is unavailable or whose reply does not parse gets the default
// questions for its role. Directors missing from the registry are skipped;
// offline ones are answered from defaults.
func (b *GhostBoard) Run(ctx context.Context, in GhostBoardInput) (*GhostBoardResult, error) {
	if err := requireText("proposal", in.Proposal); err != nil {
		return nil, err
	}
	codes := in.Directors
	if len(codes) == 0 {
		codes = DefaultDirectors
	}

	var directors []agent.Agent
	seen := make(map[string]struct{})
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if a, ok := b.reg.ByCode(code); ok {
			directors = append(directors, a)
		}
	}

	result := &GhostBoardResult{
		Proposal:    in.Proposal,
		Directors:   make([]DirectorQuestions, len(directors)),
		Source:      SourceFallback,
		GeneratedAt: time.Now(),
	}

	var g errgroup.Group
	for i, a := range directors {
		g.Go(func() error {
			dq := DirectorQuestions{AgentID: a.ID, Name: a.Name, Role: a.Role, Source: SourceFallback}
			if a.IsOnline() {
				reply, err := ask[boardReply](ctx, b.gen, b.logger, a, ghostBoardPrompt(in, a),
					llm.WithTemperature(0.6), llm.WithNumPredict(600))
				if err == nil {
					dq.Questions = cleanQuestions(reply.Questions)
				}
			}
			if len(dq.Questions) > 0 {
				dq.Source = SourceModel
			} else {
				dq.Questions = DefaultBoardQuestions(a.Code)
			}
			result.Directors[i] = dq
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range result.Directors {
		if d.Source == SourceModel {
			result.Source = SourceModel
			break
		}
	}
	if len(result.Directors) == 0 {
		result.Directors = []DirectorQuestions{{
			AgentID:   "board",
			Name:      "Board",
			Role:      "Directors",
			Questions: DefaultBoardQuestions(""),
			Source:    SourceFallback,
		}}
	}
	return result, nil
}

func cleanQuestions(in []BoardQuestion) []BoardQuestion {
	out := make([]BoardQuestion, 0, len(in))
	for _, q := range in {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			continue
		}
		switch strings.ToLower(q.Severity) {
		case "low", "medium", "high":
			q.Severity = strings.ToLower(q.Severity)
		default:
			q.Severity = "medium"
		}
		out = append(out, q)
	}
	return out
}

func ghostBoardPrompt(in GhostBoardInput, a agent.Agent) string {
	var sb strings.Builder
	sb.WriteString("Management will present the following proposal to the board.\n\n")
	fmt.Fprintf(&sb, "PROPOSAL: %s\n", in.Proposal)
	if in.Context != "" {
		fmt.Fprintf(&sb, "CONTEXT: %s\n", in.Context)
	}
	fmt.Fprintf(&sb, "\nAs the board's %s (%s), list the three hardest questions you would ask, ", a.Name, a.Role)
	sb.WriteString("the concern behind each and its severity (low, medium or high).\n\n")
	sb.WriteString(`Shape: {"questions":[{"question":"","concern":"","severity":"high"}]}`)
	sb.WriteString("\n")
	sb.WriteString(jsonContract)
	return sb.String()
}
