package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/llm"
)

// DefaultPreMortemParticipants are consulted when the input names none.
var DefaultPreMortemParticipants = []string{"cfo", "ciso", "coo", "cmo"}

// PreMortemInput describes the decision to stress-test.
type PreMortemInput struct {
	Decision     string   `json:"decision"`
	Context      string   `json:"context,omitempty"`
	Horizon      string   `json:"horizon,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// FailureMode is one way the decision could fail.
type FailureMode struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Likelihood  int    `json:"likelihood"`
	Impact      int    `json:"impact"`
	Mitigation  string `json:"mitigation"`
	RaisedBy    string `json:"raised_by,omitempty"`
}

// Severity is likelihood times impact, 1 to 25.
func (f FailureMode) Severity() int {
	return f.Likelihood * f.Impact
}

// PreMortemResult is the merged outcome of a pre-mortem.
type PreMortemResult struct {
	Decision     string        `json:"decision"`
	Horizon      string        `json:"horizon"`
	FailureModes []FailureMode `json:"failure_modes"`
	RiskScore    int           `json:"risk_score"`
	Participants []string      `json:"participants"`
	Source       Source        `json:"source"`
	GeneratedAt  time.Time     `json:"generated_at"`
}

type failureModesReply struct {
	FailureModes []FailureMode `json:"failure_modes"`
}

// PreMortem imagines the decision has failed and asks each participant why.
type PreMortem struct {
	gen    Generator
	reg    *agent.Registry
	logger *slog.Logger
}

// NewPreMortem creates the pre-mortem use-case.
func NewPreMortem(gen Generator, reg *agent.Registry, logger *slog.Logger) *PreMortem {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreMortem{gen: gen, reg: reg, logger: logger}
}

// Run asks every online participant for failure modes concurrently and
// merges them, dropping duplicate titles. It falls back to the default
// failure modes when no participant produced a usable reply.
func (p *PreMortem) Run(ctx context.Context, in PreMortemInput) (*PreMortemResult, error) {
	if err := requireText("decision", in.Decision); err != nil {
		return nil, err
	}
	if in.Horizon == "" {
		in.Horizon = "12 months"
	}
	codes := in.Participants
	if len(codes) == 0 {
		codes = DefaultPreMortemParticipants
	}

	result := &PreMortemResult{
		Decision:    in.Decision,
		Horizon:     in.Horizon,
		Source:      SourceFallback,
		GeneratedAt: time.Now(),
	}

	agents := participants(p.reg, codes)
	replies := make([][]FailureMode, len(agents))

	var g errgroup.Group
	for i, a := range agents {
		g.Go(func() error {
			reply, err := ask[failureModesReply](ctx, p.gen, p.logger, a, preMortemPrompt(in, a),
				llm.WithTemperature(0.7), llm.WithNumPredict(800))
			if err != nil {
				return nil
			}
			for j := range reply.FailureModes {
				reply.FailureModes[j].RaisedBy = a.ID
			}
			replies[i] = reply.FailureModes
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	for i, modes := range replies {
		if len(modes) > 0 {
			result.Participants = append(result.Participants, agents[i].ID)
		}
		for _, fm := range modes {
			key := strings.ToLower(strings.TrimSpace(fm.Title))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			fm.Likelihood = clamp(fm.Likelihood, 1, 5)
			fm.Impact = clamp(fm.Impact, 1, 5)
			result.FailureModes = append(result.FailureModes, fm)
		}
	}

	if len(result.FailureModes) == 0 {
		p.logger.InfoContext(ctx, "pre-mortem using default failure modes", "participants", len(agents))
		result.FailureModes = DefaultFailureModes()
		result.Participants = nil
	} else {
		result.Source = SourceModel
	}

	sort.SliceStable(result.FailureModes, func(i, j int) bool {
		return result.FailureModes[i].Severity() > result.FailureModes[j].Severity()
	})
	result.RiskScore = RiskScore(result.FailureModes)
	return result, nil
}

// RiskScore maps the mean severity of the failure modes onto 0..100.
func RiskScore(modes []FailureMode) int {
	if len(modes) == 0 {
		return 0
	}
	total := 0
	for _, fm := range modes {
		total += fm.Severity()
	}
	return total * 100 / (25 * len(modes))
}

func preMortemPrompt(in PreMortemInput, a agent.Agent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "It is %s from now. The following decision was implemented and it failed badly.\n\n", in.Horizon)
	fmt.Fprintf(&sb, "DECISION: %s\n", in.Decision)
	if in.Context != "" {
		fmt.Fprintf(&sb, "CONTEXT: %s\n", in.Context)
	}
	fmt.Fprintf(&sb, "\nAs %s (%s), explain the three most plausible reasons it failed.\n", a.Name, a.Role)
	sb.WriteString("Rate likelihood and impact from 1 (low) to 5 (high) and propose a mitigation for each.\n\n")
	sb.WriteString(`Shape: {"failure_modes":[{"title":"","description":"","likelihood":3,"impact":4,"mitigation":""}]}`)
	sb.WriteString("\n")
	sb.WriteString(jsonContract)
	return sb.String()
}
