// Package usecase holds the domain adapters built on the model gateway and
// the deliberation orchestrator: pre-mortems, ghost boards and persisted
// council sessions. None of them fails because the model backend is down;
// each falls back to a deterministic result instead.
package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/llm"
)

// Source tells whether a result came from the models or from defaults.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Generator is the single-shot part of the model gateway.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts ...llm.CallOption) (string, error)
}

// jsonContract is appended to every use-case prompt.
const jsonContract = "Reply with a single JSON object wrapped in <json> and </json> tags and nothing else."

// participants resolves codes to online agents, in order and without
// duplicates. Unknown or offline codes are skipped.
func participants(reg *agent.Registry, codes []string) []agent.Agent {
	seen := make(map[string]struct{}, len(codes))
	var out []agent.Agent
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if _, dup := seen[code]; dup || code == "" {
			continue
		}
		seen[code] = struct{}{}
		if a, ok := reg.ByCode(code); ok && a.IsOnline() {
			out = append(out, a)
		}
	}
	return out
}

// ask sends prompt to a's model in a's persona and decodes the JSON reply.
func ask[T any](ctx context.Context, gen Generator, logger *slog.Logger, a agent.Agent, prompt string, opts ...llm.CallOption) (T, error) {
	var zero T

	opts = append([]llm.CallOption{llm.WithSystem(a.SystemPrompt), llm.WithAgent(a.ID)}, opts...)
	text, err := gen.Generate(ctx, a.Model, prompt, opts...)
	if err != nil {
		logger.WarnContext(ctx, "use-case prompt failed", "agent", a.ID, "model", a.Model, "error", err)
		return zero, err
	}

	out, err := llm.ExtractJSONAs[T](text)
	if err != nil {
		logger.WarnContext(ctx, "use-case reply is not valid JSON", "agent", a.ID, "error", err)
		return zero, err
	}
	return out, nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return council.NewInvalidRequestError(field + " is required")
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
