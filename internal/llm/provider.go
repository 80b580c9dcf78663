package llm

import (
	"context"

	"github.com/datacendia/council/internal/types"
)

// Provider is the adapter to one model backend. Implementations perform the
// wire exchange only; safety injection, timeouts, rate limiting and
// guardrails are the Gateway's job.
type Provider interface {
	// Name returns the provider name (e.g., "ollama", "mock")
	Name() string

	// ListModels returns the names of the models currently available on the backend.
	ListModels(ctx context.Context) ([]string, error)

	// Complete sends a chat request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a chat request and streams the response as it is generated.
	// The channel is closed when the stream ends. A chunk carrying Error
	// terminates the stream; chunks flagged Malformed are informational.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// Generate sends a single-shot prompt and returns the full response.
	Generate(ctx context.Context, req GenerateRequest) (*CompletionResponse, error)

	// Health checks connectivity to the backend.
	Health(ctx context.Context) types.HealthStatus
}
