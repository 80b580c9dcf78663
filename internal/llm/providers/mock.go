package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

// MockCall represents a recorded call to the mock provider
type MockCall struct {
	Kind     string // complete, stream or generate
	Model    string
	Agent    string
	Messages []llm.Message
	Prompt   string
	System   string
	Options  llm.Options
}

// Responder computes a reply for a recorded call.
type Responder func(call MockCall) (string, error)

// MockProvider is a scripted backend for tests and offline runs.
// Lookup order for a reply: model error, model response, responder, the
// rotating response list.
type MockProvider struct {
	mu             sync.RWMutex
	responses      []string
	responseIndex  int
	responder      Responder
	modelResponses map[string]string
	modelErrors    map[string]error
	modelLatency   map[string]time.Duration
	latency        time.Duration
	models         []string
	unavailable    bool
	calls          []MockCall
	chunkSize      int
	malformedEvery int
}

// NewMockProvider creates a new mock provider
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{
		responses:      responses,
		modelResponses: make(map[string]string),
		modelErrors:    make(map[string]error),
		modelLatency:   make(map[string]time.Duration),
		models:         []string{"mock-model"},
		chunkSize:      5,
	}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// SetModels sets what ListModels reports.
func (p *MockProvider) SetModels(models ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append([]string(nil), models...)
}

// SetResponder installs a function computing replies.
func (p *MockProvider) SetResponder(r Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = r
}

// SetResponses replaces all responses
func (p *MockProvider) SetResponses(responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.responseIndex = 0
}

// SetModelResponse fixes the reply of one model.
func (p *MockProvider) SetModelResponse(model, response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modelResponses[model] = response
}

// SetModelError makes every call to model fail with err.
func (p *MockProvider) SetModelError(model string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.modelErrors, model)
		return
	}
	p.modelErrors[model] = err
}

// SetLatency delays every reply.
func (p *MockProvider) SetLatency(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latency = d
}

// SetModelLatency delays the replies of one model.
func (p *MockProvider) SetModelLatency(model string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modelLatency[model] = d
}

// SetUnavailable makes every call fail as if the backend were down.
func (p *MockProvider) SetUnavailable(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = down
}

// SetMalformedEvery interleaves a malformed chunk after every n content
// chunks in streams. Zero disables it.
func (p *MockProvider) SetMalformedEvery(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.malformedEvery = n
}

// ListModels returns the configured model list.
func (p *MockProvider) ListModels(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.unavailable {
		return nil, llm.NewBackendUnavailableError(p.Name(), fmt.Errorf("mock backend is down"))
	}
	return append([]string(nil), p.models...), nil
}

// Complete generates a completion
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	content, err := p.reply(ctx, MockCall{
		Kind: "complete", Model: req.Model, Agent: req.Agent, Messages: req.Messages, Options: req.Options,
	})
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{
		Model:        req.Model,
		Content:      content,
		FinishReason: llm.FinishReasonStop,
		Duration:     time.Since(start),
	}, nil
}

// Stream generates a streaming completion in fixed-size chunks.
func (p *MockProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	content, err := p.reply(ctx, MockCall{
		Kind: "stream", Model: req.Model, Agent: req.Agent, Messages: req.Messages, Options: req.Options,
	})
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	size, every := p.chunkSize, p.malformedEvery
	p.mu.RUnlock()

	chunks := make(chan llm.StreamChunk, 10)

	go func() {
		defer close(chunks)

		send := func(c llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case chunks <- c:
				return true
			}
		}

		n := 0
		for i := 0; i < len(content); i += size {
			end := min(i+size, len(content))
			if !send(llm.StreamChunk{Content: content[i:end]}) {
				return
			}
			n++
			if every > 0 && n%every == 0 {
				if !send(llm.StreamChunk{Malformed: true}) {
					return
				}
			}
		}

		send(llm.StreamChunk{Done: true, FinishReason: llm.FinishReasonStop})
	}()

	return chunks, nil
}

// Generate returns a reply to a single prompt.
func (p *MockProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	content, err := p.reply(ctx, MockCall{
		Kind: "generate", Model: req.Model, Agent: req.Agent, Prompt: req.Prompt, System: req.System, Options: req.Options,
	})
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{
		Model:        req.Model,
		Content:      content,
		FinishReason: llm.FinishReasonStop,
		Duration:     time.Since(start),
	}, nil
}

// Health reports unhealthy while the mock is marked unavailable.
func (p *MockProvider) Health(ctx context.Context) types.HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.unavailable {
		return types.Unhealthy("mock backend is down")
	}
	return types.Healthy("")
}

// GetCalls returns all recorded calls (thread-safe)
func (p *MockProvider) GetCalls() []MockCall {
	p.mu.RLock()
	defer p.mu.RUnlock()

	calls := make([]MockCall, len(p.calls))
	copy(calls, p.calls)
	return calls
}

// Reset clears recorded calls and rewinds the response list.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = nil
	p.responseIndex = 0
}

func (p *MockProvider) reply(ctx context.Context, call MockCall) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, call)

	if p.unavailable {
		p.mu.Unlock()
		return "", llm.NewBackendUnavailableError(p.Name(), fmt.Errorf("mock backend is down"))
	}

	delay := p.latency
	if d, ok := p.modelLatency[call.Model]; ok {
		delay = d
	}
	modelErr := p.modelErrors[call.Model]
	fixed, hasFixed := p.modelResponses[call.Model]
	responder := p.responder

	var next string
	hasNext := len(p.responses) > 0
	if !hasFixed && responder == nil && hasNext {
		next = p.responses[p.responseIndex%len(p.responses)]
		p.responseIndex++
	}
	p.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	switch {
	case modelErr != nil:
		return "", modelErr
	case hasFixed:
		return fixed, nil
	case responder != nil:
		return responder(call)
	case hasNext:
		return next, nil
	default:
		return "Mock response", nil
	}
}
