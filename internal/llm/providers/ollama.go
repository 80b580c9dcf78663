package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

const maxStreamLine = 1 << 20

// OllamaProvider talks to a local Ollama server. Chat completion goes
// through langchaingo; streaming, model listing and single-shot generation
// use the HTTP API directly.
type OllamaProvider struct {
	client    *ollama.LLM
	http      *http.Client
	baseURL   string
	keepAlive string
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(cfg llm.Config) (*OllamaProvider, error) {
	baseURL := strings.TrimRight(cfg.GetBaseURL(), "/")
	httpClient := &http.Client{}

	client, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return &OllamaProvider{
		client:    client,
		http:      httpClient,
		baseURL:   baseURL,
		keepAlive: cfg.KeepAlive,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type tagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels returns installed model names from GET /api/tags.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, llm.NewMalformedResponseError("decode /api/tags response", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Complete sends a completion request
func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	resp, err := p.client.GenerateContent(ctx, toSchemaMessages(req.Messages), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}

	out := fromLangchainResponse(resp, req.Model)
	out.Duration = time.Since(start)
	return out, nil
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	Stream    bool          `json:"stream"`
	Options   *llm.Options  `json:"options,omitempty"`
	KeepAlive string        `json:"keep_alive,omitempty"`
}

type chatLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

// Stream posts to /api/chat with streaming enabled and emits one chunk per
// NDJSON line. Lines that fail to decode are emitted as Malformed chunks and
// the stream carries on.
func (p *OllamaProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	body := chatRequest{
		Model:     req.Model,
		Messages:  req.Messages,
		Stream:    true,
		Options:   optionsOrNil(req.Options),
		KeepAlive: p.keepAlive,
	}

	resp, err := p.post(ctx, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	chunks := make(chan llm.StreamChunk, 16)

	go func() {
		defer close(chunks)
		defer resp.Body.Close()

		send := func(c llm.StreamChunk) bool {
			select {
			case <-ctx.Done():
				return false
			case chunks <- c:
				return true
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var msg chatLine
			if err := json.Unmarshal(line, &msg); err != nil {
				if !send(llm.StreamChunk{Malformed: true}) {
					return
				}
				continue
			}

			if msg.Error != "" {
				send(llm.StreamChunk{Error: llm.TranslateError(p.Name(), fmt.Errorf("ollama: %s", msg.Error))})
				return
			}

			chunk := llm.StreamChunk{Content: msg.Message.Content, Done: msg.Done}
			if msg.Done {
				chunk.FinishReason = finishReason(msg.DoneReason)
			}
			if !send(chunk) || msg.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			send(llm.StreamChunk{Error: llm.TranslateError(p.Name(), err)})
		}
	}()

	return chunks, nil
}

type generateRequest struct {
	Model     string       `json:"model"`
	Prompt    string       `json:"prompt"`
	System    string       `json:"system,omitempty"`
	Stream    bool         `json:"stream"`
	Options   *llm.Options `json:"options,omitempty"`
	KeepAlive string       `json:"keep_alive,omitempty"`
}

type generateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
}

// Generate posts a single prompt to /api/generate without streaming.
func (p *OllamaProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.CompletionResponse, error) {
	start := time.Now()

	resp, err := p.post(ctx, "/api/generate", generateRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		System:    req.System,
		Options:   optionsOrNil(req.Options),
		KeepAlive: p.keepAlive,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.NewMalformedResponseError("decode /api/generate response", err)
	}

	return &llm.CompletionResponse{
		Model:        req.Model,
		Content:      out.Response,
		FinishReason: finishReason(out.DoneReason),
		Duration:     time.Since(start),
	}, nil
}

// Health lists models as a connectivity check.
func (p *OllamaProvider) Health(ctx context.Context) types.HealthStatus {
	models, err := p.ListModels(ctx)
	if err != nil {
		return types.Unhealthy(err.Error())
	}
	if len(models) == 0 {
		return types.Degraded("ollama reachable but no models installed")
	}
	return types.Healthy(fmt.Sprintf("%d models installed", len(models)))
}

func (p *OllamaProvider) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, llm.NewInvalidRequestError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, llm.TranslateError(p.Name(), err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return llm.NewHTTPError(resp.StatusCode, string(body))
}

func optionsOrNil(o llm.Options) *llm.Options {
	if o.IsZero() {
		return nil
	}
	return &o
}
