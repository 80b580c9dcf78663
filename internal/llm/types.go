package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role represents the role of a message in a conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid value
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Role) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	role := Role(str)
	if !role.IsValid() {
		return fmt.Errorf("invalid role: %s", str)
	}

	*r = role
	return nil
}

// Message represents a single role-tagged message in a conversation with a model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a new system message
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Validate checks if the message is valid
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("%s message must have content", m.Role)
	}
	return nil
}

// Options are the sampling options passed verbatim to the backend.
// Zero values are omitted so the backend applies its own defaults.
type Options struct {
	Temperature float64  `json:"temperature,omitempty" mapstructure:"temperature" yaml:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty" mapstructure:"top_p" yaml:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty" mapstructure:"top_k" yaml:"top_k,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty" mapstructure:"num_predict" yaml:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty" mapstructure:"stop" yaml:"stop,omitempty"`
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return o.Temperature == 0 && o.TopP == 0 && o.TopK == 0 && o.NumPredict == 0 && len(o.Stop) == 0
}

// CompletionRequest represents a chat completion request
type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Options  Options   `json:"options,omitempty"`

	// Agent names the caller on whose behalf the request is made. It is
	// used by guardrails and telemetry and never sent to the backend.
	Agent string `json:"-"`
}

// Validate checks if the completion request is valid
func (r CompletionRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}

	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}

	for i, msg := range r.Messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}

	if r.Options.Temperature < 0 || r.Options.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", r.Options.Temperature)
	}

	if r.Options.TopP < 0 || r.Options.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1, got %f", r.Options.TopP)
	}

	if r.Options.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", r.Options.TopK)
	}

	if r.Options.NumPredict < 0 {
		return fmt.Errorf("num_predict must be non-negative, got %d", r.Options.NumPredict)
	}

	return nil
}

// GenerateRequest is a single-shot prompt request (POST /api/generate).
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Options Options `json:"options,omitempty"`
	Agent   string  `json:"-"`
}

// FinishReason indicates why generation stopped
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonError  FinishReason = "error"
)

// CompletionResponse is the aggregate result of one exchange with the backend.
type CompletionResponse struct {
	Model        string        `json:"model"`
	Content      string        `json:"content"`
	FinishReason FinishReason  `json:"finish_reason"`
	Duration     time.Duration `json:"duration"`

	// SkippedChunks counts malformed streaming lines that were dropped.
	SkippedChunks int `json:"skipped_chunks,omitempty"`
}

// StreamChunk represents a single chunk in a streaming response
type StreamChunk struct {
	Content      string       `json:"content,omitempty"`
	Done         bool         `json:"done,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Malformed    bool         `json:"malformed,omitempty"`
	Error        error        `json:"-"`
}
