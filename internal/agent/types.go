package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the runtime availability of an agent.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusBusy    Status = "busy"
)

// String returns the string representation of the Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusBusy:
		return true
	default:
		return false
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := Status(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid agent status: %s", str)
	}

	*s = status
	return nil
}

// Definition is the static part of an agent as it appears in the catalog.
type Definition struct {
	ID           string `yaml:"id" json:"id" validate:"required"`
	Code         string `yaml:"code" json:"code" validate:"required"`
	Name         string `yaml:"name" json:"name" validate:"required"`
	Role         string `yaml:"role" json:"role" validate:"required"`
	Model        string `yaml:"model" json:"model" validate:"required"`
	SystemPrompt string `yaml:"system_prompt" json:"-" validate:"required"`
	Chief        bool   `yaml:"chief,omitempty" json:"chief,omitempty"`
}

// ModelFamily returns the model identifier up to the first ':' so that
// "llama3.1:8b" and "llama3.1:latest" are the same family.
func (d Definition) ModelFamily() string {
	if i := strings.IndexByte(d.Model, ':'); i >= 0 {
		return d.Model[:i]
	}
	return d.Model
}

// Agent is a point-in-time snapshot of a registered agent.
type Agent struct {
	Definition
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOnline reports whether the agent can take a query.
func (a Agent) IsOnline() bool {
	return a.Status == StatusOnline
}
