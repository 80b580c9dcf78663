package providers

import (
	"github.com/datacendia/council/internal/llm"
)

// NewProvider creates the backend adapter named by cfg.Provider.
func NewProvider(cfg llm.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case llm.ProviderOllama, "":
		return NewOllamaProvider(cfg)

	case llm.ProviderMock:
		return NewMockProvider(), nil

	default:
		return nil, llm.NewProviderNotFoundError(string(cfg.Provider))
	}
}
