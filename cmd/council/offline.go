package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/llm/providers"
	"github.com/datacendia/council/internal/usecase"
)

// newOfflineProvider returns a scripted backend that serves every catalog
// model, so the whole pipeline can run without a model server.
func newOfflineProvider(catalog *agent.Catalog) *providers.MockProvider {
	mock := providers.NewMockProvider()

	models := make([]string, 0, len(catalog.Agents))
	names := make(map[string]agent.Definition, len(catalog.Agents))
	for _, def := range catalog.Agents {
		models = append(models, def.Model)
		names[def.ID] = def
	}
	mock.SetModels(models...)
	mock.SetResponder(func(call providers.MockCall) (string, error) {
		return offlineReply(call, names[call.Agent]), nil
	})
	return mock
}

func offlineReply(call providers.MockCall, def agent.Definition) string {
	prompt := call.Prompt
	if prompt == "" && len(call.Messages) > 0 {
		prompt = call.Messages[len(call.Messages)-1].Content
	}

	switch {
	case strings.Contains(prompt, `"failure_modes"`):
		return jsonBlock(map[string]any{"failure_modes": usecase.DefaultFailureModes()[:3]})
	case strings.Contains(prompt, `"questions"`):
		return jsonBlock(map[string]any{"questions": usecase.DefaultBoardQuestions(def.Code)})
	}

	who := def.Name
	if who == "" {
		who = "The advisor"
	}
	return fmt.Sprintf("%s (offline) has no model backend and gives a scripted answer: "+
		"weigh the costs, name the risks, and decide with the evidence at hand.", who)
}

func jsonBlock(v any) string {
	data, _ := json.Marshal(v)
	return "<json>" + string(data) + "</json>"
}
