package monitor

import (
	"context"
	"time"

	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/llm"
)

// WarmProgress is reported before and after each model is warmed.
type WarmProgress struct {
	Model string
	Index int
	Total int
	Done  bool
	Err   error
}

// WarmResult records how long one model took to load.
type WarmResult struct {
	Model    string        `json:"model"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the model loaded.
func (r WarmResult) OK() bool {
	return r.Error == ""
}

// PreWarm sends a one-token generation to each distinct model bound to an
// online agent so the backend loads it into memory. Models are warmed one
// at a time; failures are logged and skipped. progress may be nil.
func (m *Monitor) PreWarm(ctx context.Context, progress func(WarmProgress)) []WarmResult {
	models := m.onlineModels()
	results := make([]WarmResult, 0, len(models))

	for i, model := range models {
		if ctx.Err() != nil {
			break
		}
		if progress != nil {
			progress(WarmProgress{Model: model, Index: i, Total: len(models)})
		}

		start := time.Now()
		_, err := m.src.Generate(ctx, model, warmPrompt,
			llm.WithNumPredict(1),
			llm.WithAgent("monitor"),
		)
		res := WarmResult{Model: model, Duration: time.Since(start)}
		if err != nil {
			res.Error = err.Error()
			m.logger.Warn("model warm-up failed", "model", model, "error", err)
		} else {
			m.logger.Info("model warmed", "model", model, "duration", res.Duration)
		}
		results = append(results, res)

		m.publish(ctx, events.EventModelWarmed, "", events.WarmPayload{
			Model:    model,
			Duration: res.Duration,
			Error:    res.Error,
		})
		if progress != nil {
			progress(WarmProgress{Model: model, Index: i, Total: len(models), Done: true, Err: err})
		}
	}

	return results
}

// onlineModels returns the distinct models of online agents in catalog order.
func (m *Monitor) onlineModels() []string {
	seen := make(map[string]struct{})
	var models []string
	for _, a := range m.reg.Online() {
		if _, ok := seen[a.Model]; ok {
			continue
		}
		seen[a.Model] = struct{}{}
		models = append(models, a.Model)
	}
	return models
}
