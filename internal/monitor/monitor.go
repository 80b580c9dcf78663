// Package monitor tracks which backing models the inference backend has
// loaded and keeps the agent registry's online/offline statuses in step.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

const (
	// DefaultInterval is the time between background probes.
	DefaultInterval = 30 * time.Second

	// DefaultProbeTimeout bounds a single model listing.
	DefaultProbeTimeout = 5 * time.Second

	// warmPrompt is the throwaway prompt sent to load a model.
	warmPrompt = "ok"
)

// ModelSource is the part of the model gateway the monitor needs.
type ModelSource interface {
	Models(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, model, prompt string, opts ...llm.CallOption) (string, error)
}

// ProbeResult is the outcome of one probe.
type ProbeResult struct {
	Available bool          `json:"available"`
	Models    []string      `json:"models"`
	CheckedAt time.Time     `json:"checked_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// HasModel reports whether any available model belongs to family.
func (r ProbeResult) HasModel(family string) bool {
	return matchesFamily(family, r.Models)
}

// Monitor probes the backend and flips agent statuses accordingly.
type Monitor struct {
	src          ModelSource
	reg          *agent.Registry
	interval     time.Duration
	probeTimeout time.Duration
	publisher    events.Publisher
	logger       *slog.Logger
	tracer       trace.Tracer

	mu     sync.RWMutex
	last   ProbeResult
	probed bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the background probe interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout bounds each model listing call.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithPublisher publishes status changes and warm results.
func WithPublisher(p events.Publisher) Option {
	return func(m *Monitor) {
		m.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the tracer used for probe spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Monitor) {
		if t != nil {
			m.tracer = t
		}
	}
}

// New creates a monitor. It does not probe until Probe or Start is called.
func New(src ModelSource, reg *agent.Registry, opts ...Option) *Monitor {
	m := &Monitor{
		src:          src,
		reg:          reg,
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		logger:       slog.Default(),
		tracer:       otel.Tracer("council/monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Probe lists the backend's models once and updates every agent's status.
// A failed listing marks the backend unavailable and every agent offline;
// the failure is reported in the result, not as an error.
func (m *Monitor) Probe(ctx context.Context) ProbeResult {
	ctx, span := m.tracer.Start(ctx, "monitor.probe")
	defer span.End()

	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	models, err := m.src.Models(probeCtx)
	cancel()

	result := ProbeResult{
		Available: err == nil,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend unavailable")
	} else {
		result.Models = slices.Sorted(slices.Values(models))
		result.Models = slices.Compact(result.Models)
	}
	span.SetAttributes(
		attribute.Bool("monitor.available", result.Available),
		attribute.Int("monitor.models", len(result.Models)),
	)

	for _, a := range m.reg.List() {
		available := result.Available && result.HasModel(a.ModelFamily())
		changed, serr := m.reg.SetAvailable(a.ID, available)
		if serr != nil || !changed {
			continue
		}
		now, _ := m.reg.Get(a.ID)
		m.logger.Info("agent status changed",
			"agent", a.ID,
			"model", a.Model,
			"status", now.Status,
		)
		m.publish(ctx, events.EventAgentStatusChanged, a.ID, events.StatusPayload{
			Status: now.Status.String(),
			Model:  a.Model,
		})
	}

	m.mu.Lock()
	wasAvailable, wasProbed := m.last.Available, m.probed
	m.last = result
	m.probed = true
	m.mu.Unlock()

	if !wasProbed || wasAvailable != result.Available {
		if result.Available {
			m.logger.Info("model backend available", "models", len(result.Models))
			m.publish(ctx, events.EventBackendAvailable, "", events.BackendPayload{Models: result.Models})
		} else {
			m.logger.Warn("model backend unavailable", "error", result.Error)
			m.publish(ctx, events.EventBackendUnavailable, "", events.BackendPayload{Error: result.Error})
		}
	}

	return result
}

// Start probes immediately and then on every interval until ctx is
// cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return errors.New("monitor already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(loopCtx, m.done)
	return nil
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Stop ends the background loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Available reports whether the last probe reached the backend.
func (m *Monitor) Available() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last.Available
}

// Models returns the model names seen by the last successful probe.
func (m *Monitor) Models() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.last.Models)
}

// LastProbe returns the last probe result and whether any probe has run.
func (m *Monitor) LastProbe() (ProbeResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.last
	r.Models = slices.Clone(r.Models)
	return r, m.probed
}

// Health summarises backend and agent availability.
func (m *Monitor) Health() types.HealthStatus {
	last, probed := m.LastProbe()
	if !probed {
		return types.Degraded("backend not probed yet")
	}
	if !last.Available {
		return types.Unhealthy(fmt.Sprintf("model backend unavailable: %s", last.Error))
	}

	counts := m.reg.Counts()
	offline := counts[agent.StatusOffline]
	if offline == m.reg.Len() {
		return types.Unhealthy("no agent has its model loaded")
	}
	if offline > 0 {
		return types.Degraded(fmt.Sprintf("%d of %d agents offline", offline, m.reg.Len()))
	}
	return types.Healthy(fmt.Sprintf("%d agents available, %d models", m.reg.Len(), len(last.Models)))
}

func (m *Monitor) publish(ctx context.Context, t events.EventType, agentID string, payload any) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, events.NewEvent(ctx, t, "", agentID, payload)); err != nil {
		m.logger.Debug("event publish failed", "type", t, "error", err)
	}
}

func matchesFamily(family string, models []string) bool {
	if family == "" {
		return false
	}
	for _, name := range models {
		if strings.HasPrefix(name, family) {
			return true
		}
	}
	return false
}
