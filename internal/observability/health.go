package observability

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/datacendia/council/internal/types"
)

// HealthChecker is implemented by components that report their health.
type HealthChecker interface {
	Health(ctx context.Context) types.HealthStatus
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) types.HealthStatus

// Health implements HealthChecker.
func (f HealthCheckerFunc) Health(ctx context.Context) types.HealthStatus {
	return f(ctx)
}

// PingChecker adapts an error-returning ping, such as a database health
// check, to HealthChecker.
func PingChecker(ping func(ctx context.Context) error) HealthChecker {
	return HealthCheckerFunc(func(ctx context.Context) types.HealthStatus {
		if err := ping(ctx); err != nil {
			return types.Unhealthy(err.Error())
		}
		return types.Healthy("ok")
	})
}

// HealthRecorder receives the per-component health gauge.
type HealthRecorder interface {
	RecordHealth(component string, state types.HealthState)
}

type componentState struct {
	checker       HealthChecker
	lastStatus    types.HealthStatus
	lastCheckedAt time.Time
}

// HealthReport is the aggregate result of CheckAll.
type HealthReport struct {
	Status     types.HealthStatus            `json:"status"`
	Components map[string]types.HealthStatus `json:"components"`
}

// HealthMonitor checks registered components, records their gauge and
// logs state transitions. It is safe for concurrent use.
type HealthMonitor struct {
	metrics    HealthRecorder
	logger     *TracedLogger
	components map[string]*componentState
	mu         sync.RWMutex
}

// NewHealthMonitor creates a health monitor. metrics may be nil.
func NewHealthMonitor(metrics HealthRecorder, logger *TracedLogger) *HealthMonitor {
	if logger == nil {
		logger = NewTracedLogger(nil, "health")
	}
	return &HealthMonitor{
		metrics:    metrics,
		logger:     logger,
		components: make(map[string]*componentState),
	}
}

// Register adds or replaces a component.
func (h *HealthMonitor) Register(name string, checker HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.components[name] = &componentState{
		checker: checker,
		// Start unhealthy so the first healthy check logs a recovery.
		lastStatus: types.Unhealthy("not yet checked"),
	}
}

// Unregister removes a component.
func (h *HealthMonitor) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.components, name)
}

// Components returns the registered names, sorted.
func (h *HealthMonitor) Components() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Sorted(maps.Keys(h.components))
}

// Check checks a single component.
func (h *HealthMonitor) Check(ctx context.Context, name string) (types.HealthStatus, error) {
	h.mu.RLock()
	state, exists := h.components[name]
	h.mu.RUnlock()

	if !exists {
		return types.HealthStatus{}, fmt.Errorf("component %q is not registered", name)
	}

	status := state.checker.Health(ctx)
	h.updateComponentState(ctx, name, state, status)
	return status, nil
}

// CheckAll checks every component. The aggregate status is the worst
// component state; an empty monitor is healthy.
func (h *HealthMonitor) CheckAll(ctx context.Context) HealthReport {
	h.mu.RLock()
	snapshot := make(map[string]*componentState, len(h.components))
	maps.Copy(snapshot, h.components)
	h.mu.RUnlock()

	report := HealthReport{Components: make(map[string]types.HealthStatus, len(snapshot))}
	worst := types.HealthStateHealthy
	var unhealthy []string
	for _, name := range slices.Sorted(maps.Keys(snapshot)) {
		status := snapshot[name].checker.Health(ctx)
		report.Components[name] = status
		h.updateComponentState(ctx, name, snapshot[name], status)

		if status.State != types.HealthStateHealthy {
			unhealthy = append(unhealthy, name)
		}
		if severity(status.State) > severity(worst) {
			worst = status.State
		}
	}

	msg := "all components healthy"
	if len(unhealthy) > 0 {
		msg = fmt.Sprintf("%d component(s) not healthy: %v", len(unhealthy), unhealthy)
	}
	report.Status = types.NewHealthStatus(worst, msg)
	return report
}

// StartPeriodicCheck runs CheckAll every interval until ctx is done.
func (h *HealthMonitor) StartPeriodicCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.CheckAll(ctx)
		}
	}
}

func severity(s types.HealthState) int {
	switch s {
	case types.HealthStateHealthy:
		return 0
	case types.HealthStateDegraded:
		return 1
	default:
		return 2
	}
}

func (h *HealthMonitor) updateComponentState(ctx context.Context, name string, state *componentState, newStatus types.HealthStatus) {
	h.mu.Lock()
	previous := state.lastStatus.State
	state.lastStatus = newStatus
	state.lastCheckedAt = time.Now()
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordHealth(name, newStatus.State)
	}

	if previous != newStatus.State {
		h.logStateChange(ctx, name, previous, newStatus.State, newStatus.Message)
	}
}

// logStateChange logs degradations at ERROR, recoveries at INFO and other
// transitions at WARN.
func (h *HealthMonitor) logStateChange(ctx context.Context, component string, previous, current types.HealthState, message string) {
	logArgs := []any{
		"health_component", component,
		"previous_state", string(previous),
		"current_state", string(current),
		"message", message,
	}

	switch {
	case previous == types.HealthStateHealthy:
		h.logger.Error(ctx, "component health degraded", logArgs...)
	case current == types.HealthStateHealthy:
		h.logger.Info(ctx, "component health recovered", logArgs...)
	default:
		h.logger.Warn(ctx, "component health state changed", logArgs...)
	}
}
