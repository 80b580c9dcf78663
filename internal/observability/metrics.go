package observability

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/datacendia/council/internal/types"
)

// Metric names. The Prometheus exporter rewrites dots to underscores and
// adds unit and _total suffixes.
const (
	MetricModelCalls           = "council.llm.calls"
	MetricModelLatency         = "council.llm.latency"
	MetricAgentQueries         = "council.agent.queries"
	MetricAgentLatency         = "council.agent.latency"
	MetricDeliberations        = "council.deliberations"
	MetricDeliberationDuration = "council.deliberation.duration"
	MetricDeliberationAgents   = "council.deliberation.agents"
	MetricEventsPublished      = "council.events.published"
	MetricEventsDropped        = "council.events.dropped"
	MetricHealthStatus         = "council.health.status"
)

// Metrics records council telemetry through an OpenTelemetry meter. It
// satisfies llm.CallRecorder, council.Recorder and events.MetricsRecorder.
// All methods are safe for concurrent use.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	modelCalls           metric.Int64Counter
	modelLatency         metric.Float64Histogram
	agentQueries         metric.Int64Counter
	agentLatency         metric.Float64Histogram
	deliberations        metric.Int64Counter
	deliberationDuration metric.Float64Histogram
	deliberationAgents   metric.Int64Histogram
	eventsPublished      metric.Int64Counter
	eventsDropped        metric.Int64Counter
	healthStatus         metric.Float64Gauge
}

// InitMetrics builds the meter provider. With metrics enabled the
// instruments are exported to a private Prometheus registry served by
// Handler; otherwise every recording is a no-op and Handler is nil.
func InitMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return newMetrics(noop.NewMeterProvider().Meter("council"), nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, types.WrapError(ErrInvalidConfig, "invalid metrics configuration", err)
	}

	registry := prom.NewRegistry()
	exporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, types.WrapError(ErrMetricsRegistration, "failed to create prometheus exporter", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return newMetrics(provider.Meter("council"), provider, handler)
}

func newMetrics(meter metric.Meter, provider *sdkmetric.MeterProvider, handler http.Handler) (*Metrics, error) {
	m := &Metrics{provider: provider, handler: handler}

	var err error
	register := func(name string, fn func() error) {
		if err != nil {
			return
		}
		if e := fn(); e != nil {
			err = types.WrapError(ErrMetricsRegistration, "failed to register "+name, e)
		}
	}

	register(MetricModelCalls, func() (e error) {
		m.modelCalls, e = meter.Int64Counter(MetricModelCalls,
			metric.WithDescription("Model calls by model, agent, kind and status"))
		return
	})
	register(MetricModelLatency, func() (e error) {
		m.modelLatency, e = meter.Float64Histogram(MetricModelLatency,
			metric.WithDescription("Model call latency"), metric.WithUnit("s"))
		return
	})
	register(MetricAgentQueries, func() (e error) {
		m.agentQueries, e = meter.Int64Counter(MetricAgentQueries,
			metric.WithDescription("Agent queries by agent and status"))
		return
	})
	register(MetricAgentLatency, func() (e error) {
		m.agentLatency, e = meter.Float64Histogram(MetricAgentLatency,
			metric.WithDescription("Agent query latency"), metric.WithUnit("s"))
		return
	})
	register(MetricDeliberations, func() (e error) {
		m.deliberations, e = meter.Int64Counter(MetricDeliberations,
			metric.WithDescription("Deliberations by outcome"))
		return
	})
	register(MetricDeliberationDuration, func() (e error) {
		m.deliberationDuration, e = meter.Float64Histogram(MetricDeliberationDuration,
			metric.WithDescription("End-to-end deliberation duration"), metric.WithUnit("s"))
		return
	})
	register(MetricDeliberationAgents, func() (e error) {
		m.deliberationAgents, e = meter.Int64Histogram(MetricDeliberationAgents,
			metric.WithDescription("Participating agents per deliberation"))
		return
	})
	register(MetricEventsPublished, func() (e error) {
		m.eventsPublished, e = meter.Int64Counter(MetricEventsPublished,
			metric.WithDescription("Events published by type"))
		return
	})
	register(MetricEventsDropped, func() (e error) {
		m.eventsDropped, e = meter.Int64Counter(MetricEventsDropped,
			metric.WithDescription("Events dropped for slow subscribers"))
		return
	})
	register(MetricHealthStatus, func() (e error) {
		m.healthStatus, e = meter.Float64Gauge(MetricHealthStatus,
			metric.WithDescription("1 when the component is healthy, 0 otherwise"))
		return
	})

	if err != nil {
		return nil, err
	}
	return m, nil
}

// Handler serves the Prometheus scrape endpoint, or nil when disabled.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return types.WrapError(ErrShutdownTimeout, "failed to shutdown meter provider", err)
	}
	return nil
}

// RecordModelCall records one gateway call.
func (m *Metrics) RecordModelCall(model, agent, kind string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("agent", agent),
		attribute.String("kind", kind),
		attribute.String("status", status(err != nil)),
	)
	ctx := context.Background()
	m.modelCalls.Add(ctx, 1, attrs)
	m.modelLatency.Record(ctx, duration.Seconds(), attrs)
}

// RecordAgentQuery records one agent turn inside a deliberation.
func (m *Metrics) RecordAgentQuery(agentID string, d time.Duration, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("status", status(failed)),
	)
	ctx := context.Background()
	m.agentQueries.Add(ctx, 1, attrs)
	m.agentLatency.Record(ctx, d.Seconds(), attrs)
}

// RecordDeliberation records a finished deliberation.
func (m *Metrics) RecordDeliberation(outcome string, agents int, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	ctx := context.Background()
	m.deliberations.Add(ctx, 1, attrs)
	m.deliberationDuration.Record(ctx, d.Seconds(), attrs)
	m.deliberationAgents.Record(ctx, int64(agents), attrs)
}

// RecordEventPublished counts one published event.
func (m *Metrics) RecordEventPublished(eventType string, subscriberCount int) {
	m.eventsPublished.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", eventType),
		attribute.Bool("delivered", subscriberCount > 0),
	))
}

// RecordEventDropped counts one event dropped for a slow subscriber.
func (m *Metrics) RecordEventDropped(eventType string) {
	m.eventsDropped.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", eventType),
	))
}

// RecordHealth sets the health gauge of a component.
func (m *Metrics) RecordHealth(component string, state types.HealthState) {
	value := 0.0
	if state == types.HealthStateHealthy {
		value = 1.0
	}
	m.healthStatus.Record(context.Background(), value, metric.WithAttributes(
		attribute.String("component", component),
		attribute.String("state", state.String()),
	))
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
