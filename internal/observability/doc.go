// Package observability wires logging, tracing, metrics and component
// health for the council service.
//
// Logging is log/slog with JSON or text handlers; TracedLogger adds
// trace_id and span_id from the OpenTelemetry span in the context.
//
// Tracing uses the OpenTelemetry SDK. The "otlp" provider exports spans over
// gRPC; "noop" and a disabled config install a provider that records
// nothing:
//
//	tp, err := observability.InitTracing(ctx, cfg.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer observability.ShutdownTracing(ctx, tp)
//
// Metrics go through an OpenTelemetry meter backed by the Prometheus
// exporter. Metrics implements the recorder interfaces of the llm, council
// and events packages, and Handler serves the scrape endpoint.
//
// HealthMonitor aggregates component health and logs state transitions.
package observability
