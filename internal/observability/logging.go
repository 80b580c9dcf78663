package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/datacendia/council/internal/contextkeys"
)

// ParseLevel maps a config level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", level)
	}
}

// NewLogger builds the process logger from cfg. The returned closer
// releases the log file when Output is a path; it is a no-op otherwise.
func NewLogger(cfg LoggingConfig) (*slog.Logger, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := ParseLevel(cfg.Level)

	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, closer = f, f
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = NewJSONHandler(w, level)
	} else {
		handler = NewTextHandler(w, level)
	}
	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// TracedLogger is a structured logger with automatic trace correlation.
// It wraps slog.Logger and adds the component name and the OpenTelemetry
// trace and span ids to every entry.
type TracedLogger struct {
	logger          *slog.Logger
	component       string
	redactSensitive bool
}

// NewTracedLogger creates a TracedLogger for a named component.
func NewTracedLogger(logger *slog.Logger, component string) *TracedLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TracedLogger{
		logger:          logger,
		component:       component,
		redactSensitive: true,
	}
}

// Debug logs a debug-level message. Debug logs are not redacted.
func (l *TracedLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

// Info logs an info-level message with sensitive values redacted.
func (l *TracedLogger) Info(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, l.redact(args)...)
}

// Warn logs a warning-level message with sensitive values redacted.
func (l *TracedLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, l.redact(args)...)
}

// Error logs an error-level message with sensitive values redacted.
func (l *TracedLogger) Error(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, l.redact(args)...)
}

// WithContext returns a slog.Logger carrying the component name, the
// session and agent ids found in ctx and, when ctx holds a valid span,
// its trace_id and span_id.
func (l *TracedLogger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.logger.With(slog.String("component", l.component))
	if id := contextkeys.GetSessionID(ctx); id != "" {
		logger = logger.With(slog.String("session_id", id))
	}
	if id := contextkeys.GetAgentID(ctx); id != "" {
		logger = logger.With(slog.String("agent_id", id))
	}

	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		logger = logger.With(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return logger
}

func (l *TracedLogger) redact(args []any) []any {
	if !l.redactSensitive {
		return args
	}
	return redactSensitiveData(args)
}

// NewJSONHandler creates a JSON log handler.
func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// NewTextHandler creates a human-readable text log handler.
func NewTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

var sensitiveFields = map[string]bool{
	"prompt":     true,
	"prompts":    true,
	"question":   true,
	"context":    true,
	"apikey":     true,
	"secret":     true,
	"password":   true,
	"token":      true,
	"credential": true,
}

// redactSensitiveData replaces the values of sensitive keys with
// "[REDACTED]". Deliberation questions and context are client material and
// count as sensitive.
func redactSensitiveData(args []any) []any {
	if len(args)%2 != 0 {
		return args
	}

	redacted := make([]any, len(args))
	copy(redacted, args)

	for i := 0; i < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			normalizedKey := strings.ToLower(strings.ReplaceAll(key, "_", ""))
			if sensitiveFields[normalizedKey] {
				redacted[i+1] = "[REDACTED]"
			}
		}
	}
	return redacted
}
