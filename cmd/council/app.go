package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/config"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/guardrail"
	"github.com/datacendia/council/internal/guardrail/builtin"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/llm/providers"
	"github.com/datacendia/council/internal/monitor"
	"github.com/datacendia/council/internal/observability"
	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/usecase"
)

// app holds every wired component for one command invocation.
type app struct {
	flags  *GlobalFlags
	cfg    *config.Config
	logger *slog.Logger

	catalog  *agent.Catalog
	registry *agent.Registry
	gateway  *llm.Gateway
	bus      *events.DefaultEventBus
	metrics  *observability.Metrics
	tracing  *sdktrace.TracerProvider
	monitor  *monitor.Monitor
	orch     *council.Orchestrator
	health   *observability.HealthMonitor

	db       *database.DB
	sessions *database.DeliberationDAO
	records  *database.RecordStore

	closers []func(context.Context) error
}

type appOptions struct {
	// storage opens the database.
	storage bool
}

// newApp loads the configuration and wires the components. Call Close when
// done, even after an error.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	ctx := cmd.Context()
	flags, err := ParseGlobalFlags()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	a := &app{flags: flags, cfg: cfg}
	if err := a.initObservability(ctx, cmd.ErrOrStderr()); err != nil {
		return a, err
	}
	if err := a.initCouncil(); err != nil {
		return a, err
	}
	if opts.storage {
		if err := a.initStorage(ctx); err != nil {
			return a, err
		}
	}
	return a, nil
}

// loadConfig reads the config file when it exists and applies the flag
// overrides.
func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	cfg, err := config.NewConfigLoader(nil).LoadWithDefaults(flags.ConfigPath())
	if err != nil {
		return nil, err
	}
	if flags.Offline {
		cfg.LLM.Provider = llm.ProviderMock
	}
	if flags.Verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.Quiet {
		cfg.Logging.Level = "error"
	}
	return cfg, nil
}

func (a *app) initObservability(ctx context.Context, stderr io.Writer) error {
	logger, closeLog, err := newLogger(a.cfg.Logging, stderr)
	if err != nil {
		return internal.WrapError(internal.ExitConfigError, "failed to configure logging", err)
	}
	a.logger = logger
	slog.SetDefault(logger)
	a.closers = append(a.closers, func(context.Context) error { return closeLog() })

	tp, err := observability.InitTracing(ctx, a.cfg.Tracing)
	if err != nil {
		return err
	}
	a.tracing = tp
	a.closers = append(a.closers, func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tp)
	})

	metrics, err := observability.InitMetrics(a.cfg.Metrics)
	if err != nil {
		return err
	}
	a.metrics = metrics
	a.closers = append(a.closers, metrics.Shutdown)

	a.health = observability.NewHealthMonitor(metrics, observability.NewTracedLogger(logger, "health"))
	return nil
}

func (a *app) initCouncil() error {
	catalog, err := agent.LoadCatalog(a.cfg.Agents.CatalogPath)
	if err != nil {
		return err
	}
	registry, err := catalog.Registry()
	if err != nil {
		return err
	}
	a.catalog, a.registry = catalog, registry

	provider, err := a.newProvider()
	if err != nil {
		return err
	}

	gwOpts := []llm.GatewayOption{
		llm.WithCallRecorder(a.metrics),
		llm.WithGatewayLogger(a.logger),
		llm.WithGatewayTracer(otel.Tracer("council/llm")),
	}
	if len(a.cfg.Guardrails) > 0 {
		guards, err := builtin.ParseGuardrailConfigs(a.cfg.Guardrails)
		if err != nil {
			return err
		}
		gwOpts = append(gwOpts, llm.WithGuardrails(guardrail.NewGuardrailPipeline(guards...)))
	}
	a.gateway = llm.NewGatewayFromConfig(provider, a.cfg.LLM, gwOpts...)

	a.bus = events.NewEventBus(
		events.WithDefaultBufferSize(a.cfg.Server.EventBufferSize),
		events.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, func(context.Context) error { return a.bus.Close() })

	a.monitor = monitor.New(a.gateway, registry,
		monitor.WithInterval(a.cfg.Monitor.Interval),
		monitor.WithProbeTimeout(a.cfg.Monitor.ProbeTimeout),
		monitor.WithPublisher(a.bus),
		monitor.WithLogger(a.logger),
	)
	a.health.Register("backend", observability.HealthCheckerFunc(func(context.Context) types.HealthStatus {
		return a.monitor.Health()
	}))

	a.orch = council.NewOrchestrator(a.gateway, registry, catalog.Conflicts,
		council.WithConfig(a.cfg.Council),
		council.WithBackendStatus(a.monitor),
		council.WithRecorder(a.metrics),
		council.WithLogger(a.logger),
	)
	return nil
}

func (a *app) newProvider() (llm.Provider, error) {
	if a.cfg.LLM.Provider == llm.ProviderMock {
		return newOfflineProvider(a.catalog), nil
	}
	return providers.NewProvider(a.cfg.LLM)
}

func (a *app) initStorage(ctx context.Context) error {
	dbCfg := a.cfg.Database
	if err := os.MkdirAll(filepath.Dir(dbCfg.Path), 0o700); err != nil {
		return types.WrapError(types.DB_OPEN_FAILED, "failed to create data directory", err)
	}
	db, err := database.OpenWithConfig(ctx, dbCfg)
	if err != nil {
		return err
	}
	a.db = db
	a.sessions = database.NewDeliberationDAO(db)
	a.records = database.NewRecordStore(db)
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	a.health.Register("database", observability.PingChecker(db.Health))
	return nil
}

// newLogger builds the logger. Logs sent to stderr go to the command's
// error stream so they never mix with command output.
func newLogger(cfg observability.LoggingConfig, stderr io.Writer) (*slog.Logger, func() error, error) {
	if !strings.EqualFold(cfg.Output, "stderr") {
		logger, closer, err := observability.NewLogger(cfg)
		if err != nil {
			return nil, nil, err
		}
		return logger, closer.Close, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := observability.ParseLevel(cfg.Level)
	handler := observability.NewTextHandler(stderr, level)
	if strings.EqualFold(cfg.Format, "json") {
		handler = observability.NewJSONHandler(stderr, level)
	}
	return slog.New(handler), func() error { return nil }, nil
}

// probe lists the backend's models once so agent statuses are current.
func (a *app) probe(ctx context.Context) monitor.ProbeResult {
	res := a.monitor.Probe(ctx)
	if !res.Available {
		a.logger.Warn("model backend unavailable", "error", res.Error)
	}
	return res
}

// councilSession wires the deliberation use-case to storage when open.
func (a *app) councilSession() *usecase.CouncilSession {
	var store usecase.SessionStore
	if a.sessions != nil {
		store = a.sessions
	}
	return usecase.NewCouncilSession(a.orch, store, a.logger)
}

// chiefID returns the synthesising agent's id, or "" when there is none.
func (a *app) chiefID() string {
	if chief, ok := a.orch.Chief(); ok {
		return chief.ID
	}
	return ""
}

// formatter returns the output formatter for cmd.
func (a *app) formatter(cmd *cobra.Command) internal.Formatter {
	return internal.NewFormatter(a.flags.Format(), cmd.OutOrStdout())
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// withApp builds an app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts appOptions, fn func(a *app) error) error {
	a, err := newApp(cmd, opts)
	defer func() {
		if cerr := a.Close(context.WithoutCancel(cmd.Context())); cerr != nil && a.logger != nil {
			a.logger.Warn("cleanup failed", "error", cerr)
		}
	}()
	if err != nil {
		return err
	}
	return fn(a)
}
