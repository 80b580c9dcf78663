// Package api exposes the council over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/monitor"
	"github.com/datacendia/council/internal/observability"
	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/usecase"
)

// Deliberator runs a deliberation and returns the stored result.
type Deliberator interface {
	Run(ctx context.Context, req council.DeliberationRequest, obs council.Observer) (*usecase.CouncilResult, error)
}

// SessionReader reads stored deliberations.
type SessionReader interface {
	Get(ctx context.Context, id types.ID) (*council.Session, error)
	List(ctx context.Context, limit int) ([]database.DeliberationSummary, error)
}

// RecordWriter stores use-case results.
type RecordWriter interface {
	Create(ctx context.Context, r *database.Record) error
}

// PreMortemRunner runs a pre-mortem.
type PreMortemRunner interface {
	Run(ctx context.Context, in usecase.PreMortemInput) (*usecase.PreMortemResult, error)
}

// GhostBoardRunner runs a ghost board rehearsal.
type GhostBoardRunner interface {
	Run(ctx context.Context, in usecase.GhostBoardInput) (*usecase.GhostBoardResult, error)
}

// Warmer loads agent models into backend memory.
type Warmer interface {
	PreWarm(ctx context.Context, progress func(monitor.WarmProgress)) []monitor.WarmResult
}

// Deps are the collaborators behind the routes. Records and Metrics are
// optional.
type Deps struct {
	Registry    *agent.Registry
	ChiefID     string
	Council     Deliberator
	Sessions    SessionReader
	Records     RecordWriter
	PreMortem   PreMortemRunner
	GhostBoard  GhostBoardRunner
	Warmer      Warmer
	Bus         events.EventBus
	Health      *observability.HealthMonitor
	Metrics     http.Handler
	MetricsPath string
}

// Settings are the listener settings.
type Settings struct {
	Address          string
	ReadTimeout      time.Duration
	EventBufferSize  int
	DefaultListLimit int
}

// Server serves the council API.
type Server struct {
	settings Settings
	deps     Deps
	logger   *observability.TracedLogger
	handler  http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = observability.NewTracedLogger(l, "api")
		}
	}
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(settings Settings, deps Deps, opts ...Option) *Server {
	if settings.EventBufferSize <= 0 {
		settings.EventBufferSize = 256
	}
	if settings.DefaultListLimit <= 0 {
		settings.DefaultListLimit = 50
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}

	s := &Server{
		settings: settings,
		deps:     deps,
		logger:   observability.NewTracedLogger(nil, "api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/deliberations", s.handleDeliberate)
	mux.HandleFunc("GET /api/deliberations", s.handleListDeliberations)
	mux.HandleFunc("GET /api/deliberations/{id}", s.handleGetDeliberation)
	mux.HandleFunc("POST /api/premortem", s.handlePreMortem)
	mux.HandleFunc("POST /api/ghostboard", s.handleGhostBoard)
	mux.HandleFunc("POST /api/warm", s.handleWarm)
	if s.deps.Metrics != nil {
		mux.Handle("GET "+s.deps.MetricsPath, s.deps.Metrics)
	}
	return s.recoverer(mux)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("api: server already started")
	}
	listener, err := net.Listen("tcp", s.settings.Address)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.settings.Address, err)
	}

	// No WriteTimeout: deliberation streams outlive any fixed deadline.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.settings.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener, s.server = listener, server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "serve failed", "error", err)
		}
	}()
	s.logger.Info(ctx, "api listening", "address", listener.Addr().String())
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server, s.listener = nil, nil
	return err
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error(r.Context(), "handler panic", "path", r.URL.Path, "panic", fmt.Sprint(p))
				writeError(w, fmt.Errorf("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
