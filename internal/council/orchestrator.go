package council

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/contextkeys"
	"github.com/datacendia/council/internal/llm"
	"github.com/datacendia/council/internal/types"
)

// DeliberationRequest describes one deliberation.
type DeliberationRequest struct {
	// SessionID is assigned when zero.
	SessionID types.ID `json:"session_id,omitempty"`

	Question string `json:"question"`
	Context  string `json:"context,omitempty"`

	// AgentIDs restricts the participants, in this order. Empty means
	// every online agent in catalog order.
	AgentIDs []string `json:"agent_ids,omitempty"`

	// QuickMode and SkipCrossExamination both skip cross-examination.
	QuickMode            bool `json:"quick_mode,omitempty"`
	SkipCrossExamination bool `json:"skip_cross_examination,omitempty"`

	// Streaming streams initial analyses token by token and scores
	// confidence with ConfidenceStreaming.
	Streaming bool `json:"streaming,omitempty"`

	Locale string `json:"locale,omitempty"`
}

// BackendStatus reports whether the model backend was reachable at the
// last check.
type BackendStatus interface {
	Available() bool
}

// Recorder receives deliberation metrics.
type Recorder interface {
	RecordAgentQuery(agentID string, d time.Duration, failed bool)
	RecordDeliberation(outcome string, agents int, d time.Duration)
}

// Orchestrator runs deliberations against one registry and gateway.
type Orchestrator struct {
	querier  *Querier
	reg      *agent.Registry
	rules    []agent.ConflictRule
	cfg      Config
	backend  BackendStatus
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		def := DefaultConfig()
		if cfg.ChiefCode == "" {
			cfg.ChiefCode = def.ChiefCode
		}
		if cfg.MaxCrossExaminations == 0 {
			cfg.MaxCrossExaminations = def.MaxCrossExaminations
		}
		if cfg.TruncateChars == 0 {
			cfg.TruncateChars = def.TruncateChars
		}
		if cfg.DefaultLocale == "" {
			cfg.DefaultLocale = def.DefaultLocale
		}
		if cfg.AnalysisTemperature == 0 {
			cfg.AnalysisTemperature = def.AnalysisTemperature
		}
		if cfg.ChallengeTemperature == 0 {
			cfg.ChallengeTemperature = def.ChallengeTemperature
		}
		if cfg.SynthesisTemperature == 0 {
			cfg.SynthesisTemperature = def.SynthesisTemperature
		}
		if cfg.SynthesisNumPredict == 0 {
			cfg.SynthesisNumPredict = def.SynthesisNumPredict
		}
		o.cfg = cfg
	}
}

// WithBackendStatus makes Deliberate fail fast with LLM_BACKEND_UNAVAILABLE
// while the backend is known to be down.
func WithBackendStatus(b BackendStatus) Option {
	return func(o *Orchestrator) {
		o.backend = b
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithLogger sets the logger for orchestrator operations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for distributed tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewOrchestrator creates an orchestrator. rules are the conflict pairing
// rules in priority order.
func NewOrchestrator(gw Completer, reg *agent.Registry, rules []agent.ConflictRule, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg:    reg,
		rules:  rules,
		cfg:    DefaultConfig(),
		logger: slog.Default(),
		tracer: otel.Tracer("council"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.querier = NewQuerier(gw, reg, o.logger)
	return o
}

// Querier returns the single-agent querier used by the orchestrator.
func (o *Orchestrator) Querier() *Querier {
	return o.querier
}

// Registry returns the agent registry.
func (o *Orchestrator) Registry() *agent.Registry {
	return o.reg
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Chief returns the synthesising agent, if it exists in the registry.
func (o *Orchestrator) Chief() (agent.Agent, bool) {
	if o.cfg.ChiefCode != "" {
		if a, ok := o.reg.ByCode(o.cfg.ChiefCode); ok {
			return a, true
		}
	}
	return o.reg.Chief()
}

// Deliberate runs a full deliberation. obs may be nil.
//
// Per-agent failures become placeholders. Deliberate fails only when the
// request is invalid, the backend is known to be down, no requested agent
// is online, every agent failed, or ctx is cancelled; no partial session is
// returned in those cases and obs.Failed is called instead of Complete.
func (o *Orchestrator) Deliberate(ctx context.Context, req DeliberationRequest, obs Observer) (*Session, error) {
	if obs == nil {
		obs = NoopObserver
	}
	s, err := o.deliberate(ctx, req, obs)
	if err != nil {
		obs.Failed(err)
		return nil, err
	}
	return s, nil
}

func (o *Orchestrator) deliberate(ctx context.Context, req DeliberationRequest, obs Observer) (*Session, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, NewInvalidRequestError("question is required")
	}
	instruction, err := LocaleInstruction(req.Locale, o.cfg.DefaultLocale)
	if err != nil {
		return nil, err
	}
	if o.backend != nil && !o.backend.Available() {
		return nil, llm.NewBackendUnavailableError("council", errors.New("last probe failed"))
	}

	selected := o.selectAgents(req.AgentIDs)
	if len(selected) == 0 {
		return nil, NewNoAgentsOnlineError(len(req.AgentIDs))
	}

	start := time.Now()
	s := &Session{
		ID:        req.SessionID,
		Question:  question,
		Context:   req.Context,
		AgentIDs:  make([]string, len(selected)),
		Phase:     PhaseInit,
		Locale:    req.Locale,
		QuickMode: req.QuickMode,
		CreatedAt: start,
	}
	if s.ID.IsZero() {
		s.ID = types.NewID()
	}
	for i, a := range selected {
		s.AgentIDs[i] = a.ID
	}

	ctx, span := o.tracer.Start(ctx, "council.deliberate", trace.WithAttributes(
		attribute.String("council.session_id", s.ID.String()),
		attribute.Int("council.agents", len(selected)),
		attribute.Bool("council.quick_mode", req.QuickMode),
	))
	defer span.End()
	ctx = contextkeys.WithSessionID(ctx, s.ID.String())

	logger := o.logger.With("session_id", s.ID.String())
	logger.InfoContext(ctx, "deliberation started", "agents", len(selected), "locale", req.Locale)
	obs.PhaseChange(PhaseInit)

	fail := func(err error) (*Session, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.recordDeliberation(outcomeOf(err), len(selected), time.Since(start))
		logger.WarnContext(ctx, "deliberation failed", "phase", s.Phase, "error", err)
		return nil, err
	}

	// Phase 1
	o.advance(s, PhaseInitialAnalysis, obs)
	s.Responses = o.initialAnalysis(ctx, s, selected, req, instruction, obs)
	if ctx.Err() != nil {
		return fail(NewCanceledError(ctx.Err()))
	}
	if s.FailedResponses() == len(s.Responses) {
		return fail(newAllAgentsFailedError(len(s.Responses), errors.New(s.Responses[0].Error)))
	}

	// Phase 2
	if !req.QuickMode && !req.SkipCrossExamination && len(selected) > 1 {
		o.advance(s, PhaseCrossExamination, obs)
		s.CrossExaminations = o.crossExamine(ctx, s, selected, instruction, obs)
		if ctx.Err() != nil {
			return fail(NewCanceledError(ctx.Err()))
		}
	}

	// Phase 3
	o.advance(s, PhaseSynthesis, obs)
	s.Synthesis, s.SynthesizedBy = o.synthesize(ctx, s, instruction, obs)
	if ctx.Err() != nil {
		return fail(NewCanceledError(ctx.Err()))
	}

	model := ConfidenceBasic
	if req.Streaming {
		model = ConfidenceStreaming
	}
	s.Confidence = model.SessionConfidence(s.Responses, s.CrossExaminations)
	s.Duration = time.Since(start)
	o.advance(s, PhaseComplete, obs)
	obs.Complete(s.Synthesis, s.Confidence)

	span.SetAttributes(
		attribute.Int("council.confidence", s.Confidence),
		attribute.Int("council.cross_examinations", len(s.CrossExaminations)),
		attribute.Int("council.failed_responses", s.FailedResponses()),
	)
	o.recordDeliberation("completed", len(selected), s.Duration)
	logger.InfoContext(ctx, "deliberation completed",
		"duration", s.Duration,
		"confidence", s.Confidence,
		"failed_responses", s.FailedResponses(),
		"cross_examinations", len(s.CrossExaminations),
	)
	return s, nil
}

func (o *Orchestrator) advance(s *Session, next Phase, obs Observer) {
	if !s.Phase.CanTransition(next) {
		panic("council: invalid phase transition " + s.Phase.String() + " -> " + next.String())
	}
	s.Phase = next
	obs.PhaseChange(next)
}

// selectAgents returns the online agents among ids (request order, first
// occurrence wins) or every online agent when ids is empty.
func (o *Orchestrator) selectAgents(ids []string) []agent.Agent {
	if len(ids) == 0 {
		return o.reg.Online()
	}

	seen := make(map[string]struct{}, len(ids))
	var out []agent.Agent
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if a, err := o.reg.Get(id); err == nil && a.IsOnline() {
			out = append(out, a)
		}
	}
	return out
}

func (o *Orchestrator) initialAnalysis(ctx context.Context, s *Session, selected []agent.Agent, req DeliberationRequest, instruction string, obs Observer) []AgentResponse {
	ctx, span := o.tracer.Start(ctx, "council.phase.initial_analysis")
	defer span.End()

	responses := make([]AgentResponse, len(selected))
	prompt := analysisPrompt(s.Question)
	opts := QueryOptions{
		Context:     req.Context,
		Instruction: instruction,
		Temperature: o.cfg.AnalysisTemperature,
	}

	var g errgroup.Group
	if o.cfg.MaxParallel > 0 {
		g.SetLimit(o.cfg.MaxParallel)
	}

	for i, a := range selected {
		g.Go(func() error {
			obs.AgentStart(a)

			var onToken func(string)
			if req.Streaming {
				onToken = func(tok string) { obs.Token(a.ID, tok) }
			}
			responses[i] = o.ask(ctx, a, prompt, opts, onToken, "Analysis")
			obs.AgentComplete(responses[i])
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

// ask runs one query and converts any failure into a placeholder.
func (o *Orchestrator) ask(ctx context.Context, a agent.Agent, prompt string, opts QueryOptions, onToken func(string), kind string) AgentResponse {
	start := time.Now()
	var (
		resp *AgentResponse
		err  error
	)
	if onToken != nil {
		resp, err = o.querier.QueryStream(ctx, a.ID, prompt, opts, onToken)
	} else {
		resp, err = o.querier.Query(ctx, a.ID, prompt, opts)
	}

	if resp == nil {
		resp = &AgentResponse{AgentID: a.ID, AgentCode: a.Code, AgentName: a.Name, Duration: time.Since(start)}
	}
	if err != nil {
		resp.Failed = true
		resp.Error = err.Error()
		resp.Content = placeholder(kind, err)
	}
	if o.recorder != nil {
		o.recorder.RecordAgentQuery(a.ID, resp.Duration, resp.Failed)
	}
	return *resp
}

func (o *Orchestrator) crossExamine(ctx context.Context, s *Session, selected []agent.Agent, instruction string, obs Observer) []CrossExamination {
	ctx, span := o.tracer.Start(ctx, "council.phase.cross_examination")
	defer span.End()

	var participants []agent.Agent
	for i, a := range selected {
		if !s.Responses[i].Failed {
			participants = append(participants, a)
		}
	}

	pairings := DetectConflicts(o.rules, participants, o.cfg.MaxCrossExaminations)
	span.SetAttributes(attribute.Int("council.pairings", len(pairings)))

	crosses := make([]CrossExamination, 0, len(pairings))
	for _, p := range pairings {
		if ctx.Err() != nil {
			break
		}
		target, _ := s.Response(p.Target.ID)
		x := CrossExamination{
			ChallengerID: p.Challenger.ID,
			TargetID:     p.Target.ID,
			Rationale:    p.Rationale,
		}

		opts := QueryOptions{Instruction: instruction, Temperature: o.cfg.ChallengeTemperature}
		challenge := o.ask(ctx, p.Challenger,
			challengePrompt(s.Question, target, p.Rationale, o.cfg.TruncateChars),
			opts, func(tok string) { obs.Token(p.Challenger.ID, tok) }, "Challenge")
		x.Challenge = challenge.Content
		obs.Challenge(x.ChallengerID, x.TargetID, x.Challenge)

		if challenge.Failed {
			x.Failed = true
			x.Rebuttal = "No rebuttal: the challenge was unavailable."
		} else {
			opts.Temperature = o.cfg.AnalysisTemperature
			rebuttal := o.ask(ctx, p.Target,
				rebuttalPrompt(s.Question, p.Challenger.Name, x.Challenge),
				opts, func(tok string) { obs.Token(p.Target.ID, tok) }, "Rebuttal")
			x.Rebuttal = rebuttal.Content
			x.Failed = rebuttal.Failed
		}
		obs.Rebuttal(x.TargetID, x.Rebuttal)

		crosses = append(crosses, x)
	}
	return crosses
}

func (o *Orchestrator) synthesize(ctx context.Context, s *Session, instruction string, obs Observer) (string, string) {
	ctx, span := o.tracer.Start(ctx, "council.phase.synthesis")
	defer span.End()

	usable := make([]AgentResponse, 0, len(s.Responses))
	names := make(map[string]string, len(s.Responses))
	for _, r := range s.Responses {
		names[r.AgentID] = r.AgentName
		if !r.Failed {
			usable = append(usable, r)
		}
	}

	obs.SynthesisStart()

	chief, ok := o.Chief()
	if !ok || !chief.IsOnline() {
		span.SetAttributes(attribute.Bool("council.synthesis_fallback", true))
		return concatenateSynthesis(usable), ""
	}

	var crosses []CrossExamination
	for _, x := range s.CrossExaminations {
		if !x.Failed {
			crosses = append(crosses, x)
		}
	}

	resp := o.ask(ctx, chief, synthesisPrompt(s.Question, usable, crosses, names), QueryOptions{
		Instruction: instruction,
		Temperature: o.cfg.SynthesisTemperature,
		NumPredict:  o.cfg.SynthesisNumPredict,
	}, obs.SynthesisToken, "Synthesis")
	if resp.Failed {
		o.logger.WarnContext(ctx, "chief synthesis failed, concatenating responses",
			"session_id", s.ID.String(), "chief", chief.ID, "error", resp.Error)
		span.SetAttributes(attribute.Bool("council.synthesis_fallback", true))
		return concatenateSynthesis(usable), ""
	}
	return resp.Content, chief.ID
}

func (o *Orchestrator) recordDeliberation(outcome string, agents int, d time.Duration) {
	if o.recorder != nil {
		o.recorder.RecordDeliberation(outcome, agents, d)
	}
}

func outcomeOf(err error) string {
	switch types.CodeOf(err) {
	case ErrDeliberationCanceled:
		return "canceled"
	case ErrAllAgentsFailed:
		return "all_failed"
	default:
		return "failed"
	}
}
