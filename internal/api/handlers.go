package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/datacendia/council/internal/agent"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/monitor"
	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/usecase"
)

const errNotConfigured types.ErrorCode = "API_NOT_CONFIGURED"

// Record kinds for stored use-case results.
const (
	RecordKindPreMortem  = "premortem"
	RecordKindGhostBoard = "ghostboard"
)

type agentsResponse struct {
	Agents []agent.Agent        `json:"agents"`
	Counts map[agent.Status]int `json:"counts"`
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agentsResponse{
		Agents: s.deps.Registry.List(),
		Counts: s.deps.Registry.Counts(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, types.Healthy("no components registered"))
		return
	}

	report := s.deps.Health.CheckAll(r.Context())
	status := http.StatusOK
	if report.Status.IsUnhealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type listResponse struct {
	Deliberations []database.DeliberationSummary `json:"deliberations"`
}

func (s *Server) handleListDeliberations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, types.NewError(errNotConfigured, "session storage is disabled"))
		return
	}

	limit := s.settings.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, badRequest("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	list, err := s.deps.Sessions.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []database.DeliberationSummary{}
	}
	writeJSON(w, http.StatusOK, listResponse{Deliberations: list})
}

func (s *Server) handleGetDeliberation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, types.NewError(errNotConfigured, "session storage is disabled"))
		return
	}

	id, err := types.ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, badRequest("invalid deliberation id: %v", err))
		return
	}

	session, err := s.deps.Sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// resultEnvelope carries a use-case result and, when stored, its record id.
type resultEnvelope struct {
	ID     string `json:"id,omitempty"`
	Result any    `json:"result"`
}

func (s *Server) handlePreMortem(w http.ResponseWriter, r *http.Request) {
	var in usecase.PreMortemInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.deps.PreMortem.Run(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{
		ID:     s.store(r.Context(), RecordKindPreMortem, res),
		Result: res,
	})
}

func (s *Server) handleGhostBoard(w http.ResponseWriter, r *http.Request) {
	var in usecase.GhostBoardInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.deps.GhostBoard.Run(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{
		ID:     s.store(r.Context(), RecordKindGhostBoard, res),
		Result: res,
	})
}

// store persists a use-case result. Storage failures are logged; the
// caller still gets the result.
func (s *Server) store(ctx context.Context, kind string, v any) string {
	if s.deps.Records == nil {
		return ""
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn(ctx, "failed to encode result", "kind", kind, "error", err)
		return ""
	}
	rec := &database.Record{Kind: kind, Payload: payload}
	if err := s.deps.Records.Create(ctx, rec); err != nil {
		s.logger.Warn(ctx, "failed to store result", "kind", kind, "error", err)
		return ""
	}
	return rec.ID
}

type warmResponse struct {
	Results []monitor.WarmResult `json:"results"`
	Loaded  int                  `json:"loaded"`
}

func (s *Server) handleWarm(w http.ResponseWriter, r *http.Request) {
	if s.deps.Warmer == nil {
		writeError(w, types.NewError(errNotConfigured, "model warm-up is disabled"))
		return
	}

	results := s.deps.Warmer.PreWarm(r.Context(), nil)
	resp := warmResponse{Results: results}
	for _, res := range results {
		if res.OK() {
			resp.Loaded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
