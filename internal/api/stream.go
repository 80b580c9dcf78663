package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/datacendia/council/internal/contextkeys"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/events"
	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/usecase"
)

const contentTypeNDJSON = "application/x-ndjson"

type deliberateRequest struct {
	Question             string   `json:"question"`
	Context              string   `json:"context,omitempty"`
	AgentIDs             []string `json:"agent_ids,omitempty"`
	QuickMode            bool     `json:"quick_mode,omitempty"`
	SkipCrossExamination bool     `json:"skip_cross_examination,omitempty"`
	Locale               string   `json:"locale,omitempty"`
}

// streamLine is the final line of an NDJSON deliberation stream.
type streamLine struct {
	Type    string           `json:"type"`
	Session *council.Session `json:"session,omitempty"`
	Source  usecase.Source   `json:"source,omitempty"`
	Error   *errorDetail     `json:"error,omitempty"`
}

func (s *Server) handleDeliberate(w http.ResponseWriter, r *http.Request) {
	var body deliberateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		writeError(w, badRequest("question is required"))
		return
	}

	req := council.DeliberationRequest{
		SessionID:            types.NewID(),
		Question:             body.Question,
		Context:              body.Context,
		AgentIDs:             body.AgentIDs,
		QuickMode:            body.QuickMode,
		SkipCrossExamination: body.SkipCrossExamination,
		Locale:               body.Locale,
	}

	flusher, canFlush := w.(http.Flusher)
	if wantsStream(r) && canFlush && s.deps.Bus != nil {
		s.streamDeliberation(w, r, flusher, req)
		return
	}

	res, err := s.deps.Council.Run(r.Context(), req, s.observer(r.Context(), req.SessionID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type outcome struct {
	res *usecase.CouncilResult
	err error
}

// streamDeliberation writes every bus event of the session as one JSON
// line while the deliberation runs, then a final "session" or "error" line.
func (s *Server) streamDeliberation(w http.ResponseWriter, r *http.Request, flusher http.Flusher, req council.DeliberationRequest) {
	ctx := contextkeys.WithSessionID(r.Context(), req.SessionID.String())
	ch, unsubscribe := s.deps.Bus.Subscribe(ctx, events.Filter{SessionID: req.SessionID}, s.settings.EventBufferSize)
	defer unsubscribe()

	done := make(chan outcome, 1)
	go func() {
		res, err := s.deps.Council.Run(ctx, req, s.observer(ctx, req.SessionID))
		done <- outcome{res, err}
	}()

	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Session-ID", req.SessionID.String())
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				ch = nil
				continue
			}
			if err := enc.Encode(ev); err != nil {
				s.logger.Debug(ctx, "stream write failed", "error", err)
			}
			flusher.Flush()

		case out := <-done:
			s.drain(enc, ch)
			_ = enc.Encode(finalLine(out))
			flusher.Flush()
			return
		}
	}
}

// drain writes events already buffered when the deliberation returned.
func (s *Server) drain(enc *json.Encoder, ch <-chan events.Event) {
	if ch == nil {
		return
	}
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = enc.Encode(ev)
		default:
			return
		}
	}
}

func finalLine(out outcome) streamLine {
	if out.err != nil {
		detail := detailFor(out.err)
		return streamLine{Type: "error", Error: &detail}
	}
	return streamLine{Type: "session", Session: out.res.Session, Source: out.res.Source}
}

func (s *Server) observer(ctx context.Context, sessionID types.ID) council.Observer {
	if s.deps.Bus == nil {
		return council.NoopObserver
	}
	return council.NewEventObserver(ctx, s.deps.Bus, sessionID, s.deps.ChiefID)
}

// wantsStream reports whether the client accepts NDJSON.
func wantsStream(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == contentTypeNDJSON {
			return true
		}
	}
	return false
}
