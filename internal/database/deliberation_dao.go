package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/types"
)

// DeliberationSummary is a list row for a stored deliberation.
type DeliberationSummary struct {
	ID         types.ID      `json:"id"`
	Question   string        `json:"question"`
	Confidence int           `json:"confidence"`
	Agents     int           `json:"agents"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// DeliberationDAO persists completed deliberation sessions.
type DeliberationDAO struct {
	db *DB
}

// NewDeliberationDAO creates a DAO backed by db.
func NewDeliberationDAO(db *DB) *DeliberationDAO {
	return &DeliberationDAO{db: db}
}

// Save stores a session with its responses and cross-examinations in one
// transaction. Sessions are immutable; saving an existing id fails.
func (d *DeliberationDAO) Save(ctx context.Context, s *council.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}

	agentIDs, err := json.Marshal(s.AgentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal agent ids: %w", err)
	}

	err = d.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO deliberations (
				id, question, context, agent_ids, synthesis, synthesized_by,
				confidence, phase, locale, quick_mode, duration_ms, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID.String(), s.Question, s.Context, string(agentIDs), s.Synthesis, s.SynthesizedBy,
			s.Confidence, s.Phase.String(), s.Locale, s.QuickMode, s.Duration.Milliseconds(), s.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert deliberation: %w", err)
		}

		for i, r := range s.Responses {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO deliberation_responses (
					deliberation_id, position, agent_id, agent_code, agent_name,
					content, duration_ms, failed, error
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID.String(), i, r.AgentID, r.AgentCode, r.AgentName,
				r.Content, r.Duration.Milliseconds(), r.Failed, r.Error)
			if err != nil {
				return fmt.Errorf("failed to insert response %d: %w", i, err)
			}
		}

		for i, x := range s.CrossExaminations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO cross_examinations (
					deliberation_id, position, challenger_id, target_id,
					rationale, challenge, rebuttal, failed
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID.String(), i, x.ChallengerID, x.TargetID,
				x.Rationale, x.Challenge, x.Rebuttal, x.Failed)
			if err != nil {
				return fmt.Errorf("failed to insert cross-examination %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to save deliberation", err)
	}
	return nil
}

// Get loads a full session by id.
func (d *DeliberationDAO) Get(ctx context.Context, id types.ID) (*council.Session, error) {
	var (
		s          council.Session
		sid        string
		agentIDs   string
		phase      string
		durationMs int64
	)
	err := d.db.conn.QueryRowContext(ctx, `
		SELECT id, question, context, agent_ids, synthesis, synthesized_by,
		       confidence, phase, locale, quick_mode, duration_ms, created_at
		FROM deliberations WHERE id = ?`, id.String()).Scan(
		&sid, &s.Question, &s.Context, &agentIDs, &s.Synthesis, &s.SynthesizedBy,
		&s.Confidence, &phase, &s.Locale, &s.QuickMode, &durationMs, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.DB_NOT_FOUND, fmt.Sprintf("deliberation %s not found", id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read deliberation", err)
	}

	s.ID = types.ID(sid)
	s.Phase = council.Phase(phase)
	s.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(agentIDs), &s.AgentIDs); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "corrupt agent ids", err)
	}

	if s.Responses, err = d.responses(ctx, sid); err != nil {
		return nil, err
	}
	if s.CrossExaminations, err = d.crossExaminations(ctx, sid); err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the most recent deliberations, newest first.
func (d *DeliberationDAO) List(ctx context.Context, limit int) ([]DeliberationSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT id, question, confidence, agent_ids, duration_ms, created_at
		FROM deliberations
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to list deliberations", err)
	}
	defer rows.Close()

	var out []DeliberationSummary
	for rows.Next() {
		var (
			sum        DeliberationSummary
			id         string
			agentIDs   string
			durationMs int64
		)
		if err := rows.Scan(&id, &sum.Question, &sum.Confidence, &agentIDs, &durationMs, &sum.CreatedAt); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan deliberation", err)
		}
		var ids []string
		if err := json.Unmarshal([]byte(agentIDs), &ids); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "corrupt agent ids", err)
		}
		sum.ID = types.ID(id)
		sum.Agents = len(ids)
		sum.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to iterate deliberations", err)
	}
	return out, nil
}

func (d *DeliberationDAO) responses(ctx context.Context, id string) ([]council.AgentResponse, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT agent_id, agent_code, agent_name, content, duration_ms, failed, error
		FROM deliberation_responses
		WHERE deliberation_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read responses", err)
	}
	defer rows.Close()

	var out []council.AgentResponse
	for rows.Next() {
		var (
			r          council.AgentResponse
			durationMs int64
		)
		if err := rows.Scan(&r.AgentID, &r.AgentCode, &r.AgentName, &r.Content, &durationMs, &r.Failed, &r.Error); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan response", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DeliberationDAO) crossExaminations(ctx context.Context, id string) ([]council.CrossExamination, error) {
	rows, err := d.db.conn.QueryContext(ctx, `
		SELECT challenger_id, target_id, rationale, challenge, rebuttal, failed
		FROM cross_examinations
		WHERE deliberation_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read cross-examinations", err)
	}
	defer rows.Close()

	var out []council.CrossExamination
	for rows.Next() {
		var x council.CrossExamination
		if err := rows.Scan(&x.ChallengerID, &x.TargetID, &x.Rationale, &x.Challenge, &x.Rebuttal, &x.Failed); err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan cross-examination", err)
		}
		out = append(out, x)
	}
	return out, rows.Err()
}
