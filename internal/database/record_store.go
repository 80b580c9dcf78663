package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datacendia/council/internal/types"
)

// Record is a generic persisted document keyed by kind and id.
type Record struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RecordFilter narrows Query results. Kind is required.
type RecordFilter struct {
	Kind   string
	Since  time.Time
	Limit  int
	Offset int
}

// RecordStore provides create/read/update/query over generic records.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a record store backed by db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Create inserts a record. A missing ID is generated and timestamps are
// set to now.
func (s *RecordStore) Create(ctx context.Context, r *Record) error {
	if r.Kind == "" {
		return types.NewError(types.DB_QUERY_FAILED, "record kind is required")
	}
	if r.ID == "" {
		r.ID = types.NewID().String()
	}
	if len(r.Payload) == 0 {
		r.Payload = json.RawMessage("{}")
	}
	if !json.Valid(r.Payload) {
		return types.NewError(types.DB_QUERY_FAILED, "record payload is not valid JSON")
	}

	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO records (id, kind, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, string(r.Payload), r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to insert record", err)
	}
	return nil
}

// Get returns the record of kind with id.
func (s *RecordStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, kind, payload, created_at, updated_at
		FROM records WHERE kind = ? AND id = ?`, kind, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.NewError(types.DB_NOT_FOUND, fmt.Sprintf("%s %s not found", kind, id))
	}
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to read record", err)
	}
	return r, nil
}

// Update replaces the payload of an existing record.
func (s *RecordStore) Update(ctx context.Context, r *Record) error {
	if !json.Valid(r.Payload) {
		return types.NewError(types.DB_QUERY_FAILED, "record payload is not valid JSON")
	}
	r.UpdatedAt = time.Now().UTC()

	res, err := s.db.conn.ExecContext(ctx, `
		UPDATE records SET payload = ?, updated_at = ?
		WHERE kind = ? AND id = ?`,
		string(r.Payload), r.UpdatedAt, r.Kind, r.ID)
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to update record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.WrapError(types.DB_QUERY_FAILED, "failed to update record", err)
	}
	if n == 0 {
		return types.NewError(types.DB_NOT_FOUND, fmt.Sprintf("%s %s not found", r.Kind, r.ID))
	}
	return nil
}

// Query lists records of a kind, newest first.
func (s *RecordStore) Query(ctx context.Context, f RecordFilter) ([]*Record, error) {
	if f.Kind == "" {
		return nil, types.NewError(types.DB_QUERY_FAILED, "record kind is required")
	}

	query := `SELECT id, kind, payload, created_at, updated_at FROM records WHERE kind = ?`
	args := []any{f.Kind}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, f.Since.UTC())
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to query records", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to scan record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.DB_QUERY_FAILED, "failed to iterate records", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		r       Record
		payload string
	)
	if err := row.Scan(&r.ID, &r.Kind, &payload, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Payload = json.RawMessage(payload)
	return &r, nil
}
