package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on the audit_logs table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, rec *Record) error {
	var (
		entityID  sql.NullString
		requestID sql.NullString
		payload   any
	)
	if rec.EntityID != nil {
		entityID = sql.NullString{String: *rec.EntityID, Valid: true}
	}
	if rec.RequestID != "" {
		requestID = sql.NullString{String: rec.RequestID, Valid: true}
	}
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_logs(id, action_type, entity_type, entity_id, payload, actor_name, request_id, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, string(rec.Action), string(rec.EntityType), entityID, payload, rec.Actor, requestID, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.EntityType != "" {
		args = append(args, string(f.EntityType))
		where = append(where, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if f.Actor != "" {
		args = append(args, f.Actor)
		where = append(where, fmt.Sprintf("actor_name = $%d", len(args)))
	}
	q := `select id, action_type, entity_type, entity_id, payload, actor_name, request_id, created_at from audit_logs`
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.limit())
	q += fmt.Sprintf(" order by created_at desc limit $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var (
			r         Record
			action    string
			entity    string
			entityID  sql.NullString
			payload   []byte
			requestID sql.NullString
		)
		if err := rows.Scan(&r.ID, &action, &entity, &entityID, &payload, &r.Actor, &requestID, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Action = Action(action)
		r.EntityType = EntityType(entity)
		if entityID.Valid {
			id := entityID.String
			r.EntityID = &id
		}
		r.Payload = payload
		r.RequestID = requestID.String
		res = append(res, r)
	}
	return res, rows.Err()
}
