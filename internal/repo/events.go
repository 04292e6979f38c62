package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"testtracker/internal/domain"
)

type EventFilters struct {
	Type       string
	EntityKind string
	ProjectID  int64
	// Endpoint matches the endpoint recorded on api.call events.
	Endpoint string
	Limit    int
}

func (f EventFilters) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.ProjectID != 0 {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Endpoint != "" {
		clauses = append(clauses, "json_extract(payload_json,'$.endpoint')=?")
		args = append(args, f.Endpoint)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// ListEvents returns matching events oldest first.
func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	where, args := f.where()
	limit := f.Limit
	if limit <= 0 {
		limit = 1000
	}
	query := fmt.Sprintf(`SELECT id,ts,type,project_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (domain.Event, error) {
		var e domain.Event
		var project, entity sql.NullInt64
		if err := s.Scan(&e.ID, &e.TS, &e.Type, &project, &e.EntityKind, &entity, &e.ActorID, &e.Payload); err != nil {
			return e, err
		}
		e.ProjectID, e.EntityID = idPtr(project), idPtr(entity)
		return e, nil
	})
}

func (r Repo) CountEvents(ctx context.Context, f EventFilters) (int, error) {
	where, args := f.where()
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM events `+where, args...).Scan(&n)
	return n, err
}
