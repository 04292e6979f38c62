package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the fake service.
const (
	APICall = "api.call"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append records an entity change inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType string, projectID int64, entityKind string, entityID, actorID int64, payload EventPayload) error {
	return w.insert(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload)
}

// Call records one served API request: endpoint name, method and status.
func (w Writer) Call(ctx context.Context, actorID int64, method, endpoint string, status int) error {
	return w.insert(ctx, w.DB, APICall, 0, "api", 0, actorID, EventPayload{
		"method":   method,
		"endpoint": endpoint,
		"status":   status,
	})
}

func (w Writer) insert(ctx context.Context, db execer, evtType string, projectID int64, entityKind string, entityID, actorID int64, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullableID(projectID), entityKind, nullableID(entityID), actorID, string(data))
	return err
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
