// Package audit records administrative actions. Writes are fire-and-forget:
// a failing audit insert is logged and never fails the action it describes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

const (
	ActionImportQuestions = "IMPORT_QUESTIONS"
	ActionMoveQuestion    = "MOVE_QUESTION"
	ActionBulkMove        = "BULK_MOVE"
	ActionDeleteQuestion  = "DELETE_QUESTION"
	ActionCreateQuestion  = "CREATE_QUESTION"
	ActionCreateSubject   = "CREATE_SUBJECT"
	ActionDeleteSubject   = "DELETE_SUBJECT"
	ActionExportQuestions = "EXPORT_QUESTIONS"
)

type Entry struct {
	ID         int64          `json:"id"`
	UserID     *int64         `json:"user_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Details    string         `json:"details"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Sink is what services depend on.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Record(context.Context, Entry) {}

type Log struct {
	db  *sql.DB
	now func() time.Time
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db, now: time.Now}
}

func (l *Log) Record(ctx context.Context, e Entry) {
	if err := l.write(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("audit write failed", "action", e.Action, "entity_id", e.EntityID, "error", err)
	}
}

func (l *Log) write(ctx context.Context, e Entry) error {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now().UTC()
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (user_id, action, entity_type, entity_id, details, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, nullableID(e.UserID), e.Action, e.EntityType, e.EntityID, e.Details, string(b), createdAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, action, entity_type, entity_id, details, payload, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var userID sql.NullInt64
		var payload string
		if err := rows.Scan(&e.ID, &userID, &e.Action, &e.EntityType, &e.EntityID, &e.Details, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.Int64
		}
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				slog.Warn("audit payload unreadable", "id", e.ID, "error", err)
				e.Payload = nil
			}
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return items, nil
}

// Actor converts a caller id into the nullable user reference stored with an
// entry; zero means an anonymous or system caller.
func Actor(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func EntityID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
