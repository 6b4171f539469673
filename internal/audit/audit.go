// Package audit records staff and admin mutations in the audit_events table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wolfman30/lumeskin-platform/internal/models"
)

// Action names one kind of audited mutation.
type Action string

const (
	ActionAppointmentPaid    Action = "appointment.paid"
	ActionAppointmentRemoved Action = "appointment.removed"
	ActionProductUpdated     Action = "product.updated"
	ActionRemindersSent      Action = "reminders.broadcast"
	ActionScheduleChanged    Action = "doctor.schedule_changed"
)

// Event is an immutable audit record.
type Event struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	ActorID   string          `json:"actor_id"`
	ActorRole models.Role     `json:"actor_role"`
	TargetID  string          `json:"target_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recorder is satisfied by *Service and by Nop.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards events when no audit database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// NewEvent builds an event for actor acting on target, marshalling details.
func NewEvent(action Action, actor models.User, targetID string, details any) Event {
	e := Event{Action: action, ActorID: actor.ID, ActorRole: actor.Role, TargetID: targetID}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			e.Details = raw
		}
	}
	return e
}

type Service struct {
	db *sql.DB
}

var _ Recorder = (*Service)(nil)

func NewService(db *sql.DB) *Service {
	if db == nil {
		panic("audit: sql db required")
	}
	return &Service{db: db}
}

// Record inserts one event, filling in the id and timestamp when absent.
func (s *Service) Record(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO audit_events (id, action, actor_id, actor_role, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.ActorID,
		string(event.ActorRole),
		nullString(event.TargetID),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Filter narrows Query; zero fields are ignored.
type Filter struct {
	Actions []Action
	ActorID string
	Since   time.Time
	Limit   int
}

// Query returns matching events, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Event, error) {
	query := `
		SELECT id, action, actor_id, actor_role, target_id, details, created_at
		FROM audit_events
		WHERE 1 = 1
	`
	var args []interface{}
	argIdx := 1

	if len(filter.Actions) > 0 {
		actions := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = string(a)
		}
		query += fmt.Sprintf(" AND action = ANY($%d)", argIdx)
		args = append(args, pq.Array(actions))
		argIdx++
	}
	if filter.ActorID != "" {
		query += fmt.Sprintf(" AND actor_id = $%d", argIdx)
		args = append(args, filter.ActorID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		var action, role string
		var target sql.NullString
		var details []byte
		if err := rows.Scan(&e.ID, &action, &e.ActorID, &role, &target, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Action = Action(action)
		e.ActorRole = models.Role(role)
		e.TargetID = target.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
