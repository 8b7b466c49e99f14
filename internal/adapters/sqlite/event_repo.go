package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/example/frontdesk/internal/ports/secondary"
)

// EventRepository implements secondary.EventRepository with SQLite.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new SQLite audit trail repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an event. ID and CreatedAt are filled in when empty.
func (r *EventRepository) Create(ctx context.Context, event *secondary.EventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO escalation_events (id, request_id, action, actor, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.RequestID,
		event.Action,
		nullString(event.Actor),
		nullString(event.Detail),
		formatTime(event.CreatedAt),
	)
	if err != nil {
		return storeErr("create escalation event", err)
	}
	return nil
}

// ListByRequest returns events for an escalation in order.
func (r *EventRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.EventRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, request_id, action, actor, detail, created_at FROM escalation_events WHERE request_id = ? ORDER BY created_at ASC, rowid ASC`,
		requestID,
	)
	if err != nil {
		return nil, storeErr("list escalation events", err)
	}
	defer rows.Close()

	var events []*secondary.EventRecord
	for rows.Next() {
		var (
			actor, detail sql.NullString
			createdAt     string
		)
		event := &secondary.EventRecord{}
		if err := rows.Scan(&event.ID, &event.RequestID, &event.Action, &actor, &detail, &createdAt); err != nil {
			return nil, storeErr("scan escalation event", err)
		}
		event.Actor = actor.String
		event.Detail = detail.String
		event.CreatedAt, _ = parseTime(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list escalation events", err)
	}
	return events, nil
}
