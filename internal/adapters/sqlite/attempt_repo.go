package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/example/frontdesk/internal/ports/secondary"
)

// AttemptRepository implements secondary.AttemptRepository with SQLite.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new SQLite delivery attempt repository.
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create appends an attempt. ID is filled in when empty.
func (r *AttemptRepository) Create(ctx context.Context, attempt *secondary.AttemptRecord) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO delivery_attempts (id, request_id, attempt, outcome, error, attempted_at) VALUES (?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.RequestID,
		attempt.Attempt,
		attempt.Outcome,
		nullString(attempt.Error),
		formatTime(attempt.AttemptedAt),
	)
	if err != nil {
		return storeErr("record delivery attempt", err)
	}
	return nil
}

// ListByRequest returns attempts for an escalation in order.
func (r *AttemptRepository) ListByRequest(ctx context.Context, requestID string) ([]*secondary.AttemptRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT id, request_id, attempt, outcome, error, attempted_at FROM delivery_attempts WHERE request_id = ? ORDER BY attempted_at ASC, attempt ASC`,
		requestID,
	)
	if err != nil {
		return nil, storeErr("list delivery attempts", err)
	}
	defer rows.Close()

	var attempts []*secondary.AttemptRecord
	for rows.Next() {
		var (
			errText     sql.NullString
			attemptedAt string
		)
		a := &secondary.AttemptRecord{}
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Attempt, &a.Outcome, &errText, &attemptedAt); err != nil {
			return nil, storeErr("scan delivery attempt", err)
		}
		a.Error = errText.String
		a.AttemptedAt, _ = parseTime(attemptedAt)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list delivery attempts", err)
	}
	return attempts, nil
}
