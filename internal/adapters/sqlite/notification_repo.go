package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

const notificationColumns = `request_id, caller_id, answer, status, attempt_count, last_error, created_at, next_attempt_at, delivered_at, dead_lettered_at`

// NotificationRepository implements secondary.NotificationRepository with SQLite.
type NotificationRepository struct {
	db         *sql.DB
	quarantine *Quarantine
}

// NewNotificationRepository creates a new SQLite follow-up queue repository.
func NewNotificationRepository(db *sql.DB, quarantine *Quarantine) *NotificationRepository {
	return &NotificationRepository{db: db, quarantine: quarantine}
}

// Create persists a new follow-up.
func (r *NotificationRepository) Create(ctx context.Context, entry *secondary.NotificationRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO notifications (request_id, caller_id, answer, status, attempt_count, created_at, next_attempt_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		entry.CallerID,
		entry.Answer,
		entry.Status,
		entry.AttemptCount,
		formatTime(entry.CreatedAt),
		formatTime(entry.NextAttemptAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("follow-up for %s: %w", entry.RequestID, primary.ErrAlreadyQueued)
	}
	if err != nil {
		return storeErr("create follow-up", err)
	}
	return nil
}

// GetByRequestID retrieves the follow-up for an escalation.
func (r *NotificationRepository) GetByRequestID(ctx context.Context, requestID string) (*secondary.NotificationRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE request_id = ?`, requestID)

	record, err := scanNotification(row)
	var invalid *invalidRow
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("follow-up %s: %w", requestID, primary.ErrNotFound)
	case errors.As(err, &invalid):
		return nil, r.quarantine.reject("notifications", requestID, invalid.cause)
	case err != nil:
		return nil, storeErr("get follow-up", err)
	}
	return record, nil
}

// NextDue returns the oldest pending follow-up whose retry gate has opened,
// ignoring the request IDs in skip. Rows are read in order until the first
// valid one, so one bad entry cannot stall the queue.
func (r *NotificationRepository) NextDue(ctx context.Context, callerID string, now time.Time, skip []string) (*secondary.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = 'pending' AND next_attempt_at <= ?`
	args := []any{formatTime(now)}
	if callerID != "" {
		query += " AND caller_id = ?"
		args = append(args, callerID)
	}
	if len(skip) > 0 {
		query += " AND request_id NOT IN (?" + strings.Repeat(", ?", len(skip)-1) + ")"
		for _, id := range skip {
			args = append(args, id)
		}
	}
	query += " ORDER BY created_at ASC, request_id ASC"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("find due follow-up", err)
	}
	defer rows.Close()

	for rows.Next() {
		record, err := scanNotification(rows)
		var invalid *invalidRow
		if errors.As(err, &invalid) {
			r.quarantine.reject("notifications", invalid.id, invalid.cause)
			continue
		}
		if err != nil {
			return nil, storeErr("scan follow-up", err)
		}
		return record, nil
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("find due follow-up", err)
	}
	return nil, nil
}

// List retrieves follow-ups matching the given filters, oldest first.
func (r *NotificationRepository) List(ctx context.Context, filters secondary.NotificationFilters) ([]*secondary.NotificationRecord, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.CallerID != "" {
		query += " AND caller_id = ?"
		args = append(args, filters.CallerID)
	}
	query += " ORDER BY created_at ASC, request_id ASC"

	return r.query(ctx, "list follow-ups", query, args...)
}

func (r *NotificationRepository) query(ctx context.Context, op, query string, args ...any) ([]*secondary.NotificationRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var entries []*secondary.NotificationRecord
	for rows.Next() {
		record, err := scanNotification(rows)
		var invalid *invalidRow
		if errors.As(err, &invalid) {
			r.quarantine.reject("notifications", invalid.id, invalid.cause)
			continue
		}
		if err != nil {
			return nil, storeErr("scan follow-up", err)
		}
		entries = append(entries, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return entries, nil
}

// MarkDelivered moves a pending follow-up to delivered.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, requestID string, deliveredAt time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET status = 'delivered', delivered_at = ?, last_error = NULL
		WHERE request_id = ? AND status = 'pending'`,
		formatTime(deliveredAt), requestID,
	)
	if err != nil {
		return false, storeErr("mark follow-up delivered", err)
	}
	return affectedOne(result)
}

// RecordFailure stores a failed attempt and the next retry time.
func (r *NotificationRepository) RecordFailure(ctx context.Context, requestID string, attempts int, lastError string, nextAttemptAt time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET attempt_count = ?, last_error = ?, next_attempt_at = ?
		WHERE request_id = ? AND status = 'pending'`,
		attempts, nullString(lastError), formatTime(nextAttemptAt), requestID,
	)
	if err != nil {
		return storeErr("record follow-up failure", err)
	}
	return r.requireOne(result, requestID)
}

// DeadLetter moves a pending follow-up to dead_letter.
func (r *NotificationRepository) DeadLetter(ctx context.Context, requestID string, attempts int, lastError string, at time.Time) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET status = 'dead_letter', attempt_count = ?, last_error = ?, dead_lettered_at = ?
		WHERE request_id = ? AND status = 'pending'`,
		attempts, nullString(lastError), formatTime(at), requestID,
	)
	if err != nil {
		return storeErr("dead-letter follow-up", err)
	}
	return r.requireOne(result, requestID)
}

// Postpone pushes a pending follow-up's retry gate to nextAttemptAt without
// counting an attempt. Returns false when it was not pending.
func (r *NotificationRepository) Postpone(ctx context.Context, requestID string, nextAttemptAt time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET next_attempt_at = ? WHERE request_id = ? AND status = 'pending'`,
		formatTime(nextAttemptAt), requestID,
	)
	if err != nil {
		return false, storeErr("postpone follow-up", err)
	}
	return affectedOne(result)
}

// Requeue moves a dead-lettered follow-up back to pending with attempts reset.
func (r *NotificationRepository) Requeue(ctx context.Context, requestID string, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET status = 'pending', attempt_count = 0, next_attempt_at = ?, dead_lettered_at = NULL
		WHERE request_id = ? AND status = 'dead_letter'`,
		formatTime(at), requestID,
	)
	if err != nil {
		return false, storeErr("requeue follow-up", err)
	}
	return affectedOne(result)
}

// PruneDelivered deletes delivered follow-ups delivered before the cutoff.
func (r *NotificationRepository) PruneDelivered(ctx context.Context, before time.Time) (int, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM notifications WHERE status = 'delivered' AND delivered_at < ?`,
		formatTime(before),
	)
	if err != nil {
		return 0, storeErr("prune follow-ups", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storeErr("prune follow-ups", err)
	}
	return int(n), nil
}

// CountByStatus returns follow-up counts keyed by status.
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, conn(ctx, r.db), "notifications")
}

func (r *NotificationRepository) requireOne(result sql.Result, requestID string) error {
	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("pending follow-up %s: %w", requestID, primary.ErrNotFound)
	}
	return nil
}

func scanNotification(s scanner) (*secondary.NotificationRecord, error) {
	var (
		lastError      sql.NullString
		createdAt      string
		nextAttemptAt  string
		deliveredAt    sql.NullString
		deadLetteredAt sql.NullString
	)

	record := &secondary.NotificationRecord{}
	err := s.Scan(&record.RequestID, &record.CallerID, &record.Answer, &record.Status,
		&record.AttemptCount, &lastError, &createdAt, &nextAttemptAt, &deliveredAt, &deadLetteredAt)
	if err != nil {
		return nil, err
	}
	record.LastError = lastError.String

	var p timeParser
	record.CreatedAt = p.required(createdAt, "created_at")
	record.NextAttemptAt = p.required(nextAttemptAt, "next_attempt_at")
	record.DeliveredAt = p.optional(deliveredAt, "delivered_at")
	record.DeadLetteredAt = p.optional(deadLetteredAt, "dead_lettered_at")

	invalid := p.err
	if invalid == nil {
		invalid = validateNotification(record)
	}
	if invalid != nil {
		return record, &invalidRow{id: record.RequestID, cause: invalid}
	}
	return record, nil
}

func validateNotification(r *secondary.NotificationRecord) error {
	switch {
	case r.RequestID == "":
		return fmt.Errorf("empty request id")
	case r.Answer == "":
		return fmt.Errorf("empty answer")
	case !corenotification.IsValidStatus(r.Status):
		return fmt.Errorf("unknown status %q", r.Status)
	case r.AttemptCount < 0:
		return fmt.Errorf("negative attempt count")
	}
	return nil
}
