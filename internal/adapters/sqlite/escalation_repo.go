package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	coreescalation "github.com/example/frontdesk/internal/core/escalation"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

const escalationColumns = `id, caller_id, question, status, answer, resolved_by, expiry_reason, created_at, timeout_at, resolved_at, expired_at, delivered_at, version`

// EscalationRepository implements secondary.EscalationRepository with SQLite.
type EscalationRepository struct {
	db         *sql.DB
	quarantine *Quarantine
}

// NewEscalationRepository creates a new SQLite escalation repository.
func NewEscalationRepository(db *sql.DB, quarantine *Quarantine) *EscalationRepository {
	return &EscalationRepository{db: db, quarantine: quarantine}
}

// Create persists a new escalation.
func (r *EscalationRepository) Create(ctx context.Context, escalation *secondary.EscalationRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO escalations (id, caller_id, question, status, created_at, timeout_at, version) VALUES (?, ?, ?, ?, ?, ?, 1)`,
		escalation.ID,
		escalation.CallerID,
		escalation.Question,
		escalation.Status,
		formatTime(escalation.CreatedAt),
		formatTime(escalation.TimeoutAt),
	)
	if err != nil {
		return storeErr("create escalation", err)
	}
	escalation.Version = 1

	return nil
}

// GetByID retrieves an escalation by its ID.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*secondary.EscalationRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE id = ?`, id)

	record, err := scanEscalation(row)
	var invalid *invalidRow
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("escalation %s: %w", id, primary.ErrNotFound)
	case errors.As(err, &invalid):
		return nil, r.quarantine.reject("escalations", id, invalid.cause)
	case err != nil:
		return nil, storeErr("get escalation", err)
	}

	return record, nil
}

// List retrieves escalations matching the given filters.
func (r *EscalationRepository) List(ctx context.Context, filters secondary.EscalationFilters) ([]*secondary.EscalationRecord, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE 1=1`
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.CallerID != "" {
		query += " AND caller_id = ?"
		args = append(args, filters.CallerID)
	}

	if filters.Status == coreescalation.StatusPending {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	return r.query(ctx, "list escalations", query, args...)
}

// ListDue returns pending escalations whose deadline is at or before now.
func (r *EscalationRepository) ListDue(ctx context.Context, now time.Time) ([]*secondary.EscalationRecord, error) {
	return r.query(ctx, "list due escalations",
		`SELECT `+escalationColumns+` FROM escalations WHERE status = 'pending' AND timeout_at <= ? ORDER BY timeout_at ASC, id ASC`,
		formatTime(now),
	)
}

func (r *EscalationRepository) query(ctx context.Context, op, query string, args ...any) ([]*secondary.EscalationRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var escalations []*secondary.EscalationRecord
	for rows.Next() {
		record, err := scanEscalation(rows)
		var invalid *invalidRow
		if errors.As(err, &invalid) {
			r.quarantine.reject("escalations", invalid.id, invalid.cause)
			continue
		}
		if err != nil {
			return nil, storeErr("scan escalation", err)
		}
		escalations = append(escalations, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}

	return escalations, nil
}

// GetNextID returns the next available escalation ID.
func (r *EscalationRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 5) AS INTEGER)), 0) FROM escalations WHERE id LIKE 'REQ-%'",
	).Scan(&maxID)
	if err != nil {
		return "", storeErr("get next escalation ID", err)
	}

	return fmt.Sprintf("REQ-%03d", maxID+1), nil
}

// Resolve moves a pending escalation to resolved if its version still matches.
func (r *EscalationRepository) Resolve(ctx context.Context, id, answer, resolvedBy string, resolvedAt time.Time, expectedVersion int) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE escalations
		SET status = 'resolved', answer = ?, resolved_by = ?, resolved_at = ?, version = version + 1
		WHERE id = ? AND status = 'pending' AND version = ?`,
		answer, nullString(resolvedBy), formatTime(resolvedAt), id, expectedVersion,
	)
	if err != nil {
		return false, storeErr("resolve escalation", err)
	}
	return affectedOne(result)
}

// Expire moves a pending escalation to expired if its version still matches.
func (r *EscalationRepository) Expire(ctx context.Context, id, reason string, expiredAt time.Time, expectedVersion int) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE escalations
		SET status = 'expired', expiry_reason = ?, expired_at = ?, version = version + 1
		WHERE id = ? AND status = 'pending' AND version = ?`,
		nullString(reason), formatTime(expiredAt), id, expectedVersion,
	)
	if err != nil {
		return false, storeErr("expire escalation", err)
	}
	return affectedOne(result)
}

// MarkDelivered sets delivered_at once.
func (r *EscalationRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE escalations SET delivered_at = ?, version = version + 1
		WHERE id = ? AND status = 'resolved' AND delivered_at IS NULL`,
		formatTime(deliveredAt), id,
	)
	if err != nil {
		return false, storeErr("mark escalation delivered", err)
	}
	return affectedOne(result)
}

// CountByStatus returns escalation counts keyed by status.
func (r *EscalationRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	return countByStatus(ctx, conn(ctx, r.db), "escalations")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEscalation(s scanner) (*secondary.EscalationRecord, error) {
	var (
		answer       sql.NullString
		resolvedBy   sql.NullString
		expiryReason sql.NullString
		createdAt    string
		timeoutAt    string
		resolvedAt   sql.NullString
		expiredAt    sql.NullString
		deliveredAt  sql.NullString
	)

	record := &secondary.EscalationRecord{}
	err := s.Scan(&record.ID, &record.CallerID, &record.Question, &record.Status,
		&answer, &resolvedBy, &expiryReason,
		&createdAt, &timeoutAt, &resolvedAt, &expiredAt, &deliveredAt, &record.Version)
	if err != nil {
		return nil, err
	}

	record.Answer = answer.String
	record.ResolvedBy = resolvedBy.String
	record.ExpiryReason = expiryReason.String

	var p timeParser
	record.CreatedAt = p.required(createdAt, "created_at")
	record.TimeoutAt = p.required(timeoutAt, "timeout_at")
	record.ResolvedAt = p.optional(resolvedAt, "resolved_at")
	record.ExpiredAt = p.optional(expiredAt, "expired_at")
	record.DeliveredAt = p.optional(deliveredAt, "delivered_at")

	invalid := p.err
	if invalid == nil {
		invalid = validateEscalation(record)
	}
	if invalid != nil {
		return record, &invalidRow{id: record.ID, cause: invalid}
	}

	return record, nil
}

func validateEscalation(r *secondary.EscalationRecord) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("empty id")
	case r.Question == "":
		return fmt.Errorf("empty question")
	case !coreescalation.IsValidStatus(r.Status):
		return fmt.Errorf("unknown status %q", r.Status)
	case r.Status == coreescalation.StatusResolved && r.Answer == "":
		return fmt.Errorf("resolved without answer")
	}
	return nil
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, storeErr("read rows affected", err)
	}
	return n == 1, nil
}

func countByStatus(ctx context.Context, q querier, table string) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, "SELECT status, COUNT(*) FROM "+table+" GROUP BY status")
	if err != nil {
		return nil, storeErr("count "+table, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("scan "+table+" count", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
