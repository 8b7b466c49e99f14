package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/frontdesk/internal/db"
	"github.com/example/frontdesk/internal/ports/primary"
)

// QuarantineCounter counts rows skipped because they failed validation.
type QuarantineCounter interface {
	Quarantined(collection string)
}

// Quarantine reports persisted rows that fail validation. Listing skips
// them; a direct lookup fails with ErrStoreCorruption.
type Quarantine struct {
	logger  *zap.Logger
	counter QuarantineCounter
}

// NewQuarantine creates a Quarantine. Either argument may be nil.
func NewQuarantine(logger *zap.Logger, counter QuarantineCounter) *Quarantine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quarantine{logger: logger, counter: counter}
}

// reject records a bad row and returns the corruption error for it.
func (q *Quarantine) reject(collection, id string, cause error) error {
	err := fmt.Errorf("%w: %s %s: %v", primary.ErrStoreCorruption, collection, id, cause)
	if q == nil {
		return err
	}
	q.logger.Warn("quarantined invalid record",
		zap.String("collection", collection),
		zap.String("id", id),
		zap.Error(cause),
	)
	if q.counter != nil {
		q.counter.Quarantined(collection)
	}
	return err
}

// invalidRow is returned by scan helpers for a row that was read but fails
// validation.
type invalidRow struct {
	id    string
	cause error
}

func (e *invalidRow) Error() string {
	return fmt.Sprintf("invalid row %s: %v", e.id, e.cause)
}

// timeParser parses several columns and keeps the first failure.
type timeParser struct {
	err error
}

func (p *timeParser) required(s, column string) time.Time {
	t, err := parseTime(s)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", column, err)
	}
	return t
}

func (p *timeParser) optional(ns sql.NullString, column string) *time.Time {
	t, err := parseNullTime(ns)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s: %w", column, err)
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(db.TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(db.TimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
		}
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
