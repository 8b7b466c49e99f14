// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"time"
)

// Transactor runs a unit of work atomically. Repository calls made with the
// context passed to fn join the transaction; a nested WithinTx joins the
// outer one.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EscalationRepository defines the secondary port for escalation persistence.
type EscalationRepository interface {
	// Create persists a new escalation.
	Create(ctx context.Context, escalation *EscalationRecord) error

	// GetByID retrieves an escalation by its ID.
	GetByID(ctx context.Context, id string) (*EscalationRecord, error)

	// List retrieves escalations matching the given filters.
	// Pending escalations are returned oldest first.
	List(ctx context.Context, filters EscalationFilters) ([]*EscalationRecord, error)

	// ListDue returns pending escalations whose deadline is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*EscalationRecord, error)

	// GetNextID returns the next available escalation ID.
	GetNextID(ctx context.Context) (string, error)

	// Resolve moves a pending escalation to resolved if its version still
	// matches. Returns false when another writer got there first.
	Resolve(ctx context.Context, id, answer, resolvedBy string, resolvedAt time.Time, expectedVersion int) (bool, error)

	// Expire moves a pending escalation to expired if its version still matches.
	Expire(ctx context.Context, id, reason string, expiredAt time.Time, expectedVersion int) (bool, error)

	// MarkDelivered sets delivered_at once. Returns false when already set
	// or the escalation does not exist.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (bool, error)

	// CountByStatus returns escalation counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// EscalationRecord represents an escalation as stored in persistence.
type EscalationRecord struct {
	ID           string
	CallerID     string
	Question     string
	Status       string
	Answer       string // Empty string means null
	ResolvedBy   string // Empty string means null
	ExpiryReason string // Empty string means null
	CreatedAt    time.Time
	TimeoutAt    time.Time
	ResolvedAt   *time.Time
	ExpiredAt    *time.Time
	DeliveredAt  *time.Time
	Version      int
}

// EscalationFilters contains filter options for querying escalations.
type EscalationFilters struct {
	Status   string
	CallerID string
	Limit    int
}

// NotificationRepository defines the secondary port for the follow-up queue.
type NotificationRepository interface {
	// Create persists a new follow-up. Fails with ErrAlreadyQueued on a duplicate.
	Create(ctx context.Context, entry *NotificationRecord) error

	// GetByRequestID retrieves the follow-up for an escalation.
	GetByRequestID(ctx context.Context, requestID string) (*NotificationRecord, error)

	// NextDue returns the oldest pending follow-up with next_attempt_at <= now
	// whose request ID is not in skip, or nil when none is due. An empty
	// callerID matches every caller.
	NextDue(ctx context.Context, callerID string, now time.Time, skip []string) (*NotificationRecord, error)

	// List retrieves follow-ups matching the given filters, oldest first.
	List(ctx context.Context, filters NotificationFilters) ([]*NotificationRecord, error)

	// MarkDelivered moves a pending follow-up to delivered. Returns false when
	// it was not pending.
	MarkDelivered(ctx context.Context, requestID string, deliveredAt time.Time) (bool, error)

	// RecordFailure stores a failed attempt and the next retry time.
	RecordFailure(ctx context.Context, requestID string, attempts int, lastError string, nextAttemptAt time.Time) error

	// DeadLetter moves a pending follow-up to dead_letter.
	DeadLetter(ctx context.Context, requestID string, attempts int, lastError string, at time.Time) error

	// Postpone moves a pending follow-up's next_attempt_at without touching
	// its attempt count. Returns false when it was not pending.
	Postpone(ctx context.Context, requestID string, nextAttemptAt time.Time) (bool, error)

	// Requeue moves a dead-lettered follow-up back to pending with attempts reset.
	Requeue(ctx context.Context, requestID string, at time.Time) (bool, error)

	// PruneDelivered deletes delivered follow-ups delivered before the cutoff.
	PruneDelivered(ctx context.Context, before time.Time) (int, error)

	// CountByStatus returns follow-up counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// NotificationRecord represents a follow-up as stored in persistence.
type NotificationRecord struct {
	RequestID      string
	CallerID       string
	Answer         string
	Status         string
	AttemptCount   int
	LastError      string // Empty string means null
	CreatedAt      time.Time
	NextAttemptAt  time.Time
	DeliveredAt    *time.Time
	DeadLetteredAt *time.Time
}

// NotificationFilters contains filter options for querying follow-ups.
type NotificationFilters struct {
	Status   string
	CallerID string
}

// KnowledgeRepository defines the secondary port for learned answers.
type KnowledgeRepository interface {
	// Get retrieves an entry by normalized question. Fails with ErrNotFound.
	Get(ctx context.Context, normalizedQuestion string) (*KnowledgeRecord, error)

	// Upsert inserts or replaces the entry for its normalized question.
	Upsert(ctx context.Context, entry *KnowledgeRecord) error

	// Delete removes an entry. Returns false when nothing was deleted.
	Delete(ctx context.Context, normalizedQuestion string) (bool, error)

	// List returns entries whose normalized question contains search.
	List(ctx context.Context, search string) ([]*KnowledgeRecord, error)
}

// KnowledgeRecord represents a learned answer as stored in persistence.
type KnowledgeRecord struct {
	NormalizedQuestion string
	Question           string
	Answer             string
	LearnedAt          time.Time
	SourceRequestID    string // Empty string means null
}

// EventRepository defines the secondary port for the escalation audit trail.
type EventRepository interface {
	// Create appends an event.
	Create(ctx context.Context, event *EventRecord) error

	// ListByRequest returns events for an escalation in order.
	ListByRequest(ctx context.Context, requestID string) ([]*EventRecord, error)
}

// EventRecord represents an audit trail entry as stored in persistence.
type EventRecord struct {
	ID        string
	RequestID string
	Action    string
	Actor     string // Empty string means null
	Detail    string // Empty string means null
	CreatedAt time.Time
}

// AttemptRepository defines the secondary port for the delivery attempt log.
type AttemptRepository interface {
	// Create appends an attempt.
	Create(ctx context.Context, attempt *AttemptRecord) error

	// ListByRequest returns attempts for an escalation in order.
	ListByRequest(ctx context.Context, requestID string) ([]*AttemptRecord, error)
}

// AttemptRecord represents a delivery attempt as stored in persistence.
type AttemptRecord struct {
	ID          string
	RequestID   string
	Attempt     int
	Outcome     string // 'delivered' or 'failed'
	Error       string // Empty string means null
	AttemptedAt time.Time
}

// Attempt outcomes.
const (
	AttemptOutcomeDelivered = "delivered"
	AttemptOutcomeFailed    = "failed"
)
