package primary

import (
	"context"
	"time"
)

// NotificationService defines the primary port for the follow-up queue.
type NotificationService interface {
	// Enqueue adds a follow-up for a resolved escalation. At most one entry
	// exists per request; a duplicate fails with ErrAlreadyQueued.
	Enqueue(ctx context.Context, req EnqueueRequest) error

	// DequeueNext returns the oldest pending follow-up whose retry gate has
	// opened, or nil when none is due. An empty callerID matches every caller.
	// Request IDs in skip are passed over.
	DequeueNext(ctx context.Context, callerID string, skip ...string) (*NotificationEntry, error)

	// MarkDelivered records a successful delivery. No-op when already delivered.
	MarkDelivered(ctx context.Context, requestID string) error

	// RecordAttemptFailure counts a failed delivery and either schedules the
	// next try or dead-letters the entry.
	RecordAttemptFailure(ctx context.Context, requestID string, cause error) (*FailureOutcome, error)

	// DeadLetter moves a pending follow-up straight to dead_letter with cause
	// as its last error, whatever its attempt count.
	DeadLetter(ctx context.Context, requestID string, cause error) error

	// Postpone holds a pending follow-up until the given time without
	// counting an attempt.
	Postpone(ctx context.Context, requestID string, until time.Time) error

	// ListNotifications lists follow-ups with optional filters.
	ListNotifications(ctx context.Context, filters NotificationFilters) ([]*NotificationEntry, error)

	// Requeue returns a dead-lettered follow-up to the pending queue.
	Requeue(ctx context.Context, requestID string) error

	// Prune removes delivered follow-ups older than the given age.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)

	// GetAttempts returns the delivery attempt log for a request.
	GetAttempts(ctx context.Context, requestID string) ([]*DeliveryAttempt, error)

	// CountByStatus returns follow-up counts keyed by status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// EnqueueRequest contains parameters for queuing a follow-up.
type EnqueueRequest struct {
	RequestID string
	CallerID  string
	Answer    string
}

// NotificationEntry represents a queued follow-up at the port boundary.
type NotificationEntry struct {
	RequestID      string
	CallerID       string
	Answer         string
	Status         string // 'pending', 'delivered', 'dead_letter'
	AttemptCount   int
	LastError      string // May be empty
	CreatedAt      time.Time
	NextAttemptAt  time.Time
	DeliveredAt    *time.Time
	DeadLetteredAt *time.Time
}

// Delivered reports whether the follow-up reached the caller.
func (n *NotificationEntry) Delivered() bool {
	return n.Status == NotificationStatusDelivered
}

// AvailableAt is when the entry became eligible for its current attempt.
func (n *NotificationEntry) AvailableAt() time.Time {
	if n.NextAttemptAt.After(n.CreatedAt) {
		return n.NextAttemptAt
	}
	return n.CreatedAt
}

// FailureOutcome describes what happened after a failed delivery.
type FailureOutcome struct {
	Attempts      int
	DeadLettered  bool
	NextAttemptAt time.Time
}

// NotificationFilters contains filter options for listing follow-ups.
type NotificationFilters struct {
	Status   string
	CallerID string
}

// DeliveryAttempt is one row of the delivery attempt log.
type DeliveryAttempt struct {
	ID          string
	RequestID   string
	Attempt     int
	Outcome     string // 'delivered' or 'failed'
	Error       string
	AttemptedAt time.Time
}

// Notification status constants
const (
	NotificationStatusPending    = "pending"
	NotificationStatusDelivered  = "delivered"
	NotificationStatusDeadLetter = "dead_letter"
)
