package primary

import (
	"context"
	"time"
)

// EscalationService defines the primary port for the escalation lifecycle.
// It exclusively owns escalation state changes.
type EscalationService interface {
	// CreateEscalation records a question the agent could not answer.
	CreateEscalation(ctx context.Context, req CreateEscalationRequest) (*Escalation, error)

	// ResolveEscalation records a supervisor answer and queues the follow-up
	// in the same transaction. Fails with ErrAlreadyTerminal once the
	// escalation is resolved or past its deadline.
	ResolveEscalation(ctx context.Context, req ResolveEscalationRequest) error

	// DismissEscalation marks a pending escalation unresolved.
	DismissEscalation(ctx context.Context, escalationID, reason string) error

	// ExpireOverdue expires every pending escalation whose deadline is at or
	// before now and returns the IDs it transitioned.
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)

	// MarkDelivered records that the follow-up reached the caller. No-op when
	// already recorded.
	MarkDelivered(ctx context.Context, escalationID string) error

	// GetEscalation retrieves an escalation by ID.
	GetEscalation(ctx context.Context, escalationID string) (*Escalation, error)

	// ListEscalations lists escalations with optional filters.
	ListEscalations(ctx context.Context, filters EscalationFilters) ([]*Escalation, error)

	// GetHistory returns the audit trail for an escalation.
	GetHistory(ctx context.Context, escalationID string) ([]*EscalationEvent, error)

	// GetStats summarizes escalations and follow-ups.
	GetStats(ctx context.Context) (*EscalationStats, error)
}

// CreateEscalationRequest contains parameters for creating an escalation.
type CreateEscalationRequest struct {
	CallerID string
	Question string
}

// ResolveEscalationRequest contains parameters for resolving an escalation.
type ResolveEscalationRequest struct {
	EscalationID string
	Answer       string
}

// Escalation represents an escalation entity at the port boundary.
type Escalation struct {
	ID           string
	CallerID     string
	Question     string
	Status       string // 'pending', 'resolved', 'expired'
	Answer       string // May be empty
	ResolvedBy   string // May be empty
	ExpiryReason string // May be empty
	CreatedAt    time.Time
	TimeoutAt    time.Time
	ResolvedAt   *time.Time
	ExpiredAt    *time.Time
	DeliveredAt  *time.Time
}

// EscalationFilters contains filter options for listing escalations.
type EscalationFilters struct {
	Status   string
	CallerID string
	Limit    int
}

// EscalationEvent is one entry in an escalation's audit trail.
type EscalationEvent struct {
	ID        string
	RequestID string
	Action    string
	Actor     string
	Detail    string
	CreatedAt time.Time
}

// EscalationStats summarizes the state of the system for supervisors.
type EscalationStats struct {
	Pending          int
	Resolved         int
	Expired          int
	FollowUpsPending int
	Delivered        int
	DeadLetters      int
}

// Escalation status constants
const (
	EscalationStatusPending  = "pending"
	EscalationStatusResolved = "resolved"
	EscalationStatusExpired  = "expired"
)
