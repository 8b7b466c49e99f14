// Package escalation contains the pure business logic for escalation operations.
// Guards are pure functions that evaluate preconditions without side effects.
package escalation

import (
	"fmt"
	"time"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ResolveContext provides context for resolve guards.
type ResolveContext struct {
	EscalationID string
	Status       string
	Answer       string
}

// ExpireContext provides context for expiry guards.
type ExpireContext struct {
	EscalationID string
	Status       string
	TimeoutAt    time.Time
	Now          time.Time
}

// DismissContext provides context for supervisor dismissal guards.
type DismissContext struct {
	EscalationID string
	Status       string
}

// CanResolve evaluates whether a supervisor answer can be recorded.
// Rules:
// - Status must be "pending" (terminal states are terminal)
// - Answer must be non-empty
func CanResolve(ctx ResolveContext) GuardResult {
	if ctx.Status != StatusPending {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is already %s", ctx.EscalationID, ctx.Status),
		}
	}

	if ctx.Answer == "" {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("answer is required to resolve escalation %s", ctx.EscalationID),
		}
	}

	return GuardResult{Allowed: true}
}

// CanExpire evaluates whether the timeout monitor may expire an escalation.
// Rules:
// - Status must be "pending"
// - The timeout window must have elapsed (timeout_at <= now)
func CanExpire(ctx ExpireContext) GuardResult {
	if ctx.Status != StatusPending {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is already %s", ctx.EscalationID, ctx.Status),
		}
	}

	if !IsOverdue(ctx.TimeoutAt, ctx.Now) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("escalation %s is not due until %s", ctx.EscalationID, ctx.TimeoutAt.UTC().Format(time.RFC3339)),
		}
	}

	return GuardResult{Allowed: true}
}

// CanDismiss evaluates whether a supervisor may mark an escalation unresolved.
func CanDismiss(ctx DismissContext) GuardResult {
	if ctx.Status != StatusPending {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only dismiss pending escalations (current status: %s)", ctx.Status),
		}
	}
	return GuardResult{Allowed: true}
}

// IsOverdue reports whether the timeout instant has been reached.
func IsOverdue(timeoutAt, now time.Time) bool {
	return !now.Before(timeoutAt)
}
