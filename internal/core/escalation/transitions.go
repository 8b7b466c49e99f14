package escalation

import "time"

const (
	StatusPending  = "pending"
	StatusResolved = "resolved"
	StatusExpired  = "expired"
)

// Expiry reasons recorded on expired escalations.
const (
	ReasonTimeout   = "no supervisor response within the timeout window"
	ReasonDismissed = "dismissed by supervisor"
)

// DefaultTimeoutWindow is how long a caller waits for a supervisor answer.
const DefaultTimeoutWindow = 2 * time.Hour

// InitialStatus returns the initial status for a new escalation.
func InitialStatus() string {
	return StatusPending
}

// TimeoutAt computes the fixed deadline for an escalation created at createdAt.
// The value is stored once at creation and never recomputed.
func TimeoutAt(createdAt time.Time, window time.Duration) time.Time {
	return createdAt.Add(window)
}

// IsTerminal reports whether status is a final state.
func IsTerminal(status string) bool {
	return status == StatusResolved || status == StatusExpired
}

// IsValidStatus reports whether status is one of the known states.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusResolved, StatusExpired:
		return true
	}
	return false
}

// Urgency buckets a pending escalation for the supervisor queue view.
type Urgency string

const (
	UrgencyOverdue Urgency = "overdue"
	UrgencyUrgent  Urgency = "urgent"
	UrgencySoon    Urgency = "soon"
	UrgencyNormal  Urgency = "normal"
)

// ClassifyUrgency returns the urgency bucket and the time left before timeoutAt.
// Remaining is negative once the escalation is overdue.
func ClassifyUrgency(timeoutAt, now time.Time) (Urgency, time.Duration) {
	remaining := timeoutAt.Sub(now)
	switch {
	case remaining < 0:
		return UrgencyOverdue, remaining
	case remaining < 30*time.Minute:
		return UrgencyUrgent, remaining
	case remaining < time.Hour:
		return UrgencySoon, remaining
	default:
		return UrgencyNormal, remaining
	}
}
