package secondary

import "context"

// LogWriter defines the interface for writing audit trail entries.
// Implementations extract the actor from context.
type LogWriter interface {
	// LogTransition records an action taken on an escalation.
	LogTransition(ctx context.Context, requestID, action, detail string) error
}

// Audit trail actions.
const (
	ActionCreate     = "create"
	ActionResolve    = "resolve"
	ActionExpire     = "expire"
	ActionDismiss    = "dismiss"
	ActionDeliver    = "deliver"
	ActionDeadLetter = "dead_letter"
	ActionRequeue    = "requeue"
)
