package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrChannelUnavailable means the voice channel refused a call without
// placing it, such as while a circuit breaker is open.
var ErrChannelUnavailable = errors.New("voice channel unavailable")

// VoiceChannel speaks text to a caller. Implementations must honor ctx
// cancellation and deadlines.
type VoiceChannel interface {
	Deliver(ctx context.Context, callerID, text string) error
}

// FallbackSource generates a candidate answer when the knowledge base has none.
type FallbackSource interface {
	Generate(ctx context.Context, question string) (string, error)
}

// SupervisorAlerter tells supervisors a new question is waiting.
type SupervisorAlerter interface {
	Alert(ctx context.Context, alert SupervisorAlert) error
}

// SupervisorAlert describes a newly created escalation.
type SupervisorAlert struct {
	EscalationID string
	CallerID     string
	Question     string
	TimeoutAt    time.Time
}
