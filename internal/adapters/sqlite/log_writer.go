package sqlite

import (
	"context"
	"time"

	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// LogWriterAdapter implements secondary.LogWriter using EventRepository.
type LogWriterAdapter struct {
	eventRepo secondary.EventRepository
	clock     func() time.Time
}

// NewLogWriterAdapter creates a new LogWriterAdapter.
func NewLogWriterAdapter(eventRepo secondary.EventRepository) *LogWriterAdapter {
	return &LogWriterAdapter{eventRepo: eventRepo, clock: time.Now}
}

// WithClock overrides the time source used to stamp events.
func (w *LogWriterAdapter) WithClock(clock func() time.Time) *LogWriterAdapter {
	w.clock = clock
	return w
}

// LogTransition records an action taken on an escalation. The actor comes
// from context; writes join any transaction carried by ctx.
func (w *LogWriterAdapter) LogTransition(ctx context.Context, requestID, action, detail string) error {
	return w.eventRepo.Create(ctx, &secondary.EventRecord{
		RequestID: requestID,
		Action:    action,
		Actor:     ctxutil.ActorFromContext(ctx),
		Detail:    detail,
		CreatedAt: w.clock(),
	})
}
