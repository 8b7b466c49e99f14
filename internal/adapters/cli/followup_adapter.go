package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/example/frontdesk/internal/ports/primary"
)

// FollowUpAdapter is a thin adapter that translates CLI operations to NotificationService calls.
type FollowUpAdapter struct {
	service primary.NotificationService
	out     io.Writer
}

// NewFollowUpAdapter creates a new FollowUpAdapter with the given service.
func NewFollowUpAdapter(service primary.NotificationService, out io.Writer) *FollowUpAdapter {
	return &FollowUpAdapter{
		service: service,
		out:     out,
	}
}

// List lists follow-ups with optional status and caller filters.
func (a *FollowUpAdapter) List(ctx context.Context, status, callerID string) error {
	entries, err := a.service.ListNotifications(ctx, primary.NotificationFilters{
		Status:   status,
		CallerID: callerID,
	})
	if err != nil {
		return fmt.Errorf("failed to list follow-ups: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No follow-ups found")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-10s %-12s %-12s %-8s %s\n", "REQUEST", "STATUS", "CALLER", "TRIES", "LAST ERROR")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, e := range entries {
		status := e.Status
		if status == primary.NotificationStatusDeadLetter {
			status = urgentColor.Sprint(status)
		}
		fmt.Fprintf(a.out, "%-10s %-12s %-12s %-8d %s\n", e.RequestID, status, e.CallerID, e.AttemptCount, e.LastError)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Attempts prints the delivery attempt log for one follow-up.
func (a *FollowUpAdapter) Attempts(ctx context.Context, requestID string) error {
	attempts, err := a.service.GetAttempts(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to get attempts: %w", err)
	}

	if len(attempts) == 0 {
		fmt.Fprintf(a.out, "No delivery attempts for %s\n", requestID)
		return nil
	}

	for _, at := range attempts {
		fmt.Fprintf(a.out, "  #%d %s %-9s %s\n", at.Attempt, at.AttemptedAt.Local().Format(displayTime), at.Outcome, at.Error)
	}
	return nil
}

// Requeue returns a dead-lettered follow-up to the queue.
func (a *FollowUpAdapter) Requeue(ctx context.Context, requestID string) error {
	if err := a.service.Requeue(ctx, requestID); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Follow-up %s requeued\n", requestID)
	return nil
}

// Prune removes delivered follow-ups older than the given age.
func (a *FollowUpAdapter) Prune(ctx context.Context, olderThan time.Duration) error {
	n, err := a.service.Prune(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to prune follow-ups: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Pruned %d delivered follow-up(s)\n", n)
	return nil
}
