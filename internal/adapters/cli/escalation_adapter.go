// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	coreescalation "github.com/example/frontdesk/internal/core/escalation"
	"github.com/example/frontdesk/internal/ports/primary"
)

const displayTime = "2006-01-02 15:04"

var (
	overdueColor = color.New(color.FgRed, color.Bold)
	urgentColor  = color.New(color.FgRed)
	soonColor    = color.New(color.FgYellow)
	rejectColor  = color.New(color.FgYellow)
)

// EscalationAdapter is a thin adapter that translates CLI operations to EscalationService calls.
type EscalationAdapter struct {
	service primary.EscalationService
	out     io.Writer
	clock   func() time.Time
}

// NewEscalationAdapter creates a new EscalationAdapter with the given service.
func NewEscalationAdapter(service primary.EscalationService, out io.Writer) *EscalationAdapter {
	return &EscalationAdapter{
		service: service,
		out:     out,
		clock:   time.Now,
	}
}

// Create records a question by hand, as if the agent had escalated it.
func (a *EscalationAdapter) Create(ctx context.Context, callerID, question string) error {
	esc, err := a.service.CreateEscalation(ctx, primary.CreateEscalationRequest{
		CallerID: callerID,
		Question: question,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Created escalation %s (times out %s)\n", esc.ID, esc.TimeoutAt.Local().Format(displayTime))
	return nil
}

// List lists escalations with optional status and caller filters.
func (a *EscalationAdapter) List(ctx context.Context, status, callerID string) error {
	escalations, err := a.service.ListEscalations(ctx, primary.EscalationFilters{
		Status:   status,
		CallerID: callerID,
	})
	if err != nil {
		return fmt.Errorf("failed to list escalations: %w", err)
	}

	if len(escalations) == 0 {
		fmt.Fprintln(a.out, "No escalations found")
		return nil
	}

	now := a.clock()
	fmt.Fprintf(a.out, "\n%-10s %-9s %-12s %-14s %s\n", "ID", "STATUS", "CALLER", "TIME LEFT", "QUESTION")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────")
	for _, e := range escalations {
		left := "-"
		if e.Status == primary.EscalationStatusPending {
			left = urgencyLabel(e.TimeoutAt, now)
		}
		fmt.Fprintf(a.out, "%-10s %-9s %-12s %-14s %s\n", e.ID, e.Status, e.CallerID, left, e.Question)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Show displays details for a single escalation.
func (a *EscalationAdapter) Show(ctx context.Context, escalationID string) (*primary.Escalation, error) {
	esc, err := a.service.GetEscalation(ctx, escalationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}

	fmt.Fprintf(a.out, "\nEscalation: %s\n", esc.ID)
	fmt.Fprintf(a.out, "Caller:   %s\n", esc.CallerID)
	fmt.Fprintf(a.out, "Question: %s\n", esc.Question)
	fmt.Fprintf(a.out, "Status:   %s\n", esc.Status)
	fmt.Fprintf(a.out, "Created:  %s\n", esc.CreatedAt.Local().Format(displayTime))
	fmt.Fprintf(a.out, "Timeout:  %s\n", esc.TimeoutAt.Local().Format(displayTime))
	if esc.Status == primary.EscalationStatusPending {
		fmt.Fprintf(a.out, "Left:     %s\n", urgencyLabel(esc.TimeoutAt, a.clock()))
	}
	if esc.Answer != "" {
		fmt.Fprintf(a.out, "Answer:   %s\n", esc.Answer)
	}
	if esc.ResolvedBy != "" {
		fmt.Fprintf(a.out, "Resolved by: %s\n", esc.ResolvedBy)
	}
	if esc.ExpiryReason != "" {
		fmt.Fprintf(a.out, "Expired:  %s\n", esc.ExpiryReason)
	}
	if esc.DeliveredAt != nil {
		fmt.Fprintf(a.out, "Delivered: %s\n", esc.DeliveredAt.Local().Format(displayTime))
	}
	fmt.Fprintln(a.out)

	return esc, nil
}

// Resolve answers a pending escalation. A rejection because the escalation
// is already terminal is printed before the error is returned.
func (a *EscalationAdapter) Resolve(ctx context.Context, escalationID, answer string) error {
	err := a.service.ResolveEscalation(ctx, primary.ResolveEscalationRequest{
		EscalationID: escalationID,
		Answer:       answer,
	})
	if err != nil {
		a.reportRejection(escalationID, err)
		return err
	}

	fmt.Fprintf(a.out, "✓ Escalation %s resolved; follow-up queued\n", escalationID)
	return nil
}

// Dismiss closes a pending escalation without an answer.
func (a *EscalationAdapter) Dismiss(ctx context.Context, escalationID, reason string) error {
	if err := a.service.DismissEscalation(ctx, escalationID, reason); err != nil {
		a.reportRejection(escalationID, err)
		return err
	}

	fmt.Fprintf(a.out, "✓ Escalation %s dismissed\n", escalationID)
	return nil
}

// History prints the audit trail for an escalation.
func (a *EscalationAdapter) History(ctx context.Context, escalationID string) error {
	events, err := a.service.GetHistory(ctx, escalationID)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	fmt.Fprintf(a.out, "\nHistory for %s:\n", escalationID)
	for _, e := range events {
		fmt.Fprintf(a.out, "  %s  %-9s %-16s %s\n", e.CreatedAt.Local().Format(displayTime), e.Action, e.Actor, e.Detail)
	}
	fmt.Fprintln(a.out)
	return nil
}

// Stats prints the summary counts.
func (a *EscalationAdapter) Stats(ctx context.Context) error {
	stats, err := a.service.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Fprintln(a.out, "Escalations:")
	fmt.Fprintf(a.out, "  pending:   %d\n", stats.Pending)
	fmt.Fprintf(a.out, "  resolved:  %d\n", stats.Resolved)
	fmt.Fprintf(a.out, "  expired:   %d\n", stats.Expired)
	fmt.Fprintln(a.out, "Follow-ups:")
	fmt.Fprintf(a.out, "  pending:   %d\n", stats.FollowUpsPending)
	fmt.Fprintf(a.out, "  delivered: %d\n", stats.Delivered)
	if stats.DeadLetters > 0 {
		fmt.Fprintf(a.out, "  %s\n", urgentColor.Sprintf("dead letters: %d", stats.DeadLetters))
	} else {
		fmt.Fprintf(a.out, "  dead letters: 0\n")
	}
	return nil
}

func (a *EscalationAdapter) reportRejection(escalationID string, err error) {
	if errors.Is(err, primary.ErrAlreadyTerminal) {
		fmt.Fprintf(a.out, "%s\n", rejectColor.Sprintf("✗ rejected: %s is already resolved or timed out", escalationID))
	}
}

func urgencyLabel(timeoutAt, now time.Time) string {
	urgency, remaining := coreescalation.ClassifyUrgency(timeoutAt, now)
	switch urgency {
	case coreescalation.UrgencyOverdue:
		return overdueColor.Sprint("overdue")
	case coreescalation.UrgencyUrgent:
		return urgentColor.Sprint(remaining.Truncate(time.Minute).String())
	case coreescalation.UrgencySoon:
		return soonColor.Sprint(remaining.Truncate(time.Minute).String())
	}
	return remaining.Truncate(time.Minute).String()
}
