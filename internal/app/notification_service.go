package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	notificationRepo secondary.NotificationRepository
	attemptRepo      secondary.AttemptRepository
	logWriter        secondary.LogWriter
	tx               secondary.Transactor
	policy           corenotification.RetryPolicy
	logger           *zap.Logger
	metrics          *metrics.Metrics
	clock            func() time.Time
}

// NewNotificationService creates a new NotificationService with injected dependencies.
func NewNotificationService(
	notificationRepo secondary.NotificationRepository,
	attemptRepo secondary.AttemptRepository,
	logWriter secondary.LogWriter,
	tx secondary.Transactor,
	policy corenotification.RetryPolicy,
	logger *zap.Logger,
	m *metrics.Metrics,
) *NotificationServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &NotificationServiceImpl{
		notificationRepo: notificationRepo,
		attemptRepo:      attemptRepo,
		logWriter:        logWriter,
		tx:               tx,
		policy:           policy,
		logger:           logger,
		metrics:          m,
		clock:            time.Now,
	}
}

// WithClock overrides the time source.
func (s *NotificationServiceImpl) WithClock(clock func() time.Time) *NotificationServiceImpl {
	s.clock = clock
	return s
}

// Enqueue adds a follow-up for a resolved escalation. Joins the caller's
// transaction when there is one.
func (s *NotificationServiceImpl) Enqueue(ctx context.Context, req primary.EnqueueRequest) error {
	if strings.TrimSpace(req.RequestID) == "" {
		return fmt.Errorf("%w: request id is required", primary.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Answer) == "" {
		return fmt.Errorf("%w: answer is required", primary.ErrInvalidInput)
	}

	now := s.clock().UTC()
	record := &secondary.NotificationRecord{
		RequestID:     req.RequestID,
		CallerID:      req.CallerID,
		Answer:        req.Answer,
		Status:        corenotification.StatusPending,
		CreatedAt:     now,
		NextAttemptAt: now,
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.notificationRepo.Create(ctx, record)
	})
}

// DequeueNext returns the oldest due follow-up for callerID not named in skip,
// or nil. Nothing is claimed; the entry stays pending until delivered or failed.
func (s *NotificationServiceImpl) DequeueNext(ctx context.Context, callerID string, skip ...string) (*primary.NotificationEntry, error) {
	record, err := s.notificationRepo.NextDue(ctx, callerID, s.clock().UTC(), skip)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue follow-up: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return recordToNotification(record), nil
}

// MarkDelivered records a successful delivery and logs the attempt.
func (s *NotificationServiceImpl) MarkDelivered(ctx context.Context, requestID string) error {
	now := s.clock().UTC()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.notificationRepo.GetByRequestID(ctx, requestID)
		if err != nil {
			return err
		}
		switch record.Status {
		case corenotification.StatusDelivered:
			return nil
		case corenotification.StatusDeadLetter:
			return fmt.Errorf("%w: follow-up %s is dead-lettered", primary.ErrInvalidInput, requestID)
		}

		ok, err := s.notificationRepo.MarkDelivered(ctx, requestID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: follow-up %s changed concurrently", primary.ErrInvalidInput, requestID)
		}

		return s.attemptRepo.Create(ctx, &secondary.AttemptRecord{
			ID:          uuid.NewString(),
			RequestID:   requestID,
			Attempt:     record.AttemptCount + 1,
			Outcome:     secondary.AttemptOutcomeDelivered,
			AttemptedAt: now,
		})
	})
}

// RecordAttemptFailure counts a failed delivery and either schedules the
// next attempt with backoff or dead-letters the entry.
func (s *NotificationServiceImpl) RecordAttemptFailure(ctx context.Context, requestID string, cause error) (*primary.FailureOutcome, error) {
	if cause == nil {
		cause = primary.ErrDeliveryFailure
	}
	now := s.clock().UTC()

	var outcome *primary.FailureOutcome
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.notificationRepo.GetByRequestID(ctx, requestID)
		if err != nil {
			return err
		}
		if record.Status != corenotification.StatusPending {
			return fmt.Errorf("%w: follow-up %s is %s", primary.ErrInvalidInput, requestID, record.Status)
		}

		decision := corenotification.DecideFailure(s.policy, record.AttemptCount, now)
		if decision.DeadLetter {
			if err := s.notificationRepo.DeadLetter(ctx, requestID, decision.Attempts, cause.Error(), now); err != nil {
				return err
			}
			if err := s.logWriter.LogTransition(ctx, requestID, secondary.ActionDeadLetter, cause.Error()); err != nil {
				return err
			}
		} else if err := s.notificationRepo.RecordFailure(ctx, requestID, decision.Attempts, cause.Error(), decision.NextAttemptAt); err != nil {
			return err
		}

		if err := s.attemptRepo.Create(ctx, &secondary.AttemptRecord{
			ID:          uuid.NewString(),
			RequestID:   requestID,
			Attempt:     decision.Attempts,
			Outcome:     secondary.AttemptOutcomeFailed,
			Error:       cause.Error(),
			AttemptedAt: now,
		}); err != nil {
			return err
		}

		outcome = &primary.FailureOutcome{
			Attempts:      decision.Attempts,
			DeadLettered:  decision.DeadLetter,
			NextAttemptAt: decision.NextAttemptAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveryFailures.Inc()
	if outcome.DeadLettered {
		s.metrics.DeadLetters.Inc()
		s.logger.Warn("follow-up dead-lettered",
			zap.String("request_id", requestID),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(cause),
		)
	}
	return outcome, nil
}

// DeadLetter parks a pending follow-up in dead_letter immediately. The
// dispatcher uses it when a spoken answer cannot be recorded, so the caller
// is not called again with the same answer.
func (s *NotificationServiceImpl) DeadLetter(ctx context.Context, requestID string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: dead-letter cause is required", primary.ErrInvalidInput)
	}
	now := s.clock().UTC()

	var attempts int
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.notificationRepo.GetByRequestID(ctx, requestID)
		if err != nil {
			return err
		}
		if record.Status != corenotification.StatusPending {
			return fmt.Errorf("%w: follow-up %s is %s", primary.ErrInvalidInput, requestID, record.Status)
		}

		attempts = record.AttemptCount + 1
		if err := s.notificationRepo.DeadLetter(ctx, requestID, attempts, cause.Error(), now); err != nil {
			return err
		}
		if err := s.attemptRepo.Create(ctx, &secondary.AttemptRecord{
			ID:          uuid.NewString(),
			RequestID:   requestID,
			Attempt:     attempts,
			Outcome:     secondary.AttemptOutcomeFailed,
			Error:       cause.Error(),
			AttemptedAt: now,
		}); err != nil {
			return err
		}
		return s.logWriter.LogTransition(ctx, requestID, secondary.ActionDeadLetter, cause.Error())
	})
	if err != nil {
		return err
	}

	s.metrics.DeadLetters.Inc()
	s.logger.Warn("follow-up dead-lettered",
		zap.String("request_id", requestID),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	return nil
}

// Postpone moves a pending follow-up's retry gate to until. The attempt
// count is left alone.
func (s *NotificationServiceImpl) Postpone(ctx context.Context, requestID string, until time.Time) error {
	ok, err := s.notificationRepo.Postpone(ctx, requestID, until.UTC())
	if err != nil {
		return fmt.Errorf("failed to postpone follow-up: %w", err)
	}
	if !ok {
		return fmt.Errorf("pending follow-up %s: %w", requestID, primary.ErrNotFound)
	}
	return nil
}

// ListNotifications lists follow-ups with optional filters.
func (s *NotificationServiceImpl) ListNotifications(ctx context.Context, filters primary.NotificationFilters) ([]*primary.NotificationEntry, error) {
	if filters.Status != "" && !corenotification.IsValidStatus(filters.Status) {
		return nil, fmt.Errorf("%w: unknown follow-up status %q", primary.ErrInvalidInput, filters.Status)
	}

	records, err := s.notificationRepo.List(ctx, secondary.NotificationFilters{
		Status:   filters.Status,
		CallerID: filters.CallerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-ups: %w", err)
	}

	entries := make([]*primary.NotificationEntry, len(records))
	for i, r := range records {
		entries[i] = recordToNotification(r)
	}
	return entries, nil
}

// Requeue returns a dead-lettered follow-up to the pending queue with its
// attempt count reset.
func (s *NotificationServiceImpl) Requeue(ctx context.Context, requestID string) error {
	now := s.clock().UTC()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		record, err := s.notificationRepo.GetByRequestID(ctx, requestID)
		if err != nil {
			return err
		}
		if err := corenotification.CanRequeue(requestID, record.Status); err != nil {
			return fmt.Errorf("%w: %s", primary.ErrInvalidInput, err)
		}

		ok, err := s.notificationRepo.Requeue(ctx, requestID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: follow-up %s changed concurrently", primary.ErrInvalidInput, requestID)
		}
		return s.logWriter.LogTransition(ctx, requestID, secondary.ActionRequeue, "")
	})
	if err != nil {
		return err
	}

	s.logger.Info("follow-up requeued", zap.String("request_id", requestID))
	return nil
}

// Prune removes delivered follow-ups older than the given age.
func (s *NotificationServiceImpl) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, fmt.Errorf("%w: prune age must not be negative", primary.ErrInvalidInput)
	}
	n, err := s.notificationRepo.PruneDelivered(ctx, s.clock().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune follow-ups: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned delivered follow-ups", zap.Int("count", n))
	}
	return n, nil
}

// GetAttempts returns the delivery attempt log for a request.
func (s *NotificationServiceImpl) GetAttempts(ctx context.Context, requestID string) ([]*primary.DeliveryAttempt, error) {
	records, err := s.attemptRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	attempts := make([]*primary.DeliveryAttempt, len(records))
	for i, r := range records {
		attempts[i] = &primary.DeliveryAttempt{
			ID:          r.ID,
			RequestID:   r.RequestID,
			Attempt:     r.Attempt,
			Outcome:     r.Outcome,
			Error:       r.Error,
			AttemptedAt: r.AttemptedAt,
		}
	}
	return attempts, nil
}

// CountByStatus returns follow-up counts keyed by status.
func (s *NotificationServiceImpl) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.notificationRepo.CountByStatus(ctx)
}

func recordToNotification(r *secondary.NotificationRecord) *primary.NotificationEntry {
	return &primary.NotificationEntry{
		RequestID:      r.RequestID,
		CallerID:       r.CallerID,
		Answer:         r.Answer,
		Status:         r.Status,
		AttemptCount:   r.AttemptCount,
		LastError:      r.LastError,
		CreatedAt:      r.CreatedAt,
		NextAttemptAt:  r.NextAttemptAt,
		DeliveredAt:    r.DeliveredAt,
		DeadLetteredAt: r.DeadLetteredAt,
	}
}

// Ensure NotificationServiceImpl implements the interface
var _ primary.NotificationService = (*NotificationServiceImpl)(nil)
