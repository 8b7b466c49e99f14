package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	coreescalation "github.com/example/frontdesk/internal/core/escalation"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// UnknownCaller is recorded when the agent cannot identify the call.
const UnknownCaller = "unknown_caller"

// EscalationServiceImpl implements the EscalationService interface.
type EscalationServiceImpl struct {
	escalationRepo secondary.EscalationRepository
	eventRepo      secondary.EventRepository
	logWriter      secondary.LogWriter
	queue          primary.NotificationService
	tx             secondary.Transactor
	alerter        secondary.SupervisorAlerter
	window         time.Duration
	logger         *zap.Logger
	metrics        *metrics.Metrics
	clock          func() time.Time
	onResolved     []func(escalationID string)
}

// NewEscalationService creates a new EscalationService with injected dependencies.
// alerter may be nil.
func NewEscalationService(
	escalationRepo secondary.EscalationRepository,
	eventRepo secondary.EventRepository,
	logWriter secondary.LogWriter,
	queue primary.NotificationService,
	tx secondary.Transactor,
	alerter secondary.SupervisorAlerter,
	window time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *EscalationServiceImpl {
	if window <= 0 {
		window = coreescalation.DefaultTimeoutWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &EscalationServiceImpl{
		escalationRepo: escalationRepo,
		eventRepo:      eventRepo,
		logWriter:      logWriter,
		queue:          queue,
		tx:             tx,
		alerter:        alerter,
		window:         window,
		logger:         logger,
		metrics:        m,
		clock:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *EscalationServiceImpl) WithClock(clock func() time.Time) *EscalationServiceImpl {
	s.clock = clock
	return s
}

// OnResolved registers a hook run after a resolve commits.
func (s *EscalationServiceImpl) OnResolved(fn func(escalationID string)) {
	s.onResolved = append(s.onResolved, fn)
}

// CreateEscalation records a question the agent could not answer.
func (s *EscalationServiceImpl) CreateEscalation(ctx context.Context, req primary.CreateEscalationRequest) (*primary.Escalation, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", primary.ErrInvalidInput)
	}
	callerID := strings.TrimSpace(req.CallerID)
	if callerID == "" {
		callerID = UnknownCaller
	}

	now := s.clock().UTC()
	record := &secondary.EscalationRecord{
		CallerID:  callerID,
		Question:  question,
		Status:    coreescalation.InitialStatus(),
		CreatedAt: now,
		TimeoutAt: coreescalation.TimeoutAt(now, s.window),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		id, err := s.escalationRepo.GetNextID(ctx)
		if err != nil {
			return err
		}
		record.ID = id

		if err := s.escalationRepo.Create(ctx, record); err != nil {
			return err
		}
		return s.logWriter.LogTransition(ctx, id, secondary.ActionCreate, question)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create escalation: %w", err)
	}

	s.metrics.EscalationsCreated.Inc()
	s.logger.Info("escalation created",
		zap.String("request_id", record.ID),
		zap.String("caller_id", callerID),
		zap.Time("timeout_at", record.TimeoutAt),
	)

	if s.alerter != nil {
		alert := secondary.SupervisorAlert{
			EscalationID: record.ID,
			CallerID:     callerID,
			Question:     question,
			TimeoutAt:    record.TimeoutAt,
		}
		if err := s.alerter.Alert(ctx, alert); err != nil {
			s.logger.Warn("supervisor alert failed", zap.String("request_id", record.ID), zap.Error(err))
		}
	}

	return s.recordToEscalation(record), nil
}

// ResolveEscalation records a supervisor answer and queues the follow-up in
// the same transaction. An answer arriving after the deadline expires the
// escalation instead and is rejected.
func (s *EscalationServiceImpl) ResolveEscalation(ctx context.Context, req primary.ResolveEscalationRequest) error {
	answer := strings.TrimSpace(req.Answer)
	if answer == "" {
		return fmt.Errorf("%w: answer is required", primary.ErrInvalidInput)
	}

	now := s.clock().UTC()
	resolvedBy := ctxutil.ActorOr(ctx, ctxutil.ActorSupervisor)

	var (
		record  *secondary.EscalationRecord
		tooLate bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		tooLate = false

		rec, err := s.escalationRepo.GetByID(ctx, req.EscalationID)
		if err != nil {
			return err
		}
		record = rec

		guard := coreescalation.CanResolve(coreescalation.ResolveContext{
			EscalationID: rec.ID,
			Status:       rec.Status,
			Answer:       answer,
		})
		if !guard.Allowed {
			return fmt.Errorf("%w: %s", primary.ErrAlreadyTerminal, guard.Reason)
		}

		if coreescalation.IsOverdue(rec.TimeoutAt, now) {
			ok, err := s.escalationRepo.Expire(ctx, rec.ID, coreescalation.ReasonTimeout, now, rec.Version)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: escalation %s changed concurrently", primary.ErrAlreadyTerminal, rec.ID)
			}
			tooLate = true
			return s.logWriter.LogTransition(ctx, rec.ID, secondary.ActionExpire, "answer arrived after the deadline")
		}

		ok, err := s.escalationRepo.Resolve(ctx, rec.ID, answer, resolvedBy, now, rec.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: escalation %s changed concurrently", primary.ErrAlreadyTerminal, rec.ID)
		}
		if err := s.logWriter.LogTransition(ctx, rec.ID, secondary.ActionResolve, answer); err != nil {
			return err
		}

		return s.queue.Enqueue(ctx, primary.EnqueueRequest{
			RequestID: rec.ID,
			CallerID:  rec.CallerID,
			Answer:    answer,
		})
	})
	if err != nil {
		if errors.Is(err, primary.ErrAlreadyTerminal) {
			s.metrics.ResolveRejected.WithLabelValues("terminal").Inc()
		}
		return err
	}

	if tooLate {
		s.metrics.EscalationsExpired.Inc()
		s.metrics.ResolveRejected.WithLabelValues("deadline").Inc()
		s.logger.Info("late answer rejected; escalation expired",
			zap.String("request_id", record.ID),
			zap.Time("timeout_at", record.TimeoutAt),
		)
		return fmt.Errorf("%w: escalation %s timed out at %s", primary.ErrAlreadyTerminal,
			record.ID, record.TimeoutAt.Format(time.RFC3339))
	}

	s.metrics.EscalationsResolved.Inc()
	s.logger.Info("escalation resolved",
		zap.String("request_id", record.ID),
		zap.String("resolved_by", resolvedBy),
	)
	for _, fn := range s.onResolved {
		fn(record.ID)
	}
	return nil
}

// DismissEscalation marks a pending escalation unresolved.
func (s *EscalationServiceImpl) DismissEscalation(ctx context.Context, escalationID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = coreescalation.ReasonDismissed
	}
	now := s.clock().UTC()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		rec, err := s.escalationRepo.GetByID(ctx, escalationID)
		if err != nil {
			return err
		}

		guard := coreescalation.CanDismiss(coreescalation.DismissContext{EscalationID: rec.ID, Status: rec.Status})
		if !guard.Allowed {
			return fmt.Errorf("%w: %s", primary.ErrAlreadyTerminal, guard.Reason)
		}

		ok, err := s.escalationRepo.Expire(ctx, rec.ID, reason, now, rec.Version)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: escalation %s changed concurrently", primary.ErrAlreadyTerminal, rec.ID)
		}
		return s.logWriter.LogTransition(ctx, rec.ID, secondary.ActionDismiss, reason)
	})
	if err != nil {
		return err
	}

	s.metrics.EscalationsExpired.Inc()
	s.logger.Info("escalation dismissed", zap.String("request_id", escalationID), zap.String("reason", reason))
	return nil
}

// ExpireOverdue expires every pending escalation whose deadline is at or
// before now. Each escalation is its own transaction; one failure is logged
// and the sweep continues.
func (s *EscalationServiceImpl) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	due, err := s.escalationRepo.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due escalations: %w", err)
	}

	var expired []string
	for _, rec := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := s.expireOne(ctx, rec.ID, now)
		if err != nil {
			s.logger.Warn("failed to expire escalation", zap.String("request_id", rec.ID), zap.Error(err))
			continue
		}
		if ok {
			expired = append(expired, rec.ID)
		}
	}

	if len(expired) > 0 {
		s.metrics.EscalationsExpired.Add(float64(len(expired)))
		s.logger.Info("escalations expired", zap.Strings("request_ids", expired))
	}
	return expired, nil
}

func (s *EscalationServiceImpl) expireOne(ctx context.Context, id string, now time.Time) (expired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic expiring escalation %s: %v", id, r)
		}
	}()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		expired = false

		rec, err := s.escalationRepo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		guard := coreescalation.CanExpire(coreescalation.ExpireContext{
			EscalationID: rec.ID,
			Status:       rec.Status,
			TimeoutAt:    rec.TimeoutAt,
			Now:          now,
		})
		if !guard.Allowed {
			return nil
		}

		ok, err := s.escalationRepo.Expire(ctx, rec.ID, coreescalation.ReasonTimeout, now, rec.Version)
		if err != nil || !ok {
			return err
		}
		expired = true
		return s.logWriter.LogTransition(ctx, rec.ID, secondary.ActionExpire, coreescalation.ReasonTimeout)
	})
	return expired, err
}

// MarkDelivered records that the follow-up reached the caller. Joins the
// caller's transaction when there is one.
func (s *EscalationServiceImpl) MarkDelivered(ctx context.Context, escalationID string) error {
	now := s.clock().UTC()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.escalationRepo.MarkDelivered(ctx, escalationID, now)
		if err != nil {
			return err
		}
		if !ok {
			rec, err := s.escalationRepo.GetByID(ctx, escalationID)
			if err != nil {
				return err
			}
			if rec.Status != coreescalation.StatusResolved {
				return fmt.Errorf("%w: escalation %s is %s and has no answer to deliver", primary.ErrInvalidInput, rec.ID, rec.Status)
			}
			return nil
		}
		return s.logWriter.LogTransition(ctx, escalationID, secondary.ActionDeliver, "")
	})
}

// GetEscalation retrieves an escalation by ID.
func (s *EscalationServiceImpl) GetEscalation(ctx context.Context, escalationID string) (*primary.Escalation, error) {
	record, err := s.escalationRepo.GetByID(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	return s.recordToEscalation(record), nil
}

// ListEscalations lists escalations with optional filters.
func (s *EscalationServiceImpl) ListEscalations(ctx context.Context, filters primary.EscalationFilters) ([]*primary.Escalation, error) {
	records, err := s.escalationRepo.List(ctx, secondary.EscalationFilters{
		Status:   filters.Status,
		CallerID: filters.CallerID,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}

	escalations := make([]*primary.Escalation, len(records))
	for i, r := range records {
		escalations[i] = s.recordToEscalation(r)
	}
	return escalations, nil
}

// GetHistory returns the audit trail for an escalation.
func (s *EscalationServiceImpl) GetHistory(ctx context.Context, escalationID string) ([]*primary.EscalationEvent, error) {
	if _, err := s.escalationRepo.GetByID(ctx, escalationID); err != nil {
		return nil, err
	}

	records, err := s.eventRepo.ListByRequest(ctx, escalationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	events := make([]*primary.EscalationEvent, len(records))
	for i, r := range records {
		events[i] = &primary.EscalationEvent{
			ID:        r.ID,
			RequestID: r.RequestID,
			Action:    r.Action,
			Actor:     r.Actor,
			Detail:    r.Detail,
			CreatedAt: r.CreatedAt,
		}
	}
	return events, nil
}

// GetStats summarizes escalations and follow-ups.
func (s *EscalationServiceImpl) GetStats(ctx context.Context) (*primary.EscalationStats, error) {
	counts, err := s.escalationRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count escalations: %w", err)
	}
	queued, err := s.queue.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count follow-ups: %w", err)
	}

	return &primary.EscalationStats{
		Pending:          counts[coreescalation.StatusPending],
		Resolved:         counts[coreescalation.StatusResolved],
		Expired:          counts[coreescalation.StatusExpired],
		FollowUpsPending: queued[primary.NotificationStatusPending],
		Delivered:        queued[primary.NotificationStatusDelivered],
		DeadLetters:      queued[primary.NotificationStatusDeadLetter],
	}, nil
}

// Helper methods

func (s *EscalationServiceImpl) recordToEscalation(r *secondary.EscalationRecord) *primary.Escalation {
	return &primary.Escalation{
		ID:           r.ID,
		CallerID:     r.CallerID,
		Question:     r.Question,
		Status:       r.Status,
		Answer:       r.Answer,
		ResolvedBy:   r.ResolvedBy,
		ExpiryReason: r.ExpiryReason,
		CreatedAt:    r.CreatedAt,
		TimeoutAt:    r.TimeoutAt,
		ResolvedAt:   r.ResolvedAt,
		ExpiredAt:    r.ExpiredAt,
		DeliveredAt:  r.DeliveredAt,
	}
}

// Ensure EscalationServiceImpl implements the interface
var _ primary.EscalationService = (*EscalationServiceImpl)(nil)
