package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// completionAttempts bounds retries of the post-delivery transaction when the
// store is unavailable.
const completionAttempts = 3

// DispatcherConfig holds the dispatcher's timing and partition settings.
type DispatcherConfig struct {
	CallerID        string // Empty serves every caller
	PollInterval    time.Duration
	DeliveryTimeout time.Duration
	ChannelHold     time.Duration // How long to hold entries the channel refused
}

// Dispatcher delivers queued follow-ups through the voice channel and, once
// spoken, records delivery and learns the answer in one transaction.
type Dispatcher struct {
	queue       primary.NotificationService
	escalations primary.EscalationService
	knowledge   primary.KnowledgeService
	tx          secondary.Transactor
	voice       secondary.VoiceChannel
	cfg         DispatcherConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	clock       func() time.Time
	wake        chan struct{}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	queue primary.NotificationService,
	escalations primary.EscalationService,
	knowledge primary.KnowledgeService,
	tx secondary.Transactor,
	voice secondary.VoiceChannel,
	cfg DispatcherConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.ChannelHold <= 0 {
		cfg.ChannelHold = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Dispatcher{
		queue:       queue,
		escalations: escalations,
		knowledge:   knowledge,
		tx:          tx,
		voice:       voice,
		cfg:         cfg,
		logger:      logger.Named("dispatcher"),
		metrics:     m,
		clock:       time.Now,
		wake:        make(chan struct{}, 1),
	}
}

// WithClock overrides the time source.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Wake asks the run loop to drain the queue now instead of at the next tick.
// Never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue on every tick or wake until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		zap.String("caller_id", d.cfg.CallerID),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)

	for {
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("dispatch cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return nil
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

// DispatchOnce attempts every follow-up that is due now and returns how many
// were delivered. Each entry is tried at most once per call; an entry still
// pending after its try is passed over so the rest of the queue is reached.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorDispatcher)

	delivered := 0
	var seen []string
	for ctx.Err() == nil {
		entry, err := d.queue.DequeueNext(ctx, d.cfg.CallerID, seen...)
		if err != nil {
			return delivered, err
		}
		if entry == nil {
			return delivered, nil
		}
		seen = append(seen, entry.RequestID)

		if d.process(ctx, entry) {
			delivered++
		}
	}
	return delivered, nil
}

func (d *Dispatcher) process(ctx context.Context, entry *primary.NotificationEntry) (delivered bool) {
	log := d.logger.With(zap.String("request_id", entry.RequestID), zap.String("caller_id", entry.CallerID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic delivering follow-up", zap.Any("panic", r))
			delivered = false
		}
	}()

	d.metrics.DeliveryLatency.Observe(d.clock().Sub(entry.AvailableAt()).Seconds())

	deliverCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	err := d.voice.Deliver(deliverCtx, entry.CallerID, corenotification.FollowUpText(entry.Answer))
	cancel()

	// Bookkeeping must land even when shutdown interrupts the loop.
	storeCtx := context.WithoutCancel(ctx)

	if err != nil {
		if ctx.Err() != nil {
			log.Info("delivery abandoned on shutdown")
			return false
		}
		if errors.Is(err, secondary.ErrChannelUnavailable) {
			// Nothing was placed, so the attempt budget is untouched.
			until := d.clock().Add(d.cfg.ChannelHold)
			if perr := d.queue.Postpone(storeCtx, entry.RequestID, until); perr != nil {
				log.Error("failed to hold follow-up", zap.Error(err), zap.NamedError("record_error", perr))
				return false
			}
			log.Info("voice channel unavailable; follow-up held", zap.Time("next_attempt_at", until), zap.Error(err))
			return false
		}
		cause := fmt.Errorf("%w: %w", primary.ErrDeliveryFailure, err)
		outcome, ferr := d.queue.RecordAttemptFailure(storeCtx, entry.RequestID, cause)
		if ferr != nil {
			log.Error("failed to record delivery failure", zap.Error(err), zap.NamedError("record_error", ferr))
			return false
		}
		if outcome.DeadLettered {
			log.Warn("delivery failed; follow-up dead-lettered", zap.Int("attempts", outcome.Attempts), zap.Error(err))
		} else {
			log.Info("delivery failed; will retry",
				zap.Int("attempts", outcome.Attempts),
				zap.Time("next_attempt_at", outcome.NextAttemptAt),
				zap.Error(err),
			)
		}
		return false
	}

	if err := d.complete(storeCtx, entry); err != nil {
		// The caller has heard the answer. Left pending it would be spoken
		// again on the next cycle.
		cause := fmt.Errorf("answer spoken but not recorded: %w", err)
		if derr := d.queue.DeadLetter(storeCtx, entry.RequestID, cause); derr != nil {
			log.Error("follow-up spoken but completion failed", zap.Error(err), zap.NamedError("dead_letter_error", derr))
			return false
		}
		log.Error("follow-up spoken but completion failed; dead-lettered", zap.Error(err))
		return false
	}

	d.metrics.FollowUpsDelivered.Inc()
	log.Info("follow-up delivered")
	return true
}

// complete marks the escalation and queue entry delivered and learns the
// answer, all or nothing.
func (d *Dispatcher) complete(ctx context.Context, entry *primary.NotificationEntry) error {
	var err error
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		err = d.tx.WithinTx(ctx, func(ctx context.Context) error {
			esc, err := d.escalations.GetEscalation(ctx, entry.RequestID)
			if err != nil {
				return err
			}
			if err := d.escalations.MarkDelivered(ctx, entry.RequestID); err != nil {
				return err
			}
			if err := d.queue.MarkDelivered(ctx, entry.RequestID); err != nil {
				return err
			}
			return d.knowledge.Upsert(ctx, primary.UpsertKnowledgeRequest{
				Question:        esc.Question,
				Answer:          entry.Answer,
				SourceRequestID: entry.RequestID,
			})
		})
		if err == nil || !errors.Is(err, primary.ErrStoreUnavailable) {
			return err
		}
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	return err
}
