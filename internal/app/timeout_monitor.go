package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	corenotification "github.com/example/frontdesk/internal/core/notification"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// TimeoutMonitorConfig holds the sweep settings.
type TimeoutMonitorConfig struct {
	CallerID      string // Notices go only to this caller; empty means all
	SweepInterval time.Duration
	Notify        bool
	NoticeTimeout time.Duration
}

// TimeoutMonitor periodically expires escalations past their deadline and
// optionally tells the caller.
type TimeoutMonitor struct {
	escalations primary.EscalationService
	voice       secondary.VoiceChannel
	cfg         TimeoutMonitorConfig
	logger      *zap.Logger
	clock       func() time.Time
	notices     sync.WaitGroup
}

// NewTimeoutMonitor creates a TimeoutMonitor. voice may be nil when notices
// are disabled.
func NewTimeoutMonitor(escalations primary.EscalationService, voice secondary.VoiceChannel, cfg TimeoutMonitorConfig, logger *zap.Logger) *TimeoutMonitor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.NoticeTimeout <= 0 {
		cfg.NoticeTimeout = 10 * time.Second
	}
	if voice == nil {
		cfg.Notify = false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutMonitor{
		escalations: escalations,
		voice:       voice,
		cfg:         cfg,
		logger:      logger.Named("timeout-monitor"),
		clock:       time.Now,
	}
}

// WithClock overrides the time source.
func (m *TimeoutMonitor) WithClock(clock func() time.Time) *TimeoutMonitor {
	m.clock = clock
	return m
}

// Run sweeps on every tick until ctx is cancelled, then waits for
// outstanding notices.
func (m *TimeoutMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	defer m.notices.Wait()

	m.logger.Info("timeout monitor started", zap.Duration("sweep_interval", m.cfg.SweepInterval))

	for {
		if _, err := m.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("timeout sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			m.logger.Info("timeout monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SweepOnce expires overdue escalations and returns their IDs. Notices are
// sent in the background; Wait blocks until they finish.
func (m *TimeoutMonitor) SweepOnce(ctx context.Context) ([]string, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorMonitor)

	expired, err := m.escalations.ExpireOverdue(ctx, m.clock().UTC())
	if err != nil {
		return nil, err
	}

	if m.cfg.Notify {
		for _, id := range expired {
			m.notify(ctx, id)
		}
	}
	return expired, nil
}

// Wait blocks until every notice started by SweepOnce has finished.
func (m *TimeoutMonitor) Wait() {
	m.notices.Wait()
}

func (m *TimeoutMonitor) notify(ctx context.Context, escalationID string) {
	esc, err := m.escalations.GetEscalation(ctx, escalationID)
	if err != nil {
		m.logger.Warn("cannot load expired escalation for notice", zap.String("request_id", escalationID), zap.Error(err))
		return
	}
	if m.cfg.CallerID != "" && esc.CallerID != m.cfg.CallerID {
		return
	}

	m.notices.Add(1)
	go func() {
		defer m.notices.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("panic sending timeout notice", zap.String("request_id", escalationID), zap.Any("panic", r))
			}
		}()

		noticeCtx, cancel := context.WithTimeout(ctx, m.cfg.NoticeTimeout)
		defer cancel()
		if err := m.voice.Deliver(noticeCtx, esc.CallerID, corenotification.TimeoutNotice); err != nil {
			m.logger.Warn("timeout notice failed",
				zap.String("request_id", escalationID),
				zap.String("caller_id", esc.CallerID),
				zap.Error(err),
			)
		}
	}()
}
