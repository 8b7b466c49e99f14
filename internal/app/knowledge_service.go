package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	coreknowledge "github.com/example/frontdesk/internal/core/knowledge"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// KnowledgeServiceImpl implements the KnowledgeService interface.
type KnowledgeServiceImpl struct {
	knowledgeRepo secondary.KnowledgeRepository
	tx            secondary.Transactor
	logger        *zap.Logger
	metrics       *metrics.Metrics
	clock         func() time.Time
}

// NewKnowledgeService creates a new KnowledgeService with injected dependencies.
func NewKnowledgeService(knowledgeRepo secondary.KnowledgeRepository, tx secondary.Transactor, logger *zap.Logger, m *metrics.Metrics) *KnowledgeServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &KnowledgeServiceImpl{
		knowledgeRepo: knowledgeRepo,
		tx:            tx,
		logger:        logger,
		metrics:       m,
		clock:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *KnowledgeServiceImpl) WithClock(clock func() time.Time) *KnowledgeServiceImpl {
	s.clock = clock
	return s
}

// Lookup returns the learned answer for a question.
func (s *KnowledgeServiceImpl) Lookup(ctx context.Context, question string) (string, bool, error) {
	key := coreknowledge.Normalize(question)
	if key == "" {
		return "", false, nil
	}

	record, err := s.knowledgeRepo.Get(ctx, key)
	switch {
	case errors.Is(err, primary.ErrNotFound):
		s.metrics.KnowledgeLookups.WithLabelValues("miss").Inc()
		return "", false, nil
	case err != nil:
		s.metrics.KnowledgeLookups.WithLabelValues("error").Inc()
		return "", false, fmt.Errorf("failed to look up knowledge: %w", err)
	}

	s.metrics.KnowledgeLookups.WithLabelValues("hit").Inc()
	return record.Answer, true, nil
}

// Upsert stores an answer under the normalized question. The latest write
// wins. Joins the caller's transaction when there is one.
func (s *KnowledgeServiceImpl) Upsert(ctx context.Context, req primary.UpsertKnowledgeRequest) error {
	if err := coreknowledge.ValidateEntry(coreknowledge.EntryContext{Question: req.Question, Answer: req.Answer}); err != nil {
		return fmt.Errorf("%w: %s", primary.ErrInvalidInput, err)
	}

	record := &secondary.KnowledgeRecord{
		NormalizedQuestion: coreknowledge.Normalize(req.Question),
		Question:           strings.TrimSpace(req.Question),
		Answer:             strings.TrimSpace(req.Answer),
		LearnedAt:          s.clock().UTC(),
		SourceRequestID:    req.SourceRequestID,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.knowledgeRepo.Upsert(ctx, record)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("knowledge learned",
		zap.String("question", record.NormalizedQuestion),
		zap.String("source", req.SourceRequestID),
	)
	return nil
}

// Delete removes a learned answer.
func (s *KnowledgeServiceImpl) Delete(ctx context.Context, question string) error {
	key := coreknowledge.Normalize(question)
	if key == "" {
		return fmt.Errorf("%w: question is required", primary.ErrInvalidInput)
	}

	deleted, err := s.knowledgeRepo.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: no learned answer for %q", primary.ErrNotFound, key)
	}
	return nil
}

// List returns entries whose question contains search.
func (s *KnowledgeServiceImpl) List(ctx context.Context, search string) ([]*primary.KnowledgeEntry, error) {
	records, err := s.knowledgeRepo.List(ctx, coreknowledge.Normalize(search))
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}

	entries := make([]*primary.KnowledgeEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.KnowledgeEntry{
			NormalizedQuestion: r.NormalizedQuestion,
			Question:           r.Question,
			Answer:             r.Answer,
			LearnedAt:          r.LearnedAt,
			SourceRequestID:    r.SourceRequestID,
		}
	}
	return entries, nil
}

// Ensure KnowledgeServiceImpl implements the interface
var _ primary.KnowledgeService = (*KnowledgeServiceImpl)(nil)
