package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	coreanswer "github.com/example/frontdesk/internal/core/answer"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/metrics"
	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// defaultFallbackTimeout bounds a single fallback generation.
const defaultFallbackTimeout = 8 * time.Second

// AgentServiceImpl implements the AgentService interface.
type AgentServiceImpl struct {
	knowledge       primary.KnowledgeService
	escalations     primary.EscalationService
	fallback        secondary.FallbackSource
	fallbackTimeout time.Duration
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

// NewAgentService creates a new AgentService. fallback may be nil.
func NewAgentService(knowledge primary.KnowledgeService, escalations primary.EscalationService, fallback secondary.FallbackSource, logger *zap.Logger, m *metrics.Metrics) *AgentServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &AgentServiceImpl{
		knowledge:       knowledge,
		escalations:     escalations,
		fallback:        fallback,
		fallbackTimeout: defaultFallbackTimeout,
		logger:          logger,
		metrics:         m,
	}
}

// Answer picks a reply for one caller utterance: the knowledge base first,
// then the fallback model, and a supervisor escalation when neither is good
// enough.
func (s *AgentServiceImpl) Answer(ctx context.Context, req primary.AnswerRequest) (*primary.Reply, error) {
	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorAgent)
	utterance := strings.TrimSpace(req.Utterance)

	if coreanswer.IsIgnorable(utterance) {
		return s.reply(&primary.Reply{Source: primary.ReplySourceIgnored}), nil
	}

	answer, found, err := s.knowledge.Lookup(ctx, utterance)
	if err != nil {
		// A broken knowledge base should not silence the agent.
		s.logger.Warn("knowledge lookup failed", zap.Error(err))
	}
	if found {
		return s.reply(&primary.Reply{Text: answer, Source: primary.ReplySourceKnowledge}), nil
	}

	if !coreanswer.IsVague(utterance) {
		if text, ok := s.tryFallback(ctx, utterance); ok {
			return s.reply(&primary.Reply{Text: text, Source: primary.ReplySourceFallback}), nil
		}
	}

	esc, err := s.escalations.CreateEscalation(ctx, primary.CreateEscalationRequest{
		CallerID: req.CallerID,
		Question: utterance,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to escalate question: %w", err)
	}

	return s.reply(&primary.Reply{
		Text:         coreanswer.EscalationReply,
		Source:       primary.ReplySourceEscalated,
		EscalationID: esc.ID,
	}), nil
}

func (s *AgentServiceImpl) tryFallback(ctx context.Context, question string) (string, bool) {
	if s.fallback == nil {
		return "", false
	}

	genCtx, cancel := context.WithTimeout(ctx, s.fallbackTimeout)
	defer cancel()

	raw, err := s.fallback.Generate(genCtx, question)
	if err != nil {
		s.logger.Warn("fallback generation failed", zap.Error(err))
		return "", false
	}

	text := coreanswer.Clean(raw)
	if !coreanswer.IsUsable(text) {
		s.logger.Debug("fallback reply rejected", zap.String("reply", raw))
		return "", false
	}
	return text, true
}

func (s *AgentServiceImpl) reply(r *primary.Reply) *primary.Reply {
	s.metrics.AgentReplies.WithLabelValues(r.Source).Inc()
	return r
}

// Ensure AgentServiceImpl implements the interface
var _ primary.AgentService = (*AgentServiceImpl)(nil)
