package primary

import "context"

// AgentService defines the primary port the voice agent calls per utterance.
type AgentService interface {
	// Answer decides how to respond to a caller utterance, escalating to a
	// supervisor when no adequate answer is available.
	Answer(ctx context.Context, req AnswerRequest) (*Reply, error)
}

// AnswerRequest contains one transcribed caller utterance.
type AnswerRequest struct {
	CallerID  string
	Utterance string
}

// Reply is what the agent speaks back.
type Reply struct {
	Text         string
	Source       string
	EscalationID string // Set when Source is 'escalated'
}

// Reply source constants
const (
	ReplySourceIgnored   = "ignored"
	ReplySourceKnowledge = "knowledge"
	ReplySourceFallback  = "fallback"
	ReplySourceEscalated = "escalated"
)
