package primary

import (
	"context"
	"time"
)

// KnowledgeService defines the primary port for learned answers.
type KnowledgeService interface {
	// Lookup returns the learned answer for a question. A miss is not an error.
	Lookup(ctx context.Context, question string) (string, bool, error)

	// Upsert stores an answer, replacing any previous answer for the same
	// normalized question.
	Upsert(ctx context.Context, req UpsertKnowledgeRequest) error

	// Delete removes a learned answer.
	Delete(ctx context.Context, question string) error

	// List returns entries whose question contains search (all when empty).
	List(ctx context.Context, search string) ([]*KnowledgeEntry, error)
}

// UpsertKnowledgeRequest contains parameters for storing an answer.
type UpsertKnowledgeRequest struct {
	Question        string
	Answer          string
	SourceRequestID string // Empty for manual entries
}

// KnowledgeEntry represents a learned answer at the port boundary.
type KnowledgeEntry struct {
	NormalizedQuestion string
	Question           string
	Answer             string
	LearnedAt          time.Time
	SourceRequestID    string
}
