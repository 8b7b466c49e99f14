package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/example/frontdesk/internal/ports/primary"
)

// KnowledgeAdapter is a thin adapter over KnowledgeService and the agent
// front door, used by the knowledge and ask commands.
type KnowledgeAdapter struct {
	service primary.KnowledgeService
	agent   primary.AgentService
	out     io.Writer
}

// NewKnowledgeAdapter creates a new KnowledgeAdapter. agent may be nil when
// Ask is not used.
func NewKnowledgeAdapter(service primary.KnowledgeService, agent primary.AgentService, out io.Writer) *KnowledgeAdapter {
	return &KnowledgeAdapter{
		service: service,
		agent:   agent,
		out:     out,
	}
}

// List prints learned answers whose question contains search.
func (a *KnowledgeAdapter) List(ctx context.Context, search string) error {
	entries, err := a.service.List(ctx, search)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No learned answers found")
		return nil
	}

	for _, e := range entries {
		source := "manual"
		if e.SourceRequestID != "" {
			source = e.SourceRequestID
		}
		fmt.Fprintf(a.out, "Q: %s\nA: %s\n   (%s, %s)\n\n", e.Question, e.Answer, source, e.LearnedAt.Local().Format(displayTime))
	}
	return nil
}

// Add teaches an answer directly.
func (a *KnowledgeAdapter) Add(ctx context.Context, question, answer string) error {
	if err := a.service.Upsert(ctx, primary.UpsertKnowledgeRequest{Question: question, Answer: answer}); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "✓ Answer learned")
	return nil
}

// Delete forgets a learned answer.
func (a *KnowledgeAdapter) Delete(ctx context.Context, question string) error {
	if err := a.service.Delete(ctx, question); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "✓ Answer forgotten")
	return nil
}

// Lookup prints the learned answer for a question, if any.
func (a *KnowledgeAdapter) Lookup(ctx context.Context, question string) error {
	answer, found, err := a.service.Lookup(ctx, question)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(a.out, "No learned answer")
		return nil
	}

	fmt.Fprintln(a.out, answer)
	return nil
}

// Ask runs an utterance through the agent as if a caller had said it.
func (a *KnowledgeAdapter) Ask(ctx context.Context, callerID, utterance string) error {
	if a.agent == nil {
		return fmt.Errorf("agent not configured")
	}

	reply, err := a.agent.Answer(ctx, primary.AnswerRequest{CallerID: callerID, Utterance: utterance})
	if err != nil {
		return err
	}

	switch reply.Source {
	case primary.ReplySourceIgnored:
		fmt.Fprintln(a.out, "(ignored)")
	case primary.ReplySourceEscalated:
		fmt.Fprintf(a.out, "%s\n", reply.Text)
		fmt.Fprintf(a.out, "%s\n", soonColor.Sprintf("→ escalated as %s", reply.EscalationID))
	default:
		fmt.Fprintf(a.out, "%s\n", reply.Text)
		fmt.Fprintf(a.out, "(%s)\n", reply.Source)
	}
	return nil
}
