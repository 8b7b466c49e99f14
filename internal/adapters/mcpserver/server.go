// Package mcpserver exposes the supervisor workflow as MCP tools so an
// assistant client can triage escalations over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	coreescalation "github.com/example/frontdesk/internal/core/escalation"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/ports/primary"
)

// Server holds the services the tools call.
type Server struct {
	escalations primary.EscalationService
	queue       primary.NotificationService
	knowledge   primary.KnowledgeService
	clock       func() time.Time
}

// New creates a Server.
func New(escalations primary.EscalationService, queue primary.NotificationService, knowledge primary.KnowledgeService) *Server {
	return &Server{
		escalations: escalations,
		queue:       queue,
		knowledge:   knowledge,
		clock:       time.Now,
	}
}

// MCPServer builds the MCP server with every supervisor tool registered.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"frontdesk",
		version,
		server.WithToolCapabilities(true),
	)

	srv.AddTool(listPendingTool(), s.handleListPending)
	srv.AddTool(resolveTool(), s.handleResolve)
	srv.AddTool(dismissTool(), s.handleDismiss)
	srv.AddTool(listDeadLettersTool(), s.handleListDeadLetters)
	srv.AddTool(requeueTool(), s.handleRequeue)
	srv.AddTool(searchKnowledgeTool(), s.handleSearchKnowledge)
	srv.AddTool(addKnowledgeTool(), s.handleAddKnowledge)

	return srv
}

// ServeStdio serves the tools on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func listPendingTool() mcp.Tool {
	return mcp.NewTool("list_pending_escalations",
		mcp.WithDescription("List questions waiting on a supervisor answer, oldest first, with time left before each one times out."),
		mcp.WithString("caller_id",
			mcp.Description("Only show escalations from this caller"),
		),
	)
}

func resolveTool() mcp.Tool {
	return mcp.NewTool("resolve_escalation",
		mcp.WithDescription("Answer a pending escalation. The answer is spoken to the caller and learned for future calls. Rejected once the escalation is resolved or timed out."),
		mcp.WithString("escalation_id",
			mcp.Required(),
			mcp.Description("Escalation ID (e.g. REQ-004)"),
		),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("Answer to speak to the caller"),
		),
	)
}

func dismissTool() mcp.Tool {
	return mcp.NewTool("dismiss_escalation",
		mcp.WithDescription("Close a pending escalation without answering it."),
		mcp.WithString("escalation_id",
			mcp.Required(),
			mcp.Description("Escalation ID"),
		),
		mcp.WithString("reason",
			mcp.Description("Why it was dismissed"),
		),
	)
}

func listDeadLettersTool() mcp.Tool {
	return mcp.NewTool("list_dead_letters",
		mcp.WithDescription("List follow-ups that could not be delivered after every retry."),
	)
}

func requeueTool() mcp.Tool {
	return mcp.NewTool("requeue_followup",
		mcp.WithDescription("Retry delivery of a dead-lettered follow-up with a fresh attempt budget."),
		mcp.WithString("request_id",
			mcp.Required(),
			mcp.Description("Escalation ID of the follow-up"),
		),
	)
}

func searchKnowledgeTool() mcp.Tool {
	return mcp.NewTool("search_knowledge",
		mcp.WithDescription("Search learned answers by question text."),
		mcp.WithString("query",
			mcp.Description("Text the question must contain. Empty lists everything."),
		),
	)
}

func addKnowledgeTool() mcp.Tool {
	return mcp.NewTool("add_knowledge",
		mcp.WithDescription("Teach the agent an answer directly, replacing any previous answer to the same question."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question as a caller would ask it"),
		),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("Answer the agent should give"),
		),
	)
}

func (s *Server) handleListPending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	callerID, _ := args["caller_id"].(string)

	escalations, err := s.escalations.ListEscalations(ctx, primary.EscalationFilters{
		Status:   primary.EscalationStatusPending,
		CallerID: callerID,
	})
	if err != nil {
		return toolError(err), nil
	}
	if len(escalations) == 0 {
		return mcp.NewToolResultText("No pending escalations."), nil
	}

	now := s.clock()
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending escalation(s):\n", len(escalations))
	for _, e := range escalations {
		urgency, remaining := coreescalation.ClassifyUrgency(e.TimeoutAt, now)
		fmt.Fprintf(&b, "\n%s [%s, %s left] caller %s\n  %s\n", e.ID, urgency, remaining.Truncate(time.Minute), e.CallerID, e.Question)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleResolve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["escalation_id"].(string)
	answer, _ := args["answer"].(string)

	if id == "" || strings.TrimSpace(answer) == "" {
		return mcp.NewToolResultError("escalation_id and answer are required"), nil
	}

	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorSupervisor)
	if err := s.escalations.ResolveEscalation(ctx, primary.ResolveEscalationRequest{EscalationID: id, Answer: answer}); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Resolved %s. The caller will hear the answer shortly.", id)), nil
}

func (s *Server) handleDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["escalation_id"].(string)
	reason, _ := args["reason"].(string)

	if id == "" {
		return mcp.NewToolResultError("escalation_id is required"), nil
	}

	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorSupervisor)
	if err := s.escalations.DismissEscalation(ctx, id, reason); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Dismissed %s.", id)), nil
}

func (s *Server) handleListDeadLetters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.queue.ListNotifications(ctx, primary.NotificationFilters{Status: primary.NotificationStatusDeadLetter})
	if err != nil {
		return toolError(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No dead-lettered follow-ups."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d dead-lettered follow-up(s):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s caller %s after %d attempt(s): %s\n  answer: %s\n", e.RequestID, e.CallerID, e.AttemptCount, e.LastError, e.Answer)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleRequeue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	id, _ := args["request_id"].(string)
	if id == "" {
		return mcp.NewToolResultError("request_id is required"), nil
	}

	ctx = ctxutil.WithActorID(ctx, ctxutil.ActorSupervisor)
	if err := s.queue.Requeue(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Requeued follow-up %s.", id)), nil
}

func (s *Server) handleSearchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	query, _ := args["query"].(string)

	entries, err := s.knowledge.List(ctx, query)
	if err != nil {
		return toolError(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No learned answers match."), nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", e.Question, e.Answer)
	}
	return mcp.NewToolResultText(strings.TrimSpace(b.String())), nil
}

func (s *Server) handleAddKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	question, _ := args["question"].(string)
	answer, _ := args["answer"].(string)

	if err := s.knowledge.Upsert(ctx, primary.UpsertKnowledgeRequest{Question: question, Answer: answer}); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Learned answer for %q.", strings.TrimSpace(question))), nil
}

// toolError turns a service error into an error result. Rejections of
// terminal escalations are prefixed so clients can tell them from failures.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, primary.ErrAlreadyTerminal) {
		return mcp.NewToolResultError("rejected: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}
