package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/wire"
)

// KnowledgeCmd returns the knowledge command
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage learned answers",
	}

	listCmd := &cobra.Command{
		Use:   "list [search]",
		Short: "List learned answers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			search := ""
			if len(args) == 1 {
				search = args[0]
			}
			return wire.KnowledgeAdapter().List(NewContext(), search)
		},
	}

	addCmd := &cobra.Command{
		Use:   "add [question] [answer]",
		Short: "Teach an answer directly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.KnowledgeAdapter().Add(NewContext(), args[0], args[1])
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [question]",
		Short: "Forget a learned answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.KnowledgeAdapter().Delete(NewContext(), strings.Join(args, " "))
		},
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup [question]",
		Short: "Show the learned answer for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.KnowledgeAdapter().Lookup(NewContext(), strings.Join(args, " "))
		},
	}

	cmd.AddCommand(listCmd, addCmd, deleteCmd, lookupCmd)
	return cmd
}

// AskCmd returns the ask command
func AskCmd() *cobra.Command {
	var caller string

	cmd := &cobra.Command{
		Use:   "ask [utterance]",
		Short: "Put a question to the agent as a caller would",
		Long: `Run an utterance through the agent: learned answers first, then the
fallback model, then escalation to a supervisor.

Examples:
  frontdesk ask "What are your hours?"
  frontdesk ask --caller room-7 "Do you sell gift cards?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.KnowledgeAdapter().Ask(NewContext(), caller, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&caller, "caller", "c", "cli", "Caller ID")
	return cmd
}
