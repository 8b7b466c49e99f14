package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/wire"
)

var escalationCmd = &cobra.Command{
	Use:     "escalation",
	Aliases: []string{"esc"},
	Short:   "Manage escalated questions",
	Long:    "List, answer and dismiss questions the agent handed to a supervisor",
}

var escalationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalations",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		caller, _ := cmd.Flags().GetString("caller")
		return wire.EscalationAdapter().List(NewContext(), status, caller)
	},
}

var escalationShowCmd = &cobra.Command{
	Use:   "show [escalation-id]",
	Short: "Show escalation details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.EscalationAdapter().Show(NewContext(), args[0])
		return err
	},
}

var escalationCreateCmd = &cobra.Command{
	Use:   "create [question]",
	Short: "Escalate a question by hand",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, _ := cmd.Flags().GetString("caller")
		return wire.EscalationAdapter().Create(NewContext(), caller, strings.Join(args, " "))
	},
}

var escalationResolveCmd = &cobra.Command{
	Use:   "resolve [escalation-id] [answer]",
	Short: "Answer a pending escalation",
	Long: `Record the supervisor answer. The follow-up is queued for delivery to the
caller and the answer is learned once it is delivered.

Rejected when the escalation is already resolved or has timed out.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.EscalationAdapter().Resolve(NewContext(), args[0], strings.Join(args[1:], " "))
	},
}

var escalationDismissCmd = &cobra.Command{
	Use:   "dismiss [escalation-id]",
	Short: "Close a pending escalation without answering",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return wire.EscalationAdapter().Dismiss(NewContext(), args[0], reason)
	},
}

var escalationHistoryCmd = &cobra.Command{
	Use:   "history [escalation-id]",
	Short: "Show the audit trail for an escalation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.EscalationAdapter().History(NewContext(), args[0])
	},
}

// EscalationCmd returns the escalation command
func EscalationCmd() *cobra.Command {
	escalationListCmd.Flags().StringP("status", "s", "", "Filter by status (pending, resolved, expired)")
	escalationListCmd.Flags().StringP("caller", "c", "", "Filter by caller ID")
	escalationCreateCmd.Flags().StringP("caller", "c", "manual", "Caller ID to attribute the question to")
	escalationDismissCmd.Flags().StringP("reason", "r", "", "Why the escalation was dismissed")

	escalationCmd.AddCommand(escalationListCmd)
	escalationCmd.AddCommand(escalationShowCmd)
	escalationCmd.AddCommand(escalationCreateCmd)
	escalationCmd.AddCommand(escalationResolveCmd)
	escalationCmd.AddCommand(escalationDismissCmd)
	escalationCmd.AddCommand(escalationHistoryCmd)

	return escalationCmd
}
