package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/wire"
)

// FollowUpCmd returns the followup command
func FollowUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "followup",
		Aliases: []string{"fu"},
		Short:   "Inspect and repair the follow-up queue",
	}

	var status, caller string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List follow-ups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.FollowUpAdapter().List(NewContext(), status, caller)
		},
	}
	listCmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (pending, delivered, dead_letter)")
	listCmd.Flags().StringVarP(&caller, "caller", "c", "", "Filter by caller ID")

	deadCmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List follow-ups that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.FollowUpAdapter().List(NewContext(), primary.NotificationStatusDeadLetter, "")
		},
	}

	attemptsCmd := &cobra.Command{
		Use:   "attempts [request-id]",
		Short: "Show delivery attempts for a follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.FollowUpAdapter().Attempts(NewContext(), args[0])
		},
	}

	requeueCmd := &cobra.Command{
		Use:   "requeue [request-id]",
		Short: "Retry a dead-lettered follow-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.FollowUpAdapter().Requeue(NewContext(), args[0])
		},
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete delivered follow-ups past the retention age",
		RunE: func(cmd *cobra.Command, args []string) error {
			age, _ := cmd.Flags().GetDuration("older-than")
			if age <= 0 {
				age = wire.Config().Dispatch.PruneAfter
			}
			return wire.FollowUpAdapter().Prune(NewContext(), age)
		},
	}
	pruneCmd.Flags().Duration("older-than", 0, "Retention age (default dispatch.prune_after)")

	cmd.AddCommand(listCmd, deadCmd, attemptsCmd, requeueCmd, pruneCmd)
	return cmd
}
