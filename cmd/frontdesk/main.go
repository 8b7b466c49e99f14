package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/cli"
	"github.com/example/frontdesk/internal/version"
	"github.com/example/frontdesk/internal/wire"
)

func main() {
	var (
		verbose, quiet bool
		actor          string
	)

	rootCmd := &cobra.Command{
		Use:     "frontdesk",
		Short:   "Frontdesk - escalation and follow-up engine for a voice agent",
		Version: version.String(),
		Long: `Frontdesk answers caller questions from learned answers, escalates the rest
to a human supervisor, and calls back with the supervisor's answer. Questions
nobody answers in time expire and the caller is told so.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Long-running commands log at info; one-shot commands stay quiet.
			q := quiet
			if cmd.Name() != "serve" && !verbose {
				q = true
			}
			return cli.Bootstrap(verbose, q, actor)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Name recorded in the audit trail (default supervisor)")

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.AskCmd())
	rootCmd.AddCommand(cli.EscalationCmd())
	rootCmd.AddCommand(cli.KnowledgeCmd())
	rootCmd.AddCommand(cli.FollowUpCmd())

	// Long-running
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MCPCmd())

	err := rootCmd.Execute()
	if closeErr := wire.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
