package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/db"
	"github.com/example/frontdesk/internal/version"
	"github.com/example/frontdesk/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and queue counts",
		Long: `Display where frontdesk keeps its state and a summary of the system:
- pending, resolved and expired escalations
- pending, delivered and dead-lettered follow-ups`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()

			fmt.Println(version.String())
			fmt.Printf("Database:       %s\n", cfg.DBPath)
			schema, err := db.CurrentVersion(wire.DB())
			if err != nil {
				return err
			}
			fmt.Printf("Schema:         v%d\n", schema)
			if cfg.CallerID != "" {
				fmt.Printf("Caller:         %s\n", cfg.CallerID)
			}
			fmt.Printf("Timeout window: %s\n", cfg.Escalation.TimeoutWindow)
			if cfg.Voice.WebhookURL != "" {
				fmt.Printf("Voice:          %s (%s)\n", cfg.Voice.WebhookURL, wire.VoiceState())
			} else {
				fmt.Println("Voice:          console")
			}
			if cfg.Fallback.OllamaURL != "" {
				fmt.Printf("Fallback:       %s @ %s\n", cfg.Fallback.Model, cfg.Fallback.OllamaURL)
			} else {
				fmt.Println("Fallback:       off")
			}
			fmt.Println()

			return wire.EscalationAdapter().Stats(NewContext())
		},
	}
}
