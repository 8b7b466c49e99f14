package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/version"
	"github.com/example/frontdesk/internal/wire"
)

// MCPCmd returns the mcp command
func MCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve supervisor tools over MCP on stdio",
		Long: `Expose the supervisor workflow as MCP tools so an assistant client can
list pending questions, answer or dismiss them, retry dead-lettered
follow-ups and manage learned answers.

Run "frontdesk serve" alongside it so answers are delivered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.MCPServer().ServeStdio(version.String())
		},
	}
}
