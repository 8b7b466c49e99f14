package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/frontdesk/internal/config"
	"github.com/example/frontdesk/internal/db"
	"github.com/example/frontdesk/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize frontdesk in the current directory",
		Long: `Create .frontdesk/config.yaml with default settings, create the database
with the required schema, and load the starter FAQ into the knowledge base.

An existing config file is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			if _, err := os.Stat(config.Path(cwd)); errors.Is(err, fs.ErrNotExist) {
				if err := config.SaveConfig(cwd, config.Default()); err != nil {
					return err
				}
				fmt.Printf("✓ Config written to %s\n", config.Path(cwd))
			} else {
				fmt.Printf("Config already exists at %s\n", config.Path(cwd))
			}

			cfg := wire.Config()
			fmt.Printf("Initializing database at %s\n", cfg.DBPath)
			database := wire.DB()
			version, err := db.CurrentVersion(database)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Database ready (schema v%d)\n", version)

			if !noSeed {
				n, err := db.SeedKnowledge(database)
				if err != nil {
					return err
				}
				fmt.Printf("✓ Loaded %d starter answer(s)\n", n)
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  frontdesk serve")
			fmt.Println("  frontdesk ask \"What are your hours?\"")

			return nil
		},
	}

	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Skip loading the starter FAQ")
	return cmd
}
