// Package cli provides CLI commands for the frontdesk application.
package cli

import (
	gocontext "context"
	"fmt"
	"os"

	"github.com/example/frontdesk/internal/config"
	"github.com/example/frontdesk/internal/ctxutil"
	"github.com/example/frontdesk/internal/logging"
	"github.com/example/frontdesk/internal/wire"
)

// globalActorID stores the actor ID for the current CLI invocation.
// Set once at startup by Bootstrap.
var globalActorID = ctxutil.ActorSupervisor

// Bootstrap loads configuration from the working directory and hands it to
// the wire package together with a logger. An empty actor falls back to
// FRONTDESK_ACTOR, then to the supervisor. Should be called once at CLI
// startup in PersistentPreRunE.
func Bootstrap(verbose, quiet bool, actor string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		return err
	}

	logger, err := logging.New(verbose, quiet)
	if err != nil {
		return err
	}

	if actor == "" {
		actor = os.Getenv("FRONTDESK_ACTOR")
	}
	if actor != "" {
		globalActorID = actor
	}

	wire.Configure(cfg, logger)
	return nil
}

// GetActorID returns the actor ID used for changes made from the CLI.
func GetActorID() string {
	return globalActorID
}

// NewContext creates a context.Background() with the current actor ID embedded.
// CLI commands should use this instead of context.Background() directly.
func NewContext() gocontext.Context {
	return ctxutil.WithActorID(gocontext.Background(), globalActorID)
}
