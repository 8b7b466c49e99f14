package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/frontdesk/internal/adapters/dbwatch"
	"github.com/example/frontdesk/internal/version"
	"github.com/example/frontdesk/internal/wire"
)

const pruneInterval = time.Hour

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the timeout monitor and follow-up dispatcher",
		Long: `Run the background loops until interrupted:
- the timeout monitor expires escalations nobody answered in time
- the dispatcher delivers supervisor answers to callers
- delivered follow-ups past dispatch.prune_after are pruned hourly

Answers recorded by another process are picked up when the database file
changes, or on the next poll when file watching is unavailable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg := wire.Config()
	logger := wire.Logger()
	dispatcher := wire.Dispatcher()
	monitor := wire.TimeoutMonitor()

	logger.Info("frontdesk serving",
		zap.String("version", version.String()),
		zap.String("db", cfg.DBPath),
		zap.String("caller_id", cfg.CallerID),
		zap.Duration("timeout_window", cfg.Escalation.TimeoutWindow),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error { return monitor.Run(ctx) })

	if cfg.Dispatch.WatchDB {
		watcher, err := dbwatch.New(cfg.DBPath, dispatcher.Wake, logger)
		if err != nil {
			logger.Warn("database watch unavailable; relying on polling", zap.Error(err))
		} else {
			g.Go(func() error { return watcher.Run(ctx) })
		}
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return wire.Metrics().Serve(ctx, cfg.Metrics.Addr, logger) })
	}

	g.Go(func() error { return prune(ctx, cfg.Dispatch.PruneAfter, logger) })

	err := g.Wait()
	logger.Info("frontdesk stopped")
	return err
}

func prune(ctx context.Context, olderThan time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := wire.NotificationService().Prune(ctx, olderThan)
			if err != nil {
				logger.Warn("prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("pruned delivered follow-ups", zap.Int("count", n))
			}
		}
	}
}
