package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/reelsync/reelsync/internal/syncer"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run continuously, syncing whenever connectivity returns",
		Long: `Poll connectivity and run a full sync on every offline-to-online transition.
Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			unsubscribe := a.manager.Subscribe(func(state syncer.State) {
				if state.IsSyncing {
					statusf("Syncing...\n")
				}
			})
			defer unsubscribe()

			a.logger.Info("watch started", "interval_seconds", a.cfg.Sync.ProbeIntervalSeconds)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.monitor.Run(gctx) })
			g.Go(func() error { return a.manager.Run(gctx) })

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			statusf("Stopped\n")

			return nil
		},
	}
}
