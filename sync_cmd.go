package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/store"
)

func newSyncCmd() *cobra.Command {
	var only string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the outbox and reconcile with the tracking service",
		Long: `Run one sync cycle: replay every pending local mutation against the tracking
service, then fetch the authoritative remote lists and mirror them locally.
Poison mutations (three failed attempts) are dropped rather than blocking the
queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.monitor.IsOnline() {
				return fmt.Errorf("offline: cannot reach %s", a.cfg.API.BaseURL)
			}

			switch only {
			case "":
				err = a.manager.SyncAll(ctx)
			case string(store.Favorites):
				err = a.manager.SyncFavorites(ctx)
			case string(store.Watchlist):
				err = a.manager.SyncWatchlist(ctx)
			default:
				return fmt.Errorf("unknown list %q", only)
			}

			if err != nil {
				return err
			}

			queueSize, err := a.store.QueueSize(ctx)
			if err != nil {
				return err
			}

			statusf("Sync complete, %d mutations still pending\n", queueSize)

			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "sync a single list: favorites or watchlist")

	return cmd
}
