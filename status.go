package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/store"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue depth, and list counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			state := a.manager.State()

			queueSize, err := a.store.QueueSize(ctx)
			if err != nil {
				return err
			}

			favCount, err := a.store.CountList(ctx, store.Favorites)
			if err != nil {
				return err
			}

			watchCount, err := a.store.CountList(ctx, store.Watchlist)
			if err != nil {
				return err
			}

			fmt.Printf("Online:          %s\n", yesNo(state.IsOnline))
			fmt.Printf("Syncing:         %s\n", yesNo(state.IsSyncing))
			fmt.Printf("Pending writes:  %d\n", queueSize)
			fmt.Printf("Favorites:       %d\n", favCount)
			fmt.Printf("Watchlist:       %d\n", watchCount)

			if lastErr := a.favorites.LastError(); lastErr != "" {
				fmt.Printf("Favorites error: %s\n", lastErr)
			}

			if lastErr := a.watchlist.LastError(); lastErr != "" {
				fmt.Printf("Watchlist error: %s\n", lastErr)
			}

			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
