package main

import (
	"github.com/spf13/cobra"
)

func newRemoveCmd() *cobra.Command {
	var fromWatchlist bool

	cmd := &cobra.Command{
		Use:   "remove <movie-id>",
		Short: "Remove a movie from favorites (or the watchlist)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movieID, err := parseMovieID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.service(fromWatchlist)
			if err := svc.Remove(ctx, movieID); err != nil {
				return err
			}

			statusf("Removed movie %d from %s\n", movieID, svc.Kind())

			return nil
		},
	}

	cmd.Flags().BoolVarP(&fromWatchlist, "watchlist", "w", false, "target the watchlist instead of favorites")

	return cmd
}
