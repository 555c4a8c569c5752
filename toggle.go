package main

import (
	"github.com/spf13/cobra"
)

func newToggleCmd() *cobra.Command {
	var (
		onWatchlist bool
		title       string
	)

	cmd := &cobra.Command{
		Use:   "toggle <movie-id>",
		Short: "Toggle a movie's favorites (or watchlist) membership",
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

			movie, err := a.lookupMovie(ctx, movieID, title)
			if err != nil {
				return err
			}

			svc := a.service(onWatchlist)

			added, err := svc.Toggle(ctx, movie)
			if err != nil {
				return err
			}

			if added {
				statusf("Added %q to %s\n", movie.Title, svc.Kind())
			} else {
				statusf("Removed %q from %s\n", movie.Title, svc.Kind())
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&onWatchlist, "watchlist", "w", false, "target the watchlist instead of favorites")
	cmd.Flags().StringVar(&title, "title", "", "movie title for offline toggles of unseen movies")

	return cmd
}
