package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reelsync/reelsync/internal/store"
	"github.com/reelsync/reelsync/internal/syncer"
)

func newAddCmd() *cobra.Command {
	var (
		toWatchlist bool
		title       string
	)

	cmd := &cobra.Command{
		Use:   "add <movie-id>",
		Short: "Add a movie to favorites (or the watchlist)",
		Long: `Add a movie to your favorites or watchlist. The change is written locally
first and pushed to the tracking service through the outbox: immediately when
online, on the next reconnect otherwise.

When offline, the movie details come from the local catalog cache; for a movie
never seen before, pass --title to record a minimal entry.`,
		Args: cobra.ExactArgs(1),
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

			svc := a.service(toWatchlist)
			if err := svc.Add(ctx, movie); err != nil {
				return err
			}

			statusf("Added %q to %s\n", movie.Title, svc.Kind())

			return nil
		},
	}

	cmd.Flags().BoolVarP(&toWatchlist, "watchlist", "w", false, "target the watchlist instead of favorites")
	cmd.Flags().StringVar(&title, "title", "", "movie title for offline adds of unseen movies")

	return cmd
}

func parseMovieID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", arg)
	}

	return id, nil
}

// movieCacheKey is the TTL cache key for one catalog movie.
func movieCacheKey(id int64) string {
	return fmt.Sprintf("movie:%d", id)
}

// lookupMovie resolves a movie snapshot: TTL cache, then the catalog when
// online, then the local projection, then a minimal --title entry.
func (a *app) lookupMovie(ctx context.Context, id int64, title string) (store.Movie, error) {
	var cached store.Movie
	if a.store.CacheGet(ctx, movieCacheKey(id), &cached) {
		return cached, nil
	}

	if a.monitor.IsOnline() {
		fetched, err := a.client.GetMovie(ctx, id)
		if err == nil {
			movie := syncer.ToStoreMovie(*fetched)
			a.store.CacheSet(ctx, movieCacheKey(id), movie, a.cfg.Storage.CacheTTLMinutes)

			return movie, nil
		}

		a.logger.Warn("catalog lookup failed, falling back to local data", "movie_id", id, "error", err)
	}

	if local, err := a.store.GetMovie(ctx, id); err == nil && local != nil {
		return *local, nil
	}

	if title == "" {
		return store.Movie{}, fmt.Errorf("movie %d is not cached locally; pass --title to add it offline", id)
	}

	return store.Movie{ID: id, Title: title}, nil
}
