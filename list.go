package main

import (
	"fmt"
	"sort"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/reelsync/reelsync/internal/store"
)

func newListCmd() *cobra.Command {
	var (
		search  string
		byTitle bool
	)

	cmd := &cobra.Command{
		Use:       "list [favorites|watchlist]",
		Short:     "Show a list from the local database (no network)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"favorites", "watchlist"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := store.Favorites
			if len(args) == 1 {
				kind = store.ListKind(args[0])
				if !kind.Valid() {
					return fmt.Errorf("unknown list %q", args[0])
				}
			}

			ctx := cmd.Context()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.service(kind == store.Watchlist).List(ctx)
			if err != nil {
				return err
			}

			if search != "" {
				entries = filterEntries(entries, search)
			}

			if byTitle {
				sortByTitle(entries)
			}

			printEntries(kind, entries)

			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "fuzzy-match titles")
	cmd.Flags().BoolVar(&byTitle, "by-title", false, "sort by title instead of recency")

	return cmd
}

// filterEntries keeps entries whose titles fuzzy-match term, best match first.
func filterEntries(entries []store.ListEntry, term string) []store.ListEntry {
	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Movie.Title
	}

	matches := fuzzy.Find(term, titles)

	filtered := make([]store.ListEntry, 0, len(matches))
	for _, m := range matches {
		filtered = append(filtered, entries[m.Index])
	}

	return filtered
}

// sortByTitle orders entries by locale-aware title collation.
func sortByTitle(entries []store.ListEntry) {
	c := collate.New(language.Und, collate.IgnoreCase)

	sort.SliceStable(entries, func(i, j int) bool {
		return c.CompareString(entries[i].Movie.Title, entries[j].Movie.Title) < 0
	})
}
