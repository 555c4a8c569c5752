package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/reelsync/reelsync/internal/store"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// stdoutIsTerminal reports whether stdout is an interactive terminal. On a
// terminal, list output gets a header and aligned columns; piped output stays
// tab-separated for scripts.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printEntries renders a list for human or script consumption.
func printEntries(kind store.ListKind, entries []store.ListEntry) {
	if len(entries) == 0 {
		statusf("No movies in %s\n", kind)
		return
	}

	terminal := stdoutIsTerminal()

	if terminal {
		fmt.Printf("%-10s %-42s %-6s %s\n", "ID", "TITLE", "RATING", "ADDED")
	}

	for _, e := range entries {
		added := formatTime(time.UnixMilli(e.AddedAt))

		if terminal {
			fmt.Printf("%-10d %-42s %-6.1f %s\n", e.Movie.ID, truncate(e.Movie.Title, 42), e.Movie.VoteAverage, added)
		} else {
			fmt.Printf("%d\t%s\t%.1f\t%s\n", e.Movie.ID, e.Movie.Title, e.Movie.VoteAverage, added)
		}
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	now := time.Now()

	// Same calendar year: show "Jan  2 15:04"
	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	// Different year: show "Jan  2  2006"
	return t.Format("Jan _2  2006")
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max-1]) + "…"
}
