package store

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(&testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testWriter adapts testing.T to io.Writer for slog output.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// newTestStore creates an in-memory Store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(":memory:", testLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	return st
}

// testClock is an adjustable epoch-ms clock for TTL tests.
type testClock struct {
	now int64
}

func (c *testClock) Now() int64 {
	return c.now
}

func (c *testClock) Advance(ms int64) {
	c.now += ms
}

func makeTestMovie(id int64, title string) Movie {
	return Movie{
		ID:          id,
		Title:       title,
		Overview:    "a test movie",
		PosterPath:  "/poster.jpg",
		VoteAverage: 7.2,
		ReleaseDate: "2024-05-01",
		GenreIDs:    []int64{18, 53},
	}
}

func TestOpen(t *testing.T) {
	t.Run("opens in-memory database", func(t *testing.T) {
		st := newTestStore(t)
		assert.NotNil(t, st.db)
	})

	t.Run("migration creates all tables", func(t *testing.T) {
		st := newTestStore(t)
		ctx := context.Background()

		for _, table := range []string{"cache", "mutation_queue", "movies", "favorites", "watchlist"} {
			var name string
			err := st.db.QueryRowContext(ctx,
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
			).Scan(&name)
			require.NoError(t, err, "table %s missing", table)
			assert.Equal(t, table, name)
		}
	})

	t.Run("foreign keys pragma is on", func(t *testing.T) {
		st := newTestStore(t)

		var fk int
		err := st.db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&fk)
		require.NoError(t, err)
		assert.Equal(t, 1, fk)
	})
}
