package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertMovie(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		st := newTestStore(t)

		movie := makeTestMovie(603, "The Matrix")
		require.NoError(t, st.UpsertMovie(ctx, movie))

		got, err := st.GetMovie(ctx, 603)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, movie, *got)
	})

	t.Run("second upsert fully replaces the first", func(t *testing.T) {
		st := newTestStore(t)

		first := makeTestMovie(603, "The Matrix")
		require.NoError(t, st.UpsertMovie(ctx, first))

		second := first
		second.Title = "The Matrix Reloaded"
		second.VoteAverage = 6.9
		second.GenreIDs = []int64{28}
		require.NoError(t, st.UpsertMovie(ctx, second))

		var count int
		err := st.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies WHERE id = 603").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := st.GetMovie(ctx, 603)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, second, *got)
	})

	t.Run("get missing movie returns nil", func(t *testing.T) {
		st := newTestStore(t)

		got, err := st.GetMovie(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
