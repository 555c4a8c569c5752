package library

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/reelsync/internal/store"
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

type fakeDrainer struct {
	calls int
	err   error
}

func (f *fakeDrainer) Drain(_ context.Context) error {
	f.calls++
	return f.err
}

type fakeConnectivity struct {
	online bool
}

func (f *fakeConnectivity) IsOnline() bool {
	return f.online
}

func newTestService(t *testing.T, online bool) (*Service, *store.Store, *fakeDrainer) {
	t.Helper()

	st, err := store.Open(":memory:", testLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	drainer := &fakeDrainer{}
	svc := NewFavorites(st, drainer, &fakeConnectivity{online: online}, testLogger(t))

	return svc, st, drainer
}

func makeTestMovie(id int64, title string) store.Movie {
	return store.Movie{ID: id, Title: title, VoteAverage: 8.1}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("add then contains", func(t *testing.T) {
		svc, _, _ := newTestService(t, true)

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, svc.Add(ctx, movie))

		assert.True(t, svc.Contains(ctx, 42))
	})

	t.Run("offline add queues and skips the drain", func(t *testing.T) {
		svc, st, drainer := newTestService(t, false)

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, svc.Add(ctx, movie))

		// Optimistic local write landed.
		assert.True(t, svc.Contains(ctx, 42))

		// The outbox holds exactly one ADD_FAVORITE for this movie.
		pending, err := st.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, store.AddFavorite, pending[0].Type)

		p, err := pending[0].DecodeAdd()
		require.NoError(t, err)
		assert.Equal(t, int64(42), p.Movie.ID)

		assert.Zero(t, drainer.calls)
	})

	t.Run("online add drains immediately", func(t *testing.T) {
		svc, _, drainer := newTestService(t, true)

		require.NoError(t, svc.Add(ctx, makeTestMovie(42, "Blade Runner")))

		assert.Equal(t, 1, drainer.calls)
	})

	t.Run("failed drain does not fail the add", func(t *testing.T) {
		svc, st, drainer := newTestService(t, true)
		drainer.err = errors.New("remote down")

		require.NoError(t, svc.Add(ctx, makeTestMovie(42, "Blade Runner")))

		assert.True(t, svc.Contains(ctx, 42))
		assert.Empty(t, svc.LastError())

		size, err := st.QueueSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, size)
	})

	t.Run("add caches the movie projection", func(t *testing.T) {
		svc, st, _ := newTestService(t, true)

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, svc.Add(ctx, movie))

		got, err := st.GetMovie(ctx, 42)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Blade Runner", got.Title)
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("remove after add", func(t *testing.T) {
		svc, _, _ := newTestService(t, true)

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, svc.Add(ctx, movie))
		require.NoError(t, svc.Remove(ctx, 42))

		assert.False(t, svc.Contains(ctx, 42))
	})

	t.Run("offline remove queues the delete", func(t *testing.T) {
		svc, st, _ := newTestService(t, false)

		require.NoError(t, svc.Remove(ctx, 42))

		pending, err := st.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, store.RemoveFavorite, pending[0].Type)
	})
}

func TestToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("toggle flips membership both ways", func(t *testing.T) {
		svc, _, _ := newTestService(t, true)
		movie := makeTestMovie(42, "Blade Runner")

		added, err := svc.Toggle(ctx, movie)
		require.NoError(t, err)
		assert.True(t, added)
		assert.True(t, svc.Contains(ctx, 42))

		added, err = svc.Toggle(ctx, movie)
		require.NoError(t, err)
		assert.False(t, added)
		assert.False(t, svc.Contains(ctx, 42))
	})

	t.Run("toggle queues the matching mutation", func(t *testing.T) {
		svc, st, _ := newTestService(t, false)
		movie := makeTestMovie(42, "Blade Runner")

		_, err := svc.Toggle(ctx, movie)
		require.NoError(t, err)

		_, err = svc.Toggle(ctx, movie)
		require.NoError(t, err)

		pending, err := st.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, store.AddFavorite, pending[0].Type)
		assert.Equal(t, store.RemoveFavorite, pending[1].Type)
	})
}

func TestClearAndErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("clear is local only", func(t *testing.T) {
		svc, st, _ := newTestService(t, false)

		require.NoError(t, svc.Add(ctx, makeTestMovie(1, "A")))
		require.NoError(t, svc.Add(ctx, makeTestMovie(2, "B")))

		queued, err := st.QueueSize(ctx)
		require.NoError(t, err)

		require.NoError(t, svc.Clear(ctx))

		entries, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)

		// Clear enqueues nothing; the outbox is untouched.
		after, err := st.QueueSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, queued, after)
	})

	t.Run("error slot is set and clearable", func(t *testing.T) {
		svc, st, _ := newTestService(t, true)

		// Force local write failures by closing the database out from under
		// the service.
		require.NoError(t, st.Close())

		err := svc.Add(ctx, makeTestMovie(1, "A"))
		require.Error(t, err)
		assert.NotEmpty(t, svc.LastError())

		svc.ClearError()
		assert.Empty(t, svc.LastError())
	})

	t.Run("watchlist service uses watchlist mutations", func(t *testing.T) {
		st, err := store.Open(":memory:", testLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })

		svc := NewWatchlist(st, &fakeDrainer{}, &fakeConnectivity{}, testLogger(t))

		require.NoError(t, svc.Add(ctx, makeTestMovie(3, "C")))

		pending, err := st.ListPending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, store.AddWatchlist, pending[0].Type)
	})
}
