package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/reelsync/internal/api"
	"github.com/reelsync/reelsync/internal/store"
)

func remoteItem(id int64, title string, addedAt int64) api.ListItem {
	return api.ListItem{
		Movie:   api.Movie{ID: id, Title: title, VoteAverage: 7.0},
		AddedAt: addedAt,
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("remote state is mirrored locally", func(t *testing.T) {
		manager, st, remote, _ := newTestManager(t, true)

		// Local drift with no queued mutation behind it.
		require.NoError(t, st.AddToList(ctx, store.Favorites, makeTestMovie(99, "Drift"), 500))

		remote.favorites = []api.ListItem{
			remoteItem(1, "Alien", 100),
			remoteItem(2, "Aliens", 200),
		}

		require.NoError(t, manager.SyncFavorites(ctx))

		assert.False(t, st.InList(ctx, store.Favorites, 99), "ambient drift is not preserved")
		assert.True(t, st.InList(ctx, store.Favorites, 1))
		assert.True(t, st.InList(ctx, store.Favorites, 2))

		// Movie projections were refreshed for offline rendering.
		movie, err := st.GetMovie(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, movie)
		assert.Equal(t, "Alien", movie.Title)
	})

	t.Run("drain happens before the mirror", func(t *testing.T) {
		manager, st, remote, _ := newTestManager(t, true)

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, st.AddToList(ctx, store.Favorites, movie, 100))
		_, err := st.Enqueue(ctx, store.AddFavorite, store.AddPayload{Movie: movie, AddedAt: 100})
		require.NoError(t, err)

		// The fake remote does not echo pushed writes into its list response,
		// mimicking a replica lag; the drained mutation must still be gone.
		require.NoError(t, manager.SyncFavorites(ctx))

		require.Len(t, remote.addFavoriteCalls, 1)

		size, err := st.QueueSize(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, size)
	})

	t.Run("rows with pending adds survive the mirror", func(t *testing.T) {
		manager, st, remote, _ := newTestManager(t, true)
		remote.failWrites = true

		movie := makeTestMovie(42, "Blade Runner")
		require.NoError(t, st.AddToList(ctx, store.Favorites, movie, 100))
		_, err := st.Enqueue(ctx, store.AddFavorite, store.AddPayload{Movie: movie, AddedAt: 100})
		require.NoError(t, err)

		remote.favorites = []api.ListItem{remoteItem(1, "Alien", 50)}

		// Drain fails, reconcile proceeds; the unsynced local add must not
		// be wiped by the authoritative mirror.
		require.NoError(t, manager.SyncFavorites(ctx))

		assert.True(t, st.InList(ctx, store.Favorites, 42))
		assert.True(t, st.InList(ctx, store.Favorites, 1))
	})

	t.Run("remote entries with pending removes are excluded", func(t *testing.T) {
		manager, st, remote, _ := newTestManager(t, true)
		remote.failWrites = true

		_, err := st.Enqueue(ctx, store.RemoveFavorite, store.RemovePayload{MovieID: 1})
		require.NoError(t, err)

		remote.favorites = []api.ListItem{
			remoteItem(1, "Alien", 50),
			remoteItem(2, "Aliens", 60),
		}

		require.NoError(t, manager.SyncFavorites(ctx))

		assert.False(t, st.InList(ctx, store.Favorites, 1), "pending remove must not resurrect")
		assert.True(t, st.InList(ctx, store.Favorites, 2))
	})

	t.Run("sync all reconciles both lists", func(t *testing.T) {
		manager, st, remote, _ := newTestManager(t, true)

		remote.favorites = []api.ListItem{remoteItem(1, "Alien", 100)}
		remote.watchlist = []api.ListItem{remoteItem(2, "Aliens", 200)}

		require.NoError(t, manager.SyncAll(ctx))

		assert.True(t, st.InList(ctx, store.Favorites, 1))
		assert.True(t, st.InList(ctx, store.Watchlist, 2))
	})
}

func TestRun(t *testing.T) {
	t.Run("reconnect edge triggers a sync", func(t *testing.T) {
		manager, st, remote, monitor := newTestManager(t, false)

		remote.favorites = []api.ListItem{remoteItem(1, "Alien", 100)}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = manager.Run(ctx)
		}()

		// Wait for Run to register its subscription before firing the edge;
		// an edge delivered earlier is lost by design.
		require.Eventually(t, func() bool {
			monitor.mu.Lock()
			defer monitor.mu.Unlock()

			return len(monitor.subs) > 0
		}, 2*time.Second, 10*time.Millisecond)

		monitor.setOnline(true)

		require.Eventually(t, func() bool {
			return st.InList(context.Background(), store.Favorites, 1)
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		<-done
	})
}
