package syncer

import (
	"context"

	"github.com/reelsync/reelsync/internal/api"
	"github.com/reelsync/reelsync/internal/store"
)

// reconcile fetches the authoritative remote list and mirrors it into the
// local store. Once the drain has replayed every pushable mutation, whichever
// side persisted most recently has already won; the fetched list is that
// merged result, so mirroring it is last-writer-wins.
//
// Two corrections protect mutations the drain could not deliver:
//   - local rows with a still-pending add survive the mirror (they have not
//     reached the remote yet, so the remote list cannot contain them), and
//   - remote entries with a still-pending remove are excluded (the local
//     delete has not reached the remote yet and would otherwise resurrect).
//
// Ambient drift — a local row with no queued mutation behind it — is not
// pushed back; only outbox-originated writes travel local-to-remote.
func (m *Manager) reconcile(ctx context.Context, kind store.ListKind) error {
	items, err := m.fetchRemote(ctx, kind)
	if err != nil {
		return err
	}

	pendingAdds, pendingRemoves, err := m.pendingByKind(ctx, kind)
	if err != nil {
		return err
	}

	entries := make([]store.ListEntry, 0, len(items))

	for _, item := range items {
		if pendingRemoves[item.Movie.ID] {
			continue
		}

		movie := ToStoreMovie(item.Movie)

		// Refresh the catalog projection so lists render offline.
		if err := m.store.UpsertMovie(ctx, movie); err != nil {
			m.logger.Warn("caching synced movie failed", "movie_id", movie.ID, "error", err)
		}

		entries = append(entries, store.ListEntry{Movie: movie, AddedAt: item.AddedAt})
	}

	if err := m.store.ReplaceList(ctx, kind, entries, pendingAdds); err != nil {
		return err
	}

	m.logger.Info("list reconciled", "list", kind, "remote_rows", len(items), "kept_pending", len(pendingAdds))

	return nil
}

func (m *Manager) fetchRemote(ctx context.Context, kind store.ListKind) ([]api.ListItem, error) {
	if kind == store.Favorites {
		return m.remote.ListFavorites(ctx, m.userID)
	}

	return m.remote.ListWatchlist(ctx, m.userID)
}

// pendingByKind splits the still-queued mutations for one list into movie ids
// with pending adds and movie ids with pending removes. A movie with both
// resolves to whichever was enqueued later, since the snapshot is FIFO.
func (m *Manager) pendingByKind(ctx context.Context, kind store.ListKind) ([]int64, map[int64]bool, error) {
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return nil, nil, err
	}

	adds := make(map[int64]bool)
	removes := make(map[int64]bool)

	for _, mut := range pending {
		switch {
		case mut.Type == store.AddFavorite && kind == store.Favorites,
			mut.Type == store.ToggleFavorite && kind == store.Favorites,
			mut.Type == store.AddWatchlist && kind == store.Watchlist:
			p, err := mut.DecodeAdd()
			if err != nil {
				m.logger.Warn("skipping undecodable pending mutation", "id", mut.ID, "error", err)
				continue
			}

			adds[p.Movie.ID] = true
			delete(removes, p.Movie.ID)

		case mut.Type == store.RemoveFavorite && kind == store.Favorites,
			mut.Type == store.RemoveWatchlist && kind == store.Watchlist:
			p, err := mut.DecodeRemove()
			if err != nil {
				m.logger.Warn("skipping undecodable pending mutation", "id", mut.ID, "error", err)
				continue
			}

			removes[p.MovieID] = true
			delete(adds, p.MovieID)
		}
	}

	addIDs := make([]int64, 0, len(adds))
	for id := range adds {
		addIDs = append(addIDs, id)
	}

	return addIDs, removes, nil
}
