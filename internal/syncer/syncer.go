// Package syncer implements the reconciliation engine: it drains the mutation
// outbox against the remote tracking service and mirrors authoritative remote
// list state back into the local store. Sync is best-effort background work;
// a failed cycle is logged and retried on the next trigger, never fatal.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reelsync/reelsync/internal/api"
	"github.com/reelsync/reelsync/internal/store"
)

// maxRetries bounds how many drain attempts a mutation gets before it is
// dropped as poison.
const maxRetries = 3

// Remote is the subset of the tracking service the syncer needs.
// Satisfied by *api.Client; tests provide fakes.
type Remote interface {
	ListFavorites(ctx context.Context, userID string) ([]api.ListItem, error)
	ListWatchlist(ctx context.Context, userID string) ([]api.ListItem, error)
	AddFavorite(ctx context.Context, userID string, item api.ListItem) error
	AddWatchlist(ctx context.Context, userID string, item api.ListItem) error
	RemoveFavorite(ctx context.Context, userID string, movieID int64) error
	RemoveWatchlist(ctx context.Context, userID string, movieID int64) error
}

// Connectivity reports the current online state. Satisfied by *netmon.Monitor.
type Connectivity interface {
	IsOnline() bool
	Subscribe(fn func(online bool)) func()
}

// State is the observable sync status surfaced to the UI layer.
type State struct {
	IsSyncing bool
	IsOnline  bool
}

// Manager owns the drain and reconcile cycle. It moves between idle and
// syncing: a cycle starts on an offline-to-online transition or an explicit
// Sync call, and always returns to idle when the cycle ends, successful or not.
type Manager struct {
	store   *store.Store
	remote  Remote
	monitor Connectivity
	userID  string
	logger  *slog.Logger

	mu      sync.Mutex
	syncing bool
	nextID  int
	subs    map[int]func(State)
}

// New creates a Manager. userID scopes all remote list calls.
func New(st *store.Store, remote Remote, monitor Connectivity, userID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		store:   st,
		remote:  remote,
		monitor: monitor,
		userID:  userID,
		logger:  logger,
		subs:    make(map[int]func(State)),
	}
}

// State returns the current sync status.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{IsSyncing: m.syncing, IsOnline: m.monitor.IsOnline()}
}

// Subscribe registers fn to be called whenever the syncing flag flips.
// The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subs, id)
	}
}

// setSyncing flips the syncing flag and notifies subscribers.
func (m *Manager) setSyncing(syncing bool) {
	m.mu.Lock()

	m.syncing = syncing
	state := State{IsSyncing: syncing, IsOnline: m.monitor.IsOnline()}

	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// SyncAll drains the outbox and reconciles both lists.
func (m *Manager) SyncAll(ctx context.Context) error {
	return m.sync(ctx, store.Favorites, store.Watchlist)
}

// SyncFavorites drains the outbox and reconciles the favorites list only.
func (m *Manager) SyncFavorites(ctx context.Context) error {
	return m.sync(ctx, store.Favorites)
}

// SyncWatchlist drains the outbox and reconciles the watchlist only.
func (m *Manager) SyncWatchlist(ctx context.Context) error {
	return m.sync(ctx, store.Watchlist)
}

func (m *Manager) sync(ctx context.Context, kinds ...store.ListKind) error {
	if m.userID == "" {
		return fmt.Errorf("syncer: no user session")
	}

	m.setSyncing(true)
	defer m.setSyncing(false)

	if err := m.Drain(ctx); err != nil {
		m.logger.Warn("drain incomplete", "error", err)
	}

	var firstErr error

	for _, kind := range kinds {
		if err := m.reconcile(ctx, kind); err != nil {
			m.logger.Warn("reconcile failed", "list", kind, "error", err)

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Run triggers a full sync on every offline-to-online transition until ctx is
// canceled. Sync errors are logged, never returned; the loop keeps going.
func (m *Manager) Run(ctx context.Context) error {
	trigger := make(chan struct{}, 1)

	unsubscribe := m.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}

		select {
		case trigger <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger:
			m.logger.Info("connectivity restored, syncing")

			if err := m.SyncAll(ctx); err != nil {
				m.logger.Warn("sync after reconnect failed", "error", err)
			}
		}
	}
}

// errOffline marks a drain skipped because the monitor reports offline.
var errOffline = fmt.Errorf("syncer: offline")

// Drain processes the outbox in one pass: each pending mutation is dispatched
// at most once, removed on success, retried on a later pass on failure, and
// dropped once its retry count reaches the bound. A mutation that keeps
// failing therefore cannot block the queue or loop forever within one cycle.
func (m *Manager) Drain(ctx context.Context) error {
	if !m.monitor.IsOnline() {
		return errOffline
	}

	if m.userID == "" {
		return fmt.Errorf("syncer: no user session")
	}

	pending, err := m.store.ListPending(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		return nil
	}

	m.logger.Info("draining mutation queue", "pending", len(pending))

	for _, mut := range pending {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("syncer: drain canceled: %w", err)
		}

		if err := m.dispatch(ctx, mut); err != nil {
			m.handleDispatchFailure(ctx, mut, err)
			continue
		}

		if err := m.store.RemoveMutation(ctx, mut.ID); err != nil {
			m.logger.Warn("removing drained mutation failed", "id", mut.ID, "error", err)
		}
	}

	return nil
}

// handleDispatchFailure applies the retry policy: increment the counter, and
// drop the mutation outright once it has failed maxRetries times.
func (m *Manager) handleDispatchFailure(ctx context.Context, mut *store.Mutation, dispatchErr error) {
	if mut.RetryCount+1 >= maxRetries {
		m.logger.Warn("dropping poison mutation",
			"id", mut.ID,
			"type", mut.Type,
			"attempts", mut.RetryCount+1,
			"error", dispatchErr,
		)

		if err := m.store.RemoveMutation(ctx, mut.ID); err != nil {
			m.logger.Warn("removing poison mutation failed", "id", mut.ID, "error", err)
		}

		return
	}

	m.logger.Warn("mutation failed, will retry",
		"id", mut.ID,
		"type", mut.Type,
		"retry_count", mut.RetryCount+1,
		"error", dispatchErr,
	)

	if err := m.store.IncrementRetry(ctx, mut.ID); err != nil {
		m.logger.Warn("incrementing retry failed", "id", mut.ID, "error", err)
	}
}

// dispatch replays one mutation against the remote, keyed by its type.
func (m *Manager) dispatch(ctx context.Context, mut *store.Mutation) error {
	switch mut.Type {
	case store.AddFavorite:
		p, err := mut.DecodeAdd()
		if err != nil {
			return err
		}

		return m.remote.AddFavorite(ctx, m.userID, toAPIItem(p))

	case store.AddWatchlist:
		p, err := mut.DecodeAdd()
		if err != nil {
			return err
		}

		return m.remote.AddWatchlist(ctx, m.userID, toAPIItem(p))

	case store.RemoveFavorite:
		p, err := mut.DecodeRemove()
		if err != nil {
			return err
		}

		return m.remote.RemoveFavorite(ctx, m.userID, p.MovieID)

	case store.RemoveWatchlist:
		p, err := mut.DecodeRemove()
		if err != nil {
			return err
		}

		return m.remote.RemoveWatchlist(ctx, m.userID, p.MovieID)

	case store.ToggleFavorite:
		// Legacy toggles replay the membership the local store settled on
		// at drain time, not a blind flip: a blind flip replayed twice
		// under at-least-once delivery would corrupt remote state.
		p, err := mut.DecodeAdd()
		if err != nil {
			return err
		}

		if m.store.InList(ctx, store.Favorites, p.Movie.ID) {
			return m.remote.AddFavorite(ctx, m.userID, toAPIItem(p))
		}

		return m.remote.RemoveFavorite(ctx, m.userID, p.Movie.ID)

	default:
		return fmt.Errorf("syncer: unknown mutation type %q", mut.Type)
	}
}

func toAPIItem(p store.AddPayload) api.ListItem {
	return api.ListItem{Movie: toAPIMovie(p.Movie), AddedAt: p.AddedAt}
}

func toAPIMovie(m store.Movie) api.Movie {
	return api.Movie{
		ID:           m.ID,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		VoteAverage:  m.VoteAverage,
		ReleaseDate:  m.ReleaseDate,
		GenreIDs:     m.GenreIDs,
	}
}

// ToStoreMovie converts an API movie to its local projection.
func ToStoreMovie(m api.Movie) store.Movie {
	return store.Movie{
		ID:           m.ID,
		Title:        m.Title,
		Overview:     m.Overview,
		PosterPath:   m.PosterPath,
		BackdropPath: m.BackdropPath,
		VoteAverage:  m.VoteAverage,
		ReleaseDate:  m.ReleaseDate,
		GenreIDs:     m.GenreIDs,
	}
}
