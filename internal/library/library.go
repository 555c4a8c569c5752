// Package library is the public-facing read/write API for the user's lists.
// Writes are optimistic: the local store is updated first and always, then the
// mutation is recorded in the durable outbox. When the device is online the
// outbox is drained immediately, so there is exactly one remote write path
// whether or not connectivity was available at the moment of the action.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reelsync/reelsync/internal/store"
)

// Drainer triggers an immediate outbox drain. Satisfied by *syncer.Manager.
type Drainer interface {
	Drain(ctx context.Context) error
}

// Connectivity reports the current online state. Satisfied by *netmon.Monitor.
type Connectivity interface {
	IsOnline() bool
}

// Service exposes one list (favorites or watchlist) to the UI layer.
// Local write failures are recorded in a last-error slot the UI can surface
// transiently and clear; deferred sync failures never reach it.
type Service struct {
	kind    store.ListKind
	store   *store.Store
	drainer Drainer
	monitor Connectivity
	logger  *slog.Logger

	mu      sync.Mutex
	lastErr string
}

// NewFavorites creates the favorites service.
func NewFavorites(st *store.Store, drainer Drainer, monitor Connectivity, logger *slog.Logger) *Service {
	return newService(store.Favorites, st, drainer, monitor, logger)
}

// NewWatchlist creates the watchlist service.
func NewWatchlist(st *store.Store, drainer Drainer, monitor Connectivity, logger *slog.Logger) *Service {
	return newService(store.Watchlist, st, drainer, monitor, logger)
}

func newService(kind store.ListKind, st *store.Store, drainer Drainer, monitor Connectivity, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		kind:    kind,
		store:   st,
		drainer: drainer,
		monitor: monitor,
		logger:  logger.With("list", string(kind)),
	}
}

// Kind returns which list this service fronts.
func (s *Service) Kind() store.ListKind {
	return s.kind
}

// Add puts the movie on the list. The local write must succeed or the whole
// operation fails; remote propagation is recorded in the outbox and drained
// immediately when online, later otherwise.
func (s *Service) Add(ctx context.Context, movie store.Movie) error {
	if err := s.store.UpsertMovie(ctx, movie); err != nil {
		return s.fail("add", err)
	}

	addedAt := store.NowMillis()

	if err := s.store.AddToList(ctx, s.kind, movie, addedAt); err != nil {
		return s.fail("add", err)
	}

	payload := store.AddPayload{Movie: movie, AddedAt: addedAt}
	if _, err := s.store.Enqueue(ctx, s.addType(), payload); err != nil {
		return s.fail("add", err)
	}

	s.drainIfOnline(ctx)

	return nil
}

// Remove takes the movie off the list. Mirror of Add: local delete always,
// remote delete via the outbox.
func (s *Service) Remove(ctx context.Context, movieID int64) error {
	if err := s.store.RemoveFromList(ctx, s.kind, movieID); err != nil {
		return s.fail("remove", err)
	}

	payload := store.RemovePayload{MovieID: movieID}
	if _, err := s.store.Enqueue(ctx, s.removeType(), payload); err != nil {
		return s.fail("remove", err)
	}

	s.drainIfOnline(ctx)

	return nil
}

// Toggle atomically adds the movie if absent or removes it if present, and
// returns whether the movie is on the list afterward. The membership decision
// and the row change happen in one store transaction, so concurrent toggles
// cannot both observe the same starting state.
func (s *Service) Toggle(ctx context.Context, movie store.Movie) (bool, error) {
	if err := s.store.UpsertMovie(ctx, movie); err != nil {
		return false, s.fail("toggle", err)
	}

	addedAt := store.NowMillis()

	added, err := s.store.ToggleList(ctx, s.kind, movie, addedAt)
	if err != nil {
		return false, s.fail("toggle", err)
	}

	var enqueueErr error
	if added {
		enqueueErr = s.enqueue(ctx, s.addType(), store.AddPayload{Movie: movie, AddedAt: addedAt})
	} else {
		enqueueErr = s.enqueue(ctx, s.removeType(), store.RemovePayload{MovieID: movie.ID})
	}

	if enqueueErr != nil {
		return added, s.fail("toggle", enqueueErr)
	}

	s.drainIfOnline(ctx)

	return added, nil
}

// Contains reports local membership only; no network involved.
func (s *Service) Contains(ctx context.Context, movieID int64) bool {
	return s.store.InList(ctx, s.kind, movieID)
}

// List returns the local rows, most recently added first.
func (s *Service) List(ctx context.Context) ([]store.ListEntry, error) {
	return s.store.ListEntries(ctx, s.kind)
}

// Clear empties the local list. Remote state is untouched; the next sync will
// mirror the remote back unless the user clears there too.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearList(ctx, s.kind); err != nil {
		return s.fail("clear", err)
	}

	return nil
}

// LastError returns the most recent user-visible write error, or "".
func (s *Service) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// ClearError resets the user-visible error slot.
func (s *Service) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = ""
}

func (s *Service) enqueue(ctx context.Context, typ store.MutationType, payload any) error {
	_, err := s.store.Enqueue(ctx, typ, payload)
	return err
}

// drainIfOnline pushes the outbox immediately when connected. Failures here
// are deferred work, not user-visible errors: the mutation is durable and the
// next drain will retry it.
func (s *Service) drainIfOnline(ctx context.Context) {
	if !s.monitor.IsOnline() {
		s.logger.Info("offline, mutation queued for later sync")
		return
	}

	if err := s.drainer.Drain(ctx); err != nil {
		s.logger.Warn("immediate drain failed, mutation stays queued", "error", err)
	}
}

// fail records err as the user-visible error and returns it wrapped.
func (s *Service) fail(op string, err error) error {
	wrapped := fmt.Errorf("library: %s %s: %w", s.kind, op, err)

	s.mu.Lock()
	s.lastErr = wrapped.Error()
	s.mu.Unlock()

	s.logger.Error("list write failed", "op", op, "error", err)

	return wrapped
}

func (s *Service) addType() store.MutationType {
	if s.kind == store.Favorites {
		return store.AddFavorite
	}

	return store.AddWatchlist
}

func (s *Service) removeType() store.MutationType {
	if s.kind == store.Favorites {
		return store.RemoveFavorite
	}

	return store.RemoveWatchlist
}
