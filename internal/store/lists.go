package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// The favorites and watchlist tables share a shape, so their statements are
// prepared per ListKind from the same templates. Table names are fixed
// constants, never user input.

const (
	sqlListAdd = `INSERT INTO %s (movie_id, movie_data, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(movie_id) DO UPDATE SET
			movie_data = excluded.movie_data,
			added_at   = excluded.added_at`

	sqlListRemove = `DELETE FROM %s WHERE movie_id = ?`

	sqlListHas = `SELECT 1 FROM %s WHERE movie_id = ?`

	sqlListGet = `SELECT movie_data, added_at FROM %s WHERE movie_id = ?`

	sqlListAll = `SELECT movie_data, added_at FROM %s ORDER BY added_at DESC, movie_id`

	sqlListCount = `SELECT COUNT(*) FROM %s`

	sqlListClear = `DELETE FROM %s`
)

func (s *Store) prepareListStatements(ctx context.Context) error {
	s.listStmts = make(map[ListKind]listStatements, 2)

	for _, kind := range []ListKind{Favorites, Watchlist} {
		var (
			stmts listStatements
			err   error
		)

		prepare(ctx, s.db, fmt.Sprintf(sqlListAdd, kind), &stmts.add, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListRemove, kind), &stmts.remove, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListHas, kind), &stmts.has, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListGet, kind), &stmts.get, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListAll, kind), &stmts.list, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListCount, kind), &stmts.count, &err)
		prepare(ctx, s.db, fmt.Sprintf(sqlListClear, kind), &stmts.clear, &err)

		if err != nil {
			return err
		}

		s.listStmts[kind] = stmts
	}

	return nil
}

// AddToList inserts the movie into the named list, replacing any prior row for
// the same movie id. Write failures propagate so the caller can surface them.
func (s *Store) AddToList(ctx context.Context, kind ListKind, m Movie, addedAt int64) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("store: encoding movie %d: %w", m.ID, err)
	}

	if _, err := s.listStmts[kind].add.ExecContext(ctx, m.ID, string(data), addedAt); err != nil {
		return fmt.Errorf("store: adding movie %d to %s: %w", m.ID, kind, err)
	}

	s.logger.Debug("list add", "list", kind, "movie_id", m.ID)

	return nil
}

// RemoveFromList deletes the movie's row. Removing an absent movie is not an
// error.
func (s *Store) RemoveFromList(ctx context.Context, kind ListKind, movieID int64) error {
	if _, err := s.listStmts[kind].remove.ExecContext(ctx, movieID); err != nil {
		return fmt.Errorf("store: removing movie %d from %s: %w", movieID, kind, err)
	}

	s.logger.Debug("list remove", "list", kind, "movie_id", movieID)

	return nil
}

// InList reports whether the movie is present. Storage errors degrade to
// false with a logged warning; membership reads never fail the caller.
func (s *Store) InList(ctx context.Context, kind ListKind, movieID int64) bool {
	var one int

	err := s.listStmts[kind].has.QueryRowContext(ctx, movieID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	if err != nil {
		s.logger.Warn("list membership check failed", "list", kind, "movie_id", movieID, "error", err)
		return false
	}

	return true
}

// GetListEntry returns the entry for movieID, or nil if absent.
func (s *Store) GetListEntry(ctx context.Context, kind ListKind, movieID int64) (*ListEntry, error) {
	var (
		data    string
		addedAt int64
	)

	err := s.listStmts[kind].get.QueryRowContext(ctx, movieID).Scan(&data, &addedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting %s entry %d: %w", kind, movieID, err)
	}

	entry := &ListEntry{AddedAt: addedAt}
	if err := json.Unmarshal([]byte(data), &entry.Movie); err != nil {
		return nil, fmt.Errorf("store: decoding %s entry %d: %w", kind, movieID, err)
	}

	return entry, nil
}

// ListEntries returns all rows, most recently added first.
func (s *Store) ListEntries(ctx context.Context, kind ListKind) ([]ListEntry, error) {
	rows, err := s.listStmts[kind].list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: listing %s: %w", kind, err)
	}
	defer rows.Close()

	var entries []ListEntry

	for rows.Next() {
		var (
			data  string
			entry ListEntry
		)

		if err := rows.Scan(&data, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("store: scanning %s row: %w", kind, err)
		}

		if err := json.Unmarshal([]byte(data), &entry.Movie); err != nil {
			return nil, fmt.Errorf("store: decoding %s row: %w", kind, err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating %s: %w", kind, err)
	}

	return entries, nil
}

// CountList returns the number of rows in the list.
func (s *Store) CountList(ctx context.Context, kind ListKind) (int, error) {
	var count int

	if err := s.listStmts[kind].count.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting %s: %w", kind, err)
	}

	return count, nil
}

// ClearList truncates the list table.
func (s *Store) ClearList(ctx context.Context, kind ListKind) error {
	if _, err := s.listStmts[kind].clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("store: clearing %s: %w", kind, err)
	}

	s.logger.Info("list cleared", "list", kind)

	return nil
}

// ToggleList atomically adds the movie if absent or removes it if present,
// inside one transaction. Returns whether the movie is in the list afterward.
// The transaction closes the check-then-act window that a separate
// InList-then-Add sequence would leave open to concurrent toggles.
func (s *Store) ToggleList(ctx context.Context, kind ListKind, m Movie, addedAt int64) (bool, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("store: encoding movie %d: %w", m.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin toggle tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var one int

	err = tx.QueryRowContext(ctx, fmt.Sprintf(sqlListHas, kind), m.ID).Scan(&one)

	present := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("store: toggle membership check for %d: %w", m.ID, err)
	}

	if present {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(sqlListRemove, kind), m.ID); err != nil {
			return false, fmt.Errorf("store: toggle remove %d from %s: %w", m.ID, kind, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(sqlListAdd, kind), m.ID, string(data), addedAt); err != nil {
			return false, fmt.Errorf("store: toggle add %d to %s: %w", m.ID, kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit toggle tx: %w", err)
	}

	s.logger.Debug("list toggled", "list", kind, "movie_id", m.ID, "now_present", !present)

	return !present, nil
}

// ReplaceList swaps the full contents of the list for the given entries in one
// transaction. The sync manager uses this to mirror authoritative remote
// state; keep lists the movie ids whose local rows must survive the swap
// (rows with still-pending queued adds).
func (s *Store) ReplaceList(ctx context.Context, kind ListKind, entries []ListEntry, keep []int64) error {
	kept := make(map[int64]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin replace tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Read surviving rows inside the transaction; the pool may be pinned to
	// a single connection and an outside read would deadlock against the tx.
	keptRows, err := readKeptRows(ctx, tx, kind, kept)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(sqlListClear, kind)); err != nil {
		return fmt.Errorf("store: replace clear %s: %w", kind, err)
	}

	for _, e := range append(entries, keptRows...) {
		data, err := json.Marshal(e.Movie)
		if err != nil {
			return fmt.Errorf("store: encoding movie %d: %w", e.Movie.ID, err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(sqlListAdd, kind), e.Movie.ID, string(data), e.AddedAt); err != nil {
			return fmt.Errorf("store: replace insert %d into %s: %w", e.Movie.ID, kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit replace tx: %w", err)
	}

	s.logger.Debug("list replaced", "list", kind, "rows", len(entries), "kept", len(keptRows))

	return nil
}

func readKeptRows(ctx context.Context, tx *sql.Tx, kind ListKind, kept map[int64]bool) ([]ListEntry, error) {
	if len(kept) == 0 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(sqlListAll, kind))
	if err != nil {
		return nil, fmt.Errorf("store: reading kept %s rows: %w", kind, err)
	}
	defer rows.Close()

	var keptRows []ListEntry

	for rows.Next() {
		var (
			data  string
			entry ListEntry
		)

		if err := rows.Scan(&data, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("store: scanning kept %s row: %w", kind, err)
		}

		if err := json.Unmarshal([]byte(data), &entry.Movie); err != nil {
			return nil, fmt.Errorf("store: decoding kept %s row: %w", kind, err)
		}

		if kept[entry.Movie.ID] {
			keptRows = append(keptRows, entry)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating kept %s rows: %w", kind, err)
	}

	return keptRows, nil
}
