package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	sqlUpsertMovie = `INSERT INTO movies
		(id, title, overview, poster_path, backdrop_path, vote_average, release_date, genre_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title         = excluded.title,
			overview      = excluded.overview,
			poster_path   = excluded.poster_path,
			backdrop_path = excluded.backdrop_path,
			vote_average  = excluded.vote_average,
			release_date  = excluded.release_date,
			genre_ids     = excluded.genre_ids,
			updated_at    = excluded.updated_at`

	sqlGetMovie = `SELECT id, title, overview, poster_path, backdrop_path,
		vote_average, release_date, genre_ids
		FROM movies WHERE id = ?`
)

func (s *Store) prepareMovieStatements(ctx context.Context) error {
	var err error

	prepare(ctx, s.db, sqlUpsertMovie, &s.movieStmts.upsert, &err)
	prepare(ctx, s.db, sqlGetMovie, &s.movieStmts.get, &err)

	return err
}

// UpsertMovie writes the movie snapshot, fully replacing any prior row for the
// same id.
func (s *Store) UpsertMovie(ctx context.Context, m Movie) error {
	genres, err := json.Marshal(m.GenreIDs)
	if err != nil {
		return fmt.Errorf("store: encoding genre ids for movie %d: %w", m.ID, err)
	}

	_, err = s.movieStmts.upsert.ExecContext(ctx,
		m.ID, m.Title, m.Overview, m.PosterPath, m.BackdropPath,
		m.VoteAverage, m.ReleaseDate, string(genres), s.now(),
	)
	if err != nil {
		return fmt.Errorf("store: upserting movie %d: %w", m.ID, err)
	}

	s.logger.Debug("movie upserted", "id", m.ID, "title", m.Title)

	return nil
}

// GetMovie returns the cached snapshot for id, or nil if none exists.
func (s *Store) GetMovie(ctx context.Context, id int64) (*Movie, error) {
	var (
		m      Movie
		genres string
	)

	err := s.movieStmts.get.QueryRowContext(ctx, id).Scan(
		&m.ID, &m.Title, &m.Overview, &m.PosterPath, &m.BackdropPath,
		&m.VoteAverage, &m.ReleaseDate, &genres,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting movie %d: %w", id, err)
	}

	if err := json.Unmarshal([]byte(genres), &m.GenreIDs); err != nil {
		return nil, fmt.Errorf("store: decoding genre ids for movie %d: %w", id, err)
	}

	return &m, nil
}
