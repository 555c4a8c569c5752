// Package store implements the durable local state for reelsync: the generic
// TTL cache, the cached movie projections, the favorites and watchlist tables,
// and the mutation outbox. Everything lives in one SQLite database opened in
// WAL mode; the single *sql.DB handle is shared by every operation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL journal at 64 MiB.
const walJournalSizeLimit = 67108864

// Store is the local persistence layer. All tables share one database handle;
// writes to a given row are last-write-wins.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() int64 // epoch ms; tests override to advance time

	cacheStmts cacheStatements
	movieStmts movieStatements
	listStmts  map[ListKind]listStatements
	queueStmts queueStatements
}

// Statement groups, one per table domain.
type cacheStatements struct {
	get, set, has, invalidate, clearExpired, clearAll *sql.Stmt
}

type movieStatements struct {
	get, upsert *sql.Stmt
}

type listStatements struct {
	add, remove, has, get, list, count, clear *sql.Stmt
}

type queueStatements struct {
	insert, oldest, listPending, remove, incrementRetry, size, clear *sql.Stmt
}

// Open creates a Store at dbPath, applying pragmas and migrations and
// preparing all repeated statements. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening local database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	// An in-memory database exists per connection; pin the pool to one so
	// every operation sees the same database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger, nowFunc: NowMillis}

	if err := s.prepareAllStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: prepare statements: %w", err)
	}

	logger.Info("local database ready", "path", dbPath)

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("store: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", "pragma", p.desc)
	}

	return nil
}

func (s *Store) prepareAllStatements(ctx context.Context) error {
	if err := s.prepareCacheStatements(ctx); err != nil {
		return err
	}

	if err := s.prepareMovieStatements(ctx); err != nil {
		return err
	}

	if err := s.prepareListStatements(ctx); err != nil {
		return err
	}

	return s.prepareQueueStatements(ctx)
}

// prepare is a helper that prepares a statement and records the first error.
func prepare(ctx context.Context, db *sql.DB, query string, dst **sql.Stmt, firstErr *error) {
	if *firstErr != nil {
		return
	}

	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		*firstErr = fmt.Errorf("preparing %q: %w", query, err)
		return
	}

	*dst = stmt
}

// Close closes the underlying database handle. Prepared statements are closed
// implicitly with the handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}

	return nil
}

// DB exposes the underlying handle for tests and migrations tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SetNowFunc overrides the clock. Tests use this to simulate TTL expiry
// without sleeping.
func (s *Store) SetNowFunc(f func() int64) {
	s.nowFunc = f
}

// now returns the current epoch-millisecond timestamp via the injected clock.
func (s *Store) now() int64 {
	return s.nowFunc()
}

// minutesToMillis converts a TTL in minutes to milliseconds.
func minutesToMillis(minutes int) int64 {
	return (time.Duration(minutes) * time.Minute).Milliseconds()
}
