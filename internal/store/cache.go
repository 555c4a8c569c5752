package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// The cache is best-effort: writes never fail the caller and reads degrade to
// a miss on any storage error. Expiry is evaluated at read time by comparing
// expires_at against the injected clock, not by a background sweep.

const (
	sqlCacheSet = `INSERT INTO cache (key, data, timestamp, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data       = excluded.data,
			timestamp  = excluded.timestamp,
			expires_at = excluded.expires_at`

	sqlCacheGet = `SELECT data, expires_at FROM cache WHERE key = ?`

	sqlCacheHas = `SELECT expires_at FROM cache WHERE key = ?`

	sqlCacheInvalidate = `DELETE FROM cache WHERE key = ?`

	sqlCacheClearExpired = `DELETE FROM cache WHERE expires_at <= ?`

	sqlCacheClearAll = `DELETE FROM cache`
)

func (s *Store) prepareCacheStatements(ctx context.Context) error {
	var err error

	prepare(ctx, s.db, sqlCacheSet, &s.cacheStmts.set, &err)
	prepare(ctx, s.db, sqlCacheGet, &s.cacheStmts.get, &err)
	prepare(ctx, s.db, sqlCacheHas, &s.cacheStmts.has, &err)
	prepare(ctx, s.db, sqlCacheInvalidate, &s.cacheStmts.invalidate, &err)
	prepare(ctx, s.db, sqlCacheClearExpired, &s.cacheStmts.clearExpired, &err)
	prepare(ctx, s.db, sqlCacheClearAll, &s.cacheStmts.clearAll, &err)

	return err
}

// CacheSet stores v under key with the given TTL, replacing any prior entry.
// Errors are logged and swallowed; the cache never fails its caller.
func (s *Store) CacheSet(ctx context.Context, key string, v any, ttlMinutes int) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("cache set skipped, value not serializable", "key", key, "error", err)
		return
	}

	now := s.now()

	if _, err := s.cacheStmts.set.ExecContext(ctx, key, string(data), now, now+minutesToMillis(ttlMinutes)); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
		return
	}

	s.logger.Debug("cache set", "key", key, "ttl_minutes", ttlMinutes)
}

// CacheGet loads the entry for key into dest. It returns false on a miss, on
// an expired entry, and on any storage or decode error.
func (s *Store) CacheGet(ctx context.Context, key string, dest any) bool {
	var (
		data      string
		expiresAt int64
	)

	err := s.cacheStmts.get.QueryRowContext(ctx, key).Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		return false
	}

	if s.now() > expiresAt {
		s.logger.Debug("cache entry expired", "key", key)
		return false
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		s.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}

	s.logger.Debug("cache hit", "key", key)

	return true
}

// CacheHas reports whether a live (unexpired) entry exists for key.
func (s *Store) CacheHas(ctx context.Context, key string) bool {
	var expiresAt int64

	err := s.cacheStmts.has.QueryRowContext(ctx, key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	if err != nil {
		s.logger.Warn("cache has failed", "key", key, "error", err)
		return false
	}

	return s.now() <= expiresAt
}

// CacheInvalidate removes the entry for key, expired or not.
func (s *Store) CacheInvalidate(ctx context.Context, key string) error {
	if _, err := s.cacheStmts.invalidate.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("store: invalidate cache key %q: %w", key, err)
	}

	s.logger.Debug("cache invalidated", "key", key)

	return nil
}

// CacheClearExpired sweeps all expired entries, returning how many were removed.
func (s *Store) CacheClearExpired(ctx context.Context) (int64, error) {
	res, err := s.cacheStmts.clearExpired.ExecContext(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("store: clear expired cache entries: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: count cleared cache entries: %w", err)
	}

	s.logger.Debug("cache expired sweep", "removed", count)

	return count, nil
}

// CacheClearAll empties the cache table.
func (s *Store) CacheClearAll(ctx context.Context) error {
	if _, err := s.cacheStmts.clearAll.ExecContext(ctx); err != nil {
		return fmt.Errorf("store: clear cache: %w", err)
	}

	s.logger.Debug("cache cleared")

	return nil
}
