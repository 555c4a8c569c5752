package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// The mutation queue is the durable outbox: every remote write is recorded
// here first and drained by the sync manager. Rows drain in ascending
// timestamp order, approximating the causal order of user actions.

const (
	sqlQueueInsert = `INSERT INTO mutation_queue
		(id, type, variables, timestamp, retry_count)
		VALUES (?, ?, ?, ?, 0)`

	// rowid breaks timestamp ties in insertion order, so two mutations
	// enqueued within the same millisecond still drain causally.
	sqlQueueOldest = `SELECT id, type, variables, timestamp, retry_count
		FROM mutation_queue ORDER BY timestamp, rowid LIMIT 1`

	sqlQueueListPending = `SELECT id, type, variables, timestamp, retry_count
		FROM mutation_queue ORDER BY timestamp, rowid`

	sqlQueueRemove = `DELETE FROM mutation_queue WHERE id = ?`

	sqlQueueIncrementRetry = `UPDATE mutation_queue
		SET retry_count = retry_count + 1 WHERE id = ?`

	sqlQueueSize = `SELECT COUNT(*) FROM mutation_queue`

	sqlQueueClear = `DELETE FROM mutation_queue`
)

func (s *Store) prepareQueueStatements(ctx context.Context) error {
	var err error

	prepare(ctx, s.db, sqlQueueInsert, &s.queueStmts.insert, &err)
	prepare(ctx, s.db, sqlQueueOldest, &s.queueStmts.oldest, &err)
	prepare(ctx, s.db, sqlQueueListPending, &s.queueStmts.listPending, &err)
	prepare(ctx, s.db, sqlQueueRemove, &s.queueStmts.remove, &err)
	prepare(ctx, s.db, sqlQueueIncrementRetry, &s.queueStmts.incrementRetry, &err)
	prepare(ctx, s.db, sqlQueueSize, &s.queueStmts.size, &err)
	prepare(ctx, s.db, sqlQueueClear, &s.queueStmts.clear, &err)

	return err
}

// Enqueue records a pending mutation and returns its id. The payload must be
// the typed payload for the mutation's kind (AddPayload or RemovePayload).
func (s *Store) Enqueue(ctx context.Context, typ MutationType, payload any) (string, error) {
	return s.EnqueueAt(ctx, typ, payload, s.now())
}

// EnqueueAt is Enqueue with an explicit timestamp. Drain order follows
// timestamps, not insertion order.
func (s *Store) EnqueueAt(ctx context.Context, typ MutationType, payload any, timestamp int64) (string, error) {
	variables, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("store: encoding %s payload: %w", typ, err)
	}

	id := uuid.NewString()

	if _, err := s.queueStmts.insert.ExecContext(ctx, id, string(typ), string(variables), timestamp); err != nil {
		return "", fmt.Errorf("store: enqueueing %s: %w", typ, err)
	}

	s.logger.Debug("mutation enqueued", "id", id, "type", typ)

	return id, nil
}

// Dequeue returns the oldest pending mutation without removing it, or nil if
// the queue is empty. Callers must Remove the mutation once it succeeds.
func (s *Store) Dequeue(ctx context.Context) (*Mutation, error) {
	m, err := scanMutation(s.queueStmts.oldest.QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("store: dequeueing: %w", err)
	}

	return m, nil
}

// ListPending returns a snapshot of all pending mutations in drain order. The
// sync manager iterates the snapshot so a failing mutation is visited at most
// once per drain cycle.
func (s *Store) ListPending(ctx context.Context) ([]*Mutation, error) {
	rows, err := s.queueStmts.listPending.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: listing pending mutations: %w", err)
	}
	defer rows.Close()

	var pending []*Mutation

	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning mutation: %w", err)
		}

		pending = append(pending, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating mutations: %w", err)
	}

	return pending, nil
}

// RemoveMutation deletes a mutation by id. Removing an absent id is not an
// error, so drop-after-success and drop-after-poison share one path.
func (s *Store) RemoveMutation(ctx context.Context, id string) error {
	if _, err := s.queueStmts.remove.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("store: removing mutation %s: %w", id, err)
	}

	s.logger.Debug("mutation removed", "id", id)

	return nil
}

// IncrementRetry bumps the retry counter for a mutation that failed to drain.
func (s *Store) IncrementRetry(ctx context.Context, id string) error {
	if _, err := s.queueStmts.incrementRetry.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("store: incrementing retry for %s: %w", id, err)
	}

	return nil
}

// QueueSize returns the number of pending mutations.
func (s *Store) QueueSize(ctx context.Context) (int, error) {
	var count int

	if err := s.queueStmts.size.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: queue size: %w", err)
	}

	return count, nil
}

// ClearQueue drops all pending mutations.
func (s *Store) ClearQueue(ctx context.Context) error {
	if _, err := s.queueStmts.clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("store: clearing queue: %w", err)
	}

	s.logger.Info("mutation queue cleared")

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMutation(row rowScanner) (*Mutation, error) {
	var (
		m         Mutation
		typ       string
		variables string
	)

	if err := row.Scan(&m.ID, &typ, &variables, &m.Timestamp, &m.RetryCount); err != nil {
		return nil, err
	}

	m.Type = MutationType(typ)
	m.Variables = []byte(variables)

	return &m, nil
}
