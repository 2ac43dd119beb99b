package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/storage"
)

// EnqueueOp persists a pending operation and populates op.ID.
func (s *SQLiteStore) EnqueueOp(ctx context.Context, op *models.PendingOp) error {
	if op.EnqueuedAt == 0 {
		op.EnqueuedAt = time.Now().UnixMilli()
	}
	if op.Status == "" {
		op.Status = models.OpStatusPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_ops (kind, entity, payload, local_key, remote_id,
		   enqueued_at, status, retry_count, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.Kind, op.Entity, string(op.Payload), op.LocalKey, op.RemoteID,
		op.EnqueuedAt, op.Status, op.RetryCount, op.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read assigned queue id: %w", err)
	}
	op.ID = id
	return nil
}

// ListPendingOps returns operations awaiting dispatch (pending or failed),
// ordered by enqueue time ascending. The id breaks ties so two operations
// enqueued in the same millisecond keep their relative order.
func (s *SQLiteStore) ListPendingOps(ctx context.Context) ([]*models.PendingOp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, entity, payload, local_key, remote_id,
		   enqueued_at, status, retry_count, last_error
		 FROM pending_ops
		 WHERE status IN (?, ?)
		 ORDER BY enqueued_at ASC, id ASC`,
		models.OpStatusPending, models.OpStatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.PendingOp
	for rows.Next() {
		op := &models.PendingOp{}
		var payload string
		if err := rows.Scan(&op.ID, &op.Kind, &op.Entity, &payload, &op.LocalKey,
			&op.RemoteID, &op.EnqueuedAt, &op.Status, &op.RetryCount, &op.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan pending operation: %w", err)
		}
		if payload != "" {
			op.Payload = []byte(payload)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending operations: %w", err)
	}
	return ops, nil
}

// UpdateOp fully replaces a queue entry by id.
func (s *SQLiteStore) UpdateOp(ctx context.Context, op *models.PendingOp) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_ops
		 SET kind = ?, entity = ?, payload = ?, local_key = ?, remote_id = ?,
		   enqueued_at = ?, status = ?, retry_count = ?, last_error = ?
		 WHERE id = ?`,
		op.Kind, op.Entity, string(op.Payload), op.LocalKey, op.RemoteID,
		op.EnqueuedAt, op.Status, op.RetryCount, op.LastError, op.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update operation %d: %w", op.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %d: %w", op.ID, storage.ErrNotFound)
	}
	return nil
}

// DeleteOp removes a queue entry by id.
func (s *SQLiteStore) DeleteOp(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pending_ops WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete operation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CountFailedOps returns the number of queue entries in failed status.
func (s *SQLiteStore) CountFailedOps(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_ops WHERE status = ?",
		models.OpStatusFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed operations: %w", err)
	}
	return count, nil
}

// LastSync returns the last successful sync time for an entity type, or the
// zero time if the entity was never synced.
func (s *SQLiteStore) LastSync(ctx context.Context, entity models.EntityType) (time.Time, error) {
	raw, err := s.getMeta(ctx, "last_sync_"+string(entity))
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync for %s: %w", entity, err)
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last sync value %q: %w", raw, err)
	}
	return time.UnixMilli(millis), nil
}

// SetLastSync records the last successful sync time for an entity type.
func (s *SQLiteStore) SetLastSync(ctx context.Context, entity models.EntityType, t time.Time) error {
	if err := s.setMeta(ctx, "last_sync_"+string(entity), strconv.FormatInt(t.UnixMilli(), 10)); err != nil {
		return fmt.Errorf("failed to set last sync for %s: %w", entity, err)
	}
	return nil
}

// DefaultGroup returns the user-chosen default group id, 0 if unset.
func (s *SQLiteStore) DefaultGroup(ctx context.Context) (int64, error) {
	raw, err := s.getMeta(ctx, "default_group")
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get default group: %w", err)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt default group value %q: %w", raw, err)
	}
	return id, nil
}

// SetDefaultGroup stores the user-chosen default group id.
func (s *SQLiteStore) SetDefaultGroup(ctx context.Context, id int64) error {
	if err := s.setMeta(ctx, "default_group", strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("failed to set default group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

func (s *SQLiteStore) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
