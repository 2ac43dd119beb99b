// Package queue implements the pending-operation queue: the durable record
// of user mutations that must eventually reach the remote system, independent
// of current connectivity.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/splitsync/splitsync/internal/metrics"
	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/storage"
)

// DefaultMaxRetries is the retry ceiling applied when none is configured.
const DefaultMaxRetries = 5

// Queue is an ordered list of pending mutations backed by the local store.
// It is the single source of truth for outstanding remote work.
type Queue struct {
	store      storage.Store
	maxRetries int
}

// New creates a queue over the given store. maxRetries <= 0 selects
// DefaultMaxRetries.
func New(store storage.Store, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{store: store, maxRetries: maxRetries}
}

// Enqueue records a mutation and returns the assigned queue id. It involves
// no network and always succeeds unless the local store itself fails.
func (q *Queue) Enqueue(ctx context.Context, kind models.OpKind, entity models.EntityType, payload json.RawMessage, localKey string, remoteID int64) (int64, error) {
	op := &models.PendingOp{
		Kind:     kind,
		Entity:   entity,
		Payload:  payload,
		LocalKey: localKey,
		RemoteID: remoteID,
		Status:   models.OpStatusPending,
	}
	if err := q.store.EnqueueOp(ctx, op); err != nil {
		return 0, fmt.Errorf("failed to enqueue %s %s: %w", kind, entity, err)
	}

	metrics.PendingOperations.Inc()
	slog.Debug("Operation enqueued",
		"op_id", op.ID,
		"kind", kind,
		"entity", entity,
		"local_key", localKey,
		"remote_id", remoteID,
	)
	return op.ID, nil
}

// ListPending returns all operations awaiting dispatch in enqueue order.
func (q *Queue) ListPending(ctx context.Context) ([]*models.PendingOp, error) {
	return q.store.ListPendingOps(ctx)
}

// MarkInFlight transitions an operation to in-flight before dispatch.
func (q *Queue) MarkInFlight(ctx context.Context, op *models.PendingOp) error {
	op.Status = models.OpStatusInFlight
	return q.store.UpdateOp(ctx, op)
}

// MarkSucceeded removes a completed operation from the queue.
func (q *Queue) MarkSucceeded(ctx context.Context, op *models.PendingOp) error {
	if err := q.store.DeleteOp(ctx, op.ID); err != nil {
		return err
	}
	metrics.PendingOperations.Dec()
	metrics.Operations.WithLabelValues(string(op.Kind), "ok").Inc()
	return nil
}

// MarkFailed records a dispatch failure. The operation's retry count is
// incremented; once it reaches the ceiling the entry is removed permanently
// and logged as abandoned rather than retried forever.
func (q *Queue) MarkFailed(ctx context.Context, op *models.PendingOp, dispatchErr error) error {
	op.RetryCount++
	op.LastError = dispatchErr.Error()
	metrics.Operations.WithLabelValues(string(op.Kind), "error").Inc()

	if op.RetryCount >= q.maxRetries {
		slog.Warn("Operation abandoned after exhausting retries",
			"op_id", op.ID,
			"kind", op.Kind,
			"entity", op.Entity,
			"retries", op.RetryCount,
			"error", op.LastError,
		)
		metrics.AbandonedOperations.Inc()
		if err := q.store.DeleteOp(ctx, op.ID); err != nil {
			return err
		}
		metrics.PendingOperations.Dec()
		return nil
	}

	slog.Debug("Operation failed, will retry",
		"op_id", op.ID,
		"kind", op.Kind,
		"retry_count", op.RetryCount,
		"error", op.LastError,
	)
	op.Status = models.OpStatusFailed
	return q.store.UpdateOp(ctx, op)
}

// CountFailed returns the number of operations currently in failed status,
// used to surface retry pressure in aggregate.
func (q *Queue) CountFailed(ctx context.Context) (int, error) {
	return q.store.CountFailedOps(ctx)
}
