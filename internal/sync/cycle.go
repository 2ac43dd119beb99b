package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/splitsync/splitsync/internal/metrics"
	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
	"github.com/splitsync/splitsync/internal/storage"
)

// Sync runs one reconciliation cycle: drain the queue, pull expenses and
// groups (incrementally where possible), refresh people, advance sync
// timestamps, and publish the new state.
//
// Remote failures never propagate out of here: the cycle aborts, existing
// cache contents stay visible, and the failure lands in Status. Staleness is
// preferable to data loss. Only local storage failures return an error.
func (e *Engine) Sync(ctx context.Context) error {
	return e.sync(ctx, false)
}

// ForceRefresh runs a cycle whose pulls are always full pulls, establishing
// ground truth and clearing staleness.
func (e *Engine) ForceRefresh(ctx context.Context) error {
	return e.sync(ctx, true)
}

func (e *Engine) sync(ctx context.Context, force bool) error {
	e.mu.Lock()
	online := e.online
	e.mu.Unlock()
	if !online {
		slog.Debug("Sync skipped: offline")
		metrics.SyncCycles.WithLabelValues("skipped").Inc()
		return nil
	}

	// At most one cycle in flight; an overlapping request is dropped, not
	// queued. The next periodic trigger picks up the slack.
	if !e.syncing.CompareAndSwap(false, true) {
		slog.Debug("Sync skipped: cycle already in progress")
		metrics.SyncCycles.WithLabelValues("skipped").Inc()
		return nil
	}
	defer e.syncing.Store(false)

	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	if err := e.drainQueue(ctx); err != nil {
		metrics.SyncCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to drain queue: %w", err)
	}

	pulls := []struct {
		entity models.EntityType
		run    func(context.Context, bool) error
	}{
		{models.EntityExpense, e.pullExpenses},
		{models.EntityGroup, e.pullGroups},
		{models.EntityPerson, e.pullPeople},
	}
	for _, p := range pulls {
		if err := p.run(ctx, force); err != nil {
			if isRemoteErr(err) {
				slog.Warn("Sync cycle aborted, cache left as-is",
					"entity", p.entity, "error", err)
				e.recordCycleError(err)
				metrics.SyncCycles.WithLabelValues("error").Inc()
				return nil
			}
			metrics.SyncCycles.WithLabelValues("error").Inc()
			return err
		}
		if err := e.store.SetLastSync(ctx, p.entity, time.Now()); err != nil {
			metrics.SyncCycles.WithLabelValues("error").Inc()
			return err
		}
	}

	e.clearCycleError()
	metrics.SyncCycles.WithLabelValues("ok").Inc()
	slog.Info("Sync cycle completed", "duration_ms", time.Since(start).Milliseconds(), "forced", force)

	e.notify(ctx)
	return nil
}

// drainQueue dispatches pending operations strictly sequentially, in enqueue
// order, so two mutations of the same entity never race. One operation's
// failure is recorded and does not abort the rest of the drain.
//
// The queue is re-read before every dispatch: a create's success rebinds
// later operations in place, and dispatching from a stale in-memory copy
// would lose the rebound remote id.
func (e *Engine) drainQueue(ctx context.Context) error {
	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return err
	}
	metrics.PendingOperations.Set(float64(len(ops)))
	if len(ops) == 0 {
		return nil
	}
	slog.Debug("Draining operation queue", "pending", len(ops))

	seen := make(map[int64]bool, len(ops))
	for {
		ops, err := e.queue.ListPending(ctx)
		if err != nil {
			return err
		}
		var op *models.PendingOp
		for _, candidate := range ops {
			if !seen[candidate.ID] {
				op = candidate
				break
			}
		}
		if op == nil {
			return nil
		}
		seen[op.ID] = true

		if err := e.queue.MarkInFlight(ctx, op); err != nil {
			return err
		}

		dispatchErr := e.dispatch(ctx, op)
		if dispatchErr != nil {
			if err := e.queue.MarkFailed(ctx, op, dispatchErr); err != nil {
				return err
			}
			continue
		}
		if err := e.queue.MarkSucceeded(ctx, op); err != nil {
			return err
		}
	}
}

// dispatch performs one queued operation against the remote client.
func (e *Engine) dispatch(ctx context.Context, op *models.PendingOp) error {
	switch op.Kind {
	case models.OpCreate:
		fields, err := decodePayload(op.Payload)
		if err != nil {
			return err
		}
		id, err := e.client.Create(ctx, op.Entity, fields)
		if err != nil {
			return err
		}
		return e.adoptRemoteID(ctx, op, id)

	case models.OpUpdate:
		if op.RemoteID == 0 {
			// The create this update depends on has not completed yet; fail
			// and retry on a later cycle, after the create drains.
			return fmt.Errorf("record %s has no remote id yet", op.LocalKey)
		}
		fields, err := decodePayload(op.Payload)
		if err != nil {
			return err
		}
		if err := e.client.Update(ctx, op.Entity, op.RemoteID, fields); err != nil {
			return err
		}
		return e.markEntitySynced(ctx, op.Entity, op.RemoteID)

	case models.OpDelete:
		return e.client.Delete(ctx, op.Entity, op.RemoteID)

	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

// adoptRemoteID rewrites a created record's cache key from its local-only
// key to the server-assigned id: the old entry is deleted, a new entry keyed
// by the remote id is inserted as synced. Queued operations still referencing
// the local key are rebound to the new id.
func (e *Engine) adoptRemoteID(ctx context.Context, op *models.PendingOp, id int64) error {
	switch op.Entity {
	case models.EntityExpense:
		rec, err := e.store.GetExpense(ctx, op.LocalKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil // deleted locally while the create was in flight
		}
		if err != nil {
			return err
		}
		rec.Key = models.RemoteKey(id)
		rec.RemoteID = id
		rec.SyncState = models.SyncStateSynced
		if err := e.store.UpsertExpense(ctx, rec); err != nil {
			return err
		}
		if err := e.store.DeleteExpense(ctx, op.LocalKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

	case models.EntityGroup:
		g, err := e.store.GetGroup(ctx, op.LocalKey)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		g.Key = models.RemoteKey(id)
		g.RemoteID = id
		g.SyncState = models.SyncStateSynced
		if err := e.store.UpsertGroup(ctx, g); err != nil {
			return err
		}
		if err := e.store.DeleteGroup(ctx, op.LocalKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

	default:
		return fmt.Errorf("unknown entity type %q", op.Entity)
	}

	slog.Info("Record adopted remote id",
		"entity", op.Entity, "local_key", op.LocalKey, "remote_id", id)
	return e.rebindOps(ctx, op.LocalKey, id)
}

// rebindOps fills in the remote id on queued operations that were enqueued
// against a local-only key before its create completed. This preserves the
// guarantee that an update enqueued after a create is dispatched with that
// create's id, never an older one.
func (e *Engine) rebindOps(ctx context.Context, localKey string, id int64) error {
	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.LocalKey != localKey || op.RemoteID != 0 {
			continue
		}
		op.RemoteID = id
		op.LocalKey = ""
		if err := e.store.UpdateOp(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// markEntitySynced flips a cached record back to synced after its queued
// update reached the server.
func (e *Engine) markEntitySynced(ctx context.Context, entity models.EntityType, id int64) error {
	key := models.RemoteKey(id)
	switch entity {
	case models.EntityExpense:
		rec, err := e.store.GetExpense(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rec.SyncState = models.SyncStateSynced
		return e.store.UpsertExpense(ctx, rec)
	case models.EntityGroup:
		g, err := e.store.GetGroup(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		g.SyncState = models.SyncStateSynced
		return e.store.UpsertGroup(ctx, g)
	default:
		return fmt.Errorf("unknown entity type %q", entity)
	}
}

func decodePayload(payload json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if len(payload) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("corrupt operation payload: %w", err)
	}
	return fields, nil
}

// isRemoteErr reports whether the error came from the remote side (transport
// or validation) rather than local storage.
func isRemoteErr(err error) bool {
	if remote.IsNetwork(err) {
		return true
	}
	var ve *remote.ValidationError
	return errors.As(err, &ve)
}
