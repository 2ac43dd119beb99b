package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
)

// CreateExpense records a new expense: optimistic local write under a fresh
// local-only key plus a queued remote create. Storage failures surface to
// the caller immediately, since they mean the optimistic write itself
// failed; nothing here touches the network.
func (e *Engine) CreateExpense(ctx context.Context, rec *models.ExpenseRecord) error {
	rec.Key = models.NewLocalKey()
	rec.RemoteID = 0
	rec.SyncState = models.SyncStatePending
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := e.store.UpsertExpense(ctx, rec); err != nil {
		return err
	}

	payload, err := json.Marshal(remote.EncodeExpense(rec))
	if err != nil {
		return fmt.Errorf("failed to encode expense payload: %w", err)
	}
	if _, err := e.queue.Enqueue(ctx, models.OpCreate, models.EntityExpense, payload, rec.Key, 0); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// UpdateExpense applies a user edit: the full record is rewritten locally,
// re-marked pending, and a remote update is queued. For a record that has
// not finished its initial upload the queued update carries the local key
// instead of a remote id; the drain rebinds it once the create completes.
func (e *Engine) UpdateExpense(ctx context.Context, rec *models.ExpenseRecord) error {
	if _, err := e.store.GetExpense(ctx, rec.Key); err != nil {
		return err
	}

	rec.SyncState = models.SyncStatePending
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := e.store.UpsertExpense(ctx, rec); err != nil {
		return err
	}

	payload, err := json.Marshal(remote.EncodeExpense(rec))
	if err != nil {
		return fmt.Errorf("failed to encode expense payload: %w", err)
	}
	localKey := ""
	if rec.RemoteID == 0 {
		localKey = rec.Key
	}
	if _, err := e.queue.Enqueue(ctx, models.OpUpdate, models.EntityExpense, payload, localKey, rec.RemoteID); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// DeleteExpense removes a record locally and, if it has ever been synced,
// queues a remote delete. For a never-synced record any queued operations
// for its local key are dropped instead: the server has nothing to delete.
func (e *Engine) DeleteExpense(ctx context.Context, key string) error {
	rec, err := e.store.GetExpense(ctx, key)
	if err != nil {
		return err
	}

	if err := e.store.DeleteExpense(ctx, key); err != nil {
		return err
	}

	if rec.RemoteID != 0 {
		if _, err := e.queue.Enqueue(ctx, models.OpDelete, models.EntityExpense, nil, "", rec.RemoteID); err != nil {
			return err
		}
	} else if err := e.dropOpsForLocalKey(ctx, key); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// CreateGroup records a new expense group locally and queues its upload.
func (e *Engine) CreateGroup(ctx context.Context, g *models.Group) error {
	g.Key = models.NewLocalKey()
	g.RemoteID = 0
	g.SyncState = models.SyncStatePending

	if err := e.store.UpsertGroup(ctx, g); err != nil {
		return err
	}

	payload, err := json.Marshal(remote.EncodeGroup(g))
	if err != nil {
		return fmt.Errorf("failed to encode group payload: %w", err)
	}
	if _, err := e.queue.Enqueue(ctx, models.OpCreate, models.EntityGroup, payload, g.Key, 0); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// UpdateGroup rewrites a group locally and queues a remote update.
func (e *Engine) UpdateGroup(ctx context.Context, g *models.Group) error {
	if _, err := e.store.GetGroup(ctx, g.Key); err != nil {
		return err
	}

	g.SyncState = models.SyncStatePending
	if err := e.store.UpsertGroup(ctx, g); err != nil {
		return err
	}

	payload, err := json.Marshal(remote.EncodeGroup(g))
	if err != nil {
		return fmt.Errorf("failed to encode group payload: %w", err)
	}
	localKey := ""
	if g.RemoteID == 0 {
		localKey = g.Key
	}
	if _, err := e.queue.Enqueue(ctx, models.OpUpdate, models.EntityGroup, payload, localKey, g.RemoteID); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// DeleteGroup removes a group locally and queues a remote delete when the
// group has ever been synced.
func (e *Engine) DeleteGroup(ctx context.Context, key string) error {
	g, err := e.store.GetGroup(ctx, key)
	if err != nil {
		return err
	}

	if err := e.store.DeleteGroup(ctx, key); err != nil {
		return err
	}

	if g.RemoteID != 0 {
		if _, err := e.queue.Enqueue(ctx, models.OpDelete, models.EntityGroup, nil, "", g.RemoteID); err != nil {
			return err
		}
	} else if err := e.dropOpsForLocalKey(ctx, key); err != nil {
		return err
	}

	e.notify(ctx)
	return nil
}

// SetDefaultGroup stores the user's default group choice, which also scopes
// remote pulls to that group.
func (e *Engine) SetDefaultGroup(ctx context.Context, id int64) error {
	return e.store.SetDefaultGroup(ctx, id)
}

// dropOpsForLocalKey removes queued operations targeting a local-only record
// that was deleted before it ever reached the server.
func (e *Engine) dropOpsForLocalKey(ctx context.Context, localKey string) error {
	ops, err := e.queue.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, op := range ops {
		if op.LocalKey != localKey {
			continue
		}
		if err := e.queue.MarkSucceeded(ctx, op); err != nil {
			return err
		}
		slog.Debug("Dropped queued operation for deleted local record",
			"op_id", op.ID, "kind", op.Kind, "local_key", localKey)
	}
	return nil
}
