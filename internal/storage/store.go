// Package storage provides abstractions for the durable local cache.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/splitsync/splitsync/internal/models"
)

// ErrNotFound is returned when a key, record, or queue entry does not exist
// in the requested partition.
var ErrNotFound = errors.New("not found")

// Store defines the interface for the partitioned local cache: expense
// records, reference entities (people, groups), the pending-operation queue,
// and scalar metadata. This abstraction allows swapping storage backends
// (SQLite, in-memory, etc.) without changing the sync engine.
//
// Upserts overwrite whole records; callers must pass the full desired record,
// never a partial one. Bulk upserts are NOT atomic across the batch: each
// record write lands or fails independently, and a returned error means at
// least one write failed, not that none did.
//
// List methods make no ordering guarantee; callers sort explicitly (typically
// by numeric remote id ascending).
type Store interface {
	// UpsertExpense inserts or fully replaces one expense record by Key.
	UpsertExpense(ctx context.Context, rec *models.ExpenseRecord) error

	// UpsertExpenses bulk-upserts records. Non-atomic across the batch.
	UpsertExpenses(ctx context.Context, recs []*models.ExpenseRecord) error

	// GetExpense retrieves a record by cache key. ErrNotFound if absent.
	GetExpense(ctx context.Context, key string) (*models.ExpenseRecord, error)

	// ListExpenses returns every cached expense record.
	ListExpenses(ctx context.Context) ([]*models.ExpenseRecord, error)

	// ListExpensesBySyncState is an equality lookup on the sync-state index.
	ListExpensesBySyncState(ctx context.Context, state models.SyncState) ([]*models.ExpenseRecord, error)

	// DeleteExpense removes a record by cache key. ErrNotFound if absent.
	DeleteExpense(ctx context.Context, key string) error

	// ClearExpenses empties the expense partition.
	ClearExpenses(ctx context.Context) error

	// UpsertPeople replaces cached people by remote id. Non-atomic.
	UpsertPeople(ctx context.Context, people []*models.Person) error

	// ListPeople returns the cached reference people.
	ListPeople(ctx context.Context) ([]*models.Person, error)

	// UpsertGroup inserts or fully replaces one group by Key.
	UpsertGroup(ctx context.Context, g *models.Group) error

	// UpsertGroups bulk-upserts groups. Non-atomic across the batch.
	UpsertGroups(ctx context.Context, gs []*models.Group) error

	// GetGroup retrieves a group by cache key. ErrNotFound if absent.
	GetGroup(ctx context.Context, key string) (*models.Group, error)

	// ListGroups returns every cached group.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// DeleteGroup removes a group by cache key. ErrNotFound if absent.
	DeleteGroup(ctx context.Context, key string) error

	// ClearGroups empties the group partition.
	ClearGroups(ctx context.Context) error

	// EnqueueOp persists a pending operation and populates op.ID with the
	// assigned auto-increment queue id.
	EnqueueOp(ctx context.Context, op *models.PendingOp) error

	// ListPendingOps returns operations with status pending or failed,
	// ordered by enqueue time ascending. This ordering defines drain order.
	ListPendingOps(ctx context.Context) ([]*models.PendingOp, error)

	// UpdateOp fully replaces a queue entry by ID. ErrNotFound if absent.
	UpdateOp(ctx context.Context, op *models.PendingOp) error

	// DeleteOp removes a queue entry by ID. ErrNotFound if absent.
	DeleteOp(ctx context.Context, id int64) error

	// CountFailedOps returns the number of queue entries in failed status.
	CountFailedOps(ctx context.Context) (int, error)

	// LastSync returns the last successful sync time for an entity type,
	// or the zero time if the entity was never synced.
	LastSync(ctx context.Context, entity models.EntityType) (time.Time, error)

	// SetLastSync records the last successful sync time for an entity type.
	SetLastSync(ctx context.Context, entity models.EntityType, t time.Time) error

	// DefaultGroup returns the user-chosen default group id, 0 if unset.
	DefaultGroup(ctx context.Context) (int64, error)

	// SetDefaultGroup stores the user-chosen default group id.
	SetDefaultGroup(ctx context.Context, id int64) error

	// Close releases any resources held by the store.
	Close() error
}
