package sync

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
	"github.com/splitsync/splitsync/internal/storage"
	"github.com/splitsync/splitsync/internal/storage/sqlite"
)

func newTestEngine(t *testing.T, client remote.Client, cfg Config) (*Engine, storage.Store) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "splitsync-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, client, cfg), store
}

func TestCreateExpenseFlow(t *testing.T) {
	fake := newFakeRemote()
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	notifications := 0
	engine.OnChange(func(Snapshot) { notifications++ })

	rec := &models.ExpenseRecord{
		Description:  "Groceries",
		Amount:       31.5,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}, {ID: 2}},
		Date:         "2025-06-01",
	}
	if err := engine.CreateExpense(ctx, rec); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	// Before any sync: optimistic local write under a local-only key.
	if !models.IsLocalKey(rec.Key) {
		t.Fatalf("expected local key, got %q", rec.Key)
	}
	local, err := store.GetExpense(ctx, rec.Key)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if local.SyncState != models.SyncStatePending {
		t.Errorf("state = %s, want pending", local.SyncState)
	}
	ops, _ := store.ListPendingOps(ctx)
	if len(ops) != 1 || ops[0].Kind != models.OpCreate {
		t.Fatalf("expected one queued create, got %+v", ops)
	}
	if notifications != 1 {
		t.Errorf("notifications = %d, want 1", notifications)
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// After the drain: the record lives under its server-assigned id.
	if _, err := store.GetExpense(ctx, rec.Key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("local-key entry still present: %v", err)
	}
	adopted, err := store.GetExpense(ctx, "41")
	if err != nil {
		t.Fatalf("GetExpense(41) failed: %v", err)
	}
	if adopted.RemoteID != 41 || adopted.SyncState != models.SyncStateSynced {
		t.Errorf("adopted = %+v", adopted)
	}
	if adopted.Description != "Groceries" || adopted.Amount != 31.5 {
		t.Errorf("adopted fields = %q/%v", adopted.Description, adopted.Amount)
	}

	ops, _ = store.ListPendingOps(ctx)
	if len(ops) != 0 {
		t.Errorf("queue not drained: %+v", ops)
	}
	if len(fake.creates) != 1 || fake.creates[0] != "expense:41" {
		t.Errorf("creates = %v", fake.creates)
	}

	st := engine.Status(ctx)
	if st.Stale || st.LastError != "" || st.FailedOps != 0 {
		t.Errorf("status = %+v", st)
	}
	if notifications < 2 {
		t.Errorf("notifications = %d, want at least 2", notifications)
	}
}

func TestUpdateBeforeCreateIsRebound(t *testing.T) {
	fake := newFakeRemote()
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	rec := &models.ExpenseRecord{
		Description:  "Groceries",
		Amount:       31.5,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}, {ID: 2}},
	}
	if err := engine.CreateExpense(ctx, rec); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	// Edit before the create ever reaches the server.
	edited, err := store.GetExpense(ctx, rec.Key)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	edited.Description = "Groceries and beer"
	if err := engine.UpdateExpense(ctx, edited); err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	ops, _ := store.ListPendingOps(ctx)
	if len(ops) != 2 {
		t.Fatalf("expected 2 queued ops, got %d", len(ops))
	}
	if ops[1].Kind != models.OpUpdate || ops[1].RemoteID != 0 || ops[1].LocalKey != rec.Key {
		t.Fatalf("update op not bound to local key: %+v", ops[1])
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Create drained first, update rebound to 41 and dispatched in turn.
	if len(fake.updates) != 1 || fake.updates[0] != "expense:41" {
		t.Fatalf("updates = %v", fake.updates)
	}
	if got := fake.get(models.EntityExpense, 41); got.String("name") != "Groceries and beer" {
		t.Errorf("server name = %q", got.String("name"))
	}

	ops, _ = store.ListPendingOps(ctx)
	if len(ops) != 0 {
		t.Errorf("queue not drained: %+v", ops)
	}
	adopted, err := store.GetExpense(ctx, "41")
	if err != nil {
		t.Fatalf("GetExpense(41) failed: %v", err)
	}
	if adopted.SyncState != models.SyncStateSynced {
		t.Errorf("state = %s, want synced", adopted.SyncState)
	}
}

func TestDeleteNeverSyncedDropsQueuedOps(t *testing.T) {
	fake := newFakeRemote()
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	rec := &models.ExpenseRecord{
		Description:  "Taxi",
		Amount:       12,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}},
	}
	if err := engine.CreateExpense(ctx, rec); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if err := engine.DeleteExpense(ctx, rec.Key); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	ops, _ := store.ListPendingOps(ctx)
	if len(ops) != 0 {
		t.Fatalf("expected queued create dropped, got %+v", ops)
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(fake.creates) != 0 || len(fake.deletes) != 0 {
		t.Errorf("server should never see the record: creates=%v deletes=%v", fake.creates, fake.deletes)
	}
}

func TestDeleteSyncedQueuesRemoteDelete(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Groceries", 31.5, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if _, err := store.GetExpense(ctx, "41"); err != nil {
		t.Fatalf("pulled record missing: %v", err)
	}

	if err := engine.DeleteExpense(ctx, "41"); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	// Gone locally at once, server delete still queued.
	if _, err := store.GetExpense(ctx, "41"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected local delete, got %v", err)
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(fake.deletes) != 1 || fake.deletes[0] != "expense:41" {
		t.Errorf("deletes = %v", fake.deletes)
	}
	if fake.count(models.EntityExpense) != 0 {
		t.Errorf("server still holds %d records", fake.count(models.EntityExpense))
	}
}

func TestIncrementalPullMergesNewRecords(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	fake.seed(models.EntityExpense, wireExpense(42, "Groceries", 31.5, 2, 1, 2))
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	all, err := store.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	merged, err := store.GetExpense(ctx, "42")
	if err != nil {
		t.Fatalf("GetExpense(42) failed: %v", err)
	}
	if merged.Description != "Groceries" || merged.SyncState != models.SyncStateSynced {
		t.Errorf("merged = %+v", merged)
	}
}

func TestRepeatedSyncIsIdempotent(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := engine.Sync(ctx); err != nil {
			t.Fatalf("Sync %d failed: %v", i, err)
		}
	}

	all, err := store.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 record after repeated syncs, got %d", len(all))
	}
}

func TestCountMismatchEscalatesToFullPull(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense,
		wireExpense(41, "Dinner", 60, 1, 1, 2),
		wireExpense(42, "Groceries", 31.5, 2, 1, 2),
	)
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Another client deletes 41 server-side. An incremental pull sees
	// nothing new; the count check has to notice.
	fake.remove(models.EntityExpense, 41)

	// A local-only record must ride out the reconciliation.
	fake.createErr = &remote.NetworkError{Op: "create", Err: errors.New("flaky")}
	localOnly := &models.ExpenseRecord{
		Description:  "Taxi",
		Amount:       12,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}},
	}
	if err := engine.CreateExpense(ctx, localOnly); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if _, err := store.GetExpense(ctx, "41"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected 41 reconciled away, got %v", err)
	}
	if _, err := store.GetExpense(ctx, "42"); err != nil {
		t.Errorf("42 should survive: %v", err)
	}
	if _, err := store.GetExpense(ctx, localOnly.Key); err != nil {
		t.Errorf("local-only record should survive reconciliation: %v", err)
	}
}

func TestRemoteFailureKeepsCache(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	fake.searchErr = &remote.NetworkError{Op: "search_read", Err: errors.New("connection refused")}
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync should swallow remote errors, got %v", err)
	}

	all, _ := store.ListExpenses(ctx)
	if len(all) != 1 {
		t.Errorf("cache was disturbed: %d records", len(all))
	}
	st := engine.Status(ctx)
	if st.LastError == "" || !strings.Contains(st.LastError, "connection refused") {
		t.Errorf("last error = %q", st.LastError)
	}

	// The next successful cycle clears the error.
	fake.searchErr = nil
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if st := engine.Status(ctx); st.LastError != "" {
		t.Errorf("last error not cleared: %q", st.LastError)
	}
}

func TestOfflineSkipsCycle(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	engine.SetOnline(ctx, false)
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("offline Sync failed: %v", err)
	}
	all, _ := store.ListExpenses(ctx)
	if len(all) != 0 {
		t.Fatalf("offline cycle touched the remote: %d records pulled", len(all))
	}

	// Mutations still work offline; they just queue.
	rec := &models.ExpenseRecord{
		Description:  "Taxi",
		Amount:       12,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}},
	}
	if err := engine.CreateExpense(ctx, rec); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	// Reconnecting triggers an immediate cycle.
	engine.SetOnline(ctx, true)
	if len(fake.creates) != 1 {
		t.Errorf("reconnect did not drain the queue: %v", fake.creates)
	}
	all, _ = store.ListExpenses(ctx)
	if len(all) != 2 {
		t.Errorf("expected pulled plus created record, got %d", len(all))
	}
}

func TestRetryCeilingAbandonsOperation(t *testing.T) {
	fake := newFakeRemote()
	fake.createErr = &remote.NetworkError{Op: "create", Err: errors.New("down")}
	engine, store := newTestEngine(t, fake, Config{MaxRetries: 2})
	ctx := context.Background()

	rec := &models.ExpenseRecord{
		Description:  "Taxi",
		Amount:       12,
		Payer:        models.Ref{ID: 1},
		Participants: []models.Ref{{ID: 1}},
	}
	if err := engine.CreateExpense(ctx, rec); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if st := engine.Status(ctx); st.FailedOps != 1 {
		t.Fatalf("failed ops = %d, want 1", st.FailedOps)
	}

	// Second failure reaches the ceiling; the op is abandoned, the local
	// record stays.
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	ops, _ := store.ListPendingOps(ctx)
	if len(ops) != 0 {
		t.Errorf("expected abandoned op removed, got %+v", ops)
	}
	if _, err := store.GetExpense(ctx, rec.Key); err != nil {
		t.Errorf("local record should survive abandonment: %v", err)
	}
}

func TestOverlappingSyncIsDropped(t *testing.T) {
	fake := newFakeRemote()
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	// Hold the busy flag as an in-flight cycle would.
	if !engine.syncing.CompareAndSwap(false, true) {
		t.Fatal("busy flag unexpectedly set")
	}
	defer engine.syncing.Store(false)

	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// The overlapping request was dropped, not queued: nothing was pulled.
	all, _ := store.ListExpenses(ctx)
	if len(all) != 0 {
		t.Errorf("dropped cycle pulled %d records", len(all))
	}
	if st := engine.Status(ctx); !st.Stale {
		t.Errorf("dropped cycle should not clear staleness: %+v", st)
	}
}

func TestStalenessWindow(t *testing.T) {
	fake := newFakeRemote()
	engine, store := newTestEngine(t, fake, Config{StalenessWindow: time.Minute})
	ctx := context.Background()

	if st := engine.Status(ctx); !st.Stale {
		t.Error("never-synced engine should be stale")
	}

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if st := engine.Status(ctx); st.Stale {
		t.Error("freshly synced engine should not be stale")
	}

	// Age the sync timestamp past the window.
	old := time.Now().Add(-2 * time.Minute)
	if err := store.SetLastSync(ctx, models.EntityExpense, old); err != nil {
		t.Fatalf("SetLastSync failed: %v", err)
	}
	if st := engine.Status(ctx); !st.Stale {
		t.Error("aged engine should be stale")
	}
}

func TestSnapshotBalancesAndSettlements(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityPerson,
		wirePerson(1, "Alice"),
		wirePerson(2, "Bob"),
		wirePerson(3, "Charlie"),
	)
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 30, 1, 1, 2, 3))
	engine, _ := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	snap, err := engine.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	wantBalances := map[string]float64{"Alice": 20, "Bob": -10, "Charlie": -10}
	for name, want := range wantBalances {
		if got := snap.Balances[name]; math.Abs(got-want) > 0.01 {
			t.Errorf("balance[%s] = %v, want %v", name, got, want)
		}
	}

	if len(snap.Settlements) != 2 {
		t.Fatalf("settlements = %+v", snap.Settlements)
	}
	if snap.Settlements[0].From != "Bob" || snap.Settlements[0].To != "Alice" ||
		math.Abs(snap.Settlements[0].Amount-10) > 0.01 {
		t.Errorf("first transfer = %+v", snap.Settlements[0])
	}
	if snap.Settlements[1].From != "Charlie" || snap.Settlements[1].To != "Alice" ||
		math.Abs(snap.Settlements[1].Amount-10) > 0.01 {
		t.Errorf("second transfer = %+v", snap.Settlements[1])
	}

	if len(snap.People) != 3 || snap.People[0].DisplayName != "Alice" {
		t.Errorf("people = %+v", snap.People)
	}
}

func TestForceRefreshOverwritesLocalEdits(t *testing.T) {
	fake := newFakeRemote()
	fake.seed(models.EntityExpense, wireExpense(41, "Dinner", 60, 1, 1, 2))
	engine, store := newTestEngine(t, fake, Config{})
	ctx := context.Background()

	if err := engine.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Server-side edit by another client. A forced refresh takes the remote
	// version wholesale.
	fake.get(models.EntityExpense, 41)["name"] = "Team dinner"
	if err := engine.ForceRefresh(ctx); err != nil {
		t.Fatalf("ForceRefresh failed: %v", err)
	}

	got, err := store.GetExpense(ctx, "41")
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Description != "Team dinner" {
		t.Errorf("description = %q, want remote version", got.Description)
	}
}
