package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/storage/sqlite"
)

func newTestQueue(t *testing.T, maxRetries int) *Queue {
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
	return New(store, maxRetries)
}

func TestEnqueueOrdering(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, models.OpCreate, models.EntityExpense, []byte(`{"name":"a"}`), "local-a", 0)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	second, err := q.Enqueue(ctx, models.OpUpdate, models.EntityExpense, []byte(`{"name":"b"}`), "local-a", 0)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if second <= first {
		t.Errorf("queue ids not increasing: %d then %d", first, second)
	}

	ops, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 pending ops, got %d", len(ops))
	}
	if ops[0].ID != first || ops[1].ID != second {
		t.Errorf("dispatch order broken: got %d then %d", ops[0].ID, ops[1].ID)
	}
}

func TestMarkSucceededRemovesOp(t *testing.T) {
	q := newTestQueue(t, 0)
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, models.OpDelete, models.EntityGroup, nil, "", 7); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	ops, _ := q.ListPending(ctx)
	if err := q.MarkSucceeded(ctx, ops[0]); err != nil {
		t.Fatalf("MarkSucceeded failed: %v", err)
	}

	remaining, err := q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("expected empty queue, got %d ops", len(remaining))
	}
}

func TestRetryCeiling(t *testing.T) {
	q := newTestQueue(t, 3)
	ctx := context.Background()
	dispatchErr := errors.New("remote unreachable")

	if _, err := q.Enqueue(ctx, models.OpCreate, models.EntityExpense, []byte(`{}`), "local-x", 0); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	// First two failures keep the operation queued for retry.
	for attempt := 1; attempt <= 2; attempt++ {
		ops, err := q.ListPending(ctx)
		if err != nil {
			t.Fatalf("ListPending failed: %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("attempt %d: expected 1 pending op, got %d", attempt, len(ops))
		}
		if err := q.MarkFailed(ctx, ops[0], dispatchErr); err != nil {
			t.Fatalf("MarkFailed failed: %v", err)
		}

		ops, _ = q.ListPending(ctx)
		if len(ops) != 1 {
			t.Fatalf("attempt %d: op dropped before ceiling", attempt)
		}
		if ops[0].RetryCount != attempt {
			t.Errorf("retry count = %d, want %d", ops[0].RetryCount, attempt)
		}
		if ops[0].Status != models.OpStatusFailed {
			t.Errorf("status = %s, want failed", ops[0].Status)
		}
		if ops[0].LastError != "remote unreachable" {
			t.Errorf("last error = %q", ops[0].LastError)
		}
	}

	failed, err := q.CountFailed(ctx)
	if err != nil {
		t.Fatalf("CountFailed failed: %v", err)
	}
	if failed != 1 {
		t.Errorf("failed count = %d, want 1", failed)
	}

	// Third failure hits the ceiling: the operation is abandoned, not retried.
	ops, _ := q.ListPending(ctx)
	if err := q.MarkFailed(ctx, ops[0], dispatchErr); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	ops, err = q.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("expected abandoned op removed from queue, got %d ops", len(ops))
	}
}

func TestDefaultRetryCeiling(t *testing.T) {
	q := newTestQueue(t, 0)
	if q.maxRetries != DefaultMaxRetries {
		t.Errorf("maxRetries = %d, want %d", q.maxRetries, DefaultMaxRetries)
	}
}
