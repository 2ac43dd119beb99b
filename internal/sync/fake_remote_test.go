package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
)

// fakeRemote is an in-memory remote.Client holding a server-side record table
// per entity. Writes go through the same encode/decode boundary the real
// endpoint would: create and update payloads arrive in write shape (replace
// commands, false-as-null) and are stored in the read shape queries return.
type fakeRemote struct {
	mu      sync.Mutex
	nextID  int64
	records map[models.EntityType][]remote.Record

	createErr error
	updateErr error
	deleteErr error
	searchErr error

	creates []string
	updates []string
	deletes []string
}

var _ remote.Client = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:  40,
		records: map[models.EntityType][]remote.Record{},
	}
}

// seed installs a server-side record directly, bypassing the write path.
func (f *fakeRemote) seed(entity models.EntityType, recs ...remote.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range recs {
		f.records[entity] = append(f.records[entity], rec)
		if id := rec.Int("id"); id > f.nextID {
			f.nextID = id
		}
	}
}

// remove deletes a server-side record out-of-band, simulating another client.
func (f *fakeRemote) remove(entity models.EntityType, id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[entity] = deleteByID(f.records[entity], id)
}

func (f *fakeRemote) count(entity models.EntityType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[entity])
}

func (f *fakeRemote) get(entity models.EntityType, id int64) remote.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records[entity] {
		if rec.Int("id") == id {
			return rec
		}
	}
	return nil
}

func (f *fakeRemote) Create(ctx context.Context, entity models.EntityType, fields map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	id := f.nextID
	rec := remote.Record{"id": float64(id)}
	applyFields(rec, fields)
	f.records[entity] = append(f.records[entity], rec)
	f.creates = append(f.creates, fmt.Sprintf("%s:%d", entity, id))
	return id, nil
}

func (f *fakeRemote) Update(ctx context.Context, entity models.EntityType, id int64, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, rec := range f.records[entity] {
		if rec.Int("id") == id {
			applyFields(rec, fields)
			f.updates = append(f.updates, fmt.Sprintf("%s:%d", entity, id))
			return nil
		}
	}
	return &remote.ValidationError{Op: "write", Message: fmt.Sprintf("no record %d", id)}
}

func (f *fakeRemote) Delete(ctx context.Context, entity models.EntityType, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.records[entity] = deleteByID(f.records[entity], id)
	f.deletes = append(f.deletes, fmt.Sprintf("%s:%d", entity, id))
	return nil
}

func (f *fakeRemote) SearchRead(ctx context.Context, entity models.EntityType, filter remote.Filter, fields []string) ([]remote.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []remote.Record
	for _, rec := range f.records[entity] {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRemote) SearchCount(ctx context.Context, entity models.EntityType, filter remote.Filter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return 0, f.searchErr
	}
	count := 0
	for _, rec := range f.records[entity] {
		if matchesFilter(rec, filter) {
			count++
		}
	}
	return count, nil
}

// applyFields merges a write-shape field map into a read-shape record.
// Replace commands become plain id lists.
func applyFields(rec remote.Record, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "participant_ids", "member_ids":
			rec[k] = commandIDs(v)
		default:
			rec[k] = v
		}
	}
}

// commandIDs unpacks [[6, 0, ids]] into the ids list.
func commandIDs(v any) []any {
	cmds, ok := v.([]any)
	if !ok || len(cmds) == 0 {
		return nil
	}
	cmd, ok := cmds[0].([]any)
	if !ok || len(cmd) != 3 {
		return nil
	}
	ids, _ := cmd[2].([]any)
	return ids
}

func matchesFilter(rec remote.Record, filter remote.Filter) bool {
	for _, c := range filter {
		switch c.Op {
		case ">":
			if rec.Int(c.Field) <= filterInt(c.Value) {
				return false
			}
		case "=":
			if rec.Int(c.Field) != filterInt(c.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func filterInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

func deleteByID(recs []remote.Record, id int64) []remote.Record {
	out := recs[:0]
	for _, rec := range recs {
		if rec.Int("id") != id {
			out = append(out, rec)
		}
	}
	return out
}

// wireExpense builds a read-shape expense record the way a query would
// deliver it: float64 ids and [id, name] reference pairs.
func wireExpense(id int64, name string, amount float64, payerID int64, participantIDs ...int64) remote.Record {
	parts := make([]any, len(participantIDs))
	for i, pid := range participantIDs {
		parts[i] = float64(pid)
	}
	return remote.Record{
		"id":              float64(id),
		"name":            name,
		"amount":          amount,
		"payer_id":        float64(payerID),
		"participant_ids": parts,
		"date":            "2025-06-01",
		"category":        false,
		"group_id":        false,
		"settled":         false,
	}
}

func wirePerson(id int64, name string) remote.Record {
	return remote.Record{"id": float64(id), "name": name, "is_default_participant": false}
}
