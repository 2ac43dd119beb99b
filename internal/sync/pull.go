package sync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/splitsync/splitsync/internal/metrics"
	"github.com/splitsync/splitsync/internal/models"
	"github.com/splitsync/splitsync/internal/remote"
	"github.com/splitsync/splitsync/internal/storage"
)

// entityPull parameterizes the pull algorithm per entity type, replacing the
// near-duplicate per-entity sync implementations this design collapses.
type entityPull struct {
	entity models.EntityType
	fields []string

	// baseFilter scopes every query (e.g. to the active group). May be nil.
	baseFilter remote.Filter

	// localState reports the highest locally-known remote id and the count
	// of synced local records, driving the incremental-pull decision and the
	// consistency check.
	localState func(ctx context.Context) (highest int64, synced int, err error)

	// upsert merges a batch of queried records into the cache.
	upsert func(ctx context.Context, recs []remote.Record) error

	// reconcile deletes local synced records whose remote id is absent from
	// present. Only ever called after a full pull: an incremental result set
	// says nothing about deletions.
	reconcile func(ctx context.Context, present map[int64]bool) error
}

// pull runs one pull for one entity type: incremental when possible, full
// when there is no local data, the caller forced a refresh, or the cheap
// count-based consistency check disagrees with the cache.
func (e *Engine) pull(ctx context.Context, p entityPull, force bool) error {
	highest, synced, err := p.localState(ctx)
	if err != nil {
		return err
	}

	full := force
	reason := "forced"
	if highest == 0 && !force {
		full = true
		reason = "empty_cache"
	}

	if !full {
		filter := append(remote.Filter{}, p.baseFilter...)
		filter = append(filter, remote.IDGreaterThan(highest)...)
		recs, err := e.client.SearchRead(ctx, p.entity, filter, p.fields)
		if err != nil {
			return err
		}
		if len(recs) > 0 {
			slog.Debug("Incremental pull merged records",
				"entity", p.entity, "count", len(recs), "after_id", highest)
			return p.upsert(ctx, recs)
		}

		// No new records. Verify the cache is actually consistent: if the
		// remote total disagrees with the local synced count, something was
		// changed or deleted out from under us and only a full pull can say
		// what.
		remoteCount, err := e.client.SearchCount(ctx, p.entity, p.baseFilter)
		if err != nil {
			return err
		}
		if remoteCount == synced {
			return nil
		}
		slog.Info("Count mismatch, escalating to full pull",
			"entity", p.entity, "remote", remoteCount, "local", synced)
		full = true
		reason = "count_mismatch"
	}

	metrics.FullPulls.WithLabelValues(reason).Inc()
	recs, err := e.client.SearchRead(ctx, p.entity, p.baseFilter, p.fields)
	if err != nil {
		return err
	}
	if err := p.upsert(ctx, recs); err != nil {
		return err
	}

	present := make(map[int64]bool, len(recs))
	for _, rec := range recs {
		present[rec.Int("id")] = true
	}
	slog.Debug("Full pull merged records", "entity", p.entity, "count", len(recs), "reason", reason)
	return p.reconcile(ctx, present)
}

func (e *Engine) pullExpenses(ctx context.Context, force bool) error {
	groupID, err := e.store.DefaultGroup(ctx)
	if err != nil {
		return err
	}
	var base remote.Filter
	if groupID != 0 {
		base = remote.ByGroup(groupID)
	}

	return e.pull(ctx, entityPull{
		entity:     models.EntityExpense,
		fields:     remote.ExpenseFields,
		baseFilter: base,
		localState: func(ctx context.Context) (int64, int, error) {
			recs, err := e.store.ListExpenses(ctx)
			if err != nil {
				return 0, 0, err
			}
			var highest int64
			synced := 0
			for _, rec := range recs {
				if rec.RemoteID == 0 {
					continue
				}
				synced++
				if rec.RemoteID > highest {
					highest = rec.RemoteID
				}
			}
			return highest, synced, nil
		},
		upsert: func(ctx context.Context, recs []remote.Record) error {
			decoded := make([]*models.ExpenseRecord, len(recs))
			for i, rec := range recs {
				decoded[i] = remote.DecodeExpense(rec)
			}
			return e.store.UpsertExpenses(ctx, decoded)
		},
		reconcile: func(ctx context.Context, present map[int64]bool) error {
			recs, err := e.store.ListExpenses(ctx)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				if rec.RemoteID == 0 || present[rec.RemoteID] {
					continue // local-only records are never reconciled away
				}
				slog.Info("Expense removed server-side, deleting locally",
					"key", rec.Key, "remote_id", rec.RemoteID)
				if err := e.store.DeleteExpense(ctx, rec.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			}
			return nil
		},
	}, force)
}

func (e *Engine) pullGroups(ctx context.Context, force bool) error {
	return e.pull(ctx, entityPull{
		entity: models.EntityGroup,
		fields: remote.GroupFields,
		localState: func(ctx context.Context) (int64, int, error) {
			gs, err := e.store.ListGroups(ctx)
			if err != nil {
				return 0, 0, err
			}
			var highest int64
			synced := 0
			for _, g := range gs {
				if g.RemoteID == 0 {
					continue
				}
				synced++
				if g.RemoteID > highest {
					highest = g.RemoteID
				}
			}
			return highest, synced, nil
		},
		upsert: func(ctx context.Context, recs []remote.Record) error {
			decoded := make([]*models.Group, len(recs))
			for i, rec := range recs {
				decoded[i] = remote.DecodeGroup(rec)
			}
			return e.store.UpsertGroups(ctx, decoded)
		},
		reconcile: func(ctx context.Context, present map[int64]bool) error {
			gs, err := e.store.ListGroups(ctx)
			if err != nil {
				return err
			}
			for _, g := range gs {
				if g.RemoteID == 0 || present[g.RemoteID] {
					continue
				}
				slog.Info("Group removed server-side, deleting locally",
					"key", g.Key, "remote_id", g.RemoteID)
				if err := e.store.DeleteGroup(ctx, g.Key); err != nil && !errors.Is(err, storage.ErrNotFound) {
					return err
				}
			}
			return nil
		},
	}, force)
}

// pullPeople refreshes the read-only people cache wholesale. People are
// remote master data: no queue, no incremental bookkeeping.
func (e *Engine) pullPeople(ctx context.Context, _ bool) error {
	recs, err := e.client.SearchRead(ctx, models.EntityPerson, nil, remote.PersonFields)
	if err != nil {
		return err
	}
	people := make([]*models.Person, len(recs))
	for i, rec := range recs {
		people[i] = remote.DecodePerson(rec)
	}
	return e.store.UpsertPeople(ctx, people)
}
