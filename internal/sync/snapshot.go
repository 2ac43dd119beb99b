package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/splitsync/splitsync/internal/calculator"
	"github.com/splitsync/splitsync/internal/models"
)

// Snapshot is a self-contained view of the cache plus the derived balance
// state, passed by value so no interleaved mutation can change it under the
// consumer.
type Snapshot struct {
	Expenses []*models.ExpenseRecord
	Groups   []*models.Group
	People   []*models.Person

	// Balances is the single-phase per-person net balance.
	Balances map[string]float64

	// Opening and Current are the two-phase breakdown: balances carried
	// forward from settled expenses vs. balances from open ones.
	Opening map[string]float64
	Current map[string]float64

	// Settlements is the transfer plan clearing Balances.
	Settlements []calculator.Transfer
}

// Snapshot reads the cache and recomputes balances and settlements. Expenses
// and groups come back sorted by numeric remote id ascending, local-only
// records last in key order; the store itself guarantees no order.
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	expenses, err := e.store.ListExpenses(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := e.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	people, err := e.store.ListPeople(ctx)
	if err != nil {
		return nil, err
	}

	sortByRemoteID(expenses, func(r *models.ExpenseRecord) (int64, string) { return r.RemoteID, r.Key })
	sortByRemoteID(groups, func(g *models.Group) (int64, string) { return g.RemoteID, g.Key })
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })

	names := make(map[int64]string, len(people))
	for _, p := range people {
		names[p.ID] = p.DisplayName
	}

	calcExpenses := make([]calculator.Expense, len(expenses))
	for i, rec := range expenses {
		calcExpenses[i] = toCalcExpense(rec, names)
	}

	opening, current, net := calculator.SplitBalances(calcExpenses)

	return &Snapshot{
		Expenses:    expenses,
		Groups:      groups,
		People:      people,
		Balances:    net,
		Opening:     opening,
		Current:     current,
		Settlements: calculator.Settle(net),
	}, nil
}

// toCalcExpense resolves person references to display names. An unresolvable
// payer leaves the name empty, which makes the expense ineligible; an
// unresolvable participant keeps a stable placeholder so the split count is
// not silently changed.
func toCalcExpense(rec *models.ExpenseRecord, names map[int64]string) calculator.Expense {
	participants := make([]string, len(rec.Participants))
	for i, ref := range rec.Participants {
		participants[i] = resolveName(ref, names, fmt.Sprintf("person-%d", ref.ID))
	}
	return calculator.Expense{
		Amount:       rec.Amount,
		Payer:        resolveName(rec.Payer, names, ""),
		Participants: participants,
		Settled:      rec.Settled,
	}
}

func resolveName(ref models.Ref, names map[int64]string, fallback string) string {
	if name, ok := names[ref.ID]; ok && name != "" {
		return name
	}
	if ref.Name != "" {
		return ref.Name
	}
	if ref.ID == 0 {
		return ""
	}
	return fallback
}

func sortByRemoteID[T any](items []T, key func(T) (int64, string)) {
	sort.Slice(items, func(i, j int) bool {
		idI, keyI := key(items[i])
		idJ, keyJ := key(items[j])
		if idI == 0 && idJ == 0 {
			return keyI < keyJ
		}
		if idI == 0 || idJ == 0 {
			return idJ == 0 // synced records first, local-only last
		}
		return idI < idJ
	})
}
