// Package calculator turns expense records into per-person net balances and
// a settlement transfer plan. All functions are pure: they never touch
// storage or the network, and callers pass record snapshots by value.
package calculator

import "math"

// Expense is the minimal expense view needed for balance computation.
// Payer and Participants are resolved display names; an empty payer marks an
// unresolvable record.
type Expense struct {
	Amount       float64
	Payer        string
	Participants []string
	Settled      bool
}

// eligible reports whether an expense contributes to balances: positive
// amount, resolvable payer, non-empty participant list.
func eligible(e Expense) bool {
	return e.Amount > 0 && e.Payer != "" && len(e.Participants) > 0
}

// NetBalances computes the per-person net balance over all eligible
// expenses. The payer gains the full amount, each participant owes an equal
// share; no rounding happens inside the accumulation. Final values are
// rounded to 2 decimals once at the end.
//
// Positive = owed money, negative = owes money. Every person appearing as
// payer or participant in an eligible expense gets an entry, even if their
// balance nets to zero.
func NetBalances(expenses []Expense) map[string]float64 {
	balances := make(map[string]float64)

	for _, e := range expenses {
		if !eligible(e) {
			continue
		}

		balances[e.Payer] += e.Amount
		share := e.Amount / float64(len(e.Participants))
		for _, p := range e.Participants {
			balances[p] -= share
		}
	}

	for name, v := range balances {
		balances[name] = round2(v)
	}
	return balances
}

// SplitBalances computes balances in two phases: opening balances from
// already-settled expenses, current balances from unsettled ones, and the
// net as their sum. The net is equivalent to NetBalances over everything;
// the phase breakdown is additional context for display.
func SplitBalances(expenses []Expense) (opening, current, net map[string]float64) {
	var settled, open []Expense
	for _, e := range expenses {
		if e.Settled {
			settled = append(settled, e)
		} else {
			open = append(open, e)
		}
	}

	opening = NetBalances(settled)
	current = NetBalances(open)

	net = make(map[string]float64, len(opening)+len(current))
	for name, v := range opening {
		net[name] += v
	}
	for name, v := range current {
		net[name] += v
	}
	for name, v := range net {
		net[name] = round2(v)
	}
	return opening, current, net
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
