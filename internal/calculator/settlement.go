package calculator

import "sort"

// epsilon is the settled threshold: balances within ±epsilon of zero are
// treated as already even and excluded from settlement.
const epsilon = 0.01

// Transfer is one settlement payment from a debtor to a creditor.
type Transfer struct {
	From   string
	To     string
	Amount float64
}

// Settle matches debtors with creditors to clear all balances in few
// transfers. The matching is greedy with two independent cursors: take the
// current creditor and current debtor, transfer the minimum of their
// remainders, and advance whichever cursor's remainder has dropped below
// epsilon. Not provably optimal, but deterministic: both lists are walked
// in ascending name order.
func Settle(balances map[string]float64) []Transfer {
	names := make([]string, 0, len(balances))
	for name := range balances {
		names = append(names, name)
	}
	sort.Strings(names)

	var creditors, debtors []string
	remaining := make(map[string]float64, len(balances))
	for _, name := range names {
		switch b := balances[name]; {
		case b > epsilon:
			creditors = append(creditors, name)
			remaining[name] = b
		case b < -epsilon:
			debtors = append(debtors, name)
			remaining[name] = -b // track debt as a positive remainder
		}
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := debtors[i]
		creditor := creditors[j]

		amount := remaining[debtor]
		if remaining[creditor] < amount {
			amount = remaining[creditor]
		}

		if amount > epsilon {
			transfers = append(transfers, Transfer{
				From:   debtor,
				To:     creditor,
				Amount: round2(amount),
			})
		}

		remaining[debtor] -= amount
		remaining[creditor] -= amount

		if remaining[debtor] < epsilon {
			i++
		}
		if remaining[creditor] < epsilon {
			j++
		}
	}

	return transfers
}
