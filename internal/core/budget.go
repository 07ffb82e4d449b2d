package core

// BudgetSpending joins an effective budget version with the actual spend of
// the target month. Remaining goes negative on overspend; that is a
// reportable state, not an error.
type BudgetSpending struct {
	BudgetVersion
	Spent     Money `json:"spent"`
	Remaining Money `json:"remaining"`
}

// ResolveEffectiveBudgets returns, for each category, the single version
// applicable to the month of target: the most recent one whose effective
// month is not after the target month. Effective dates are compared at month
// granularity; the day of month is ignored. When a category has several
// versions with the same effective month, the later list entry wins.
//
// Categories with no applicable version are absent from the result.
func ResolveEffectiveBudgets(versions []BudgetVersion, target Date) []BudgetVersion {
	targetMonth := MonthOf(target)

	resolved := make([]BudgetVersion, 0, len(versions))
	seen := make(map[string]bool, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if seen[v.CategoryID] {
			continue
		}
		if MonthOf(v.EffectiveDate).Compare(targetMonth) <= 0 {
			seen[v.CategoryID] = true
			resolved = append(resolved, v)
		}
	}

	// The scan condition already excludes future versions; keep the final
	// filter anyway so a later refactor of the scan cannot silently let one
	// through.
	out := make([]BudgetVersion, 0, len(resolved))
	for _, v := range resolved {
		if MonthOf(v.EffectiveDate).Compare(targetMonth) <= 0 {
			out = append(out, v)
		}
	}
	return out
}

// BudgetsWithSpending resolves the effective budgets for target's month and
// joins each with the sum of that month's expense transactions in the same
// category. A budgeted category with no expenses yields Spent zero.
func BudgetsWithSpending(versions []BudgetVersion, txs []Transaction, target Date) []BudgetSpending {
	targetMonth := MonthOf(target)
	active := ResolveEffectiveBudgets(versions, target)

	spentByCategory := make(map[string]int64)
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		if MonthOf(t.Date) != targetMonth {
			continue
		}
		spentByCategory[t.CategoryID] += t.Amount.Cents
	}

	out := make([]BudgetSpending, len(active))
	for i, b := range active {
		spent := spentByCategory[b.CategoryID]
		out[i] = BudgetSpending{
			BudgetVersion: b,
			Spent:         Money{Cents: spent},
			Remaining:     Money{Cents: b.Allocated.Cents - spent},
		}
	}
	return out
}
