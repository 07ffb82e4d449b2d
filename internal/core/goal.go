package core

// CurrentAmount returns the saved amount a goal had reached as of the given
// month: the latest history entry dated on or before the month's last day.
// History is date-ordered (see Validate), so the last matching entry wins;
// entries sharing a date resolve to the later list entry. A goal with no
// history up to that month reports zero.
func (g SavingGoal) CurrentAmount(m Month) Money {
	cutoff := m.Last()

	var current Money
	for _, e := range g.History {
		if e.Date.Time.After(cutoff.Time) {
			break
		}
		current = e.Amount
	}
	return current
}

// Remaining is the gap to the target as of the month; negative once the
// target has been exceeded.
func (g SavingGoal) Remaining(m Month) Money {
	return g.Target.Sub(g.CurrentAmount(m))
}

// Progress is the percentage of the target reached as of the month,
// uncapped so overfunded goals report above 100.
func (g SavingGoal) Progress(m Month) float64 {
	if g.Target.Cents <= 0 {
		return 0
	}
	return float64(g.CurrentAmount(m).Cents) / float64(g.Target.Cents) * 100
}

func (g SavingGoal) Completed() bool {
	return g.CompletedAt != nil && !g.CompletedAt.IsZero()
}
