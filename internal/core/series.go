package core

import "strings"

// FilterAll is the sentinel meaning "no restriction" for a filter dimension.
// The empty string and any casing of "all" are treated the same way.
const FilterAll = "All"

func isAll(v string) bool {
	return v == "" || strings.EqualFold(v, FilterAll)
}

// SeriesFilter narrows the transactions that feed a monthly series.
// Income transactions are only tested against IncomeCategory, expenses only
// against ExpenseCategory; AccountID applies to both.
type SeriesFilter struct {
	IncomeCategory  string
	ExpenseCategory string
	AccountID       string
}

// DailyPoint is one day of the cumulative monthly series. Income and Expense
// are running totals from the first of the month; Balance is their difference.
type DailyPoint struct {
	Date    Date  `json:"date"`
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// BuildMonthlySeries reduces a transaction list to one cumulative point per
// calendar day of the month, in ascending day order. The input is never
// mutated and the result is freshly allocated; a month with no matching
// transactions still yields a full series of zeros.
func BuildMonthlySeries(txs []Transaction, month Month, f SeriesFilter) []DailyPoint {
	days := month.Days()

	incomeByDay := make([]int64, days+1)
	expenseByDay := make([]int64, days+1)
	for _, t := range txs {
		if !month.Contains(t.Date) {
			continue
		}
		if !isAll(f.AccountID) && t.AccountID != f.AccountID {
			continue
		}
		day := t.Date.Time.Day()
		switch t.Type {
		case Income:
			if !isAll(f.IncomeCategory) && t.CategoryID != f.IncomeCategory {
				continue
			}
			incomeByDay[day] += t.Amount.Cents
		case Expense:
			if !isAll(f.ExpenseCategory) && t.CategoryID != f.ExpenseCategory {
				continue
			}
			expenseByDay[day] += t.Amount.Cents
		}
	}

	series := make([]DailyPoint, 0, days)
	var income, expense int64
	for day := 1; day <= days; day++ {
		income += incomeByDay[day]
		expense += expenseByDay[day]
		series = append(series, DailyPoint{
			Date:    month.Day(day),
			Income:  Money{Cents: income},
			Expense: Money{Cents: expense},
			Balance: Money{Cents: income - expense},
		})
	}
	return series
}
