package core

import (
	"sort"
	"strings"
)

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
	SortNone SortDirection = ""

	SortByDate       SortField = "date"
	SortByType       SortField = "type"
	SortByOrigin     SortField = "origin"
	SortByAccount    SortField = "accountId"
	SortByAmount     SortField = "amount"
	SortByID         SortField = "id"
	SortByNotes      SortField = "notes"
	SortByRecurrence SortField = "recurrence"
)

type (
	SortField     string
	SortDirection string

	// Filters are AND-composed restrictions on a transaction list. Every
	// dimension defaults to the "all" sentinel, meaning no restriction.
	// Both date bounds are inclusive and compared as parsed calendar dates.
	Filters struct {
		Type      string
		Origin    string
		AccountID string
		DateFrom  *Date
		DateTo    *Date
	}

	// SortState is a single-key sort: a field plus a direction that cycles
	// asc -> desc -> none on repeated activation of the same field.
	SortState struct {
		Field     SortField
		Direction SortDirection
	}
)

// Toggle advances the sort cycle for field. Activating a different field
// resets to ascending regardless of the previous state.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field != field {
		return SortState{Field: field, Direction: SortAsc}
	}
	switch s.Direction {
	case SortAsc:
		return SortState{Field: field, Direction: SortDesc}
	case SortDesc:
		return SortState{}
	default:
		return SortState{Field: field, Direction: SortAsc}
	}
}

func (s SortState) active() bool {
	return s.Field != "" && s.Direction != SortNone
}

func (f Filters) matches(t Transaction) bool {
	if !isAll(f.Type) && !strings.EqualFold(f.Type, string(t.Type)) {
		return false
	}
	if !isAll(f.Origin) && t.CategoryID != f.Origin {
		return false
	}
	if !isAll(f.AccountID) && t.AccountID != f.AccountID {
		return false
	}
	if f.DateFrom != nil && t.Date.Time.Before(f.DateFrom.Time) {
		return false
	}
	if f.DateTo != nil && t.Date.Time.After(f.DateTo.Time) {
		return false
	}
	return true
}

// ApplyFiltersAndSort returns a new slice holding the transactions that pass
// every set filter, ordered by the sort state. With direction none the
// filtered input order is preserved. The sort is stable, so ties keep their
// relative input order; the input itself is never reordered.
func ApplyFiltersAndSort(txs []Transaction, f Filters, s SortState) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	if !s.active() {
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := compareByField(s.Field, out[i], out[j])
		if s.Direction == SortDesc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// compareByField orders two transactions on one attribute: dates
// chronologically, amounts numerically, everything else as case-insensitive
// strings.
func compareByField(field SortField, a, b Transaction) int {
	switch field {
	case SortByDate:
		return a.Date.Time.Compare(b.Date.Time)
	case SortByAmount:
		switch {
		case a.Amount.Cents < b.Amount.Cents:
			return -1
		case a.Amount.Cents > b.Amount.Cents:
			return 1
		}
		return 0
	default:
		return strings.Compare(
			strings.ToLower(fieldString(a, field)),
			strings.ToLower(fieldString(b, field)),
		)
	}
}

func fieldString(t Transaction, field SortField) string {
	switch field {
	case SortByID:
		return t.ID
	case SortByType:
		return string(t.Type)
	case SortByOrigin:
		return t.CategoryID
	case SortByAccount:
		return t.AccountID
	case SortByNotes:
		return t.Notes
	case SortByRecurrence:
		return string(t.Recurrence)
	default:
		return ""
	}
}
