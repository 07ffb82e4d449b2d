package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/core"
)

// handleSeries serves the cumulative daily series for one month, optionally
// narrowed by category and account. Cached per month+filter combination.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	month, err := parseMonthParam(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	filter := parseSeriesFilter(r)

	key := seriesCacheKey(month, filter)
	if cached, ok := s.seriesCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	series := core.BuildMonthlySeries(s.store.Transactions(), month, filter)
	s.seriesCache.Set(key, series)
	writeJSON(w, http.StatusOK, series)
}

func seriesCacheKey(m core.Month, f core.SeriesFilter) string {
	return fmt.Sprintf("%s|%s|%s|%s", m, f.IncomeCategory, f.ExpenseCategory, f.AccountID)
}

// handleBudgets lists the effective budgets for the target date's month,
// joined with that month's spending, or records a new budget version.
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		target, err := parseTargetDate(r)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}

		key := core.MonthOf(target).String()
		if cached, ok := s.budgetsCache.Get(key); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}

		budgets := core.BudgetsWithSpending(s.store.BudgetVersions(), s.store.Transactions(), target)
		s.budgetsCache.Set(key, budgets)
		writeJSON(w, http.StatusOK, budgets)

	case http.MethodPost:
		var b core.BudgetVersion
		if err := decodeBody(r, &b); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		created, err := s.store.AddBudgetVersion(b)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := s.store.Save(r.Context()); err != nil {
			writeError(w, err)
			return
		}
		s.invalidateDerived()
		writeJSON(w, http.StatusCreated, created)

	default:
		writeMethodNotAllowed(w)
	}
}

func (s *Server) handleBudgetByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "/api/budgets/")
	if id == "" {
		writeBadRequest(w, "missing budget id")
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	if err := s.store.RemoveBudgetVersion(id); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.Save(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateDerived()
	writeNoContent(w)
}

// summaryResponse carries the headline totals for the dashboard.
type summaryResponse struct {
	TotalBalance  core.Money `json:"totalBalance"`
	IncomesTotal  core.Money `json:"incomesTotal"`
	ExpensesTotal core.Money `json:"expensesTotal"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		TotalBalance:  s.store.TotalBalance(),
		IncomesTotal:  s.store.IncomesTotal(),
		ExpensesTotal: s.store.ExpensesTotal(),
	})
}
