package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// storeWriter is a TransactionWriter without an export pipeline behind it.
type storeWriter struct{ st *store.Store }

func (w storeWriter) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	return w.st.AddTransaction(t)
}

func (w storeWriter) Update(_ context.Context, t core.Transaction) error {
	return w.st.UpdateTransaction(t)
}

func (w storeWriter) Delete(_ context.Context, id string) error {
	return w.st.RemoveTransaction(id)
}

func testDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st := store.New(nil)

	if _, err := st.AddAccount(core.Account{ID: "a1", Name: "Checking", Type: core.AccountBank}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if err := st.SetCategories([]core.Category{
		{ID: "c1", Name: "Salary", Kind: core.CategoryIncome},
		{ID: "c2", Name: "Groceries", Kind: core.CategoryExpense},
	}); err != nil {
		t.Fatalf("seed categories: %v", err)
	}
	if _, err := st.AddTransaction(core.Transaction{
		ID: "t1", Type: core.Income, Amount: core.Money{Cents: 300000},
		Date: testDate(t, "2025-08-01"), CategoryID: "c1", AccountID: "a1",
	}); err != nil {
		t.Fatalf("seed income: %v", err)
	}
	if _, err := st.AddTransaction(core.Transaction{
		ID: "t2", Type: core.Expense, Recurrence: core.RecurrenceVariable,
		Amount: core.Money{Cents: 4500}, Date: testDate(t, "2025-08-03"),
		CategoryID: "c2", AccountID: "a1",
	}); err != nil {
		t.Fatalf("seed expense: %v", err)
	}

	srv := NewServer(":0", st, storeWriter{st})
	t.Cleanup(func() {
		srv.rateLimiter.stop()
		srv.cacheManager.Stop()
	})
	return srv, st
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != 200 {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, counter := range []string{"http_requests_total", "transactions_total 2", "accounts_total 1"} {
		if !strings.Contains(body, counter) {
			t.Fatalf("metrics missing %q: %s", counter, body)
		}
	}
}

func TestSeriesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/series?month=2025-08", "")
	if rr.Code != 200 {
		t.Fatalf("series status=%d body=%s", rr.Code, rr.Body.String())
	}
	var series []core.DailyPoint
	decodeInto(t, rr, &series)
	if len(series) != 31 {
		t.Fatalf("series length=%d", len(series))
	}
	last := series[30]
	if last.Income.Cents != 300000 || last.Expense.Cents != 4500 || last.Balance.Cents != 295500 {
		t.Fatalf("series end point: %+v", last)
	}

	rr = do(t, srv, http.MethodGet, "/api/series?month=2025-13", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid month status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/series", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method status=%d", rr.Code)
	}
}

func TestSeriesCacheInvalidatedOnWrite(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/series?month=2025-08", "")
	if rr.Code != 200 {
		t.Fatalf("series status=%d", rr.Code)
	}
	if srv.seriesCache.Size() != 1 {
		t.Fatalf("series not cached")
	}

	body := `{"type":"expense","recurrence":"fixed","amountDecimal":"10,00","date":"2025-08-05","categoryId":"c2","accountId":"a1"}`
	rr = do(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	if srv.seriesCache.Size() != 0 {
		t.Fatalf("cache not invalidated after write")
	}

	rr = do(t, srv, http.MethodGet, "/api/series?month=2025-08", "")
	var series []core.DailyPoint
	decodeInto(t, rr, &series)
	if series[30].Expense.Cents != 5500 {
		t.Fatalf("series stale after write: %+v", series[30])
	}
}

func TestTransactionsListFilterSort(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/transactions?type=expense", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	var txs []core.Transaction
	decodeInto(t, rr, &txs)
	if len(txs) != 1 || txs[0].ID != "t2" {
		t.Fatalf("filtered list: %+v", txs)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?sortBy=amount&sortDir=desc", "")
	decodeInto(t, rr, &txs)
	if len(txs) != 2 || txs[0].ID != "t1" {
		t.Fatalf("sorted list: %+v", txs)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions?sortBy=bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid sortBy status=%d", rr.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	srv, st := newTestServer(t)

	body := `{"type":"income","amount":12500,"date":"2025-08-10","categoryId":"c1","accountId":"a1"}`
	rr := do(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Transaction
	decodeInto(t, rr, &created)
	if created.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if got := st.TotalBalance(); got.Cents != 300000-4500+12500 {
		t.Fatalf("balance after create: %d", got.Cents)
	}

	// Income with a recurrence is invalid.
	body = `{"type":"income","recurrence":"fixed","amount":100,"date":"2025-08-10","categoryId":"c1","accountId":"a1"}`
	rr = do(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create status=%d", rr.Code)
	}
	var resp errorResponse
	decodeInto(t, rr, &resp)
	if resp.Field != "recurrence" {
		t.Fatalf("error field=%q", resp.Field)
	}

	rr = do(t, srv, http.MethodPost, "/api/transactions", "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d", rr.Code)
	}
}

func TestTransactionByID(t *testing.T) {
	srv, st := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/transactions/t1", "")
	if rr.Code != 200 {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing get status=%d", rr.Code)
	}

	body := `{"type":"expense","recurrence":"variable","amount":6000,"date":"2025-08-03","categoryId":"c2","accountId":"a1"}`
	rr = do(t, srv, http.MethodPut, "/api/transactions/t2", body)
	if rr.Code != 200 {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := st.TotalBalance(); got.Cents != 300000-6000 {
		t.Fatalf("balance after update: %d", got.Cents)
	}

	rr = do(t, srv, http.MethodDelete, "/api/transactions/t2", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if got := st.TotalBalance(); got.Cents != 300000 {
		t.Fatalf("balance after delete: %d", got.Cents)
	}
}

func TestAccountLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/accounts", `{"name":"Wallet","type":"cash"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.Account
	decodeInto(t, rr, &created)

	rr = do(t, srv, http.MethodPut, "/api/accounts/"+created.ID, `{"name":"Cash","type":"cash"}`)
	if rr.Code != 200 {
		t.Fatalf("update status=%d", rr.Code)
	}

	// a1 still has transactions, deletion is blocked.
	rr = do(t, srv, http.MethodDelete, "/api/accounts/a1", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("in-use delete status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/accounts/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/accounts", `{"name":"","type":"cash"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid create status=%d", rr.Code)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/budgets",
		`{"categoryId":"c2","allocated":20000,"effectiveDate":"2025-07-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created core.BudgetVersion
	decodeInto(t, rr, &created)

	rr = do(t, srv, http.MethodGet, "/api/budgets?date=2025-08-15", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	var budgets []core.BudgetSpending
	decodeInto(t, rr, &budgets)
	if len(budgets) != 1 {
		t.Fatalf("budgets: %+v", budgets)
	}
	if budgets[0].Spent.Cents != 4500 || budgets[0].Remaining.Cents != 15500 {
		t.Fatalf("budget rollup: %+v", budgets[0])
	}

	// A newer version effective the same month supersedes on re-read.
	rr = do(t, srv, http.MethodPost, "/api/budgets",
		`{"categoryId":"c2","allocated":30000,"effectiveDate":"2025-08-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("second version status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, "/api/budgets?date=2025-08-15", "")
	decodeInto(t, rr, &budgets)
	if len(budgets) != 1 || budgets[0].Allocated.Cents != 30000 {
		t.Fatalf("superseded rollup: %+v", budgets)
	}

	rr = do(t, srv, http.MethodDelete, "/api/budgets/"+created.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodDelete, "/api/budgets/"+created.ID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestGoalEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/api/goals",
		`{"name":"Vacation","targetAmount":100000,"createdAt":"2025-06-01"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var goal core.SavingGoal
	decodeInto(t, rr, &goal)

	rr = do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/entries",
		`{"date":"2025-07-01","amount":25000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("entry status=%d body=%s", rr.Code, rr.Body.String())
	}

	// Out-of-order entry is rejected.
	rr = do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/entries",
		`{"date":"2025-06-15","amount":30000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-order entry status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/goals?month=2025-07", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	var views []goalView
	decodeInto(t, rr, &views)
	if len(views) != 1 {
		t.Fatalf("views: %+v", views)
	}
	if views[0].CurrentAmount.Cents != 25000 || views[0].Remaining.Cents != 75000 {
		t.Fatalf("progress: %+v", views[0])
	}

	rr = do(t, srv, http.MethodPost, "/api/goals/"+goal.ID+"/complete", `{"date":"2025-08-01"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("complete status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/goals/"+goal.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
}

func TestPreferenceEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/preference", "")
	if rr.Code != 200 {
		t.Fatalf("get status=%d", rr.Code)
	}
	var pref core.Preference
	decodeInto(t, rr, &pref)
	if pref != core.DefaultPreference() {
		t.Fatalf("default preference: %+v", pref)
	}

	rr = do(t, srv, http.MethodPut, "/api/preference", `{"currency":"EUR","theme":"dark"}`)
	if rr.Code != 200 {
		t.Fatalf("put status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPut, "/api/preference", `{"currency":"EUR","theme":"neon"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid theme status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/api/preference", "")
	decodeInto(t, rr, &pref)
	if pref.Currency != "EUR" || pref.Theme != "dark" {
		t.Fatalf("preference after update: %+v", pref)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := do(t, srv, http.MethodGet, "/api/categories?kind=expense", "")
	if rr.Code != 200 {
		t.Fatalf("list status=%d", rr.Code)
	}
	var cats []core.Category
	decodeInto(t, rr, &cats)
	if len(cats) != 1 || cats[0].ID != "c2" {
		t.Fatalf("expense categories: %+v", cats)
	}

	rr = do(t, srv, http.MethodGet, "/api/categories?kind=weird", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid kind status=%d", rr.Code)
	}
}
