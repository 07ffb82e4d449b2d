package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// parseMonthParam reads the month query parameter (format 2006-01). A missing
// parameter means the current month.
func parseMonthParam(r *http.Request) (core.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return core.CurrentMonth(), nil
	}
	m, err := core.ParseMonth(raw)
	if err != nil {
		return core.Month{}, fmt.Errorf("invalid month %q: %w", raw, err)
	}
	return m, nil
}

// parseTargetDate reads the date query parameter (format 2006-01-02). A
// missing parameter means today.
func parseTargetDate(r *http.Request) (core.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		y, m, d := time.Now().Date()
		return core.NewDate(y, int(m), d), nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return d, nil
}

// parseSeriesFilter reads the per-kind category and account restrictions for
// the monthly series. Absent parameters fall back to the "all" sentinel.
func parseSeriesFilter(r *http.Request) core.SeriesFilter {
	q := r.URL.Query()
	return core.SeriesFilter{
		IncomeCategory:  q.Get("incomeCategory"),
		ExpenseCategory: q.Get("expenseCategory"),
		AccountID:       q.Get("accountId"),
	}
}

var sortFields = map[core.SortField]bool{
	core.SortByDate:       true,
	core.SortByType:       true,
	core.SortByOrigin:     true,
	core.SortByAccount:    true,
	core.SortByAmount:     true,
	core.SortByID:         true,
	core.SortByNotes:      true,
	core.SortByRecurrence: true,
}

// parseListParams reads the filter and sort query parameters for the
// transaction list. Date bounds are inclusive; sortDir defaults to ascending
// when only sortBy is given.
func parseListParams(r *http.Request) (core.Filters, core.SortState, error) {
	q := r.URL.Query()

	f := core.Filters{
		Type:      q.Get("type"),
		Origin:    q.Get("origin"),
		AccountID: q.Get("accountId"),
	}
	if raw := q.Get("dateFrom"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.Filters{}, core.SortState{}, fmt.Errorf("invalid dateFrom %q: %w", raw, err)
		}
		f.DateFrom = &d
	}
	if raw := q.Get("dateTo"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.Filters{}, core.SortState{}, fmt.Errorf("invalid dateTo %q: %w", raw, err)
		}
		f.DateTo = &d
	}

	var s core.SortState
	if raw := q.Get("sortBy"); raw != "" {
		field := core.SortField(raw)
		if !sortFields[field] {
			return core.Filters{}, core.SortState{}, fmt.Errorf("invalid sortBy %q", raw)
		}
		s.Field = field
		switch dir := q.Get("sortDir"); dir {
		case "", "asc":
			s.Direction = core.SortAsc
		case "desc":
			s.Direction = core.SortDesc
		default:
			return core.Filters{}, core.SortState{}, fmt.Errorf("invalid sortDir %q", dir)
		}
	}

	return f, s, nil
}

// decodeBody decodes a JSON request body into dst, capping the body size.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// transactionPayload is a transaction plus an optional user-entered decimal
// amount. When amountDecimal is set it takes precedence over the cents field,
// so clients can submit "12,34" the way a person types it.
type transactionPayload struct {
	core.Transaction
	AmountDecimal string `json:"amountDecimal,omitempty"`
}

func decodeTransaction(r *http.Request) (core.Transaction, error) {
	var p transactionPayload
	if err := decodeBody(r, &p); err != nil {
		return core.Transaction{}, err
	}
	if p.AmountDecimal != "" {
		amount, err := core.ParseMoney(p.AmountDecimal)
		if err != nil {
			return core.Transaction{}, &core.ValidationError{Field: "amountDecimal", Err: err}
		}
		p.Transaction.Amount = amount
	}
	return p.Transaction, nil
}

// pathID extracts the trailing identifier from a request path, given the
// route prefix. Returns an empty string when the path has no identifier or
// carries extra segments.
func pathID(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

// goalAction splits a goal subresource path into the goal ID and the action
// segment, for routes like /api/goals/{id}/entries.
func goalAction(r *http.Request, prefix string) (id, action string) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == r.URL.Path || rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return id, action
}
