package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	// Recurrence applies to expenses only: incomes always carry RecurrenceNone.
	RecurrenceNone     Recurrence = ""
	RecurrenceFixed    Recurrence = "fixed"
	RecurrenceVariable Recurrence = "variable"

	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

type (
	AccountType     string
	TransactionType string
	Recurrence      string
	CategoryKind    string

	Account struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Balance     Money       `json:"balance"`
		Type        AccountType `json:"type"`
		Description string      `json:"description,omitempty"`
	}

	// Transaction is the tagged union over Type. An income never carries a
	// recurrence; an expense always does. Validate enforces the invariant.
	Transaction struct {
		ID         string          `json:"id"`
		Type       TransactionType `json:"type"`
		Recurrence Recurrence      `json:"recurrence,omitempty"`
		Amount     Money           `json:"amount"`
		Date       Date            `json:"date"`
		CategoryID string          `json:"categoryId"`
		AccountID  string          `json:"accountId"`
		Notes      string          `json:"notes,omitempty"`
	}

	Category struct {
		ID          string       `json:"id"`
		Name        string       `json:"name"`
		Description string       `json:"description,omitempty"`
		Kind        CategoryKind `json:"kind"`
	}

	// BudgetVersion is one revision of a category's monthly allocation.
	// Several versions may exist per category; the one effective for a given
	// month is resolved by ResolveEffectiveBudgets.
	BudgetVersion struct {
		ID            string `json:"id"`
		CategoryID    string `json:"categoryId"`
		Allocated     Money  `json:"allocated"`
		EffectiveDate Date   `json:"effectiveDate"`
		Color         string `json:"color,omitempty"`
	}

	GoalEntry struct {
		Date   Date  `json:"date"`
		Amount Money `json:"amount"`
	}

	// SavingGoal tracks progress towards a target. History is an append-only,
	// date-ordered ledger of cumulative saved amounts.
	SavingGoal struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Target      Money       `json:"targetAmount"`
		History     []GoalEntry `json:"history"`
		CreatedAt   Date        `json:"createdAt"`
		CompletedAt *Date       `json:"completedAt"`
		Color       string      `json:"color,omitempty"`
	}

	Preference struct {
		Currency string `json:"currency"`
		Theme    string `json:"theme"`
	}
)

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid type")
	ErrInvalidRecurrence = errors.New("invalid recurrence")
	ErrEmptyName         = errors.New("empty name")
	ErrEmptyCategory     = errors.New("empty category reference")
	ErrEmptyAccount      = errors.New("empty account reference")
	ErrNotesTooLong      = errors.New("notes too long (max 200 characters)")
	ErrHistoryOrder      = errors.New("history entries must be date-ordered")
)

// ValidationError marks a data-shape violation detected at ingestion.
// The engines assume validated input and never produce one themselves.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func (t AccountType) IsValid() bool {
	switch t {
	case AccountBank, AccountCash, AccountInvestment, AccountOther:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if !a.Type.IsValid() {
		return invalid("type", ErrInvalidType)
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type:
// positive for income, negative for expense. Amount itself is never stored
// negative.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	switch t.Type {
	case Income:
		if t.Recurrence != RecurrenceNone {
			return invalid("recurrence", ErrInvalidRecurrence)
		}
	case Expense:
		if t.Recurrence != RecurrenceFixed && t.Recurrence != RecurrenceVariable {
			return invalid("recurrence", ErrInvalidRecurrence)
		}
	default:
		return invalid("type", ErrInvalidType)
	}
	if err := t.Amount.Validate(); err != nil {
		return invalid("amount", ErrInvalidAmount)
	}
	if err := t.Date.Validate(); err != nil {
		return invalid("date", ErrInvalidDate)
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return invalid("categoryId", ErrEmptyCategory)
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return invalid("accountId", ErrEmptyAccount)
	}
	if len(t.Notes) > 200 {
		return invalid("notes", ErrNotesTooLong)
	}
	return nil
}

func (k CategoryKind) IsValid() bool {
	return k == CategoryIncome || k == CategoryExpense
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if !c.Kind.IsValid() {
		return invalid("kind", ErrInvalidType)
	}
	return nil
}

func (b BudgetVersion) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return invalid("categoryId", ErrEmptyCategory)
	}
	if err := b.Allocated.Validate(); err != nil {
		return invalid("allocated", ErrInvalidAmount)
	}
	if err := b.EffectiveDate.Validate(); err != nil {
		return invalid("effectiveDate", ErrInvalidDate)
	}
	return nil
}

func (g SavingGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if err := g.Target.Validate(); err != nil {
		return invalid("targetAmount", ErrInvalidAmount)
	}
	if err := g.CreatedAt.Validate(); err != nil {
		return invalid("createdAt", ErrInvalidDate)
	}
	for i, e := range g.History {
		if err := e.Date.Validate(); err != nil {
			return invalid("history", ErrInvalidDate)
		}
		if i > 0 && e.Date.Time.Before(g.History[i-1].Date.Time) {
			return invalid("history", ErrHistoryOrder)
		}
	}
	return nil
}

func (p Preference) Validate() error {
	switch p.Theme {
	case "light", "dark", "system":
	default:
		return invalid("theme", ErrInvalidType)
	}
	if len(p.Currency) != 3 {
		return invalid("currency", ErrInvalidType)
	}
	return nil
}

// DefaultPreference mirrors the app defaults before the user changes anything.
func DefaultPreference() Preference {
	return Preference{Currency: "USD", Theme: "system"}
}

// Date is a calendar day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, invalid("date", ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month identifies a calendar month, serialized as YYYY-MM.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, invalid("month", ErrInvalidDate)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func CurrentMonth() Month {
	now := time.Now()
	return Month{Year: now.Year(), Month: now.Month()}
}

func MonthOf(d Date) Month {
	return Month{Year: d.Time.Year(), Month: d.Time.Month()}
}

// Days returns the number of calendar days in the month, leap years included.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day returns the n-th day of the month, 1-based.
func (m Month) Day(n int) Date {
	return NewDate(m.Year, int(m.Month), n)
}

func (m Month) First() Date { return m.Day(1) }

func (m Month) Last() Date { return m.Day(m.Days()) }

func (m Month) Contains(d Date) bool {
	return d.Time.Year() == m.Year && d.Time.Month() == m.Month
}

// Compare orders months chronologically, returning -1, 0 or +1.
func (m Month) Compare(o Month) int {
	if m.Year != o.Year {
		if m.Year < o.Year {
			return -1
		}
		return 1
	}
	if m.Month != o.Month {
		if m.Month < o.Month {
			return -1
		}
		return 1
	}
	return 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
