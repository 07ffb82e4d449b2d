package store

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
)

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func seeded(t *testing.T) (*Store, core.Account) {
	t.Helper()
	s := New(nil)
	acct, err := s.AddAccount(core.Account{Name: "Checking", Type: core.AccountBank, Balance: core.Money{Cents: 300000}})
	if err != nil {
		t.Fatalf("add account: %v", err)
	}
	return s, acct
}

func TestAddTransactionAdjustsBalance(t *testing.T) {
	s, acct := seeded(t)

	_, err := s.AddTransaction(core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 100000},
		Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if got := s.TotalBalance(); got.Cents != 400000 {
		t.Fatalf("after income: %d", got.Cents)
	}

	_, err = s.AddTransaction(core.Transaction{
		Type: core.Expense, Recurrence: core.RecurrenceVariable, Amount: core.Money{Cents: 25000},
		Date: date(t, "2025-08-02"), CategoryID: "e1", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if got := s.TotalBalance(); got.Cents != 375000 {
		t.Fatalf("after expense: %d", got.Cents)
	}
}

func TestRemoveTransactionRestoresBalance(t *testing.T) {
	s, acct := seeded(t)
	tx, err := s.AddTransaction(core.Transaction{
		Type: core.Expense, Recurrence: core.RecurrenceFixed, Amount: core.Money{Cents: 50000},
		Date: date(t, "2025-08-03"), CategoryID: "e1", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.RemoveTransaction(tx.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.TotalBalance(); got.Cents != 300000 {
		t.Fatalf("balance not restored: %d", got.Cents)
	}
	if len(s.Transactions()) != 0 {
		t.Fatalf("transaction not removed")
	}
}

func TestUpdateTransactionRebalances(t *testing.T) {
	s, acct := seeded(t)
	tx, _ := s.AddTransaction(core.Transaction{
		Type: core.Expense, Recurrence: core.RecurrenceVariable, Amount: core.Money{Cents: 10000},
		Date: date(t, "2025-08-05"), CategoryID: "e1", AccountID: acct.ID,
	})

	tx.Amount = core.Money{Cents: 40000}
	if err := s.UpdateTransaction(tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	// 300000 - 40000, not -10000 -40000.
	if got := s.TotalBalance(); got.Cents != 260000 {
		t.Fatalf("after update: %d", got.Cents)
	}
}

func TestAddTransactionUnknownAccount(t *testing.T) {
	s, _ := seeded(t)
	_, err := s.AddTransaction(core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 100},
		Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: "missing",
	})
	var ve *core.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRemoveAccountBlockedWhileReferenced(t *testing.T) {
	s, acct := seeded(t)
	tx, _ := s.AddTransaction(core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 100},
		Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: acct.ID,
	})

	if err := s.RemoveAccount(acct.ID); !errors.Is(err, ErrAccountInUse) {
		t.Fatalf("expected ErrAccountInUse, got %v", err)
	}
	if err := s.RemoveTransaction(tx.ID); err != nil {
		t.Fatalf("remove tx: %v", err)
	}
	if err := s.RemoveAccount(acct.ID); err != nil {
		t.Fatalf("remove account after clearing: %v", err)
	}
}

func TestTotalsByType(t *testing.T) {
	s, acct := seeded(t)
	s.AddTransaction(core.Transaction{Type: core.Income, Amount: core.Money{Cents: 1000}, Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: acct.ID})
	s.AddTransaction(core.Transaction{Type: core.Income, Amount: core.Money{Cents: 500}, Date: date(t, "2025-08-02"), CategoryID: "i1", AccountID: acct.ID})
	s.AddTransaction(core.Transaction{Type: core.Expense, Recurrence: core.RecurrenceFixed, Amount: core.Money{Cents: 300}, Date: date(t, "2025-08-03"), CategoryID: "e1", AccountID: acct.ID})

	if got := s.IncomesTotal(); got.Cents != 1500 {
		t.Fatalf("incomes: %d", got.Cents)
	}
	if got := s.ExpensesTotal(); got.Cents != 300 {
		t.Fatalf("expenses: %d", got.Cents)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s, acct := seeded(t)
	s.AddTransaction(core.Transaction{Type: core.Income, Amount: core.Money{Cents: 1000}, Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: acct.ID})

	snap := s.Snapshot()
	snap.Transactions[0].Amount = core.Money{Cents: 999999}
	snap.Accounts[0].Name = "tampered"

	if got := s.Transactions()[0].Amount.Cents; got != 1000 {
		t.Fatalf("store mutated through snapshot: %d", got)
	}
	if got := s.Accounts()[0].Name; got != "Checking" {
		t.Fatalf("account mutated through snapshot: %s", got)
	}
	if snap.SchemaVersion != SchemaVersion {
		t.Fatalf("snapshot missing schema version")
	}
}

func TestUnknownReferenceNames(t *testing.T) {
	s, acct := seeded(t)
	s.SetCategories([]core.Category{{ID: "e1", Name: "Rent", Kind: core.CategoryExpense}})

	if got := s.AccountName(acct.ID); got != "Checking" {
		t.Fatalf("account name: %s", got)
	}
	if got := s.AccountName("nope"); got != UnknownAccountName {
		t.Fatalf("unknown account: %s", got)
	}
	if got := s.CategoryName("e1"); got != "Rent" {
		t.Fatalf("category name: %s", got)
	}
	if got := s.CategoryName("nope"); got != UnknownCategoryName {
		t.Fatalf("unknown category: %s", got)
	}
}

func TestGoalHistoryAppendOnly(t *testing.T) {
	s := New(nil)
	goal, err := s.AddGoal(core.SavingGoal{
		Name: "Vacation", Target: core.Money{Cents: 300000}, CreatedAt: date(t, "2025-01-01"),
	})
	if err != nil {
		t.Fatalf("add goal: %v", err)
	}

	if err := s.AppendGoalEntry(goal.ID, core.GoalEntry{Date: date(t, "2025-03-01"), Amount: core.Money{Cents: 1000}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	err = s.AppendGoalEntry(goal.ID, core.GoalEntry{Date: date(t, "2025-02-01"), Amount: core.Money{Cents: 2000}})
	if err == nil {
		t.Fatalf("expected rejection of out-of-order entry")
	}

	if err := s.CompleteGoal(goal.ID, date(t, "2025-06-01")); err != nil {
		t.Fatalf("complete: %v", err)
	}
	goals := s.Goals()
	if len(goals) != 1 || !goals[0].Completed() {
		t.Fatalf("goal not completed: %+v", goals)
	}
}

type memPersister struct {
	snap *Snapshot
}

func (m *memPersister) Load(ctx context.Context) (*Snapshot, error) { return m.snap, nil }
func (m *memPersister) Save(ctx context.Context, snap *Snapshot) error {
	m.snap = snap
	return nil
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := &memPersister{}
	s := New(p)
	acct, _ := s.AddAccount(core.Account{Name: "Cash", Type: core.AccountCash})
	s.AddTransaction(core.Transaction{Type: core.Income, Amount: core.Money{Cents: 4200}, Date: date(t, "2025-08-01"), CategoryID: "i1", AccountID: acct.ID})
	s.SetPreference(core.Preference{Currency: "EUR", Theme: "dark"})

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := New(p)
	if err := restored.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := restored.TotalBalance(); got.Cents != 4200 {
		t.Fatalf("restored balance: %d", got.Cents)
	}
	if got := restored.Preference(); got.Currency != "EUR" || got.Theme != "dark" {
		t.Fatalf("restored preference: %+v", got)
	}
}
