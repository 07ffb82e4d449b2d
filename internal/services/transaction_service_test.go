package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

type fakePublisher struct {
	published []string
	fail      bool
}

func (f *fakePublisher) PublishTransactionSync(_ context.Context, id string, version int64) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.published = append(f.published, id)
	return nil
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

// autoLedger pretends every stored transaction has version 1.
type autoLedger struct{}

func (autoLedger) GetTransaction(_ context.Context, id string) (core.Transaction, int64, error) {
	return core.Transaction{ID: id}, 1, nil
}

func newService(t *testing.T, pub *fakePublisher) (*TransactionService, *store.Store, core.Account) {
	t.Helper()
	st := store.New(nil)
	acct, err := st.AddAccount(core.Account{Name: "Checking", Type: core.AccountBank})
	if err != nil {
		t.Fatalf("add account: %v", err)
	}
	return NewTransactionService(st, autoLedger{}, pub), st, acct
}

func TestCreatePublishesSync(t *testing.T) {
	pub := &fakePublisher{}
	svc, st, acct := newService(t, pub)

	created, err := svc.Create(context.Background(), core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 5000},
		Date: date(t, "2025-08-01"), CategoryID: "c1", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated ID")
	}
	if len(pub.published) != 1 || pub.published[0] != created.ID {
		t.Fatalf("published: %v", pub.published)
	}
	if got := st.TotalBalance(); got.Cents != 5000 {
		t.Fatalf("balance: %d", got.Cents)
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	svc, st, acct := newService(t, pub)

	_, err := svc.Create(context.Background(), core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: 5000},
		Date: date(t, "2025-08-01"), CategoryID: "c1", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("create must not fail on publish error: %v", err)
	}
	if len(st.Transactions()) != 1 {
		t.Fatalf("transaction not stored")
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	pub := &fakePublisher{}
	svc, _, acct := newService(t, pub)

	_, err := svc.Create(context.Background(), core.Transaction{
		Type: core.Income, Amount: core.Money{Cents: -100},
		Date: date(t, "2025-08-01"), CategoryID: "c1", AccountID: acct.ID,
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if len(pub.published) != 0 {
		t.Fatalf("must not publish on validation failure")
	}
}

func TestDeleteDoesNotPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc, st, acct := newService(t, pub)

	created, err := svc.Create(context.Background(), core.Transaction{
		Type: core.Expense, Recurrence: core.RecurrenceVariable, Amount: core.Money{Cents: 2000},
		Date: date(t, "2025-08-02"), CategoryID: "c2", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pub.published = nil

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("delete must not publish: %v", pub.published)
	}
	if got := st.TotalBalance(); got.Cents != 0 {
		t.Fatalf("balance after delete: %d", got.Cents)
	}
}

func TestUpdatePublishesSync(t *testing.T) {
	pub := &fakePublisher{}
	svc, _, acct := newService(t, pub)

	created, err := svc.Create(context.Background(), core.Transaction{
		Type: core.Expense, Recurrence: core.RecurrenceFixed, Amount: core.Money{Cents: 2000},
		Date: date(t, "2025-08-02"), CategoryID: "c2", AccountID: acct.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pub.published = nil

	created.Amount = core.Money{Cents: 3000}
	if err := svc.Update(context.Background(), created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("update must publish: %v", pub.published)
	}
}
