// Package store owns the canonical in-memory application state and its
// persistence contract. Mutations go through the Store; the computation
// engines in core only ever see copied snapshots.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const (
	// SchemaVersion is stamped into every persisted snapshot so future
	// layout changes can be migrated instead of guessed at.
	SchemaVersion = 1

	UnknownAccountName  = "Unknown Account"
	UnknownCategoryName = "Unknown Category"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateID  = errors.New("duplicate id")
	ErrAccountInUse = errors.New("account is referenced by transactions")
)

// Snapshot is the JSON-serializable persisted state, kept under a single
// namespace by the Persister.
type Snapshot struct {
	SchemaVersion int                  `json:"schemaVersion"`
	Accounts      []core.Account       `json:"accounts"`
	Transactions  []core.Transaction   `json:"transactions"`
	Categories    []core.Category      `json:"categories"`
	Budgets       []core.BudgetVersion `json:"budgets"`
	Goals         []core.SavingGoal    `json:"savingGoals"`
	Preference    core.Preference      `json:"preference"`
}

// Persister abstracts the storage backing a Store. Load returns nil when
// nothing has been persisted yet. Persistence is best-effort: a failed Save
// leaves the in-memory state authoritative.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Store holds accounts, transactions, categories, budget versions, saving
// goals and the app preference behind one mutex. All methods copy on the way
// in and out; callers never share slices with the store.
type Store struct {
	mu        sync.Mutex
	persister Persister

	accounts     []core.Account
	transactions []core.Transaction
	categories   []core.Category
	budgets      []core.BudgetVersion
	goals        []core.SavingGoal
	preference   core.Preference
}

func New(p Persister) *Store {
	return &Store{
		persister:  p,
		preference: core.DefaultPreference(),
	}
}

// Load replaces the in-memory state with the persisted snapshot, if any.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.Accounts
	s.transactions = snap.Transactions
	s.categories = snap.Categories
	s.budgets = snap.Budgets
	s.goals = snap.Goals
	s.preference = snap.Preference
	if s.preference == (core.Preference{}) {
		s.preference = core.DefaultPreference()
	}
	return nil
}

// Save persists the current state through the injected Persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap := s.Snapshot()
	if err := s.persister.Save(ctx, &snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Snapshot returns a deep-enough copy of the state for the engines: fresh
// slices throughout, so callers can filter and sort freely.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	goals := make([]core.SavingGoal, len(s.goals))
	for i, g := range s.goals {
		goals[i] = copyGoal(g)
	}
	return Snapshot{
		SchemaVersion: SchemaVersion,
		Accounts:      append([]core.Account(nil), s.accounts...),
		Transactions:  append([]core.Transaction(nil), s.transactions...),
		Categories:    append([]core.Category(nil), s.categories...),
		Budgets:       append([]core.BudgetVersion(nil), s.budgets...),
		Goals:         goals,
		Preference:    s.preference,
	}
}

func copyGoal(g core.SavingGoal) core.SavingGoal {
	g.History = append([]core.GoalEntry(nil), g.History...)
	if g.CompletedAt != nil {
		completed := *g.CompletedAt
		g.CompletedAt = &completed
	}
	return g
}

func newID() string { return uuid.NewString() }

// --- accounts ---

func (s *Store) AddAccount(a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	} else if s.accountIndex(a.ID) >= 0 {
		return core.Account{}, ErrDuplicateID
	}
	s.accounts = append(s.accounts, a)
	return a, nil
}

func (s *Store) UpdateAccount(a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.accountIndex(a.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.accounts[i] = a
	return nil
}

// RemoveAccount deletes an account. Deletion is blocked while any
// transaction still references the account, so no dangling accountId can be
// left behind.
func (s *Store) RemoveAccount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.accountIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	for _, t := range s.transactions {
		if t.AccountID == id {
			return ErrAccountInUse
		}
	}
	s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
	return nil
}

func (s *Store) Accounts() []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...)
}

func (s *Store) AccountName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.accountIndex(id); i >= 0 {
		return s.accounts[i].Name
	}
	return UnknownAccountName
}

func (s *Store) accountIndex(id string) int {
	for i, a := range s.accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// --- transactions ---

// AddTransaction validates and stores a transaction and adjusts the linked
// account's balance in the same critical section: incomes credit the
// account, expenses debit it.
func (s *Store) AddTransaction(t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ai := s.accountIndex(t.AccountID)
	if ai < 0 {
		return core.Transaction{}, &core.ValidationError{Field: "accountId", Err: ErrNotFound}
	}
	if t.ID == "" {
		t.ID = newID()
	} else if s.transactionIndex(t.ID) >= 0 {
		return core.Transaction{}, ErrDuplicateID
	}
	s.transactions = append(s.transactions, t)
	s.accounts[ai].Balance = s.accounts[ai].Balance.Add(t.Signed())
	return t, nil
}

// UpdateTransaction replaces a transaction by ID, reversing the old balance
// adjustment and applying the new one.
func (s *Store) UpdateTransaction(t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.transactionIndex(t.ID)
	if i < 0 {
		return ErrNotFound
	}
	if ai := s.accountIndex(t.AccountID); ai < 0 {
		return &core.ValidationError{Field: "accountId", Err: ErrNotFound}
	}

	old := s.transactions[i]
	if ai := s.accountIndex(old.AccountID); ai >= 0 {
		s.accounts[ai].Balance = s.accounts[ai].Balance.Sub(old.Signed())
	}
	s.transactions[i] = t
	ai := s.accountIndex(t.AccountID)
	s.accounts[ai].Balance = s.accounts[ai].Balance.Add(t.Signed())
	return nil
}

func (s *Store) RemoveTransaction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.transactionIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	t := s.transactions[i]
	if ai := s.accountIndex(t.AccountID); ai >= 0 {
		s.accounts[ai].Balance = s.accounts[ai].Balance.Sub(t.Signed())
	}
	s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
	return nil
}

func (s *Store) Transaction(id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.transactionIndex(id); i >= 0 {
		return s.transactions[i], nil
	}
	return core.Transaction{}, ErrNotFound
}

func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions...)
}

func (s *Store) TransactionsByAccount(accountID string) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) transactionIndex(id string) int {
	for i, t := range s.transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// --- totals ---

// TotalBalance sums the balances of all accounts.
func (s *Store) TotalBalance() core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cents int64
	for _, a := range s.accounts {
		cents += a.Balance.Cents
	}
	return core.Money{Cents: cents}
}

func (s *Store) IncomesTotal() core.Money {
	return s.totalByType(core.Income)
}

func (s *Store) ExpensesTotal() core.Money {
	return s.totalByType(core.Expense)
}

func (s *Store) totalByType(kind core.TransactionType) core.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cents int64
	for _, t := range s.transactions {
		if t.Type == kind {
			cents += t.Amount.Cents
		}
	}
	return core.Money{Cents: cents}
}

// --- categories ---

// SetCategories replaces the reference tables; categories are static
// reference data, not user-mutated rows.
func (s *Store) SetCategories(cats []core.Category) error {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = append([]core.Category(nil), cats...)
	return nil
}

func (s *Store) Categories(kind core.CategoryKind) []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0)
	for _, c := range s.categories {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) CategoryName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return UnknownCategoryName
}

// --- budgets ---

func (s *Store) AddBudgetVersion(b core.BudgetVersion) (core.BudgetVersion, error) {
	if err := b.Validate(); err != nil {
		return core.BudgetVersion{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = newID()
	} else {
		for _, existing := range s.budgets {
			if existing.ID == b.ID {
				return core.BudgetVersion{}, ErrDuplicateID
			}
		}
	}
	// Versions append in entry order: the resolver's reverse scan depends
	// on later entries superseding earlier ones.
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) RemoveBudgetVersion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.budgets {
		if b.ID == id {
			s.budgets = append(s.budgets[:i], s.budgets[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Store) BudgetVersions() []core.BudgetVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BudgetVersion(nil), s.budgets...)
}

// --- saving goals ---

func (s *Store) AddGoal(g core.SavingGoal) (core.SavingGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = newID()
	} else if s.goalIndex(g.ID) >= 0 {
		return core.SavingGoal{}, ErrDuplicateID
	}
	s.goals = append(s.goals, copyGoal(g))
	return g, nil
}

func (s *Store) UpdateGoal(g core.SavingGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(g.ID)
	if i < 0 {
		return ErrNotFound
	}
	s.goals[i] = copyGoal(g)
	return nil
}

func (s *Store) RemoveGoal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.goals = append(s.goals[:i], s.goals[i+1:]...)
	return nil
}

// AppendGoalEntry adds a history entry to a goal. History is append-only and
// date-ordered; an entry dated before the current last one is rejected.
func (s *Store) AppendGoalEntry(goalID string, entry core.GoalEntry) error {
	if err := entry.Date.Validate(); err != nil {
		return &core.ValidationError{Field: "date", Err: err}
	}
	if entry.Amount.Cents < 0 {
		return &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(goalID)
	if i < 0 {
		return ErrNotFound
	}
	history := s.goals[i].History
	if n := len(history); n > 0 && entry.Date.Time.Before(history[n-1].Date.Time) {
		return &core.ValidationError{Field: "date", Err: core.ErrHistoryOrder}
	}
	s.goals[i].History = append(history, entry)
	return nil
}

// CompleteGoal stamps a goal as reached on the given date.
func (s *Store) CompleteGoal(goalID string, when core.Date) error {
	if err := when.Validate(); err != nil {
		return &core.ValidationError{Field: "date", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.goalIndex(goalID)
	if i < 0 {
		return ErrNotFound
	}
	s.goals[i].CompletedAt = &when
	return nil
}

func (s *Store) Goals() []core.SavingGoal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SavingGoal, len(s.goals))
	for i, g := range s.goals {
		out[i] = copyGoal(g)
	}
	return out
}

func (s *Store) goalIndex(id string) int {
	for i, g := range s.goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// --- preference ---

func (s *Store) Preference() core.Preference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preference
}

func (s *Store) SetPreference(p core.Preference) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preference = p
	return nil
}
