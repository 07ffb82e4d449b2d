package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists snapshots into a relational schema instead of a
// single JSON blob. On top of the store.Persister contract it keeps a sync
// ledger on the transactions table (version, synced_at, sync_attempts) that
// feeds the export worker.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reconstructs a snapshot from the relational tables. A freshly migrated
// database reports itself as empty so the caller can seed defaults.
func (r *SQLiteRepository) Load(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{SchemaVersion: store.SchemaVersion}

	var empty bool
	accounts, err := r.loadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	snap.Accounts = accounts

	snap.Transactions, err = r.loadTransactions(ctx)
	if err != nil {
		return nil, err
	}
	snap.Categories, err = r.loadCategories(ctx)
	if err != nil {
		return nil, err
	}
	snap.Budgets, err = r.loadBudgets(ctx)
	if err != nil {
		return nil, err
	}
	snap.Goals, err = r.loadGoals(ctx)
	if err != nil {
		return nil, err
	}

	empty = len(snap.Accounts) == 0 && len(snap.Transactions) == 0 &&
		len(snap.Categories) == 0 && len(snap.Budgets) == 0 && len(snap.Goals) == 0
	if empty {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx, `SELECT currency, theme FROM preference WHERE id = 1`)
	if err := row.Scan(&snap.Preference.Currency, &snap.Preference.Theme); err != nil {
		return nil, fmt.Errorf("load preference: %w", err)
	}

	return snap, nil
}

// Save writes the snapshot inside one transaction. Reference tables are
// replaced wholesale; the transactions table is upserted so that the sync
// ledger survives, and version only advances when a row actually changed.
func (r *SQLiteRepository) Save(ctx context.Context, snap *store.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if err := r.saveAccounts(ctx, tx, snap.Accounts); err != nil {
		return err
	}
	if err := r.saveCategories(ctx, tx, snap.Categories); err != nil {
		return err
	}
	if err := r.saveBudgets(ctx, tx, snap.Budgets); err != nil {
		return err
	}
	if err := r.saveGoals(ctx, tx, snap.Goals); err != nil {
		return err
	}
	if err := r.saveTransactions(ctx, tx, snap.Transactions); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE preference SET currency = ?, theme = ? WHERE id = 1`,
		snap.Preference.Currency, snap.Preference.Theme)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) loadAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, balance_cents, description FROM accounts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Balance.Cents, &a.Description); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, recurrence, amount_cents, date, category_id, account_id, notes
		 FROM transactions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var date string
		if err := rows.Scan(&t.ID, &t.Type, &t.Recurrence, &t.Amount.Cents, &date,
			&t.CategoryID, &t.AccountID, &t.Notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, kind FROM categories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadBudgets(ctx context.Context) ([]core.BudgetVersion, error) {
	// Position preserves insertion order, which the budget resolver relies on
	// for its tie-break between versions sharing an effective date.
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, allocated_cents, effective_date, color
		 FROM budget_versions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load budget versions: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetVersion
	for rows.Next() {
		var b core.BudgetVersion
		var date string
		if err := rows.Scan(&b.ID, &b.CategoryID, &b.Allocated.Cents, &date, &b.Color); err != nil {
			return nil, fmt.Errorf("scan budget version: %w", err)
		}
		if b.EffectiveDate, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("budget version %s: %w", b.ID, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) loadGoals(ctx context.Context) ([]core.SavingGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, target_cents, created_at, completed_at, color
		 FROM saving_goals ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load saving goals: %w", err)
	}
	defer rows.Close()

	var out []core.SavingGoal
	for rows.Next() {
		var g core.SavingGoal
		var created string
		var completed sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &g.Target.Cents, &created, &completed, &g.Color); err != nil {
			return nil, fmt.Errorf("scan saving goal: %w", err)
		}
		if g.CreatedAt, err = core.ParseDate(created); err != nil {
			return nil, fmt.Errorf("saving goal %s: %w", g.ID, err)
		}
		if completed.Valid {
			d, err := core.ParseDate(completed.String)
			if err != nil {
				return nil, fmt.Errorf("saving goal %s: %w", g.ID, err)
			}
			g.CompletedAt = &d
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		entries, err := r.loadGoalEntries(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].History = entries
	}
	return out, nil
}

func (r *SQLiteRepository) loadGoalEntries(ctx context.Context, goalID string) ([]core.GoalEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, amount_cents FROM goal_entries WHERE goal_id = ? ORDER BY position`, goalID)
	if err != nil {
		return nil, fmt.Errorf("load goal entries: %w", err)
	}
	defer rows.Close()

	var out []core.GoalEntry
	for rows.Next() {
		var e core.GoalEntry
		var date string
		if err := rows.Scan(&date, &e.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan goal entry: %w", err)
		}
		if e.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("goal %s entry: %w", goalID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) saveAccounts(ctx context.Context, tx *sql.Tx, accounts []core.Account) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for i, a := range accounts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, type, balance_cents, description, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Type, a.Balance.Cents, a.Description, i)
		if err != nil {
			return fmt.Errorf("save account %s: %w", a.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) saveCategories(ctx context.Context, tx *sql.Tx, categories []core.Category) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("clear categories: %w", err)
	}
	for i, c := range categories {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, description, kind, position) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, c.Kind, i)
		if err != nil {
			return fmt.Errorf("save category %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) saveBudgets(ctx context.Context, tx *sql.Tx, budgets []core.BudgetVersion) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_versions`); err != nil {
		return fmt.Errorf("clear budget versions: %w", err)
	}
	for i, b := range budgets {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO budget_versions (id, category_id, allocated_cents, effective_date, color, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.CategoryID, b.Allocated.Cents, b.EffectiveDate.String(), b.Color, i)
		if err != nil {
			return fmt.Errorf("save budget version %s: %w", b.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) saveGoals(ctx context.Context, tx *sql.Tx, goals []core.SavingGoal) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_entries`); err != nil {
		return fmt.Errorf("clear goal entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM saving_goals`); err != nil {
		return fmt.Errorf("clear saving goals: %w", err)
	}
	for i, g := range goals {
		var completed any
		if g.CompletedAt != nil {
			completed = g.CompletedAt.String()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO saving_goals (id, name, target_cents, created_at, completed_at, color, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.Name, g.Target.Cents, g.CreatedAt.String(), completed, g.Color, i)
		if err != nil {
			return fmt.Errorf("save saving goal %s: %w", g.ID, err)
		}
		for j, e := range g.History {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO goal_entries (goal_id, date, amount_cents, position) VALUES (?, ?, ?, ?)`,
				g.ID, e.Date.String(), e.Amount.Cents, j)
			if err != nil {
				return fmt.Errorf("save goal %s entry: %w", g.ID, err)
			}
		}
	}
	return nil
}

func (r *SQLiteRepository) saveTransactions(ctx context.Context, tx *sql.Tx, txs []core.Transaction) error {
	keep := make(map[string]bool, len(txs))
	for i, t := range txs {
		keep[t.ID] = true
		// The WHERE clause makes the upsert a no-op for unchanged rows, so a
		// full-snapshot save does not invalidate already-synced transactions.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, type, recurrence, amount_cents, date, category_id, account_id, notes, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   type = excluded.type,
			   recurrence = excluded.recurrence,
			   amount_cents = excluded.amount_cents,
			   date = excluded.date,
			   category_id = excluded.category_id,
			   account_id = excluded.account_id,
			   notes = excluded.notes,
			   version = transactions.version + 1,
			   synced_at = NULL
			 WHERE transactions.type <> excluded.type
			    OR transactions.recurrence <> excluded.recurrence
			    OR transactions.amount_cents <> excluded.amount_cents
			    OR transactions.date <> excluded.date
			    OR transactions.category_id <> excluded.category_id
			    OR transactions.account_id <> excluded.account_id
			    OR transactions.notes <> excluded.notes`,
			t.ID, t.Type, t.Recurrence, t.Amount.Cents, t.Date.String(),
			t.CategoryID, t.AccountID, t.Notes, i)
		if err != nil {
			return fmt.Errorf("save transaction %s: %w", t.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET position = ? WHERE id = ? AND position <> ?`, i, t.ID, i)
		if err != nil {
			return fmt.Errorf("reorder transaction %s: %w", t.ID, err)
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM transactions`)
	if err != nil {
		return fmt.Errorf("list transaction ids: %w", err)
	}
	defer rows.Close()
	var gone []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan transaction id: %w", err)
		}
		if !keep[id] {
			gone = append(gone, id)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, id := range gone {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
	}
	return nil
}

// PendingSyncTransaction carries the minimal data needed for sync queue
// messages.
type PendingSyncTransaction struct {
	ID        string
	Version   int64
	CreatedAt time.Time
}

// GetTransaction retrieves a single transaction with its current sync
// version. Returns store.ErrNotFound when the row no longer exists, which the
// worker treats as a stale message.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, int64, error) {
	var t core.Transaction
	var version int64
	var date string
	row := r.db.QueryRowContext(ctx,
		`SELECT id, type, recurrence, amount_cents, date, category_id, account_id, notes, version
		 FROM transactions WHERE id = ?`, id)
	err := row.Scan(&t.ID, &t.Type, &t.Recurrence, &t.Amount.Cents, &date,
		&t.CategoryID, &t.AccountID, &t.Notes, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, 0, store.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, 0, fmt.Errorf("get transaction: %w", err)
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, 0, fmt.Errorf("transaction %s: %w", id, err)
	}
	return t, version, nil
}

// GetPendingSync returns transactions that still need to be exported.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM transactions
		 WHERE synced_at IS NULL ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		var created string
		if err := rows.Scan(&p.ID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			p.CreatedAt = ts
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records a successful export. The version guard makes the call a
// no-op when the row was edited after the message was published.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET synced_at = CURRENT_TIMESTAMP, sync_attempts = 0
		 WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id, "version", version)
	return nil
}

// MarkSyncError bumps the attempt counter for a failed export.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_attempts = sync_attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
