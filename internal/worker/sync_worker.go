// Package worker drains the export queue and pushes transactions to the
// configured exporter.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/store"
	"fintrack/internal/storage"
)

// Ledger is the slice of the SQLite repository the worker needs.
type Ledger interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, int64, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSyncTransaction, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string) error
}

// Names resolves account and category IDs to display names for the export.
type Names interface {
	AccountName(id string) string
	CategoryName(id string) string
}

// SyncWorker moves transactions from the SQLite sync ledger to the exporter.
type SyncWorker struct {
	ledger    Ledger
	exporter  export.TransactionExporter
	names     Names
	batchSize int
}

func NewSyncWorker(ledger Ledger, exporter export.TransactionExporter, names Names, batchSize int) *SyncWorker {
	return &SyncWorker{
		ledger:    ledger,
		exporter:  exporter,
		names:     names,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single sync message from AMQP. A message for
// a row that no longer exists or was edited since publication is stale and is
// dropped without error; the newer message carries the newer version.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)

	tx, version, err := w.ledger.GetTransaction(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "Transaction gone, dropping stale message", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if version != msg.Version {
		slog.InfoContext(ctx, "Transaction changed since message was published, dropping",
			"id", msg.ID, "message_version", msg.Version, "current_version", version)
		return nil
	}

	return w.exportTransaction(ctx, tx, version)
}

// ProcessPending exports any transactions that have not been synced yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.ledger.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		tx, version, err := w.ledger.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, "error", err)
			if err := w.ledger.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			continue
		}

		if err := w.exportTransaction(ctx, tx, version); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "id", p.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupSyncCheck drains a larger pending batch at worker startup to recover
// from missed messages or downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.ledger.GetPendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, p := range pending {
		tx, version, err := w.ledger.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction for startup sync",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}

		if err := w.exportTransaction(ctx, tx, version); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", p.ID, "error", err)
			errorCount++
			continue
		}

		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)

	return nil
}

func (w *SyncWorker) exportTransaction(ctx context.Context, tx core.Transaction, version int64) error {
	row := export.Row{Transaction: tx}
	if w.names != nil {
		row.Account = w.names.AccountName(tx.AccountID)
		row.Category = w.names.CategoryName(tx.CategoryID)
	}

	ref, err := w.exporter.Append(ctx, row)
	if err != nil {
		if markErr := w.ledger.MarkSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to exporter: %w", err)
	}

	if err := w.ledger.MarkSynced(ctx, tx.ID, version); err != nil {
		// The export itself worked, do not requeue.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"id", tx.ID,
		"version", version,
		"ref", ref,
		"amount_cents", tx.Amount.Cents)

	return nil
}
