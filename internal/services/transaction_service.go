package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// SyncLedger exposes the per-row sync versions kept by the SQLite backend.
type SyncLedger interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, int64, error)
}

// SyncPublisher publishes sync pointers to the export queue.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, version int64) error
}

// TransactionService orchestrates transaction writes: mutate the store,
// persist the snapshot, then hand the export pipeline a pointer to the row.
// Export is best-effort; a failed publish never fails the request because the
// pending-sync sweep picks the row up later.
type TransactionService struct {
	store     *store.Store
	ledger    SyncLedger
	publisher SyncPublisher
}

func NewTransactionService(s *store.Store, ledger SyncLedger, publisher SyncPublisher) *TransactionService {
	return &TransactionService{
		store:     s,
		ledger:    ledger,
		publisher: publisher,
	}
}

// Create validates and stores a new transaction, adjusting the account
// balance, then persists and queues the export.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	created, err := s.store.AddTransaction(t)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Save(ctx); err != nil {
		return core.Transaction{}, fmt.Errorf("persist transaction: %w", err)
	}

	s.publishSync(ctx, created.ID)
	return created, nil
}

// Update replaces an existing transaction, rebalancing the affected accounts.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) error {
	if err := s.store.UpdateTransaction(t); err != nil {
		return err
	}
	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("persist transaction: %w", err)
	}

	s.publishSync(ctx, t.ID)
	return nil
}

// Delete removes a transaction and restores the account balance. No export
// message is sent: the sheet is an append-only journal and the row simply
// stops receiving updates.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.RemoveTransaction(id); err != nil {
		return err
	}
	if err := s.store.Save(ctx); err != nil {
		return fmt.Errorf("persist deletion: %w", err)
	}
	return nil
}

func (s *TransactionService) publishSync(ctx context.Context, id string) {
	if s.ledger == nil || s.publisher == nil {
		return
	}

	_, version, err := s.ledger.GetTransaction(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "Failed to read sync version", "id", id, "error", err)
		}
		return
	}

	if err := s.publisher.PublishTransactionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", version, "error", err)
	}
}
