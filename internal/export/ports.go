// Package export defines the ports for pushing transactions to external
// destinations.
package export

import (
	"context"

	"fintrack/internal/core"
)

// Row is a transaction enriched with the display names the export
// destination wants instead of internal IDs.
type Row struct {
	Transaction core.Transaction
	Account     string
	Category    string
}

// TransactionExporter appends one transaction row to the destination and
// returns an opaque reference to where it landed.
type TransactionExporter interface {
	Append(ctx context.Context, row Row) (rowRef string, err error)
}
