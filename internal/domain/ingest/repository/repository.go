// Package repository provides data access for the statement ingestion
// pipeline: the append-only staging log, canonical transactions, and the
// payee mapping table.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StagingRow is one raw line captured verbatim from an uploaded statement.
// Rows are never deleted; processed flips to true once the row has been
// through the transform step.
type StagingRow struct {
	ID              uuid.UUID `db:"id"`
	UserID          uuid.UUID `db:"user_id"`
	DateRaw         string    `db:"date_raw"`
	TransactionType string    `db:"transaction_type"`
	AmountRaw       string    `db:"amount_raw"`
	Description     string    `db:"description"`
	Processed       bool      `db:"processed"`
	CreatedAt       time.Time `db:"created_at"`
}

// Transaction is a canonical, normalized financial event derived from
// exactly one staging row. SourceStagingID is the idempotency key: at most
// one transaction exists per staging row.
type Transaction struct {
	ID              uuid.UUID       `db:"id"`
	UserID          uuid.UUID       `db:"user_id"`
	Date            time.Time       `db:"date"`
	Amount          decimal.Decimal `db:"amount"` // negative = outflow, positive = inflow
	Description     string          `db:"description"`
	PayeeClean      string          `db:"payee_clean"`
	PayeeNorm       string          `db:"payee_norm"`
	Category        string          `db:"category"`
	SourceStagingID uuid.UUID       `db:"source_staging_id"`
	Processed       bool            `db:"processed"`
	CreatedAt       time.Time       `db:"created_at"`
}

// PayeeMapping is a classification rule, edited out-of-band and read-only
// to the pipeline. Position fixes the first-match-wins evaluation order.
type PayeeMapping struct {
	ID         uuid.UUID `db:"id"`
	Position   int       `db:"position"`
	Pattern    string    `db:"pattern"`
	Normalized string    `db:"normalized"`
	Category   string    `db:"category"`
}

// IngestRepository defines data access operations for the pipeline.
// Batched operations are chunked internally to respect store payload
// limits; a partial failure reports the count committed before the
// failing chunk.
type IngestRepository interface {
	// Staging
	InsertStagingRows(ctx context.Context, rows []*StagingRow) (int, error)
	ListUnprocessedStagingRows(ctx context.Context, userID uuid.UUID) ([]*StagingRow, error)
	MarkStagingProcessed(ctx context.Context, ids []uuid.UUID) error

	// Mappings
	ListMappings(ctx context.Context) ([]PayeeMapping, error)

	// Canonical transactions
	ExistingStagingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	DeleteTransactionsByStagingIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
	InsertTransactions(ctx context.Context, txs []*Transaction) (int, error)
}
