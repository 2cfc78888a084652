// Package repository provides read access for the aggregation engine:
// canonical transactions, the optional precomputed recurring summary, and
// the payee mapping table.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the read-only canonical transaction shape the engine
// aggregates over.
type Transaction struct {
	ID          uuid.UUID       `db:"id"`
	Date        time.Time       `db:"date"`
	Amount      decimal.Decimal `db:"amount"`
	Description string          `db:"description"`
	PayeeClean  string          `db:"payee_clean"`
	PayeeNorm   string          `db:"payee_norm"`
	Category    string          `db:"category"`
}

// RecurringSummary is a precomputed recurring-payment record. When present
// for a caller it replaces the in-process heuristic entirely.
type RecurringSummary struct {
	Payee            string          `db:"payee"`
	AvgAmount        decimal.Decimal `db:"avg_amount"`
	Frequency        string          `db:"frequency"`
	LastDate         time.Time       `db:"last_date"`
	NextExpectedDate time.Time       `db:"next_expected_date"`
	Occurrences      int             `db:"occurrences"`
}

// PayeeMapping is the subset of a classification rule the engine needs to
// surface unmapped payees.
type PayeeMapping struct {
	Pattern    string `db:"pattern"`
	Normalized string `db:"normalized"`
	Category   string `db:"category"`
}

// AnalyticsRepository defines the read path behind the aggregation engine
type AnalyticsRepository interface {
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error)
	ListRecurringSummary(ctx context.Context, userID uuid.UUID) ([]RecurringSummary, error)
	ListMappings(ctx context.Context) ([]PayeeMapping, error)
}
