package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	listTransactionsQuery = `
		SELECT id, date, amount, description, payee_clean, payee_norm, category
		FROM transactions
		WHERE user_id = $1
		ORDER BY date, created_at
	`

	listRecurringSummaryQuery = `
		SELECT payee, avg_amount, frequency, last_date, next_expected_date, occurrences
		FROM recurring_summary
		WHERE user_id = $1
		ORDER BY next_expected_date
	`

	listAnalyticsMappingsQuery = `
		SELECT pattern, COALESCE(normalized, ''), category
		FROM payee_mappings
		ORDER BY position
	`
)

// PostgresAnalyticsRepository implements AnalyticsRepository using PostgreSQL
type PostgresAnalyticsRepository struct {
	pool PgxPool
}

// NewPostgresAnalyticsRepository creates a new PostgreSQL-backed analytics repository
func NewPostgresAnalyticsRepository(pool PgxPool) *PostgresAnalyticsRepository {
	return &PostgresAnalyticsRepository{pool: pool}
}

// ListTransactions returns all canonical transactions visible to the caller
func (r *PostgresAnalyticsRepository) ListTransactions(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, listTransactionsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(
			&tx.ID, &tx.Date, &tx.Amount, &tx.Description,
			&tx.PayeeClean, &tx.PayeeNorm, &tx.Category,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return txs, nil
}

// ListRecurringSummary returns the caller's precomputed recurring records
func (r *PostgresAnalyticsRepository) ListRecurringSummary(ctx context.Context, userID uuid.UUID) ([]RecurringSummary, error) {
	rows, err := r.pool.Query(ctx, listRecurringSummaryQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring summary: %w", err)
	}
	defer rows.Close()

	var summaries []RecurringSummary
	for rows.Next() {
		var s RecurringSummary
		if err := rows.Scan(
			&s.Payee, &s.AvgAmount, &s.Frequency,
			&s.LastDate, &s.NextExpectedDate, &s.Occurrences,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recurring summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recurring summary: %w", err)
	}

	return summaries, nil
}

// ListMappings returns all payee mapping rules in insertion order
func (r *PostgresAnalyticsRepository) ListMappings(ctx context.Context) ([]PayeeMapping, error) {
	rows, err := r.pool.Query(ctx, listAnalyticsMappingsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list payee mappings: %w", err)
	}
	defer rows.Close()

	var mappings []PayeeMapping
	for rows.Next() {
		var m PayeeMapping
		if err := rows.Scan(&m.Pattern, &m.Normalized, &m.Category); err != nil {
			return nil, fmt.Errorf("failed to scan payee mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payee mappings: %w", err)
	}

	return mappings, nil
}
