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
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const (
	listUnprocessedStagingQuery = `
		SELECT id, user_id, date_raw, transaction_type, amount_raw, description, processed, created_at
		FROM staging_rows
		WHERE user_id = $1 AND processed = FALSE
		ORDER BY created_at, id
	`

	markStagingProcessedQuery = `UPDATE staging_rows SET processed = TRUE WHERE id = ANY($1)`

	listMappingsQuery = `
		SELECT id, position, pattern, COALESCE(normalized, ''), category
		FROM payee_mappings
		ORDER BY position
	`

	existingStagingIDsQuery = `SELECT source_staging_id FROM transactions WHERE source_staging_id = ANY($1)`

	deleteByStagingIDsQuery = `DELETE FROM transactions WHERE source_staging_id = ANY($1)`
)

// PostgresIngestRepository implements IngestRepository using PostgreSQL.
// All batched operations are chunked by batchSize to bound payload size;
// chunks carry no ordering requirement between each other.
type PostgresIngestRepository struct {
	pool      PgxPool
	batchSize int
}

// NewPostgresIngestRepository creates a new PostgreSQL-backed ingest repository
func NewPostgresIngestRepository(pool PgxPool, batchSize int) *PostgresIngestRepository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PostgresIngestRepository{pool: pool, batchSize: batchSize}
}

// InsertStagingRows bulk-inserts staging rows in chunks. On a failing chunk
// it reports the count committed by prior chunks; earlier chunks are not
// rolled back (staging is append-only and retries are safe).
func (r *PostgresIngestRepository) InsertStagingRows(ctx context.Context, rows []*StagingRow) (int, error) {
	columns := []string{"id", "user_id", "date_raw", "transaction_type", "amount_raw", "description", "processed"}

	inserted := 0
	for start := 0; start < len(rows); start += r.batchSize {
		chunk := rows[start:min(start+r.batchSize, len(rows))]

		copied, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{"staging_rows"},
			columns,
			pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				row := chunk[i]
				return []any{
					row.ID, row.UserID, row.DateRaw, row.TransactionType,
					row.AmountRaw, row.Description, row.Processed,
				}, nil
			}),
		)
		inserted += int(copied)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert staging rows: %w", err)
		}
	}

	return inserted, nil
}

// ListUnprocessedStagingRows returns staged rows not yet transformed,
// oldest first.
func (r *PostgresIngestRepository) ListUnprocessedStagingRows(ctx context.Context, userID uuid.UUID) ([]*StagingRow, error) {
	rows, err := r.pool.Query(ctx, listUnprocessedStagingQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed staging rows: %w", err)
	}
	defer rows.Close()

	var staged []*StagingRow
	for rows.Next() {
		var s StagingRow
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.DateRaw, &s.TransactionType,
			&s.AmountRaw, &s.Description, &s.Processed, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan staging row: %w", err)
		}
		staged = append(staged, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read staging rows: %w", err)
	}

	return staged, nil
}

// MarkStagingProcessed flips processed to true for the given staging rows
func (r *PostgresIngestRepository) MarkStagingProcessed(ctx context.Context, ids []uuid.UUID) error {
	for start := 0; start < len(ids); start += r.batchSize {
		chunk := ids[start:min(start+r.batchSize, len(ids))]
		if _, err := r.pool.Exec(ctx, markStagingProcessedQuery, chunk); err != nil {
			return fmt.Errorf("failed to mark staging rows processed: %w", err)
		}
	}
	return nil
}

// ListMappings returns all payee mapping rules in insertion order
func (r *PostgresIngestRepository) ListMappings(ctx context.Context) ([]PayeeMapping, error) {
	rows, err := r.pool.Query(ctx, listMappingsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list payee mappings: %w", err)
	}
	defer rows.Close()

	var mappings []PayeeMapping
	for rows.Next() {
		var m PayeeMapping
		if err := rows.Scan(&m.ID, &m.Position, &m.Pattern, &m.Normalized, &m.Category); err != nil {
			return nil, fmt.Errorf("failed to scan payee mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payee mappings: %w", err)
	}

	return mappings, nil
}

// ExistingStagingIDs returns which of the given staging ids already have a
// canonical transaction. Used by the check-then-insert commit strategy.
func (r *PostgresIngestRepository) ExistingStagingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool)
	for start := 0; start < len(ids); start += r.batchSize {
		chunk := ids[start:min(start+r.batchSize, len(ids))]

		rows, err := r.pool.Query(ctx, existingStagingIDsQuery, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to query existing staging ids: %w", err)
		}
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan staging id: %w", err)
			}
			existing[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read existing staging ids: %w", err)
		}
		rows.Close()
	}

	return existing, nil
}

// DeleteTransactionsByStagingIDs removes canonical transactions tied to the
// given staging rows. Used by the delete-then-reinsert commit strategy.
func (r *PostgresIngestRepository) DeleteTransactionsByStagingIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var deleted int64
	for start := 0; start < len(ids); start += r.batchSize {
		chunk := ids[start:min(start+r.batchSize, len(ids))]

		tag, err := r.pool.Exec(ctx, deleteByStagingIDsQuery, chunk)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete transactions by staging ids: %w", err)
		}
		deleted += tag.RowsAffected()
	}
	return deleted, nil
}

// InsertTransactions bulk-inserts canonical transactions in chunks,
// reporting partial progress on a failing chunk.
func (r *PostgresIngestRepository) InsertTransactions(ctx context.Context, txs []*Transaction) (int, error) {
	columns := []string{"id", "user_id", "date", "amount", "description", "payee_clean", "payee_norm", "category", "source_staging_id", "processed"}

	inserted := 0
	for start := 0; start < len(txs); start += r.batchSize {
		chunk := txs[start:min(start+r.batchSize, len(txs))]

		copied, err := r.pool.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			columns,
			pgx.CopyFromSlice(len(chunk), func(i int) ([]any, error) {
				tx := chunk[i]
				return []any{
					tx.ID, tx.UserID, tx.Date, tx.Amount, tx.Description,
					tx.PayeeClean, tx.PayeeNorm, tx.Category,
					tx.SourceStagingID, tx.Processed,
				}, nil
			}),
		)
		inserted += int(copied)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transactions: %w", err)
		}
	}

	return inserted, nil
}
