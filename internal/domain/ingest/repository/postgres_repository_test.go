package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

var stagingColumns = []string{"id", "user_id", "date_raw", "transaction_type", "amount_raw", "description", "processed"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresIngestRepository_InsertStagingRows_Chunked(t *testing.T) {
	mock := newMockPool(t)

	// Batch size 2 splits three rows into two copies
	mock.ExpectCopyFrom(pgx.Identifier{"staging_rows"}, stagingColumns).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"staging_rows"}, stagingColumns).WillReturnResult(1)

	repo := NewPostgresIngestRepository(mock, 2)
	rows := []*StagingRow{
		{ID: uuid.New(), UserID: uuid.New(), DateRaw: "20250711", TransactionType: "DEBIT", AmountRaw: "-60.00", Description: "A"},
		{ID: uuid.New(), UserID: uuid.New(), DateRaw: "20250712", TransactionType: "DEBIT", AmountRaw: "-5.00", Description: "B"},
		{ID: uuid.New(), UserID: uuid.New(), DateRaw: "20250713", TransactionType: "CREDIT", AmountRaw: "10.00", Description: "C"},
	}

	inserted, err := repo.InsertStagingRows(context.Background(), rows)
	if err != nil {
		t.Fatalf("InsertStagingRows: %v", err)
	}
	if inserted != 3 {
		t.Fatalf("expected 3 inserted, got %d", inserted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIngestRepository_ListUnprocessedStagingRows(t *testing.T) {
	mock := newMockPool(t)

	userID := uuid.New()
	rowID := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(listUnprocessedStagingQuery)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "date_raw", "transaction_type", "amount_raw", "description", "processed", "created_at"}).
			AddRow(rowID, userID, "20250711", "DEBIT", "-60.00", "GROCERY", false, now))

	repo := NewPostgresIngestRepository(mock, 500)
	staged, err := repo.ListUnprocessedStagingRows(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListUnprocessedStagingRows: %v", err)
	}
	if len(staged) != 1 {
		t.Fatalf("expected 1 row, got %d", len(staged))
	}
	if staged[0].ID != rowID || staged[0].DateRaw != "20250711" {
		t.Fatalf("unexpected row: %+v", staged[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIngestRepository_MarkStagingProcessed(t *testing.T) {
	mock := newMockPool(t)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mock.ExpectExec(regexp.QuoteMeta(markStagingProcessedQuery)).
		WithArgs(ids).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	repo := NewPostgresIngestRepository(mock, 500)
	if err := repo.MarkStagingProcessed(context.Background(), ids); err != nil {
		t.Fatalf("MarkStagingProcessed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIngestRepository_ListMappings(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectQuery(regexp.QuoteMeta(listMappingsQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "position", "pattern", "normalized", "category"}).
			AddRow(uuid.New(), 1, "netflix", "Netflix", "Entertainment").
			AddRow(uuid.New(), 2, "grocery", "", "Groceries"))

	repo := NewPostgresIngestRepository(mock, 500)
	mappings, err := repo.ListMappings(context.Background())
	if err != nil {
		t.Fatalf("ListMappings: %v", err)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(mappings))
	}
	if mappings[0].Pattern != "netflix" || mappings[0].Normalized != "Netflix" {
		t.Fatalf("unexpected mapping: %+v", mappings[0])
	}
	if mappings[1].Normalized != "" {
		t.Fatalf("expected empty normalized, got %q", mappings[1].Normalized)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIngestRepository_ExistingStagingIDs(t *testing.T) {
	mock := newMockPool(t)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	mock.ExpectQuery(regexp.QuoteMeta(existingStagingIDsQuery)).
		WithArgs(ids).
		WillReturnRows(pgxmock.NewRows([]string{"source_staging_id"}).AddRow(ids[0]))

	repo := NewPostgresIngestRepository(mock, 500)
	existing, err := repo.ExistingStagingIDs(context.Background(), ids)
	if err != nil {
		t.Fatalf("ExistingStagingIDs: %v", err)
	}
	if !existing[ids[0]] || existing[ids[1]] {
		t.Fatalf("unexpected existing set: %v", existing)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIngestRepository_DeleteTransactionsByStagingIDs(t *testing.T) {
	mock := newMockPool(t)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	mock.ExpectExec(regexp.QuoteMeta(deleteByStagingIDsQuery)).
		WithArgs(ids[:2]).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(regexp.QuoteMeta(deleteByStagingIDsQuery)).
		WithArgs(ids[2:]).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := NewPostgresIngestRepository(mock, 2)
	deleted, err := repo.DeleteTransactionsByStagingIDs(context.Background(), ids)
	if err != nil {
		t.Fatalf("DeleteTransactionsByStagingIDs: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
