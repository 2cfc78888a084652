package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresAnalyticsRepository_ListTransactions(t *testing.T) {
	mock := newMockPool(t)

	userID := uuid.New()
	txID := uuid.New()
	date := time.Date(2025, 7, 11, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(listTransactionsQuery)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "date", "amount", "description", "payee_clean", "payee_norm", "category"}).
			AddRow(txID, date, decimal.RequireFromString("-60.00"), "GROCERY OUTLET", "GROCERY OUTLET", "grocery outlet", "Groceries"))

	repo := NewPostgresAnalyticsRepository(mock)
	txs, err := repo.ListTransactions(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].ID != txID || !txs[0].Amount.Equal(decimal.RequireFromString("-60")) {
		t.Fatalf("unexpected transaction: %+v", txs[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAnalyticsRepository_ListTransactions_Empty(t *testing.T) {
	mock := newMockPool(t)

	userID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(listTransactionsQuery)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "date", "amount", "description", "payee_clean", "payee_norm", "category"}))

	repo := NewPostgresAnalyticsRepository(mock)
	txs, err := repo.ListTransactions(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAnalyticsRepository_ListRecurringSummary(t *testing.T) {
	mock := newMockPool(t)

	userID := uuid.New()
	last := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	next := time.Date(2025, 7, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(listRecurringSummaryQuery)).
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"payee", "avg_amount", "frequency", "last_date", "next_expected_date", "occurrences"}).
			AddRow("Netflix", decimal.RequireFromString("-12.99"), "monthly", last, next, 3))

	repo := NewPostgresAnalyticsRepository(mock)
	summaries, err := repo.ListRecurringSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListRecurringSummary: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Payee != "Netflix" || summaries[0].Occurrences != 3 {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresAnalyticsRepository_ListMappings_QueryError(t *testing.T) {
	mock := newMockPool(t)

	mock.ExpectQuery(regexp.QuoteMeta(listAnalyticsMappingsQuery)).
		WillReturnError(errors.New("connection reset"))

	repo := NewPostgresAnalyticsRepository(mock)
	if _, err := repo.ListMappings(context.Background()); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
