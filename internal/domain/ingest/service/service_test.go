package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/parser"
	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/repository"
)

// Tab-delimited export: two junk lines and a blank above the header, five
// data rows, one with an unparseable amount.
const sampleStatement = "Acct No: 123456789\nStatement Period: 07/01/2025 - 07/31/2025\n\n" +
	"Transaction Type\tDate Posted\tTransaction Amount\tDescription\n" +
	"DEBIT\t20250711\t-60.00\tGROCERY OUTLET\n" +
	"CREDIT\t20250715\t2500.00\tPAYROLL ACME CORP\n" +
	"DEBIT\t20250716\t-12.99\tNETFLIX.COM\n" +
	"DEBIT\t20250717\tabc\tBROKEN AMOUNT ROW\n" +
	"DEBIT\t20250718\t-8.40\t[POS] COFFEE SHOP\n"

type fakeRepo struct {
	staging      []*repository.StagingRow
	transactions map[uuid.UUID]*repository.Transaction // keyed by SourceStagingID
	mappings     []repository.PayeeMapping
	deleteCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{transactions: make(map[uuid.UUID]*repository.Transaction)}
}

func (f *fakeRepo) InsertStagingRows(_ context.Context, rows []*repository.StagingRow) (int, error) {
	f.staging = append(f.staging, rows...)
	return len(rows), nil
}

func (f *fakeRepo) ListUnprocessedStagingRows(_ context.Context, userID uuid.UUID) ([]*repository.StagingRow, error) {
	var out []*repository.StagingRow
	for _, s := range f.staging {
		if s.UserID == userID && !s.Processed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkStagingProcessed(_ context.Context, ids []uuid.UUID) error {
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for _, s := range f.staging {
		if marked[s.ID] {
			s.Processed = true
		}
	}
	return nil
}

func (f *fakeRepo) ListMappings(_ context.Context) ([]repository.PayeeMapping, error) {
	return f.mappings, nil
}

func (f *fakeRepo) ExistingStagingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if _, ok := f.transactions[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}

func (f *fakeRepo) DeleteTransactionsByStagingIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.deleteCalls++
	var deleted int64
	for _, id := range ids {
		if _, ok := f.transactions[id]; ok {
			delete(f.transactions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeRepo) InsertTransactions(_ context.Context, txs []*repository.Transaction) (int, error) {
	for _, tx := range txs {
		f.transactions[tx.SourceStagingID] = tx
	}
	return len(txs), nil
}

func (f *fakeRepo) markAllUnprocessed() {
	for _, s := range f.staging {
		s.Processed = false
	}
}

func testService(repo repository.IngestRepository) *IngestService {
	return NewIngestService(repo, slog.Default(), 5)
}

func TestImportStatement(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo)
	userID := uuid.New()

	result, err := svc.ImportStatement(context.Background(), userID, sampleStatement, ImportOptions{Filename: "july.tsv"})
	require.NoError(t, err)

	require.NotNil(t, result.Detected)
	assert.Equal(t, "tab", result.Detected.Delimiter)
	assert.Equal(t, 3, result.Detected.HeaderIndex)

	assert.Equal(t, 5, result.InsertedCount)
	assert.Equal(t, 4, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedNormalization)
	assert.Equal(t, 0, result.SkippedExistingCount)

	require.Len(t, result.Samples, 4)
	assert.Equal(t, "2025-07-11", result.Samples[0].Date)
	assert.Equal(t, -60.0, result.Samples[0].Amount)
	assert.Equal(t, "GROCERY OUTLET", result.Samples[0].PayeeClean)

	// Leading bracketed tag stripped from the cleaned payee
	assert.Equal(t, "COFFEE SHOP", result.Samples[3].PayeeClean)

	assert.Len(t, repo.transactions, 4)
	for _, s := range repo.staging {
		assert.True(t, s.Processed, "all staged rows marked processed, including the broken one")
	}
}

func TestImportStatement_AppliesMappings(t *testing.T) {
	repo := newFakeRepo()
	repo.mappings = []repository.PayeeMapping{
		{Position: 1, Pattern: "netflix", Normalized: "Netflix", Category: "Entertainment"},
	}
	svc := testService(repo)

	result, err := svc.ImportStatement(context.Background(), uuid.New(), sampleStatement, ImportOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Netflix", result.Samples[2].PayeeClean)
	assert.Equal(t, "Entertainment", result.Samples[2].Category)
	// Unmatched rows fall back to the default category
	assert.Equal(t, "Uncategorized", result.Samples[0].Category)
}

func TestImportStatement_EmptyContent(t *testing.T) {
	svc := testService(newFakeRepo())

	_, err := svc.ImportStatement(context.Background(), uuid.New(), "   \n  ", ImportOptions{})
	assert.ErrorIs(t, err, parser.ErrEmptyInput)
}

func TestImportStatement_NoHeader(t *testing.T) {
	svc := testService(newFakeRepo())

	_, err := svc.ImportStatement(context.Background(), uuid.New(), "no\nheader\nhere\n", ImportOptions{})
	assert.ErrorIs(t, err, parser.ErrNoHeaderFound)
}

func TestImportStatement_AllRowsUnparseable(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo)

	content := "Transaction Type,Date Posted,Transaction Amount,Description\n" +
		"DEBIT,garbage,abc,ROW ONE\n" +
		"DEBIT,nonsense,xyz,ROW TWO\n"

	result, err := svc.ImportStatement(context.Background(), uuid.New(), content, ImportOptions{})
	assert.ErrorIs(t, err, ErrNoRowsNormalized)

	// Rows are staged even though none survive the transform
	assert.Equal(t, 2, result.InsertedCount)
	assert.Equal(t, 2, result.SkippedNormalization)
	assert.Empty(t, repo.transactions)
}

func TestImportStatement_ReplaceExisting(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo)

	result, err := svc.ImportStatement(context.Background(), uuid.New(), sampleStatement, ImportOptions{ReplaceExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.deleteCalls)
	assert.Equal(t, 4, result.ProcessedCount)
	assert.Equal(t, 0, result.SkippedExistingCount)
	assert.Len(t, repo.transactions, 4)
}

func TestReprocessStaging_Idempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := testService(repo)
	userID := uuid.New()

	_, err := svc.ImportStatement(context.Background(), userID, sampleStatement, ImportOptions{})
	require.NoError(t, err)
	require.Len(t, repo.transactions, 4)

	// Simulate a replay of the transform over the same staged batch
	repo.markAllUnprocessed()

	result, err := svc.ReprocessStaging(context.Background(), userID)
	require.NoError(t, err)

	// Every surviving row already has its transaction; nothing duplicates
	assert.Equal(t, 4, result.SkippedExistingCount)
	assert.Equal(t, 4, result.ProcessedCount)
	assert.Len(t, repo.transactions, 4)
}

func TestReprocessStaging_NothingPending(t *testing.T) {
	svc := testService(newFakeRepo())

	result, err := svc.ReprocessStaging(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Nil(t, result.Detected)
}
