// Package service orchestrates the statement ingestion pipeline: header
// detection, row parsing, staging, normalization, classification, and the
// idempotent canonical commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/classifier"
	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/parser"
	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/repository"
	"github.com/FACorreiaa/statement-pilot/pkg/observability"
)

// ErrNoRowsNormalized is returned when every staged row in a batch fails
// date or amount normalization.
var ErrNoRowsNormalized = errors.New("no rows could be normalized")

// ImportOptions tunes a single import request
type ImportOptions struct {
	Filename string
	// ReplaceExisting selects the delete-then-reinsert commit strategy
	// instead of the default check-then-insert. Both converge to exactly
	// one transaction per staging row.
	ReplaceExisting bool
}

// Detected reports what the parser found in the uploaded statement
type Detected struct {
	Delimiter     string   `json:"delimiter"` // "tab" or "comma"
	HeaderIndex   int      `json:"headerIndex"`
	HeaderColumns []string `json:"headerColumns"`
}

// SampleTransaction is a preview of a committed canonical transaction
type SampleTransaction struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	PayeeClean  string  `json:"payee_clean"`
	Category    string  `json:"category"`
}

// ImportResult carries the counters of an import operation. On failure the
// counters reflect partial progress so the caller can decide whether to
// retry the whole batch (safe, due to idempotency).
type ImportResult struct {
	Detected             *Detected
	InsertedCount        int // staging rows inserted
	ProcessedCount       int // staging rows with a canonical transaction after commit
	SkippedExistingCount int // rows whose transaction already existed (check-then-insert)
	SkippedNormalization int // rows dropped on date/amount normalization
	Samples              []SampleTransaction
}

// IngestService drives the ingestion pipeline
type IngestService struct {
	repo        repository.IngestRepository
	logger      *slog.Logger
	sampleLimit int
}

// NewIngestService creates a new ingestion service
func NewIngestService(repo repository.IngestRepository, logger *slog.Logger, sampleLimit int) *IngestService {
	if sampleLimit <= 0 {
		sampleLimit = 5
	}
	return &IngestService{
		repo:        repo,
		logger:      logger,
		sampleLimit: sampleLimit,
	}
}

// ImportStatement parses raw statement text, stages every data row, and
// commits canonical transactions idempotently. Rows failing normalization
// are dropped from the canonical set but stay in staging.
func (s *IngestService) ImportStatement(ctx context.Context, userID uuid.UUID, content string, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	if strings.TrimSpace(content) == "" {
		return result, parser.ErrEmptyInput
	}

	lines := parser.NormalizeLines(content)

	header, err := parser.DetectHeader(lines)
	if err != nil {
		return result, err
	}
	result.Detected = describeHeader(header)

	candidates, err := parser.ParseRows(lines, header)
	if err != nil {
		return result, err
	}

	staged := make([]*repository.StagingRow, len(candidates))
	for i, c := range candidates {
		staged[i] = &repository.StagingRow{
			ID:              uuid.New(),
			UserID:          userID,
			DateRaw:         c.DateRaw,
			TransactionType: c.TransactionType,
			AmountRaw:       c.AmountRaw,
			Description:     c.Description,
		}
	}

	inserted, err := s.repo.InsertStagingRows(ctx, staged)
	result.InsertedCount = inserted
	observability.RowsStaged.Add(float64(inserted))
	if err != nil {
		return result, fmt.Errorf("failed to stage rows: %w", err)
	}

	if err := s.transformAndCommit(ctx, userID, staged, opts.ReplaceExisting, result); err != nil {
		return result, err
	}

	s.logger.Info("statement imported",
		"user_id", userID,
		"filename", opts.Filename,
		"staged", result.InsertedCount,
		"processed", result.ProcessedCount,
		"skipped_normalization", result.SkippedNormalization,
		"skipped_existing", result.SkippedExistingCount,
	)

	return result, nil
}

// ReprocessStaging re-runs the transform step over all staged rows not yet
// marked processed. Safe to call repeatedly: the commit is idempotent on
// the staging row id.
func (s *IngestService) ReprocessStaging(ctx context.Context, userID uuid.UUID) (*ImportResult, error) {
	result := &ImportResult{}

	staged, err := s.repo.ListUnprocessedStagingRows(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("failed to load unprocessed staging rows: %w", err)
	}
	if len(staged) == 0 {
		return result, nil
	}

	if err := s.transformAndCommit(ctx, userID, staged, false, result); err != nil {
		return result, err
	}

	s.logger.Info("staging reprocessed",
		"user_id", userID,
		"rows", len(staged),
		"processed", result.ProcessedCount,
	)

	return result, nil
}

// transformAndCommit normalizes staged rows into canonical transactions and
// commits them so that exactly one transaction exists per successfully
// normalized staging row, regardless of how often the batch is reprocessed.
func (s *IngestService) transformAndCommit(ctx context.Context, userID uuid.UUID, staged []*repository.StagingRow, replaceExisting bool, result *ImportResult) error {
	mappings, err := s.repo.ListMappings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load payee mappings: %w", err)
	}
	rules := mappingRules(mappings)

	var candidates []*repository.Transaction
	skipped := 0
	for _, row := range staged {
		date, dateErr := normalizer.NormalizeDate(row.DateRaw)
		amount, amountErr := normalizer.NormalizeAmount(row.AmountRaw)
		if dateErr != nil || amountErr != nil {
			skipped++
			continue
		}

		cls := classifier.Classify(row.Description, rules)
		payeeClean := cls.NormalizedPayee
		if payeeClean == "" {
			payeeClean = normalizer.CleanPayee(row.Description)
		}

		candidates = append(candidates, &repository.Transaction{
			ID:              uuid.New(),
			UserID:          userID,
			Date:            date,
			Amount:          amount,
			Description:     row.Description,
			PayeeClean:      payeeClean,
			PayeeNorm:       normalizer.NormalizePayeeKey(payeeClean),
			Category:        cls.Category,
			SourceStagingID: row.ID,
			Processed:       true,
		})
	}

	result.SkippedNormalization = skipped
	observability.RowsSkipped.Add(float64(skipped))
	if len(candidates) == 0 {
		return ErrNoRowsNormalized
	}

	stagingIDs := make([]uuid.UUID, len(staged))
	for i, row := range staged {
		stagingIDs[i] = row.ID
	}

	toInsert := candidates
	if replaceExisting {
		if _, err := s.repo.DeleteTransactionsByStagingIDs(ctx, stagingIDs); err != nil {
			return fmt.Errorf("failed to delete existing transactions: %w", err)
		}
	} else {
		existing, err := s.repo.ExistingStagingIDs(ctx, stagingIDs)
		if err != nil {
			return fmt.Errorf("failed to query existing transactions: %w", err)
		}
		if len(existing) > 0 {
			toInsert = toInsert[:0:0]
			for _, tx := range candidates {
				if !existing[tx.SourceStagingID] {
					toInsert = append(toInsert, tx)
				}
			}
			result.SkippedExistingCount = len(candidates) - len(toInsert)
		}
	}

	result.ProcessedCount = result.SkippedExistingCount
	insertedTx, err := s.repo.InsertTransactions(ctx, toInsert)
	result.ProcessedCount += insertedTx
	observability.RowsTransformed.Add(float64(insertedTx))
	if err != nil {
		return fmt.Errorf("failed to commit transactions: %w", err)
	}

	// Rows that permanently failed normalization are marked processed too;
	// they are not retried automatically.
	if err := s.repo.MarkStagingProcessed(ctx, stagingIDs); err != nil {
		return fmt.Errorf("failed to mark staging rows processed: %w", err)
	}

	limit := min(s.sampleLimit, len(candidates))
	result.Samples = make([]SampleTransaction, 0, limit)
	for _, tx := range candidates[:limit] {
		result.Samples = append(result.Samples, SampleTransaction{
			Date:        tx.Date.Format("2006-01-02"),
			Amount:      tx.Amount.InexactFloat64(),
			Description: tx.Description,
			PayeeClean:  tx.PayeeClean,
			Category:    tx.Category,
		})
	}

	return nil
}

func describeHeader(h *parser.Header) *Detected {
	delimiter := "comma"
	if h.Delimiter == '\t' {
		delimiter = "tab"
	}
	return &Detected{
		Delimiter:     delimiter,
		HeaderIndex:   h.LineIndex,
		HeaderColumns: h.Columns,
	}
}

func mappingRules(mappings []repository.PayeeMapping) []classifier.Rule {
	rules := make([]classifier.Rule, len(mappings))
	for i, m := range mappings {
		rules[i] = classifier.Rule{
			Pattern:    m.Pattern,
			Normalized: m.Normalized,
			Category:   m.Category,
		}
	}
	return rules
}
