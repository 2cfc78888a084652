// Package handler exposes the statement ingestion endpoints over JSON/HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/parser"
	"github.com/FACorreiaa/statement-pilot/internal/domain/ingest/service"
	"github.com/FACorreiaa/statement-pilot/pkg/middleware"
)

// Ingestor is the service surface the handler depends on
type Ingestor interface {
	ImportStatement(ctx context.Context, userID uuid.UUID, content string, opts service.ImportOptions) (*service.ImportResult, error)
	ReprocessStaging(ctx context.Context, userID uuid.UUID) (*service.ImportResult, error)
}

// Invalidator drops cached dashboard payloads after new data lands
type Invalidator interface {
	Invalidate(userID uuid.UUID)
}

// IngestHandler handles statement upload requests
type IngestHandler struct {
	svc        Ingestor
	invalidate Invalidator
	logger     *slog.Logger
}

// NewIngestHandler constructs a new handler. invalidate may be nil when no
// dashboard cache is in play.
func NewIngestHandler(svc Ingestor, invalidate Invalidator, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, invalidate: invalidate, logger: logger}
}

type importRequest struct {
	Filename        string `json:"filename,omitempty"`
	Content         string `json:"content"`
	ReplaceExisting bool   `json:"replace_existing,omitempty"`
}

type importResponse struct {
	OK                   bool                        `json:"ok"`
	Error                string                      `json:"error,omitempty"`
	Detected             *service.Detected           `json:"detected,omitempty"`
	InsertedCount        int                         `json:"inserted_count"`
	ProcessedCount       int                         `json:"processed_count"`
	SkippedExistingCount int                         `json:"skipped_existing_count,omitempty"`
	SkippedNormalization int                         `json:"skipped_normalization_count,omitempty"`
	SampleTransactions   []service.SampleTransaction `json:"sample_transactions,omitempty"`
}

// ImportStatement handles POST /v1/statements/import
func (h *IngestHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, importResponse{OK: false, Error: "invalid request body"})
		return
	}

	result, err := h.svc.ImportStatement(r.Context(), userID, req.Content, service.ImportOptions{
		Filename:        req.Filename,
		ReplaceExisting: req.ReplaceExisting,
	})
	if err == nil && h.invalidate != nil {
		h.invalidate.Invalidate(userID)
	}
	h.writeResult(w, result, err)
}

// ReprocessStaging handles POST /v1/statements/reprocess
func (h *IngestHandler) ReprocessStaging(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ReprocessStaging(r.Context(), userID)
	if err == nil && h.invalidate != nil {
		h.invalidate.Invalidate(userID)
	}
	h.writeResult(w, result, err)
}

func (h *IngestHandler) writeResult(w http.ResponseWriter, result *service.ImportResult, err error) {
	resp := importResponse{OK: err == nil}
	if result != nil {
		resp.Detected = result.Detected
		resp.InsertedCount = result.InsertedCount
		resp.ProcessedCount = result.ProcessedCount
		resp.SkippedExistingCount = result.SkippedExistingCount
		resp.SkippedNormalization = result.SkippedNormalization
		resp.SampleTransactions = result.Samples
	}

	if err != nil {
		resp.Error = err.Error()
		status := http.StatusBadGateway
		if isInputError(err) {
			status = http.StatusUnprocessableEntity
		} else {
			h.logger.Error("import failed", "error", err)
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// isInputError separates caller input-format failures (4xx, fix the file)
// from backend store failures (5xx, retryable).
func isInputError(err error) bool {
	return errors.Is(err, parser.ErrEmptyInput) ||
		errors.Is(err, parser.ErrNoHeaderFound) ||
		errors.Is(err, parser.ErrNoDataRows) ||
		errors.Is(err, service.ErrNoRowsNormalized)
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sub, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, importResponse{OK: false, Error: "authentication required"})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, importResponse{OK: false, Error: "invalid caller identity"})
		return uuid.Nil, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
