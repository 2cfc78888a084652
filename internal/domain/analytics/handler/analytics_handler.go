// Package handler exposes the dashboard summary endpoint over JSON/HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-pilot/internal/domain/analytics/service"
	"github.com/FACorreiaa/statement-pilot/pkg/middleware"
)

// Summarizer is the service surface the handler depends on
type Summarizer interface {
	Summary(ctx context.Context, userID uuid.UUID) (*service.Summary, error)
}

// AnalyticsHandler serves dashboard summary requests
type AnalyticsHandler struct {
	svc    Summarizer
	logger *slog.Logger
}

// NewAnalyticsHandler constructs a new handler
func NewAnalyticsHandler(svc Summarizer, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

// DashboardSummary handles GET /v1/dashboard/summary
func (h *AnalyticsHandler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	sub, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid caller identity"})
		return
	}

	summary, err := h.svc.Summary(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to compute dashboard summary", "user_id", userID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "summary unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
