package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studypulse-backend/internal/analytics"
	"studypulse-backend/internal/models"
	"studypulse-backend/internal/repository"
)

// AggregateStore is the slice of the session aggregate store the query
// handlers need. Reads only: the ingestion pipeline is the sole writer.
type AggregateStore interface {
	Get(ctx context.Context, sessionID string) (*models.SessionAggregate, error)
	ListByRoom(ctx context.Context, roomID string) ([]*models.SessionAggregate, error)
}

type AnalyticsHandler struct {
	store AggregateStore
}

func NewAnalyticsHandler(store AggregateStore) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// GetSessionAnalytics returns the reading patterns for one session,
// recomputed from the stored aggregate so the response is never stale.
func (h *AnalyticsHandler) GetSessionAnalytics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	agg, err := h.store.Get(r.Context(), sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No interaction data found yet", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session analytics", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"analytics":  analytics.ComputePatterns(agg),
	})
}

// GetRoomRollup builds the class-wide summary for a room on demand.
func (h *AnalyticsHandler) GetRoomRollup(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	aggs, err := h.store.ListByRoom(r.Context(), roomID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load room analytics", r))
		return
	}

	writeJSON(w, http.StatusOK, analytics.ComputeRollup(roomID, aggs))
}

// ExportReport returns the archival projection of one session.
func (h *AnalyticsHandler) ExportReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	agg, err := h.store.Get(r.Context(), sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No interaction data found yet", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to export session report", r))
		return
	}

	writeJSON(w, http.StatusOK, analytics.BuildReport(agg))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
