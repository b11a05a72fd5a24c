package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vantasec/dlp-behavior/internal/models"
	"github.com/vantasec/dlp-behavior/internal/services"
)

// BehaviorAnalyzer is the service surface the handlers call into.
type BehaviorAnalyzer interface {
	AnalyzeEntity(ctx context.Context, entityType, entityID string, lookbackDays int) (models.AnalysisResult, error)
	AnalyzeOverview(ctx context.Context, lookbackDays int) (models.OverviewResult, error)
}

// Handler routes API requests to the behaviour service.
type Handler struct {
	logger          *slog.Logger
	service         BehaviorAnalyzer
	defaultLookback int
}

// NewHandler constructs the request handlers. defaultLookback is used when
// the query string omits lookbackDays.
func NewHandler(logger *slog.Logger, service BehaviorAnalyzer, defaultLookback int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultLookback <= 0 {
		defaultLookback = 7
	}
	return &Handler{logger: logger, service: service, defaultLookback: defaultLookback}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "dlp-behavior",
	})
}

// AnalyzeEntity handles GET /api/v1/behavior/entity/{type}/{id}.
func (h *Handler) AnalyzeEntity(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType := vars["type"]
	entityID := vars["id"]

	lookback, err := h.lookbackDays(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.AnalyzeEntity(r.Context(), entityType, entityID, lookback)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// AnalyzeOverview handles GET /api/v1/behavior/overview.
func (h *Handler) AnalyzeOverview(w http.ResponseWriter, r *http.Request) {
	lookback, err := h.lookbackDays(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.service.AnalyzeOverview(r.Context(), lookback)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, overview)
}

func (h *Handler) lookbackDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("lookbackDays")
	if raw == "" {
		return h.defaultLookback, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("lookbackDays must be an integer")
	}
	return days, nil
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if services.IsValidationError(err) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(r.Context().Err(), context.Canceled) {
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	h.logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	respondError(w, http.StatusBadGateway, "analysis failed")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
