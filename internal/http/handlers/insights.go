package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"quest-insights/internal/domain"
	"quest-insights/internal/http/middleware"
	"quest-insights/internal/pkg/urldetector"
	"quest-insights/internal/service/insights"
)

// maxRequestBody bounds POST bodies
const maxRequestBody = 64 * 1024

// InsightService is the subset of insights.Service the handlers call
type InsightService interface {
	SaveInsight(ctx context.Context, ownerID, rawURL string, tags []string) (*insights.SaveResult, error)
	GetInsights(ctx context.Context, ownerID string) ([]*domain.Insight, error)
	GetInsight(ctx context.Context, id uuid.UUID, ownerID string) (*domain.Insight, error)
	DeleteInsight(ctx context.Context, id uuid.UUID, ownerID string) error
	ExtractMetadata(ctx context.Context, rawURL string) domain.Metadata
}

type InsightsHandler struct {
	logger  *slog.Logger
	service InsightService
}

func NewInsightsHandler(logger *slog.Logger, service InsightService) *InsightsHandler {
	return &InsightsHandler{
		logger:  logger,
		service: service,
	}
}

// InsightDto is the wire form of an insight
type InsightDto struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

// InsightsResponse is returned when listing insights
type InsightsResponse struct {
	Insights []*InsightDto `json:"insights"`
}

// CreateInsightRequest is the body of POST /api/v1/insights
type CreateInsightRequest struct {
	URL  string   `json:"url"`
	Tags []string `json:"tags"`
}

// CreateInsightResponse reports the saved (or already existing) insight
type CreateInsightResponse struct {
	Insight       *InsightDto `json:"insight"`
	AlreadyExists bool        `json:"already_exists"`
	Message       string      `json:"message,omitempty"`
}

func toInsightDto(insight *domain.Insight) *InsightDto {
	tags := insight.Tags
	if tags == nil {
		tags = []string{}
	}
	return &InsightDto{
		ID:          insight.ID.String(),
		URL:         insight.URL,
		Title:       insight.Title,
		Description: insight.Description,
		ImageURL:    insight.ImageURL,
		Tags:        tags,
		CreatedAt:   insight.CreatedAt,
	}
}

// GetInsights lists the caller's insights, newest first
func (h *InsightsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.OwnerFromContext(r.Context())

	list, err := h.service.GetInsights(r.Context(), ownerID)
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch insights")
		return
	}

	dtos := make([]*InsightDto, 0, len(list))
	for _, insight := range list {
		dtos = append(dtos, toInsightDto(insight))
	}

	writeJSONResponse(w, h.logger, http.StatusOK, InsightsResponse{Insights: dtos})
}

// GetInsight returns one of the caller's insights
func (h *InsightsHandler) GetInsight(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	insight, err := h.service.GetInsight(r.Context(), id, middleware.OwnerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err, "Failed to fetch insight")
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, toInsightDto(insight))
}

// CreateInsight saves a URL for the caller. A repeated save answers 200 with
// already_exists set instead of 201.
func (h *InsightsHandler) CreateInsight(w http.ResponseWriter, r *http.Request) {
	var req CreateInsightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.SaveInsight(r.Context(), middleware.OwnerFromContext(r.Context()), req.URL, req.Tags)
	if err != nil {
		h.writeServiceError(w, err, "Failed to save insight")
		return
	}

	response := CreateInsightResponse{
		Insight:       toInsightDto(result.Insight),
		AlreadyExists: result.AlreadyExists,
	}

	if result.AlreadyExists {
		response.Message = "URL already saved"
		writeJSONResponse(w, h.logger, http.StatusOK, response)
		return
	}

	writeJSONResponse(w, h.logger, http.StatusCreated, response)
}

// DeleteInsight removes one of the caller's insights
func (h *InsightsHandler) DeleteInsight(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteInsight(r.Context(), id, middleware.OwnerFromContext(r.Context())); err != nil {
		h.writeServiceError(w, err, "Failed to delete insight")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMetadata previews the metadata for ?url= without saving it
func (h *InsightsHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, h.logger, http.StatusBadRequest, "URL parameter is required")
		return
	}
	if _, err := urldetector.ValidateURL(rawURL); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	writeJSONResponse(w, h.logger, http.StatusOK, h.service.ExtractMetadata(r.Context(), rawURL))
}

func (h *InsightsHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		// Malformed IDs cannot match any insight
		writeError(w, h.logger, http.StatusNotFound, "Insight not found")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps domain errors to HTTP status codes
func (h *InsightsHandler) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Insight not found")
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send
		h.logger.Debug("Request cancelled", "error", err)
	default:
		h.logger.Error(message, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, message)
	}
}
