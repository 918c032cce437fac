package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	logger   *slog.Logger
	database Pinger
	redis    Pinger
}

// NewHealthHandler creates the health handler. redis may be nil when no
// shared cache is configured.
func NewHealthHandler(logger *slog.Logger, database, redis Pinger) *HealthHandler {
	return &HealthHandler{
		logger:   logger,
		database: database,
		redis:    redis,
	}
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database,omitempty"`
	Redis     string `json:"redis,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Redis only fronts extraction, losing it degrades but does not fail the service
	if h.redis != nil {
		if err := h.redis.PingContext(ctx); err != nil {
			h.logger.Warn("Health check failed", "component", "redis", "error", err)
			response.Status = "degraded"
			response.Redis = "unreachable"
		} else {
			response.Redis = "ok"
		}
	}

	if h.database != nil {
		if err := h.database.PingContext(ctx); err != nil {
			h.logger.Warn("Health check failed", "component", "database", "error", err)
			response.Status = "unhealthy"
			response.Database = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			response.Database = "ok"
		}
	}

	writeJSONResponse(w, h.logger, status, response)
}
