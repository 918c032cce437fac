package http

import (
	"log/slog"
	"net/http"

	"quest-insights/internal/http/handlers"
	"quest-insights/internal/http/middleware"
)

// Middleware wraps a handler
type Middleware func(http.Handler) http.Handler

type Router struct {
	mux             *http.ServeMux
	logger          *slog.Logger
	healthHandler   *handlers.HealthHandler
	insightsHandler *handlers.InsightsHandler
	auth            *middleware.APIKeyAuth
}

// NewRouter wires the handlers. redis may be nil when no shared cache is configured.
func NewRouter(logger *slog.Logger, apiKey string, service handlers.InsightService, database, redis handlers.Pinger) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		logger:          logger,
		healthHandler:   handlers.NewHealthHandler(logger, database, redis),
		insightsHandler: handlers.NewInsightsHandler(logger, service),
		auth:            middleware.NewAPIKeyAuth(apiKey, logger),
	}
}

// chain applies middleware so the first listed runs first
func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (r *Router) SetupRoutes() http.Handler {
	protected := func(h http.HandlerFunc) http.Handler {
		return chain(h, r.auth.Middleware)
	}
	owned := func(h http.HandlerFunc) http.Handler {
		return chain(h, r.auth.Middleware, middleware.RequireOwner)
	}

	// Health check
	r.mux.HandleFunc("GET /health", r.healthHandler.HandleHealth)

	// API v1 routes - Metadata preview
	r.mux.Handle("GET /api/v1/metadata", protected(r.insightsHandler.GetMetadata))

	// API v1 routes - Insights, scoped to the calling owner
	r.mux.Handle("GET /api/v1/insights", owned(r.insightsHandler.GetInsights))
	r.mux.Handle("POST /api/v1/insights", owned(r.insightsHandler.CreateInsight))
	r.mux.Handle("GET /api/v1/insights/{id}", owned(r.insightsHandler.GetInsight))
	r.mux.Handle("DELETE /api/v1/insights/{id}", owned(r.insightsHandler.DeleteInsight))

	return chain(r.mux, middleware.RequestLogger(r.logger), middleware.CORS)
}
