package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"quest-insights/internal/config"
	apihttp "quest-insights/internal/http"
	"quest-insights/internal/http/handlers"
)

// APIService serves the insight HTTP API
type APIService struct {
	config *config.Config
	logger *slog.Logger

	// HTTP server
	server *http.Server
}

// New creates a new API service
func New(
	config *config.Config,
	logger *slog.Logger,
	service handlers.InsightService,
	database handlers.Pinger,
	redis handlers.Pinger,
) *APIService {
	router := apihttp.NewRouter(logger, config.APIKey, service, database, redis)

	return &APIService{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:              ":" + config.Port,
			Handler:           router.SetupRoutes(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Saves wait on a remote fetch, allow more than the fetch timeout
			WriteTimeout: config.FetchTimeout + 15*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Handler exposes the routed handler, mainly for tests
func (s *APIService) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving the API. It returns nil after a graceful Stop.
func (s *APIService) Start() error {
	s.logger.Info("Starting API server", "port", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the API server
func (s *APIService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
