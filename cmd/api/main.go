package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quest-insights/internal/config"
	"quest-insights/internal/domain"
	"quest-insights/internal/http/handlers"
	"quest-insights/internal/pkg/logger"
	"quest-insights/internal/repository"
	"quest-insights/internal/repository/redis"
	"quest-insights/internal/service/api"
	"quest-insights/internal/service/extractor"
	"quest-insights/internal/service/insights"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Validate API-specific configuration
	if err := cfg.ValidateForAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log := logger.New(cfg.LogLevel)
	log.Info("Starting API service...")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to the database selected by DATABASE_URL
	store, err := repository.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Run database migrations
	if err := store.Migrate(); err != nil {
		log.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// In-process metadata cache, optionally backed by Redis
	memCache, err := extractor.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		log.Error("Failed to create metadata cache", "error", err)
		os.Exit(1)
	}
	memCache.StartJanitor(ctx, cfg.CacheTTL)

	var cache domain.MetadataCache = memCache
	var redisPinger handlers.Pinger
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()

		redisCache := redis.NewMetadataCache(redisClient, cfg.CacheTTL, log)
		cache = extractor.NewTieredCache(memCache, redisCache)
		redisPinger = redisCache
		log.Info("Shared metadata cache enabled")
	}

	metadataExtractor := extractor.NewDefault(extractor.Options{
		UserAgent:    cfg.UserAgent,
		FetchTimeout: cfg.FetchTimeout,
		RatePerHost:  cfg.FetchRatePerHost,
	}, cache, log)

	insightService := insights.NewService(store.Insights, metadataExtractor, log)

	// Create API service
	apiService := api.New(cfg, log, insightService, store, redisPinger)

	// Create a channel to track shutdown completion
	done := make(chan struct{})

	// Start API service in a goroutine
	go func() {
		defer close(done)
		if err := apiService.Start(); err != nil {
			log.Error("API service failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for either shutdown signal or service completion
	select {
	case <-quit:
		log.Info("Shutdown signal received, stopping API service...")
	case <-done:
		log.Info("API service completed")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiService.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping API service", "error", err)
	}
	stop()

	log.Info("API service shutdown complete")
}
