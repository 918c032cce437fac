package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	APIKey      string
	LogLevel    string

	// Extraction settings. An empty UserAgent selects the fetcher's default.
	UserAgent        string
	FetchTimeout     time.Duration
	FetchRatePerHost float64
	CacheTTL         time.Duration
	CacheSize        int
}

func Load() *Config {
	// Ignore error if .env not found (e.g. prod)
	_ = godotenv.Load()

	config := fromEnv()

	// Required environment variables (for database services)
	config.DatabaseURL = mustGetEnv("DATABASE_URL")

	// Command line flags override environment
	flag.StringVar(&config.Port, "port", config.Port, "Server port")
	flag.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level")
	flag.Parse()

	return config
}

// LoadOptional reads configuration without requiring DATABASE_URL or parsing flags.
// Used by the CLI, which owns its own flag parsing.
func LoadOptional() *Config {
	_ = godotenv.Load()
	config := fromEnv()
	config.DatabaseURL = getEnvWithDefault("DATABASE_URL", "")
	return config
}

func fromEnv() *Config {
	return &Config{
		Port:             getEnvWithDefault("PORT", "8080"),
		LogLevel:         getEnvWithDefault("LOG_LEVEL", "info"),
		RedisURL:         getEnvWithDefault("REDIS_URL", ""),
		APIKey:           getEnvWithDefault("API_KEY", ""),
		UserAgent:        getEnvWithDefault("USER_AGENT", ""),
		FetchTimeout:     getDurationWithDefault("FETCH_TIMEOUT", 10*time.Second),
		FetchRatePerHost: getFloatWithDefault("FETCH_RATE_PER_HOST", 0),
		CacheTTL:         getDurationWithDefault("CACHE_TTL", 5*time.Minute),
		CacheSize:        getIntWithDefault("CACHE_SIZE", 1024),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

func getIntWithDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid integer for %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getFloatWithDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		log.Printf("Invalid number for %s=%q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatalf("Environment variable %s is required", key)
	}
	return value
}

// ValidateForAPI ensures all required fields for the API service are present
func (c *Config) ValidateForAPI() error {
	// Redis and the API key are optional
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	return nil
}
