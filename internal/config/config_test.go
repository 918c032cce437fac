package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "REDIS_URL", "API_KEY", "USER_AGENT",
		"FETCH_TIMEOUT", "FETCH_RATE_PER_HOST", "CACHE_TTL", "CACHE_SIZE"} {
		t.Setenv(key, "")
	}

	cfg := fromEnv()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.UserAgent != "" {
		t.Errorf("UserAgent = %q, want empty so the fetcher default applies", cfg.UserAgent)
	}
	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want 10s", cfg.FetchTimeout)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.CacheSize != 1024 {
		t.Errorf("CacheSize = %d, want 1024", cfg.CacheSize)
	}
	if cfg.FetchRatePerHost != 0 {
		t.Errorf("FetchRatePerHost = %v, want 0", cfg.FetchRatePerHost)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("CACHE_SIZE", "16")
	t.Setenv("FETCH_RATE_PER_HOST", "2.5")

	cfg := fromEnv()

	if cfg.FetchTimeout != 3*time.Second {
		t.Errorf("FetchTimeout = %v, want 3s", cfg.FetchTimeout)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v, want 90s", cfg.CacheTTL)
	}
	if cfg.CacheSize != 16 {
		t.Errorf("CacheSize = %d, want 16", cfg.CacheSize)
	}
	if cfg.FetchRatePerHost != 2.5 {
		t.Errorf("FetchRatePerHost = %v, want 2.5", cfg.FetchRatePerHost)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "soon")
	t.Setenv("CACHE_SIZE", "-4")

	cfg := fromEnv()

	if cfg.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v, want default 10s", cfg.FetchTimeout)
	}
	if cfg.CacheSize != 1024 {
		t.Errorf("CacheSize = %d, want default 1024", cfg.CacheSize)
	}
}

func TestValidateForAPI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Port: "8080", DatabaseURL: "insights.db"}, false},
		{"missing database", Config{Port: "8080"}, true},
		{"non-numeric port", Config{Port: "http", DatabaseURL: "insights.db"}, true},
		{"port out of range", Config{Port: "70000", DatabaseURL: "insights.db"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateForAPI()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateForAPI() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
