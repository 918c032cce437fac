package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyAuth is a simple bearer-token authentication middleware
type APIKeyAuth struct {
	apiKey string
	logger *slog.Logger
}

// NewAPIKeyAuth creates the middleware. An empty key disables authentication.
func NewAPIKeyAuth(apiKey string, logger *slog.Logger) *APIKeyAuth {
	if apiKey == "" {
		logger.Warn("API_KEY not set - API endpoints will be unprotected!")
	}

	return &APIKeyAuth{
		apiKey: apiKey,
		logger: logger,
	}
}

// Middleware returns the authentication middleware handler
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// If no API key is configured, allow all requests (development mode)
		if a.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.logger.Warn("Request rejected - no authorization header",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeUnauthorized(w, "missing Authorization header")
			return
		}

		// Expect format: "Bearer <api_key>"
		expectedAuth := "Bearer " + a.apiKey
		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expectedAuth)) != 1 {
			a.logger.Warn("Request rejected - invalid API key",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			writeUnauthorized(w, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"Unauthorized - ` + reason + `"}`))
}
