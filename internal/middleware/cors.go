// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	AllowedOrigins   []string // List of allowed origins (no wildcards)
	AllowedMethods   []string // Defaults to GET, POST, OPTIONS
	AllowedHeaders   []string // Defaults to Content-Type, X-Request-ID
	AllowCredentials bool
	MaxAge           int // Preflight cache duration in seconds
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", RequestIDHeader}
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing for the
// browser front end.
//
//   - An empty AllowedOrigins list disables CORS handling entirely.
//   - Only explicitly listed origins are accepted, unless the list holds "*",
//     which accepts any origin and answers with a literal "*" (never with
//     credentials).
//   - Requests from unlisted origins get 403.
//   - Preflight OPTIONS requests from listed origins are answered with 204.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool)
	anyOrigin := false
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			anyOrigin = true
		default:
			allowedOrigins[origin] = true
		}
	}

	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	allowedMethods := strings.Join(methods, ", ")
	allowedHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		if len(allowedOrigins) == 0 && !anyOrigin {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Same-origin or non-browser client
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")

			if !anyOrigin && !allowedOrigins[origin] {
				UpdateResponseContext(w, SetErrorCode(r.Context(), "forbidden"))
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			if anyOrigin {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Rank-Window, X-RateLimit-Remaining")
			if cfg.AllowCredentials && !anyOrigin {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
