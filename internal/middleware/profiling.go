// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig configures the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether /debug/pprof/* is exposed.
	// Development only: the profiles expose process memory and code layout.
	Enabled bool

	// Environment is checked as a second guard; "production" never gets profiling.
	Environment string

	Logger *slog.Logger
}

// Profiling returns middleware that serves net/http/pprof under /debug/pprof/
// and passes every other request through. It is a no-op unless enabled and
// the environment is not production.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if config.Environment == "production" || config.Environment == "prod" {
			logger.Error("profiling cannot be enabled in production, ignoring PROFILING_ENABLED",
				"environment", config.Environment,
			)
			return next
		}

		logger.Warn("profiling endpoints enabled, development only",
			"environment", config.Environment,
			"endpoints", "/debug/pprof/*",
		)

		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				mux.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
