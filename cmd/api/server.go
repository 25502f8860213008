package main

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/collegepredictor/internal/api"
	"github.com/onnwee/collegepredictor/internal/config"
	"github.com/onnwee/collegepredictor/internal/middleware"
)

// serverDeps is everything newHandler needs; run fills it from config.
type serverDeps struct {
	cfg            *config.Config
	logger         *slog.Logger
	engine         api.Predictor
	registry       *prometheus.Registry
	httpMetrics    *middleware.Metrics
	rateLimitStore middleware.RateLimitStore
	trustedProxies []netip.Prefix
	health         api.HealthHandlersConfig
}

// newHandler builds the routes and the middleware chain.
//
// Order, outermost first: Tracing -> RequestID -> Logging -> HTTPMetrics ->
// Profiling -> CORS -> mux. Rate limiting wraps only the /api routes so
// probes and scrapes are never throttled.
func newHandler(d serverDeps) http.Handler {
	predictHandlers := api.NewPredictHandlers(d.engine)
	healthHandlers := api.NewHealthHandlers(d.health)

	limit := middleware.DefaultGlobalLimit()
	if d.cfg.RateLimitPerMinute > 0 {
		limit.RequestsPerWindow = d.cfg.RateLimitPerMinute
	}
	limited := middleware.RateLimiter(d.rateLimitStore, limit, middleware.IPKeyFunc(d.trustedProxies...), d.httpMetrics)

	mux := http.NewServeMux()
	mux.Handle("/api/predict-colleges", limited(http.HandlerFunc(predictHandlers.PredictColleges)))
	mux.Handle("/api/categories", limited(http.HandlerFunc(predictHandlers.Categories)))
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{Registry: d.registry}))
	mux.HandleFunc("/", api.Root)

	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: d.cfg.CORSAllowedOrigins,
		MaxAge:         600,
	})(handler)
	handler = middleware.Profiling(middleware.ProfilingConfig{
		Enabled:     d.cfg.ProfilingEnabled,
		Environment: d.cfg.Env,
		Logger:      d.logger,
	})(handler)
	handler = middleware.HTTPMetrics(d.httpMetrics)(handler)
	handler = middleware.Logging(d.logger)(handler)
	handler = middleware.RequestID(handler)
	if d.cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	return handler
}
