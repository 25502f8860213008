// Package main is the entry point for the college predictor API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/collegepredictor/internal/api"
	"github.com/onnwee/collegepredictor/internal/college"
	"github.com/onnwee/collegepredictor/internal/config"
	"github.com/onnwee/collegepredictor/internal/db"
	"github.com/onnwee/collegepredictor/internal/health"
	"github.com/onnwee/collegepredictor/internal/middleware"
	"github.com/onnwee/collegepredictor/internal/predict"
	"github.com/onnwee/collegepredictor/internal/tracing"
)

const serviceName = "college-predictor-api"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	envFile := flag.String("env-file", ".env", "optional .env file loaded before reading the environment")
	flag.Parse()

	if *help {
		fmt.Println("College Predictor API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	bootLogger := middleware.NewLogger(os.Getenv("ENV"))
	if err := config.LoadDotEnv(*envFile); err != nil {
		bootLogger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			bootLogger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies, serves until ctx is cancelled and then shuts down
// gracefully.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.OTelExporterType,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := serverDeps{
		cfg:         cfg,
		logger:      logger,
		registry:    reg,
		httpMetrics: middleware.NewMetrics(),
	}
	if err := deps.httpMetrics.Register(reg); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}
	deps.trustedProxies, err = middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse TRUSTED_PROXIES: %w", err)
	}

	store, closeStore, dbChecker, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	deps.health.DBChecker = dbChecker

	predictMetrics := predict.NewMetrics()
	if err := predictMetrics.Register(reg); err != nil {
		return fmt.Errorf("register prediction metrics: %w", err)
	}
	deps.engine = predict.NewEngine(store,
		predict.WithLogger(logger),
		predict.WithMetrics(predictMetrics),
		predict.WithTimeout(cfg.QueryTimeout),
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		deps.rateLimitStore = middleware.NewRedisRateLimitStore(client,
			middleware.WithRedisMetrics(deps.httpMetrics),
			middleware.WithRedisLogger(logger),
		)
		deps.health.RedisChecker = health.NewRedisChecker(client)
		logger.Info("rate limiting backed by redis")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		memStore.StartCleanup(ctx, 5*time.Minute)
		deps.rateLimitStore = memStore
	}

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      newHandler(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore connects the PostgreSQL dataset, or falls back to an empty
// in-memory dataset when no DATABASE_URL is configured (development only;
// config validation rejects that in production).
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (college.Store, func(), api.HealthChecker, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, serving an empty in-memory dataset")
		return college.NewInMemoryStore(), func() {}, nil, nil
	}

	pool, err := db.Open(ctx, db.Options{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeFn := func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close database pool", "error", err)
		}
	}
	return college.NewPostgresStore(pool, logger), closeFn, health.NewDBChecker(pool), nil
}
