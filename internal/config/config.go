// Package config provides configuration loading and validation for the
// predictor API and CLI. It uses koanf for an optional YAML file, overlays
// environment variables (optionally seeded from a .env file), and falls back
// to defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/collegepredictor/internal/middleware"
	"github.com/onnwee/collegepredictor/internal/tracing"
)

// Config holds all configuration values for the API server and CLI.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// College dataset database. Empty outside production selects the
	// in-memory dataset.
	DatabaseURL       string        `koanf:"database_url"`
	DBMaxOpenConns    int           `koanf:"db_max_open_conns"`
	DBMaxIdleConns    int           `koanf:"db_max_idle_conns"`
	DBConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime"`

	// QueryTimeout bounds one prediction across all phases (0 disables).
	QueryTimeout time.Duration `koanf:"query_timeout"`

	// Rate limiting. RedisURL shares counters across instances; empty keeps
	// them in process memory.
	RedisURL           string `koanf:"redis_url"`
	RateLimitPerMinute int    `koanf:"rate_limit_per_minute"`

	// TrustedProxies lists the addresses or CIDR ranges of reverse proxies
	// whose X-Forwarded-For / X-Real-IP headers identify the client. Empty
	// means forwarding headers are ignored.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// CORSAllowedOrigins defaults to "*" outside production and to none
	// (CORS disabled) in production.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTelExporterType  string  `koanf:"otel_exporter_type"`
	OTLPEndpoint      string  `koanf:"otel_exporter_otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// ProfilingEnabled exposes /debug/pprof outside production.
	ProfilingEnabled bool `koanf:"profiling_enabled"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL    = errors.New("DATABASE_URL is required in production")
	ErrInvalidDatabaseURL    = errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")
	ErrInvalidPort           = errors.New("PORT must be a valid integer between 1 and 65535")
	ErrInvalidInt            = errors.New("value must be a valid integer")
	ErrInvalidDuration       = errors.New("value must be a valid duration (e.g. 10s, 30m)")
	ErrInvalidFloat          = errors.New("value must be a valid number")
	ErrInvalidBool           = errors.New("value must be a boolean (true/false/1/0/yes/no/on/off)")
	ErrInvalidPoolSize       = errors.New("DB_MAX_OPEN_CONNS must be > 0 and DB_MAX_IDLE_CONNS between 0 and DB_MAX_OPEN_CONNS")
	ErrInvalidRateLimit      = errors.New("RATE_LIMIT_PER_MINUTE must be > 0")
	ErrInvalidRedisURL       = errors.New("REDIS_URL must be a redis:// or rediss:// URL")
	ErrInvalidTrustedProxy   = errors.New("TRUSTED_PROXIES entries must be IP addresses or CIDR ranges")
	ErrInvalidSampleRate     = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidExporterType   = errors.New("OTEL_EXPORTER_TYPE must be otlp-grpc or otlp-http")
	ErrNegativeDuration      = errors.New("durations must not be negative")
	ErrProfilingInProduction = errors.New("PROFILING_ENABLED must not be set in production")
)

// Default values for non-secret configuration.
const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultDBMaxOpenConns     = 10
	DefaultDBMaxIdleConns     = 5
	DefaultDBConnMaxLifetime  = 30 * time.Minute
	DefaultQueryTimeout       = 10 * time.Second
	DefaultRateLimitPerMinute = 60
	DefaultOTelExporterType   = tracing.ExporterOTLPHTTP
	DefaultTracingSampleRate  = 0.1

	// CORSAnyOrigin accepts requests from every origin.
	CORSAnyOrigin = "*"
)

// LoadDotEnv copies variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// loader resolves one key at a time: environment, then file, then default,
// collecting parse errors instead of stopping at the first one.
type loader struct {
	k    *koanf.Koanf
	errs []error
}

func (l *loader) str(envKey, koanfKey, def string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if val := l.k.String(koanfKey); val != "" {
		return val
	}
	return def
}

func (l *loader) integer(envKey, koanfKey string, def int, sentinel error) int {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, val, sentinel))
			return def
		}
		return i
	}
	if l.k.Exists(koanfKey) {
		return l.k.Int(koanfKey)
	}
	return def
}

func (l *loader) duration(envKey, koanfKey string, def time.Duration) time.Duration {
	raw := os.Getenv(envKey)
	if raw == "" && l.k.Exists(koanfKey) {
		raw = l.k.String(koanfKey)
	}
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, raw, ErrInvalidDuration))
		return def
	}
	return d
}

func (l *loader) float(envKey, koanfKey string, def float64) float64 {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, val, ErrInvalidFloat))
			return def
		}
		return f
	}
	if l.k.Exists(koanfKey) {
		return l.k.Float64(koanfKey)
	}
	return def
}

func (l *loader) boolean(envKey, koanfKey string, def bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		default:
			l.errs = append(l.errs, fmt.Errorf("%s=%q: %w", envKey, val, ErrInvalidBool))
			return def
		}
	}
	if l.k.Exists(koanfKey) {
		return l.k.Bool(koanfKey)
	}
	return def
}

// list reads a comma separated env var or a YAML list.
func (l *loader) list(envKey, koanfKey string) []string {
	var raw []string
	if val := os.Getenv(envKey); val != "" {
		raw = strings.Split(val, ",")
	} else if l.k.Exists(koanfKey) {
		raw = l.k.Strings(koanfKey)
	}
	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values, which take
// precedence over defaults. Returns the loaded config and a slice of
// validation errors (empty if valid). If the config file cannot be loaded,
// only that error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	l := &loader{k: k}
	cfg := &Config{
		Port:               l.integer("PORT", "port", DefaultPort, ErrInvalidPort),
		Env:                l.str("ENV", "env", DefaultEnv),
		DatabaseURL:        l.str("DATABASE_URL", "database_url", ""),
		DBMaxOpenConns:     l.integer("DB_MAX_OPEN_CONNS", "db_max_open_conns", DefaultDBMaxOpenConns, ErrInvalidInt),
		DBMaxIdleConns:     l.integer("DB_MAX_IDLE_CONNS", "db_max_idle_conns", DefaultDBMaxIdleConns, ErrInvalidInt),
		DBConnMaxLifetime:  l.duration("DB_CONN_MAX_LIFETIME", "db_conn_max_lifetime", DefaultDBConnMaxLifetime),
		QueryTimeout:       l.duration("QUERY_TIMEOUT", "query_timeout", DefaultQueryTimeout),
		RedisURL:           l.str("REDIS_URL", "redis_url", ""),
		RateLimitPerMinute: l.integer("RATE_LIMIT_PER_MINUTE", "rate_limit_per_minute", DefaultRateLimitPerMinute, ErrInvalidInt),
		TrustedProxies:     l.list("TRUSTED_PROXIES", "trusted_proxies"),
		CORSAllowedOrigins: l.list("CORS_ALLOWED_ORIGINS", "cors_allowed_origins"),
		TracingEnabled:     l.boolean("TRACING_ENABLED", "tracing_enabled", false),
		OTelExporterType:   l.str("OTEL_EXPORTER_TYPE", "otel_exporter_type", DefaultOTelExporterType),
		OTLPEndpoint:       l.str("OTEL_EXPORTER_OTLP_ENDPOINT", "otel_exporter_otlp_endpoint", ""),
		TracingSampleRate:  l.float("TRACING_SAMPLE_RATE", "tracing_sample_rate", DefaultTracingSampleRate),
		TracingInsecure:    l.boolean("TRACING_INSECURE", "tracing_insecure", false),
		ProfilingEnabled:   l.boolean("PROFILING_ENABLED", "profiling_enabled", false),
	}

	if len(cfg.CORSAllowedOrigins) == 0 && !cfg.IsProduction() {
		cfg.CORSAllowedOrigins = []string{CORSAnyOrigin}
	}

	return cfg, append(l.errs, cfg.Validate()...)
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate checks cross-field constraints.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT=%d: %w", c.Port, ErrInvalidPort))
	}

	if c.DatabaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		errs = append(errs, ErrInvalidDatabaseURL)
	}

	if c.DBMaxOpenConns <= 0 || c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		errs = append(errs, ErrInvalidPoolSize)
	}
	if c.DBConnMaxLifetime < 0 || c.QueryTimeout < 0 {
		errs = append(errs, ErrNegativeDuration)
	}

	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, ErrInvalidRedisURL)
		}
	}

	if _, err := middleware.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidTrustedProxy, err))
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.OTelExporterType != tracing.ExporterOTLPGRPC && c.OTelExporterType != tracing.ExporterOTLPHTTP {
		errs = append(errs, ErrInvalidExporterType)
	}

	if c.ProfilingEnabled && c.IsProduction() {
		errs = append(errs, ErrProfilingInProduction)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// Credentials in connection URLs are masked.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                        strconv.Itoa(c.Port),
		"env":                         c.Env,
		"database_url":                maskURL(c.DatabaseURL),
		"db_max_open_conns":           strconv.Itoa(c.DBMaxOpenConns),
		"db_max_idle_conns":           strconv.Itoa(c.DBMaxIdleConns),
		"db_conn_max_lifetime":        c.DBConnMaxLifetime.String(),
		"query_timeout":               c.QueryTimeout.String(),
		"redis_url":                   maskURL(c.RedisURL),
		"rate_limit_per_minute":       strconv.Itoa(c.RateLimitPerMinute),
		"trusted_proxies":             strings.Join(c.TrustedProxies, ","),
		"cors_allowed_origins":        strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":             strconv.FormatBool(c.TracingEnabled),
		"otel_exporter_type":          c.OTelExporterType,
		"otel_exporter_otlp_endpoint": c.OTLPEndpoint,
		"tracing_sample_rate":         strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"profiling_enabled":           strconv.FormatBool(c.ProfilingEnabled),
	}
}

// maskURL masks the password in a connection URL (postgres://, redis://).
// A URL without a scheme is fully masked since its shape is unknown.
func maskURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return "****"
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
