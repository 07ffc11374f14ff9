// Package config loads the process-wide configuration once at startup.
// The resulting Config is immutable; components receive it by reference
// through their constructors.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Profile  string
	HTTPAddr string

	// DatabaseDriver selects "sqlite" or "postgres"; DatabaseDSN is
	// passed to the matching GORM driver untouched.
	DatabaseDriver string
	DatabaseDSN    string

	// The two signing secrets must be present and distinct; possession
	// of one must not forge the other token type.
	AccessTokenSecret  string
	RefreshTokenSecret string
	Issuer             string
	Audience           string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	BcryptCost int

	// CacheBackend selects the token-validation cache: "memory",
	// "redis" or "noop".
	CacheBackend string
	RedisAddr    string

	ResendAPIKey string
	MailFrom     string

	SessionSweepInterval    time.Duration
	ResetTokenSweepInterval time.Duration
	DenylistSweepInterval   time.Duration

	OTELMetricsEnabled        bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// Load reads the environment (after merging an optional .env file) and
// validates the result. A validation failure aborts startup.
func Load(ctx context.Context, envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine; real env vars always win.
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{
		Profile:            getEnv("APP_PROFILE", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseDSN:        getEnv("DATABASE_DSN", "file:auth.db?_pragma=busy_timeout(5000)"),
		AccessTokenSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshTokenSecret: os.Getenv("JWT_REFRESH_SECRET"),
		Issuer:             getEnv("JWT_ISSUER", "priazov-auth"),
		Audience:           getEnv("JWT_AUDIENCE", "priazov-api"),
		CacheBackend:       getEnv("TOKEN_CACHE_BACKEND", "memory"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		ResendAPIKey:       os.Getenv("RESEND_API_KEY"),
		MailFrom:           getEnv("MAIL_FROM", "noreply@priazov-impact.ru"),
		OTELServiceName:    getEnv("OTEL_SERVICE_NAME", "auth-service"),
		OTELEnvironment:    getEnv("OTEL_ENVIRONMENT", "dev"),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDurationMinutes("JWT_ACCESS_TTL_MINUTES", 15); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.RefreshTokenTTL, err = getDurationDays("JWT_REFRESH_TTL_DAYS", 7); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 12); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.SessionSweepInterval, err = getDuration("SESSION_SWEEP_INTERVAL", 24*time.Hour); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.ResetTokenSweepInterval, err = getDuration("RESET_TOKEN_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.DenylistSweepInterval, err = getDuration("DENYLIST_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.OTELMetricsEnabled, err = getBool("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	cfg.OTELExporterOTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, recordAndWrap(ctx, cfg.Profile, err)
	}
	recordConfigValidationEvent(ctx, cfg.Profile, "success", "none")
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("validate config: JWT_ACCESS_SECRET is required")
	}
	if c.RefreshTokenSecret == "" {
		return fmt.Errorf("validate config: JWT_REFRESH_SECRET is required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("validate config: access and refresh secrets must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("validate config: token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("validate config: access TTL must be shorter than refresh TTL")
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("validate config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.CacheBackend {
	case "memory", "noop":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("validate config: REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("validate config: unsupported TOKEN_CACHE_BACKEND %q", c.CacheBackend)
	}
	return nil
}

func recordAndWrap(ctx context.Context, profile string, err error) error {
	recordConfigValidationEvent(ctx, profile, "failure", classifyConfigLoadError(err))
	return err
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func getDurationMinutes(key string, fallbackMinutes int) (time.Duration, error) {
	v, err := getInt(key, fallbackMinutes)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Minute, nil
}

func getDurationDays(key string, fallbackDays int) (time.Duration, error) {
	v, err := getInt(key, fallbackDays)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * 24 * time.Hour, nil
}
