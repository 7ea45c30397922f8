package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// WriteModeUpsert replaces the snapshot row in place (by id).
	WriteModeUpsert = "upsert"
	// WriteModeAppend inserts a new row per write and treats it as latest.
	WriteModeAppend = "append"

	FeedBackendMemory = "memory"
	FeedBackendRedis  = "redis"
)

// Config holds the core runtime configuration for the service.
// Values are sourced from environment variables (optionally via a .env
// file), with defaults where appropriate.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string
	ListenAddr  string

	// LogMode selects the zap preset: "production" or "development".
	LogMode string

	// WriteMode controls how the metrics store persists a submit:
	// "upsert" (default) or "append".
	WriteMode string

	// HistoryKeep is the number of snapshot rows kept by the retention
	// worker in append mode. Zero keeps everything.
	HistoryKeep int

	// SessionTTL is how long a browser stays signed in.
	SessionTTL time.Duration

	// AuditRetentionDays bounds how long audit log rows are kept.
	AuditRetentionDays int

	// FeedBackend selects the change feed transport: "memory" or "redis".
	FeedBackend  string
	RedisAddr    string
	RedisChannel string

	// ServiceKey, when set, is registered as an API key for the bootstrap
	// admin so feeder scripts can write metrics with a bearer token.
	ServiceKey string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:          getenv("APP_ADMIN_USER", "admin"),
		AdminPassword:      getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:        os.Getenv("APP_DATABASE_URL"),
		ListenAddr:         getenv("APP_LISTEN_ADDR", ":8080"),
		LogMode:            getenv("APP_LOG_MODE", "development"),
		WriteMode:          WriteModeUpsert,
		HistoryKeep:        500,
		SessionTTL:         7 * 24 * time.Hour,
		AuditRetentionDays: 90,
		FeedBackend:        FeedBackendMemory,
		RedisAddr:          getenv("APP_REDIS_ADDR", "localhost:6379"),
		RedisChannel:       getenv("APP_REDIS_CHANNEL", "executive_metrics_changes"),
		ServiceKey:         getenv("APP_SERVICE_KEY", ""),
	}

	switch strings.ToLower(os.Getenv("APP_WRITE_MODE")) {
	case WriteModeAppend:
		cfg.WriteMode = WriteModeAppend
	}

	switch strings.ToLower(os.Getenv("APP_FEED_BACKEND")) {
	case FeedBackendRedis:
		cfg.FeedBackend = FeedBackendRedis
	}

	if v := os.Getenv("APP_AUDIT_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.AuditRetentionDays = days
		}
	}

	if v := os.Getenv("APP_SESSION_TTL_HOURS"); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			cfg.SessionTTL = time.Duration(h) * time.Hour
		}
	}

	if v := os.Getenv("APP_HISTORY_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.HistoryKeep = n
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
