package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"APP_ADMIN_USER", "APP_ADMIN_PASSWORD", "APP_DATABASE_URL", "APP_LISTEN_ADDR",
		"APP_WRITE_MODE", "APP_FEED_BACKEND", "APP_AUDIT_RETENTION_DAYS", "APP_HISTORY_KEEP", "APP_SESSION_TTL_HOURS",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "admin", cfg.AdminUser)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, WriteModeUpsert, cfg.WriteMode)
	assert.Equal(t, FeedBackendMemory, cfg.FeedBackend)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
	assert.Equal(t, 500, cfg.HistoryKeep)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "executive_metrics_changes", cfg.RedisChannel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_WRITE_MODE", "APPEND")
	t.Setenv("APP_FEED_BACKEND", "redis")
	t.Setenv("APP_AUDIT_RETENTION_DAYS", "7")
	t.Setenv("APP_HISTORY_KEEP", "0")
	t.Setenv("APP_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("APP_SESSION_TTL_HOURS", "12")

	cfg := Load()
	assert.Equal(t, WriteModeAppend, cfg.WriteMode)
	assert.Equal(t, FeedBackendRedis, cfg.FeedBackend)
	assert.Equal(t, 7, cfg.AuditRetentionDays)
	assert.Equal(t, 0, cfg.HistoryKeep)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("APP_AUDIT_RETENTION_DAYS", "-3")
	t.Setenv("APP_HISTORY_KEEP", "many")

	cfg := Load()
	assert.Equal(t, 90, cfg.AuditRetentionDays)
	assert.Equal(t, 500, cfg.HistoryKeep)
}
