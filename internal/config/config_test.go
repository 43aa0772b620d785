package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DSN", "SMTP_PORT", "EMAIL_QUEUE_INTERVAL", "EMAIL_MOCK_MODE", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "tfsrentals.db", cfg.DBDSN)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 5*time.Minute, cfg.EmailInterval)
	assert.False(t, cfg.EmailMock)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("EMAIL_QUEUE_INTERVAL", "30s")
	t.Setenv("EMAIL_MOCK_MODE", "true")
	t.Setenv("MINIO_SECURE", "true")
	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, 30*time.Second, cfg.EmailInterval)
	assert.True(t, cfg.EmailMock)
	assert.True(t, cfg.MinioSecure)
}

func TestBadNumbersFallBack(t *testing.T) {
	t.Setenv("SMTP_PORT", "smtp")
	t.Setenv("EMAIL_QUEUE_INTERVAL", "-1m")
	assert.Equal(t, 587, getint("SMTP_PORT", 587))
	assert.Equal(t, time.Minute, getduration("EMAIL_QUEUE_INTERVAL", time.Minute))
}
