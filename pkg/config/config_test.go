package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Earnings.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Earnings.CacheTTL)
	assert.Equal(t, "UTC", cfg.Earnings.Timezone)
	assert.Equal(t, 40.0, cfg.Earnings.Defaults.MainBaseRate)
	assert.Equal(t, 5, cfg.Earnings.Defaults.LeaveThreshold)
	assert.Equal(t, 3000.0, cfg.Earnings.Defaults.TargetEarnings)
	assert.False(t, cfg.Reports.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Reports.SignedURLTTL)
	assert.Equal(t, 3, cfg.Reports.WorkerRetries)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, 10*time.Minute, cfg.CORS.MaxAge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", EnvProduction)
	t.Setenv("EARNINGS_CACHE_TTL", "90s")
	t.Setenv("EARNINGS_TIMEZONE", "Asia/Jakarta")
	t.Setenv("EARNINGS_DEFAULT_MAIN_BASE_RATE", "55.5")
	t.Setenv("REPORTS_SIGNED_URL_TTL", "not-a-duration")
	t.Setenv("REPORTS_WORKER_CONCURRENCY", "4")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "false")
	t.Setenv("CORS_MAX_AGE", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Env)
	assert.Equal(t, 90*time.Second, cfg.Earnings.CacheTTL)
	assert.Equal(t, "Asia/Jakarta", cfg.Earnings.Timezone)
	assert.Equal(t, 55.5, cfg.Earnings.Defaults.MainBaseRate)
	assert.Equal(t, 24*time.Hour, cfg.Reports.SignedURLTTL)
	assert.Equal(t, 4, cfg.Reports.WorkerConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, time.Minute, cfg.CORS.MaxAge)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}
