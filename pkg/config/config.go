package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Earnings EarningsConfig
	Reports  ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// CORSConfig lists the dashboard origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// EarningsConfig governs the controller earnings calculation endpoints.
type EarningsConfig struct {
	Enabled            bool
	CacheTTL           time.Duration
	HistoryConcurrency int
	QueryTimeout       time.Duration
	// Timezone names the IANA zone that month windows are cut in.
	Timezone string
	Defaults EarningsDefaults
}

// EarningsDefaults is the rate policy used when no active configuration row exists.
type EarningsDefaults struct {
	MainBaseRate            float64
	ReferralBaseRate        float64
	LeavePenaltyMultiplier  float64
	LeaveThreshold          int
	UnpaidPenaltyMultiplier float64
	ReferralBonusMultiplier float64
	TargetEarnings          float64
}

// ReportsConfig configures asynchronous earnings export generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins:   splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		AllowCredentials: v.GetBool("CORS_ALLOW_CREDENTIALS"),
		MaxAge:           parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Earnings = EarningsConfig{
		Enabled:            v.GetBool("ENABLE_EARNINGS"),
		CacheTTL:           parseDuration(v.GetString("EARNINGS_CACHE_TTL"), 5*time.Minute),
		HistoryConcurrency: v.GetInt("EARNINGS_HISTORY_CONCURRENCY"),
		QueryTimeout:       parseDuration(v.GetString("EARNINGS_QUERY_TIMEOUT"), 30*time.Second),
		Timezone:           v.GetString("EARNINGS_TIMEZONE"),
		Defaults: EarningsDefaults{
			MainBaseRate:            v.GetFloat64("EARNINGS_DEFAULT_MAIN_BASE_RATE"),
			ReferralBaseRate:        v.GetFloat64("EARNINGS_DEFAULT_REFERRAL_BASE_RATE"),
			LeavePenaltyMultiplier:  v.GetFloat64("EARNINGS_DEFAULT_LEAVE_PENALTY_MULTIPLIER"),
			LeaveThreshold:          v.GetInt("EARNINGS_DEFAULT_LEAVE_THRESHOLD"),
			UnpaidPenaltyMultiplier: v.GetFloat64("EARNINGS_DEFAULT_UNPAID_PENALTY_MULTIPLIER"),
			ReferralBonusMultiplier: v.GetFloat64("EARNINGS_DEFAULT_REFERRAL_BONUS_MULTIPLIER"),
			TargetEarnings:          v.GetFloat64("EARNINGS_DEFAULT_TARGET"),
		},
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_earnings")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_EARNINGS", true)
	v.SetDefault("EARNINGS_CACHE_TTL", "5m")
	v.SetDefault("EARNINGS_HISTORY_CONCURRENCY", 8)
	v.SetDefault("EARNINGS_QUERY_TIMEOUT", "30s")
	v.SetDefault("EARNINGS_TIMEZONE", "UTC")
	v.SetDefault("EARNINGS_DEFAULT_MAIN_BASE_RATE", 40)
	v.SetDefault("EARNINGS_DEFAULT_REFERRAL_BASE_RATE", 40)
	v.SetDefault("EARNINGS_DEFAULT_LEAVE_PENALTY_MULTIPLIER", 3)
	v.SetDefault("EARNINGS_DEFAULT_LEAVE_THRESHOLD", 5)
	v.SetDefault("EARNINGS_DEFAULT_UNPAID_PENALTY_MULTIPLIER", 2)
	v.SetDefault("EARNINGS_DEFAULT_REFERRAL_BONUS_MULTIPLIER", 4)
	v.SetDefault("EARNINGS_DEFAULT_TARGET", 3000)

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
