package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// レート制限ストアの種別
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Moderation
	AdminKey           string
	CommentAutoApprove bool

	// CAPTCHA
	TurnstileSecretKey string
	TurnstileVerifyURL string
	TurnstileTimeout   time.Duration

	// Rate Limit
	CommentRateWindow  time.Duration
	CommentRateMax     int
	LikeRateWindow     time.Duration
	LikeRateMax        int
	RateLimitRetention time.Duration
	RateLimitBackend   string
	RedisURL           string
	HTTPRateLimit      int

	// Post catalog
	SiteFeedURL string
	SiteFeedTTL time.Duration

	// Worker
	CleanupInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.TurnstileSecretKey = os.Getenv("TURNSTILE_SECRET_KEY")
	if cfg.TurnstileSecretKey == "" {
		missing = append(missing, "TURNSTILE_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AdminKey = os.Getenv("ADMIN_KEY")
	cfg.CommentAutoApprove = getEnvBool("COMMENT_AUTO_APPROVE", true)
	cfg.TurnstileVerifyURL = getEnvString("TURNSTILE_VERIFY_URL", "")
	cfg.TurnstileTimeout = getEnvDuration("TURNSTILE_TIMEOUT", 10*time.Second)
	cfg.CommentRateWindow = getEnvDuration("COMMENT_RATE_WINDOW", 5*time.Minute)
	cfg.CommentRateMax = getEnvInt("COMMENT_RATE_MAX", 2)
	cfg.LikeRateWindow = getEnvDuration("LIKE_RATE_WINDOW", 5*time.Minute)
	cfg.LikeRateMax = getEnvInt("LIKE_RATE_MAX", 50)
	cfg.RateLimitRetention = getEnvDuration("RATE_LIMIT_RETENTION", 24*time.Hour)
	cfg.RateLimitBackend = strings.ToLower(getEnvString("RATE_LIMIT_BACKEND", RateLimitBackendPostgres))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.HTTPRateLimit = getEnvInt("HTTP_RATE_LIMIT", 120)
	cfg.SiteFeedURL = getEnvString("SITE_FEED_URL", "")
	cfg.SiteFeedTTL = getEnvDuration("SITE_FEED_TTL", 15*time.Minute)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	switch cfg.RateLimitBackend {
	case RateLimitBackendPostgres:
	case RateLimitBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=%s", RateLimitBackendRedis)
		}
	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_BACKEND: %q", cfg.RateLimitBackend)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
