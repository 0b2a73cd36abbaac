package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"anoa.com/loyaltyledger/pkg/database"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	LogLevel       string

	Database database.Config
	RedisURL string

	JWTSecret      string
	InternalAPIKey string

	MeiliSearchHost string
	MeiliMasterKey  string

	CatalogPath    string
	StreakTimezone *time.Location

	CouponSalt        string
	CouponPrefix      string
	CouponTTL         time.Duration
	CouponMaxAttempts int
	SnowflakeNode     int64

	TxMaxRetries        int
	LeaderboardCacheTTL time.Duration
	RedeemCooldown      time.Duration

	// Cron expression for the background reconcile; "off" disables it.
	ReconcileSchedule string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASS"),
			Name:     getEnv("DB_NAME", "loyalty_ledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CatalogPath:  os.Getenv("CATALOG_PATH"),
		CouponSalt:   getEnv("COUPON_SALT", "loyalty-ledger"),
		CouponPrefix: getEnv("COUPON_PREFIX", "RWD-"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "0 3 * * *"),
	}
	if cfg.ReconcileSchedule == "off" {
		cfg.ReconcileSchedule = ""
	}
	cfg.Database.Debug = cfg.AppEnv == "development" && cfg.LogLevel == "debug"

	var err error
	cfg.StreakTimezone, err = time.LoadLocation(getEnv("STREAK_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid STREAK_TIMEZONE: %w", err)
	}

	if cfg.CouponTTL, err = parseDuration("COUPON_TTL", "720h"); err != nil {
		return nil, err
	}
	if cfg.LeaderboardCacheTTL, err = parseDuration("LEADERBOARD_CACHE_TTL", "30s"); err != nil {
		return nil, err
	}
	if cfg.RedeemCooldown, err = parseDuration("REDEEM_COOLDOWN", "2s"); err != nil {
		return nil, err
	}

	if cfg.CouponMaxAttempts, err = parseInt("COUPON_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.TxMaxRetries, err = parseInt("TX_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	node, err := parseInt("SNOWFLAKE_NODE", 1)
	if err != nil {
		return nil, err
	}
	cfg.SnowflakeNode = int64(node)

	if cfg.JWTSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
