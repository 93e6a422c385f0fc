package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	HTTPAddr    string
	MetricsAddr string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisEnabled  bool
	SQLitePath    string

	// Simulation defaults
	InitialCapital      float64
	AnnualizationFactor float64
	RiskFreeRate        float64
	PoolWorkers         int

	// Result cache
	ResultCacheTTL time.Duration

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with sensible defaults.
// Nothing is required: the server runs self-contained with synthetic data,
// a local SQLite file, and Redis disabled.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisEnabled:  getBool("REDIS_ENABLED", false),
		SQLitePath:    getEnv("SQLITE_PATH", "data/quantlab.db"),

		InitialCapital:      getFloat("INITIAL_CAPITAL", 10000),
		AnnualizationFactor: getFloat("ANNUALIZATION_FACTOR", 252),
		RiskFreeRate:        getFloat("RISK_FREE_RATE", 0.02),
		PoolWorkers:         getInt("POOL_WORKERS", 0), // 0 = GOMAXPROCS

		ResultCacheTTL: getDuration("RESULT_CACHE_TTL", 30*time.Minute),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
