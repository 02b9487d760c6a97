package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Telegram bot
	Telegram TelegramConfig

	// Crawler
	Crawler CrawlerConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// TelegramConfig holds the bot token and the push target list.
type TelegramConfig struct {
	Token   string
	ChatIDs []int64 // targets for the scheduled daily push
}

// CrawlerConfig holds outbound fetch settings shared by all source adapters.
type CrawlerConfig struct {
	TWSEBaseURL   string
	TAIFEXBaseURL string

	Timeout      time.Duration // per-request timeout
	MaxRetries   int           // transient-failure retries per request
	InitialDelay time.Duration // first retry backoff
	Workers      int           // adapter fan-out concurrency
	RatePerSec   float64       // outbound requests per second (0 = unlimited)
}

// SchedulerConfig holds the daily cycle settings.
type SchedulerConfig struct {
	DailyCron        string   // cron expression (with seconds) for the daily cycle
	RequiredSections []string // sections that must succeed for a push to happen
	Holidays         []string // extra non-trading days, YYYYMMDD
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Telegram: TelegramConfig{
			Token:   getEnv("TELEGRAM_TOKEN", ""),
			ChatIDs: getEnvAsInt64Slice("TELEGRAM_CHAT_IDS"),
		},

		Crawler: CrawlerConfig{
			TWSEBaseURL:   getEnv("TWSE_BASE_URL", "https://www.twse.com.tw"),
			TAIFEXBaseURL: getEnv("TAIFEX_BASE_URL", "https://www.taifex.com.tw"),
			Timeout:       getEnvAsDuration("CRAWLER_TIMEOUT", "30s"),
			MaxRetries:    getEnvAsInt("CRAWLER_MAX_RETRIES", 3),
			InitialDelay:  getEnvAsDuration("CRAWLER_RETRY_DELAY", "1s"),
			Workers:       getEnvAsInt("CRAWLER_WORKERS", 4),
			RatePerSec:    getEnvAsFloat("CRAWLER_RATE_PER_SEC", 2),
		},

		Scheduler: SchedulerConfig{
			DailyCron:        getEnv("SCHEDULE_DAILY_CRON", "0 0 15 * * MON-FRI"),
			RequiredSections: getEnvAsSlice("REQUIRED_SECTIONS", "taiex,institutional"),
			Holidays:         getEnvAsSlice("MARKET_HOLIDAYS", ""),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Crawler.MaxRetries < 0 {
		return fmt.Errorf("CRAWLER_MAX_RETRIES must not be negative")
	}

	if c.Crawler.Workers < 1 {
		return fmt.Errorf("CRAWLER_WORKERS must be at least 1")
	}

	for _, h := range c.Scheduler.Holidays {
		if _, err := time.Parse("20060102", h); err != nil {
			return fmt.Errorf("MARKET_HOLIDAYS entry %q is not YYYYMMDD", h)
		}
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt64Slice(key string) []int64 {
	var out []int64
	for _, part := range getEnvAsSlice(key, "") {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
