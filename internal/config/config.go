package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"championship-engine/internal/db"
	"championship-engine/internal/redis"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all configuration values for the application
type Config struct {
	DB    db.Config
	Redis redis.Config
	// UseRedis switches locking, presence and the event bus to redis.
	UseRedis bool

	// Server configuration
	HTTPPort    string
	TCPPort     string
	Environment string
	LogLevel    string

	// Authentication
	JWTSecret   string
	CORSOrigins []string

	// Rate limiting per client
	RateLimit float64
	RateBurst int

	// Engine loop
	SweepSchedule  string
	StartSchedule  string
	SettleSchedule string
	RoomRetryAfter time.Duration
	NotifyBuffer   int

	Archive ArchiveConfig
}

type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load loads configuration from environment variables
func Load() Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[CONFIG] WARNING: could not read .env: %v", err)
	}

	return Config{
		DB: db.Config{
			Driver:     getEnv("DB_DRIVER", db.DriverMySQL),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "3306"),
			User:       getEnv("DB_USER", "root"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "championship"),
			SSLMode:    getEnv("DB_SSLMODE", ""),
			Path:       getEnv("DB_PATH", ""),
			LogQueries: getEnvBool("DB_LOG_QUERIES", false),
		},
		Redis: redis.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		UseRedis:       getEnvBool("USE_REDIS", true),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		TCPPort:        getEnv("TCP_PORT", "8090"),
		Environment:    getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimit:      getEnvFloat("RATE_LIMIT", 10),
		RateBurst:      getEnvInt("RATE_BURST", 20),
		SweepSchedule:  getEnv("SWEEP_SCHEDULE", "@every 30s"),
		StartSchedule:  getEnv("START_SCHEDULE", "@every 1m"),
		SettleSchedule: getEnv("SETTLE_SCHEDULE", "@every 5m"),
		RoomRetryAfter: getEnvDuration("ROOM_RETRY_AFTER", 2*time.Minute),
		NotifyBuffer:   getEnvInt("NOTIFY_BUFFER", 1024),
		Archive: ArchiveConfig{
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Region:    getEnv("ARCHIVE_REGION", "us-east-1"),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Prefix:    getEnv("ARCHIVE_PREFIX", "tournaments/"),
		},
	}
}

// ConfigureLogging applies LogLevel and picks a JSON formatter outside development.
func (c Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Printf("[CONFIG] WARNING: unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.Environment != "development" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[CONFIG] WARNING: %s=%q is not an integer, using %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("[CONFIG] WARNING: %s=%q is not a number, using %v", key, value, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("[CONFIG] WARNING: %s=%q is not a boolean, using %v", key, value, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[CONFIG] WARNING: %s=%q is not a duration, using %v", key, value, fallback)
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
