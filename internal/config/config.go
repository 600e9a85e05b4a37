package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string
	DatabaseType string
	DatabasePath string
	DatabaseURL  string

	// MigrationsPath overrides the embedded migrations when set
	MigrationsPath string

	LogMode string
	Debug   bool

	// Timezone is the IANA zone that decides what "today" means for streaks
	Timezone string

	JWTSecret string

	RedisURL           string
	RateLimitPerMinute int
	RateLimitCapacity  int

	ReconcileSchedule string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	//nolint:errcheck
	godotenv.Load()

	return &Config{
		ServerPort:         getEnv("PORT", "8080"),
		DatabaseType:       strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DatabasePath:       getEnv("DB_PATH", "./learnquest.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", ""),
		LogMode:            getEnv("LOG_MODE", "development"),
		Debug:              getEnvBool("DEBUG", false),
		Timezone:           getEnv("APP_TIMEZONE", "UTC"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		RateLimitCapacity:  getEnvInt("RATE_LIMIT_CAPACITY", 10000),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "@every 1h"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "LearnQuest"),
		AppBaseURL:         getEnv("APP_BASE_URL", "http://localhost:8080"),
	}
}

// Validate rejects settings that would otherwise be silently replaced by a default
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
// Call Validate first so a mistyped zone fails startup instead.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
