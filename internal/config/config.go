package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP Server
	Port string

	// Postgres (row access enforced by the database views)
	DatabaseURL string

	// Redis query cache; empty means in-process LRU only
	RedisURL string

	// SQLite store for per-user filter selections
	SessionDBPath string

	// Cache
	CacheTTL     time.Duration
	CacheMaxSize int

	// Identity fallback when the database reports no user
	DefaultUser string
}

func Load() *Config {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/campusledger"),
		RedisURL:    getEnv("REDIS_URL", ""),

		SessionDBPath: getEnv("SESSION_DB_PATH", "./data/sessions.db"),

		CacheTTL:     getEnvDuration("CACHE_TTL", 10*time.Minute),
		CacheMaxSize: getEnvInt("CACHE_MAX_SIZE", 256),

		DefaultUser: getEnv("DEFAULT_USER", "readonly"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate database URL
	if c.DatabaseURL == "" {
		errors = append(errors, "database URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.DatabaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid database URL '%s': %v", c.DatabaseURL, err))
	} else if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		errors = append(errors, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", parsedURL.Scheme))
	}

	// Validate Redis URL if provided
	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': %v", c.RedisURL, err))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errors = append(errors, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
	}

	// Validate session store path
	if c.SessionDBPath == "" {
		errors = append(errors, "session database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SessionDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create session database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate cache configuration
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	} else if c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at most 24 hours", c.CacheTTL))
	}

	if c.CacheMaxSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache max size %d: must be at least 1", c.CacheMaxSize))
	} else if c.CacheMaxSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid cache max size %d: must be at most 100000", c.CacheMaxSize))
	}

	if c.DefaultUser == "" {
		errors = append(errors, "default user cannot be empty")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
