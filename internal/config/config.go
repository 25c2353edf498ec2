// Package config provides configuration management for the account
// reconciler. It loads configuration from environment variables and .env
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Validator  ValidatorConfig
	Cache      CacheConfig
	Reconciler ReconcilerConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// ValidatorConfig holds validation-service client configuration
type ValidatorConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// CacheConfig holds result-cache configuration. Redis is optional; without
// it the cache lives in process memory.
type CacheConfig struct {
	TTL      time.Duration
	UseRedis bool
	Redis    RedisConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ReconcilerConfig holds the reconciliation windows and retry policy
type ReconcilerConfig struct {
	DataExpiryWindow   time.Duration
	ValidationCooldown time.Duration
	MinRefreshInterval time.Duration
	DebounceDelay      time.Duration
	MaxRetryCount      int
	BaseBackoff        time.Duration
	WorkerPollInterval time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after loading a .env file
// when one exists.
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Validator: ValidatorConfig{
			BaseURL:           getEnv("VALIDATOR_BASE_URL", ""),
			Timeout:           getEnvDuration("VALIDATOR_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvFloat("VALIDATOR_RPS", 5),
		},
		Cache: CacheConfig{
			TTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
			UseRedis: getEnvBool("CACHE_USE_REDIS", false),
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
			},
		},
		Reconciler: ReconcilerConfig{
			DataExpiryWindow:   getEnvDuration("DATA_EXPIRY_WINDOW", 30*time.Minute),
			ValidationCooldown: getEnvDuration("VALIDATION_COOLDOWN", 5*time.Minute),
			MinRefreshInterval: getEnvDuration("MIN_REFRESH_INTERVAL", 2*time.Second),
			DebounceDelay:      getEnvDuration("FETCH_DEBOUNCE_DELAY", 2*time.Second),
			MaxRetryCount:      getEnvInt("MAX_RETRY_COUNT", 3),
			BaseBackoff:        getEnvDuration("BASE_BACKOFF", 60*time.Second),
			WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Validator.BaseURL == "" {
		return fmt.Errorf("VALIDATOR_BASE_URL is required")
	}
	if c.Reconciler.MaxRetryCount <= 0 {
		return fmt.Errorf("MAX_RETRY_COUNT must be positive")
	}
	if c.Reconciler.DataExpiryWindow <= 0 || c.Reconciler.ValidationCooldown <= 0 {
		return fmt.Errorf("reconciler windows must be positive")
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Addr returns the Redis connection address.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
