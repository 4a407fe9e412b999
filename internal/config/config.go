package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wolfman30/callwindow/internal/callwindow"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Default calling window applied when a request carries none.
	CallWindowStartHour int
	CallWindowEndHour   int
	CallWindowDays      string

	DeferralPollInterval time.Duration
	DeferralBatchSize    int
	DeferralMaxAttempts  int

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CallWindowStartHour: getEnvAsInt("CALL_WINDOW_START_HOUR", 9),
		CallWindowEndHour:   getEnvAsInt("CALL_WINDOW_END_HOUR", 20),
		CallWindowDays:      getEnv("CALL_WINDOW_DAYS", "1,2,3,4,5"),

		DeferralPollInterval: getEnvAsDuration("DEFERRAL_POLL_INTERVAL", 30*time.Second),
		DeferralBatchSize:    getEnvAsInt("DEFERRAL_BATCH_SIZE", 50),
		DeferralMaxAttempts:  getEnvAsInt("DEFERRAL_MAX_ATTEMPTS", 5),

		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// DefaultWindow builds and validates the configured default calling window.
func (c *Config) DefaultWindow() (callwindow.Window, error) {
	days, err := callwindow.ParseDays(c.CallWindowDays)
	if err != nil {
		return callwindow.Window{}, fmt.Errorf("config: CALL_WINDOW_DAYS: %w", err)
	}
	w := callwindow.Window{
		StartHour: c.CallWindowStartHour,
		EndHour:   c.CallWindowEndHour,
		Days:      days,
	}
	if err := w.Validate(); err != nil {
		return callwindow.Window{}, fmt.Errorf("config: default window: %w", err)
	}
	return w, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
