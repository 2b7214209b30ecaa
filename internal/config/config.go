// Package config loads runtime configuration from the environment and
// optional .env files.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	AllowedOrigins []string
	AuthSecret     string
	AccessTokenTTL time.Duration
	ReportCacheTTL time.Duration
	LogFormat      string
	LogLevel       string
}

// Load reads configuration from environment variables and an optional
// .env file. An empty DATABASE_URL selects the in-memory store; an
// empty REDIS_ADDR disables report caching.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:         valueOrDefault(k.String("APP_ENV"), "development"),
		Port:           valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:    strings.TrimSpace(k.String("DATABASE_URL")),
		RedisAddr:      strings.TrimSpace(k.String("REDIS_ADDR")),
		RedisPassword:  k.String("REDIS_PASSWORD"),
		RedisDB:        parseInt(k.String("REDIS_DB"), 0),
		AllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		AuthSecret:     k.String("AUTH_SECRET"),
		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "8h"),
		ReportCacheTTL: parseDuration(k.String("REPORT_CACHE_TTL"), "5m"),
		LogFormat:      valueOrDefault(k.String("LOG_FORMAT"), "console"),
		LogLevel:       valueOrDefault(k.String("LOG_LEVEL"), "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks constraints that would make the server unsafe or
// unable to start.
func (c *Config) Validate() error {
	if c.AuthSecret == "" {
		return errors.New("AUTH_SECRET is required")
	}
	if len(c.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be at least 32 characters")
	}
	if c.AppEnv == "production" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required in production")
	}
	return nil
}

// Address returns the address the HTTP server should bind to.
func (c *Config) Address() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	base := strings.TrimSpace(value)
	if base == "" {
		return fallback
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return fallback
	}
	return n
}
