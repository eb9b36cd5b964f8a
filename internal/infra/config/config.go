// Package config provides application-wide configuration loaded from env vars.
// All fields have safe defaults so the binary runs locally without any env setup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Cache backends accepted in CACHE_BACKEND.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds runtime configuration for procstatus.
type Config struct {
	DBPath string // PROCSTATUS_DB_PATH (default "./data/procstatus.db")

	// HTTP
	HTTPHost string // HTTP_HOST (default "0.0.0.0")
	HTTPPort int    // HTTP_PORT (default 8080)

	// Cache
	CacheBackend  string        // CACHE_BACKEND: "memory" (default) or "redis"
	CacheTTL      time.Duration // CACHE_TTL (default 10m)
	StaticTTL     time.Duration // CACHE_STATIC_TTL (default 5s), lock statuses held in process
	RedisAddr     string        // REDIS_ADDR (default "localhost:6379")
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB (default 0)

	LogLevel string // LOG_LEVEL (default "info")
}

const (
	envKeyDBPath        = "PROCSTATUS_DB_PATH"
	envKeyHTTPHost      = "HTTP_HOST"
	envKeyHTTPPort      = "HTTP_PORT"
	envKeyCacheBackend  = "CACHE_BACKEND"
	envKeyCacheTTL      = "CACHE_TTL"
	envKeyStaticTTL     = "CACHE_STATIC_TTL"
	envKeyRedisAddr     = "REDIS_ADDR"
	envKeyRedisPassword = "REDIS_PASSWORD"
	envKeyRedisDB       = "REDIS_DB"
	envKeyLogLevel      = "LOG_LEVEL"
)

// Load reads configuration from environment variables, applying defaults for missing values.
// Malformed numbers and durations fall back to their defaults.
func Load() Config {
	backend := envOr(envKeyCacheBackend, CacheBackendMemory)
	if backend != CacheBackendRedis {
		backend = CacheBackendMemory
	}
	return Config{
		DBPath:        envOr(envKeyDBPath, "./data/procstatus.db"),
		HTTPHost:      envOr(envKeyHTTPHost, "0.0.0.0"),
		HTTPPort:      envIntOr(envKeyHTTPPort, 8080),
		CacheBackend:  backend,
		CacheTTL:      envDurationOr(envKeyCacheTTL, 10*time.Minute),
		StaticTTL:     envDurationOr(envKeyStaticTTL, 5*time.Second),
		RedisAddr:     envOr(envKeyRedisAddr, "localhost:6379"),
		RedisPassword: os.Getenv(envKeyRedisPassword),
		RedisDB:       envIntOr(envKeyRedisDB, 0),
		LogLevel:      envOr(envKeyLogLevel, "info"),
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
