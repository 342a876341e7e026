package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Ingestion
	PersistTimeout time.Duration
	PersistRetries int

	// Alerting: "edge" fires once per threshold crossing, "level" fires on
	// every qualifying event.
	AlertMode string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		Env:            getEnvOrDefault("ENV", "development"),
		DatabaseURL:    mustGetEnv("DATABASE_URL"),
		RedisURL:       mustGetEnv("REDIS_URL"),
		JWTSecret:      mustGetEnv("JWT_SECRET"),
		PersistTimeout: time.Duration(getEnvAsIntOrDefault("PERSIST_TIMEOUT_MS", 5000)) * time.Millisecond,
		PersistRetries: getEnvAsIntOrDefault("PERSIST_RETRIES", 3),
		AlertMode:      getEnvOrDefault("ALERT_MODE", "edge"),
		FrontendURL:    getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.AlertMode != "edge" && cfg.AlertMode != "level" {
		panic(fmt.Sprintf("ALERT_MODE must be 'edge' or 'level', got %q", cfg.AlertMode))
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
