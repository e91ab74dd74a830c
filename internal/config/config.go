package config

import (
	"os"
	"time"
)

const (
	defaultHTTPAddr     = ":9091"
	defaultLogLevel     = "info"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
)

// Config конфигурация из окружения. Пустой DATABASE_URL включает
// in-memory хранилище.
type Config struct {
	HTTPAddr    string
	DatabaseURL string
	LogLevel    string
}

func Load() Config {
	return Config{
		HTTPAddr:    getEnvOrDefault("HTTP_ADDR", defaultHTTPAddr),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
