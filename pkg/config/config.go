// Package config loads server configuration from environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds server configuration. It is read once at startup and
// never mutated at runtime.
type Config struct {
	Port     string
	LogLevel string

	// BaseURL is the public prefix for artifact URLs, e.g.
	// "https://cdn.example.com". Defaults to http://localhost:{port}.
	BaseURL string

	// CacheMaxAge is the max-age (seconds) on served artifacts.
	CacheMaxAge int

	// DefaultContentType is used when no content type can be inferred.
	DefaultContentType string

	// CORS controls the permissive CORS headers (default on).
	CORS bool

	// MaxUploadBytes caps a single upload body; 0 means unlimited.
	MaxUploadBytes int64

	// RateLimitRPS/RateLimitBurst configure per-IP rate limiting;
	// RPS 0 disables it.
	RateLimitRPS   int
	RateLimitBurst int

	// Telemetry enables OTLP tracing and metrics export.
	Telemetry    bool
	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	baseURL := os.Getenv("DEPOT_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	defaultContentType := os.Getenv("DEPOT_DEFAULT_CONTENT_TYPE")
	if defaultContentType == "" {
		defaultContentType = "application/octet-stream"
	}

	return &Config{
		Port:               port,
		LogLevel:           logLevel,
		BaseURL:            baseURL,
		CacheMaxAge:        envInt("DEPOT_CACHE_MAX_AGE", 31536000),
		DefaultContentType: defaultContentType,
		CORS:               os.Getenv("DEPOT_CORS") != "false",
		MaxUploadBytes:     int64(envInt("DEPOT_MAX_UPLOAD_BYTES", 0)),
		RateLimitRPS:       envInt("DEPOT_RATE_LIMIT_RPS", 0),
		RateLimitBurst:     envInt("DEPOT_RATE_LIMIT_BURST", 20),
		Telemetry:          os.Getenv("DEPOT_TELEMETRY") == "true",
		OTLPEndpoint:       os.Getenv("OTLP_ENDPOINT"),
	}
}

// SlogLevel translates LogLevel into a slog.Level (default Info).
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
