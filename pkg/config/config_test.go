package config

import (
	"log/slog"
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DEPOT_BASE_URL", "DEPOT_CACHE_MAX_AGE",
		"DEPOT_CORS", "DEPOT_MAX_UPLOAD_BYTES", "DEPOT_RATE_LIMIT_RPS",
		"DEPOT_TELEMETRY",
	} {
		_ = os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("Expected base URL derived from port, got %s", cfg.BaseURL)
	}
	if cfg.CacheMaxAge != 31536000 {
		t.Errorf("Expected one-year cache max-age, got %d", cfg.CacheMaxAge)
	}
	if !cfg.CORS {
		t.Error("Expected CORS enabled by default")
	}
	if cfg.RateLimitRPS != 0 {
		t.Errorf("Expected rate limiting off by default, got %d", cfg.RateLimitRPS)
	}
	if cfg.Telemetry {
		t.Error("Expected telemetry off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	_ = os.Setenv("PORT", "9090")
	_ = os.Setenv("DEPOT_BASE_URL", "https://cdn.example.com")
	_ = os.Setenv("DEPOT_CACHE_MAX_AGE", "3600")
	_ = os.Setenv("DEPOT_CORS", "false")
	_ = os.Setenv("DEPOT_MAX_UPLOAD_BYTES", "1048576")
	defer func() {
		for _, key := range []string{
			"PORT", "DEPOT_BASE_URL", "DEPOT_CACHE_MAX_AGE",
			"DEPOT_CORS", "DEPOT_MAX_UPLOAD_BYTES",
		} {
			_ = os.Unsetenv(key)
		}
	}()

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.BaseURL != "https://cdn.example.com" {
		t.Errorf("Expected explicit base URL, got %s", cfg.BaseURL)
	}
	if cfg.CacheMaxAge != 3600 {
		t.Errorf("Expected cache max-age 3600, got %d", cfg.CacheMaxAge)
	}
	if cfg.CORS {
		t.Error("Expected CORS disabled")
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Errorf("Expected upload cap 1048576, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	_ = os.Setenv("DEPOT_CACHE_MAX_AGE", "not-a-number")
	defer func() { _ = os.Unsetenv("DEPOT_CACHE_MAX_AGE") }()

	cfg := Load()
	if cfg.CacheMaxAge != 31536000 {
		t.Errorf("Expected fallback on bad int, got %d", cfg.CacheMaxAge)
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"unknown": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for raw, expected := range cases {
		cfg := &Config{LogLevel: raw}
		if got := cfg.SlogLevel(); got != expected {
			t.Errorf("SlogLevel(%q): expected %v, got %v", raw, expected, got)
		}
	}
}
