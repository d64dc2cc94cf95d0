// Command depot runs the content-addressable artifact server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/api"
	"github.com/Mindburn-Labs/depot/pkg/config"
	"github.com/Mindburn-Labs/depot/pkg/depot"
	"github.com/Mindburn-Labs/depot/pkg/observability"
	"github.com/Mindburn-Labs/depot/pkg/storage"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver (lite mode)
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(out io.Writer) {
	_, _ = fmt.Fprintln(out, `Usage: depot [command]

Commands:
  serve    Start the artifact server (default)
  health   Check a running server
  help     Show this help

Configuration is environment-based; see pkg/config and
storage.NewAdapterFromEnv for the full variable list.`)
}

func runServer(stderr io.Writer) int {
	ctx := context.Background()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	adapter, err := storage.NewAdapterFromEnv(ctx, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to init storage: %v\n", err)
		return 1
	}

	store, err := depot.New(adapter, depot.Options{
		BaseURL:            cfg.BaseURL,
		DefaultContentType: cfg.DefaultContentType,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to init store: %v\n", err)
		return 1
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "depot",
		ServiceVersion: version,
		Environment:    envName(),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     1.0,
		Enabled:        cfg.Telemetry,
		Insecure:       true,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to init observability: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	var handler http.Handler = api.NewHandler(store, api.Config{
		CacheMaxAge:        cfg.CacheMaxAge,
		CORS:               cfg.CORS,
		DefaultContentType: cfg.DefaultContentType,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}, logger)

	if cfg.RateLimitRPS > 0 {
		handler = api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware(handler)
	}
	handler = api.Logging(logger)(handler)
	handler = api.RequestID(handler)
	handler = obs.Middleware(handler)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("depot ready", "addr", server.Addr, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		_, _ = fmt.Fprintf(stderr, "Server error: %v\n", err)
		return 1
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Shutdown error: %v\n", err)
		return 1
	}
	return 0
}

func runHealthCmd(out, errOut io.Writer) int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	resp, err := http.Get("http://localhost:" + port + "/health")
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = fmt.Fprintf(errOut, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

// version is stamped at build time via -ldflags.
var version = "dev"

func envName() string {
	if env := os.Getenv("DEPOT_ENV"); env != "" {
		return env
	}
	return "development"
}
