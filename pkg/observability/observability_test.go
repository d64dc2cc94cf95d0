package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNew_DisabledIsInert(t *testing.T) {
	ctx := context.Background()
	provider, err := New(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Every recording method must be a safe no-op.
	provider.RecordRequest(ctx, attribute.String("method", "GET"))
	provider.RecordError(ctx)
	provider.RecordDuration(ctx, 5*time.Millisecond)

	if provider.Tracer() == nil {
		t.Error("Expected a usable tracer even when disabled")
	}
	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

// failingExporter refuses to flush, to exercise shutdown error
// propagation.
type failingExporter struct{}

func (failingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error {
	return nil
}

func (failingExporter) Shutdown(context.Context) error {
	return errors.New("flush failed")
}

func TestShutdown_ReturnsProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider, err := New(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	provider.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(failingExporter{}),
	)

	err = provider.Shutdown(ctx)
	if err == nil {
		t.Fatal("Expected shutdown to surface the exporter failure")
	}
	if !strings.Contains(err.Error(), "trace provider shutdown") {
		t.Errorf("Expected trace provider shutdown error, got: %v", err)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	provider, err := New(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	handler := provider.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/a/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected handler status to pass through, got %d", rec.Code)
	}
}
