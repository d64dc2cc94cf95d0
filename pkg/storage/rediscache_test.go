package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// The cache must degrade to a pass-through when redis is unreachable,
// so these tests point the client at a port nothing listens on.
func newUnreachableCache(t *testing.T, inner Adapter) Adapter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisCache(inner, RedisCacheConfig{Addr: "127.0.0.1:1"}, logger)
}

func TestRedisCache_FallsThroughOnFailure(t *testing.T) {
	inner := NewMemoryAdapter()
	cache := newUnreachableCache(t, inner)
	ctx := context.Background()

	data := []byte("cached or not")
	digest := cas.Sum(data)
	meta := Metadata{ContentType: "text/plain", Size: int64(len(data)), UploadedAt: time.Now().UTC()}

	if err := cache.Put(ctx, digest, data, meta); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	artifact, err := cache.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact == nil {
		t.Fatal("Expected artifact from inner adapter, got nil")
	}
	body, _ := io.ReadAll(artifact.Body)
	_ = artifact.Body.Close()
	if string(body) != string(data) {
		t.Errorf("Expected body %q, got %q", data, body)
	}

	exists, err := cache.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected exists via inner adapter")
	}

	deleted, err := cache.Delete(ctx, digest)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Expected delete to report true")
	}
	if inner.Len() != 0 {
		t.Errorf("Expected inner adapter empty after delete, got %d entries", inner.Len())
	}
}

func TestRedisCache_GetAbsent(t *testing.T) {
	cache := newUnreachableCache(t, NewMemoryAdapter())

	artifact, err := cache.Get(context.Background(), cas.Sum([]byte("missing")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected nil for absent digest, got %+v", artifact)
	}
}

func TestNewRedisCache_PreservesListing(t *testing.T) {
	// Memory supports listing, so the cached form must too.
	cache := newUnreachableCache(t, NewMemoryAdapter())
	if _, ok := cache.(Lister); !ok {
		t.Error("Expected cache over a listing adapter to support listing")
	}

	// A bare Adapter does not, so neither must its cached form.
	bare := struct{ Adapter }{Adapter: NewMemoryAdapter()}
	cache = newUnreachableCache(t, bare)
	if _, ok := cache.(Lister); ok {
		t.Error("Expected cache over a non-listing adapter to hide listing")
	}
}

func TestRedisCache_ListDelegatesToInner(t *testing.T) {
	inner := NewMemoryAdapter()
	cache := newUnreachableCache(t, inner)
	ctx := context.Background()

	data := []byte("listable")
	digest := cas.Sum(data)
	if err := cache.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	digests, next, err := List(ctx, cache, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if next != "" {
		t.Errorf("Expected exhausted listing, got cursor %q", next)
	}
	if len(digests) != 1 || digests[0] != digest {
		t.Errorf("Expected [%s], got %v", digest, digests)
	}
}
