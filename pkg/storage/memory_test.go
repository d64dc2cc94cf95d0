package storage

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

func TestMemoryAdapter_RoundTrip(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	data := []byte("hello depot")
	digest := cas.Sum(data)
	meta := Metadata{
		ContentType: "text/plain",
		Filename:    "hello.txt",
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
		Custom:      map[string]string{"owner": "tests"},
	}

	if err := adapter.Put(ctx, digest, data, meta); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	artifact, err := adapter.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact == nil {
		t.Fatal("Expected artifact, got nil")
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != string(data) {
		t.Errorf("Expected body %q, got %q", data, body)
	}
	if artifact.Size != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), artifact.Size)
	}
	if artifact.Metadata.ContentType != "text/plain" {
		t.Errorf("Expected content type text/plain, got %s", artifact.Metadata.ContentType)
	}
	if artifact.Metadata.Custom["owner"] != "tests" {
		t.Errorf("Expected custom metadata to survive, got %v", artifact.Metadata.Custom)
	}
}

func TestMemoryAdapter_GetAbsent(t *testing.T) {
	adapter := NewMemoryAdapter()

	artifact, err := adapter.Get(context.Background(), cas.Sum([]byte("never stored")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected nil for absent digest, got %+v", artifact)
	}
}

func TestMemoryAdapter_Delete(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	data := []byte("delete me")
	digest := cas.Sum(data)
	if err := adapter.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	deleted, err := adapter.Delete(ctx, digest)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Expected first delete to report true")
	}

	deleted, err = adapter.Delete(ctx, digest)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if deleted {
		t.Error("Expected second delete to report false")
	}

	exists, err := adapter.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected digest to be gone after delete")
	}
}

func TestMemoryAdapter_PutCopiesData(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	data := []byte("original")
	digest := cas.Sum(data)
	if err := adapter.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the caller's slice must not affect the stored artifact.
	data[0] = 'X'

	artifact, err := adapter.Get(ctx, digest)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	body, _ := io.ReadAll(artifact.Body)
	_ = artifact.Body.Close()
	if string(body) != "original" {
		t.Errorf("Expected stored copy untouched, got %q", body)
	}
}

func TestMemoryAdapter_ListPagination(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	var stored []cas.Digest
	for i := 0; i < 5; i++ {
		data := []byte(fmt.Sprintf("entry-%d", i))
		d := cas.Sum(data)
		if err := adapter.Put(ctx, d, data, Metadata{Size: int64(len(data))}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		stored = append(stored, d)
	}

	var collected []cas.Digest
	cursor := ""
	for {
		page, next, err := adapter.List(ctx, ListOptions{Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		collected = append(collected, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	if len(collected) != len(stored) {
		t.Fatalf("Expected %d digests across pages, got %d", len(stored), len(collected))
	}
	for i := 1; i < len(collected); i++ {
		if collected[i-1] >= collected[i] {
			t.Errorf("Expected lexicographic order, got %s before %s", collected[i-1], collected[i])
		}
	}
}

func TestList_Unsupported(t *testing.T) {
	// Wrapping in a bare Adapter struct hides the List method, so the
	// helper's type assertion must fail cleanly.
	adapter := struct{ Adapter }{Adapter: NewMemoryAdapter()}

	_, _, err := List(context.Background(), adapter, ListOptions{})
	if err != ErrListingUnsupported {
		t.Fatalf("Expected ErrListingUnsupported, got %v", err)
	}
}
