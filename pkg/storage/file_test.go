package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

func newTestFileAdapter(t *testing.T) *FileAdapter {
	t.Helper()
	adapter, err := NewFileAdapter(filepath.Join(t.TempDir(), "artifacts"))
	if err != nil {
		t.Fatalf("NewFileAdapter failed: %v", err)
	}
	return adapter
}

func TestFileAdapter_RoundTrip(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()

	data := []byte("persisted blob")
	digest := cas.Sum(data)
	meta := Metadata{
		ContentType: "application/pdf",
		Filename:    "report.pdf",
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC().Truncate(time.Second),
		Custom:      map[string]string{"project": "atlas"},
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

	body, err := io.ReadAll(artifact.Body)
	_ = artifact.Body.Close()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != string(data) {
		t.Errorf("Expected body %q, got %q", data, body)
	}
	if artifact.Metadata.Filename != "report.pdf" {
		t.Errorf("Expected filename from sidecar, got %q", artifact.Metadata.Filename)
	}
	if artifact.Metadata.Custom["project"] != "atlas" {
		t.Errorf("Expected custom metadata from sidecar, got %v", artifact.Metadata.Custom)
	}
}

func TestFileAdapter_GetAbsent(t *testing.T) {
	adapter := newTestFileAdapter(t)

	artifact, err := adapter.Get(context.Background(), cas.Sum([]byte("missing")))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if artifact != nil {
		t.Errorf("Expected nil for absent digest, got %+v", artifact)
	}
}

func TestFileAdapter_DeleteRemovesBothFiles(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()

	data := []byte("two files")
	digest := cas.Sum(data)
	if err := adapter.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	deleted, err := adapter.Delete(ctx, digest)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Expected delete to report true")
	}

	if _, err := os.Stat(adapter.blobPath(digest)); !os.IsNotExist(err) {
		t.Error("Expected blob file removed")
	}
	if _, err := os.Stat(adapter.metaPath(digest)); !os.IsNotExist(err) {
		t.Error("Expected metadata sidecar removed")
	}

	deleted, err = adapter.Delete(ctx, digest)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if deleted {
		t.Error("Expected second delete to report false")
	}
}

func TestFileAdapter_Exists(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()

	data := []byte("exists check")
	digest := cas.Sum(data)

	exists, err := adapter.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected absent before put")
	}

	if err := adapter.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err = adapter.Exists(ctx, digest)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected present after put")
	}
}

func TestFileAdapter_ListSkipsStrayFiles(t *testing.T) {
	adapter := newTestFileAdapter(t)
	ctx := context.Background()

	data := []byte("real artifact")
	digest := cas.Sum(data)
	if err := adapter.Put(ctx, digest, data, Metadata{Size: int64(len(data))}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Files that are not valid digest blobs must not show up in listings.
	stray := filepath.Join(adapter.baseDir, "notes.txt")
	if err := os.WriteFile(stray, []byte("scratch"), 0o640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	badName := filepath.Join(adapter.baseDir, "not-a-digest"+blobSuffix)
	if err := os.WriteFile(badName, []byte("junk"), 0o640); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	digests, next, err := adapter.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if next != "" {
		t.Errorf("Expected exhausted listing, got cursor %q", next)
	}
	if len(digests) != 1 || digests[0] != digest {
		t.Errorf("Expected single digest %s, got %v", digest, digests)
	}
}
