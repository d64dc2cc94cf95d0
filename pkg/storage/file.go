package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// FileAdapter stores artifacts on the local filesystem: one
// {digest}.blob file per payload plus a {digest}.json metadata sidecar.
type FileAdapter struct {
	baseDir string
}

const (
	blobSuffix = ".blob"
	metaSuffix = ".json"
)

// NewFileAdapter creates a filesystem adapter rooted at baseDir,
// creating the directory if needed.
func NewFileAdapter(baseDir string) (*FileAdapter, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to ensure artifact dir: %w", err)
	}
	return &FileAdapter{baseDir: baseDir}, nil
}

func (f *FileAdapter) blobPath(digest cas.Digest) string {
	return filepath.Join(f.baseDir, string(digest)+blobSuffix)
}

func (f *FileAdapter) metaPath(digest cas.Digest) string {
	return filepath.Join(f.baseDir, string(digest)+metaSuffix)
}

// Put writes the blob and its metadata sidecar. Both are written to a
// temp file first and renamed into place so readers never observe a
// partial artifact.
func (f *FileAdapter) Put(_ context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	if err := writeAtomic(f.blobPath(digest), data); err != nil {
		return fmt.Errorf("failed to write blob: %w", err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := writeAtomic(f.metaPath(digest), metaBytes); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Get opens the blob as a stream; the file is not read into memory.
// Returns (nil, nil) when the digest is absent.
func (f *FileAdapter) Get(_ context.Context, digest cas.Digest) (*StoredArtifact, error) {
	blob, err := os.Open(f.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	info, err := blob.Stat()
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	var meta Metadata
	metaBytes, err := os.ReadFile(f.metaPath(digest))
	if err == nil {
		if err := json.Unmarshal(metaBytes, &meta); err != nil {
			_ = blob.Close()
			return nil, fmt.Errorf("corrupt metadata for %s: %w", digest, err)
		}
	} else if !os.IsNotExist(err) {
		_ = blob.Close()
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	return &StoredArtifact{
		Digest:   digest,
		Body:     blob,
		Size:     info.Size(),
		Metadata: meta,
	}, nil
}

// Delete removes the blob and its sidecar, reporting whether the blob
// was present.
func (f *FileAdapter) Delete(_ context.Context, digest cas.Digest) (bool, error) {
	err := os.Remove(f.blobPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete blob: %w", err)
	}
	if err := os.Remove(f.metaPath(digest)); err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("failed to delete metadata: %w", err)
	}
	return true, nil
}

// Exists checks for the blob file without opening it.
func (f *FileAdapter) Exists(_ context.Context, digest cas.Digest) (bool, error) {
	_, err := os.Stat(f.blobPath(digest))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat blob: %w", err)
}

// List enumerates blob files in lexicographic (digest) order.
func (f *FileAdapter) List(_ context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact dir: %w", err)
	}

	var all []cas.Digest
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, blobSuffix) {
			continue
		}
		d := cas.Digest(strings.TrimSuffix(name, blobSuffix))
		if d.Validate() != nil {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	start := 0
	if opts.Cursor != "" {
		start = sort.Search(len(all), func(i int) bool { return string(all[i]) > opts.Cursor })
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}

	page := all[start:end]
	next := ""
	if end < len(all) && len(page) > 0 {
		next = string(page[len(page)-1])
	}
	return page, next, nil
}
