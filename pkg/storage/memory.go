package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// MemoryAdapter holds artifacts in an in-process map. It is
// non-persistent and intended for development and testing.
type MemoryAdapter struct {
	mu      sync.RWMutex
	entries map[cas.Digest]memoryEntry
}

type memoryEntry struct {
	data []byte
	meta Metadata
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{entries: make(map[cas.Digest]memoryEntry)}
}

// Put stores a copy of data so later caller mutations cannot corrupt
// the stored artifact.
func (m *MemoryAdapter) Put(_ context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[digest] = memoryEntry{data: dataCopy, meta: meta}
	return nil
}

// Get returns the artifact at digest, or (nil, nil) when absent.
func (m *MemoryAdapter) Get(_ context.Context, digest cas.Digest) (*StoredArtifact, error) {
	m.mu.RLock()
	entry, ok := m.entries[digest]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	dataCopy := make([]byte, len(entry.data))
	copy(dataCopy, entry.data)

	return &StoredArtifact{
		Digest:   digest,
		Body:     io.NopCloser(bytes.NewReader(dataCopy)),
		Size:     int64(len(dataCopy)),
		Metadata: entry.meta,
	}, nil
}

// Delete removes the artifact and reports whether it was present.
func (m *MemoryAdapter) Delete(_ context.Context, digest cas.Digest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[digest]; !ok {
		return false, nil
	}
	delete(m.entries, digest)
	return true, nil
}

// Exists checks for digest without touching the body.
func (m *MemoryAdapter) Exists(_ context.Context, digest cas.Digest) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[digest]
	return ok, nil
}

// List returns stored digests in lexicographic order. The cursor is the
// last digest of the previous page.
func (m *MemoryAdapter) List(_ context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	m.mu.RLock()
	all := make([]cas.Digest, 0, len(m.entries))
	for d := range m.entries {
		all = append(all, d)
	}
	m.mu.RUnlock()

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

// Len returns the number of stored artifacts (for tests).
func (m *MemoryAdapter) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// defaultListLimit bounds a listing page when the caller does not.
const defaultListLimit = 1000
