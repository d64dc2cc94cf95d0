// Package depot implements the content-addressable artifact store: the
// deterministic bytes→digest mapping, the idempotent store-or-skip
// decision, and URL assembly, on top of a pluggable storage adapter.
package depot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
	"github.com/Mindburn-Labs/depot/pkg/mimetype"
	"github.com/Mindburn-Labs/depot/pkg/storage"
)

// Options configures a Store. All fields are fixed for the Store's
// lifetime.
type Options struct {
	// BaseURL is the public prefix for artifact URLs (required). A
	// trailing slash is stripped.
	BaseURL string
	// DefaultContentType is used when neither an explicit content type
	// nor a recognizable filename extension is supplied. Defaults to
	// application/octet-stream.
	DefaultContentType string
}

// Store orchestrates hashing, content-type resolution, and the storage
// adapter. It holds no per-request state and is safe for concurrent use.
type Store struct {
	adapter            storage.Adapter
	baseURL            string
	defaultContentType string
	now                func() time.Time
}

// New creates a Store over adapter.
func New(adapter storage.Adapter, opts Options) (*Store, error) {
	if adapter == nil {
		return nil, fmt.Errorf("depot: storage adapter is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("depot: base URL is required")
	}
	if opts.DefaultContentType == "" {
		opts.DefaultContentType = mimetype.DefaultContentType
	}

	return &Store{
		adapter:            adapter,
		baseURL:            strings.TrimRight(opts.BaseURL, "/"),
		defaultContentType: opts.DefaultContentType,
		now:                time.Now,
	}, nil
}

// PutOptions carries caller-supplied upload hints. None of them
// influence addressing; the digest depends on payload bytes only.
type PutOptions struct {
	// ContentType, when set, wins over filename-based inference.
	ContentType string
	// Filename is kept for display and extension derivation only.
	Filename string
	// Custom is an opaque caller-supplied map stored alongside.
	Custom map[string]string
}

// UploadResult is returned by Put.
type UploadResult struct {
	Hash     cas.Digest       `json:"hash"`
	URL      string           `json:"url"`
	Created  bool             `json:"created"`
	Metadata storage.Metadata `json:"metadata"`
}

// Put stores data under its content digest. It is idempotent: repeat
// uploads of identical bytes yield the identical digest, and Created is
// true only when the digest was absent before this call.
//
// The adapter write happens unconditionally, so a repeat upload
// refreshes stored metadata (last-write-wins, notably UploadedAt).
// Two concurrent first uploads of the same bytes may both observe
// Created=true; the stored content converges regardless since both
// write the same digest and bytes.
func (s *Store) Put(ctx context.Context, data []byte, opts *PutOptions) (*UploadResult, error) {
	if opts == nil {
		opts = &PutOptions{}
	}

	digest := cas.Sum(data)

	existedBefore, err := s.adapter.Exists(ctx, digest)
	if err != nil {
		return nil, fmt.Errorf("existence check failed for %s: %w", digest, err)
	}

	contentType := opts.ContentType
	if contentType == "" && opts.Filename != "" {
		contentType = mimetype.Resolve(opts.Filename, s.defaultContentType)
	}
	if contentType == "" {
		contentType = s.defaultContentType
	}

	meta := storage.Metadata{
		ContentType: contentType,
		Filename:    opts.Filename,
		Size:        int64(len(data)),
		UploadedAt:  s.now().UTC(),
		Custom:      opts.Custom,
	}

	if err := s.adapter.Put(ctx, digest, data, meta); err != nil {
		return nil, fmt.Errorf("store failed for %s: %w", digest, err)
	}

	return &UploadResult{
		Hash:     digest,
		URL:      s.artifactURL(digest, opts.Filename),
		Created:  !existedBefore,
		Metadata: meta,
	}, nil
}

// artifactURL builds {baseURL}/a/{digest}, decorated with the
// filename's extension when one exists. The extension is cosmetic;
// readers strip it before lookup.
func (s *Store) artifactURL(digest cas.Digest, filename string) string {
	url := s.baseURL + "/a/" + string(digest)
	if ext := mimetype.Extension(filename); ext != "" {
		url += "." + ext
	}
	return url
}

// Get returns the artifact at digest, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, digest cas.Digest) (*storage.StoredArtifact, error) {
	return s.adapter.Get(ctx, digest)
}

// Delete removes the artifact, reporting whether it was present. The
// digest becomes available for a fresh first-write afterwards.
func (s *Store) Delete(ctx context.Context, digest cas.Digest) (bool, error) {
	return s.adapter.Delete(ctx, digest)
}

// Exists checks for the digest without transferring the body.
func (s *Store) Exists(ctx context.Context, digest cas.Digest) (bool, error) {
	return s.adapter.Exists(ctx, digest)
}

// List enumerates stored digests; fails with
// storage.ErrListingUnsupported when the adapter cannot list.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]cas.Digest, string, error) {
	return storage.List(ctx, s.adapter, opts)
}
