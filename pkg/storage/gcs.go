//go:build gcp

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// GCSAdapter stores artifacts in a Google Cloud Storage bucket. Objects
// are keyed {prefix}{digest}.blob with artifact metadata in object
// attributes.
type GCSAdapter struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig holds configuration for the GCS adapter.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// NewGCSAdapter creates a GCS-backed adapter using Application Default
// Credentials.
func NewGCSAdapter(ctx context.Context, cfg GCSConfig) (*GCSAdapter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSAdapter{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (g *GCSAdapter) objectPath(digest cas.Digest) string {
	return g.prefix + string(digest) + blobSuffix
}

// Put uploads the blob with metadata in the object attributes.
func (g *GCSAdapter) Put(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	obj := g.client.Bucket(g.bucket).Object(g.objectPath(digest))

	w := obj.NewWriter(ctx)
	w.ContentType = meta.ContentType
	if w.ContentType == "" {
		w.ContentType = "application/octet-stream"
	}
	w.Metadata = map[string]string{
		s3MetaUploadedAt: meta.UploadedAt.UTC().Format(time.RFC3339Nano),
	}
	if meta.Filename != "" {
		w.Metadata[s3MetaFilename] = meta.Filename
	}
	for k, v := range meta.Custom {
		w.Metadata[s3MetaCustom+k] = v
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed for %s: %w", digest, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed for %s: %w", digest, err)
	}
	return nil
}

// Get opens the object; the returned body streams directly from GCS.
func (g *GCSAdapter) Get(ctx context.Context, digest cas.Digest) (*StoredArtifact, error) {
	obj := g.client.Bucket(g.bucket).Object(g.objectPath(digest))

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("gcs attrs failed for %s: %w", digest, err)
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("gcs get failed for %s: %w", digest, err)
	}

	meta := Metadata{
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
	}
	for k, v := range attrs.Metadata {
		switch {
		case k == s3MetaFilename:
			meta.Filename = v
		case k == s3MetaUploadedAt:
			meta.UploadedAt, _ = time.Parse(time.RFC3339Nano, v)
		case strings.HasPrefix(k, s3MetaCustom):
			if meta.Custom == nil {
				meta.Custom = make(map[string]string)
			}
			meta.Custom[strings.TrimPrefix(k, s3MetaCustom)] = v
		}
	}

	return &StoredArtifact{
		Digest:   digest,
		Body:     reader,
		Size:     attrs.Size,
		Metadata: meta,
	}, nil
}

// Delete removes the object, reporting whether it was present.
func (g *GCSAdapter) Delete(ctx context.Context, digest cas.Digest) (bool, error) {
	obj := g.client.Bucket(g.bucket).Object(g.objectPath(digest))
	err := obj.Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs delete failed for %s: %w", digest, err)
	}
	return true, nil
}

// Exists probes object attributes without transferring the body.
func (g *GCSAdapter) Exists(ctx context.Context, digest cas.Digest) (bool, error) {
	obj := g.client.Bucket(g.bucket).Object(g.objectPath(digest))
	_, err := obj.Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("gcs attrs failed for %s: %w", digest, err)
}

// List pages through the bucket; the cursor is the last object name of
// the previous page.
func (g *GCSAdapter) List(ctx context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix:      g.prefix,
		StartOffset: opts.Cursor,
	})

	var digests []cas.Digest
	var last string
	for len(digests) < limit {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return digests, "", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("gcs list failed: %w", err)
		}
		if attrs.Name <= opts.Cursor {
			continue // StartOffset is inclusive
		}
		last = attrs.Name

		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Name, g.prefix), blobSuffix)
		d := cas.Digest(name)
		if d.Validate() != nil {
			continue
		}
		digests = append(digests, d)
	}
	return digests, last, nil
}

// Close closes the underlying GCS client.
func (g *GCSAdapter) Close() error {
	return g.client.Close()
}
