// Package storage defines the pluggable backend contract for the depot
// and its adapter implementations (memory, filesystem, SQL, S3, GCS,
// plus a redis read-through cache).
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// ErrListingUnsupported is returned when List is invoked against an
// adapter that does not implement the Lister capability. It is a
// distinct failure rather than an empty result, so callers can tell
// "cannot list" apart from "nothing stored".
var ErrListingUnsupported = errors.New("storage: adapter does not support listing")

// Metadata describes one stored artifact. Size is always set by the
// orchestrator from the actual payload length, never trusted from
// caller input.
type Metadata struct {
	ContentType string            `json:"contentType,omitempty"`
	Filename    string            `json:"filename,omitempty"`
	Size        int64             `json:"size"`
	UploadedAt  time.Time         `json:"uploadedAt"`
	Custom      map[string]string `json:"customMetadata,omitempty"`
}

// StoredArtifact is the result of a read: the digest, the payload body,
// and the metadata recorded at store time. Body may be a lazy,
// single-pass stream (e.g. an S3 object body); the caller must close it.
type StoredArtifact struct {
	Digest   cas.Digest
	Body     io.ReadCloser
	Size     int64
	Metadata Metadata
}

// Adapter is the durable key/value contract backends must satisfy.
// Keys are content digests; one digest maps to at most one payload.
// All methods may block on I/O and must be safe for concurrent use.
type Adapter interface {
	// Put writes content and metadata at digest. It must be safe to
	// call when digest already exists; overwrite semantics are the
	// adapter's choice since identical digests imply identical bytes.
	Put(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) error

	// Get returns the artifact at digest, or (nil, nil) when absent.
	// Absence is not an error.
	Get(ctx context.Context, digest cas.Digest) (*StoredArtifact, error)

	// Delete removes the artifact at digest and reports whether
	// anything was actually deleted. Absence is not an error.
	Delete(ctx context.Context, digest cas.Digest) (bool, error)

	// Exists checks for the digest without transferring the body.
	Exists(ctx context.Context, digest cas.Digest) (bool, error)
}

// ListOptions bounds a listing page.
type ListOptions struct {
	// Limit caps the number of digests returned; 0 means the adapter's
	// default page size.
	Limit int
	// Cursor resumes a previous listing; "" starts from the beginning.
	Cursor string
}

// Lister is the optional listing capability. Adapters that can
// enumerate their contents implement it alongside Adapter; its absence
// is detectable at the type level rather than by a nil method.
type Lister interface {
	// List returns a page of stored digests and the cursor for the
	// next page ("" when exhausted).
	List(ctx context.Context, opts ListOptions) ([]cas.Digest, string, error)
}

// List enumerates digests through a, or fails with
// ErrListingUnsupported when a is not a Lister.
func List(ctx context.Context, a Adapter, opts ListOptions) ([]cas.Digest, string, error) {
	lister, ok := a.(Lister)
	if !ok {
		return nil, "", ErrListingUnsupported
	}
	return lister.List(ctx, opts)
}
