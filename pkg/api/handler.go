// Package api maps the depot store onto its HTTP wire contract:
// PUT /artifact, GET and DELETE /a/{digest}, CORS, and immutable-cache
// response headers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Mindburn-Labs/depot/pkg/cas"
	"github.com/Mindburn-Labs/depot/pkg/depot"
	"github.com/Mindburn-Labs/depot/pkg/mimetype"
)

// Config holds the protocol-level settings. All fields are fixed for
// the handler's lifetime.
type Config struct {
	// CacheMaxAge is the max-age (seconds) on served artifacts.
	// Digest-addressed content never changes, so the default is one
	// year with the immutable directive.
	CacheMaxAge int
	// CORS attaches permissive CORS headers to every response and
	// answers preflight. Enabled by default.
	CORS bool
	// DefaultContentType is served when the stored artifact carries no
	// content type.
	DefaultContentType string
	// MaxUploadBytes caps a single upload body; 0 means unlimited.
	MaxUploadBytes int64
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		CacheMaxAge:        31536000, // one year
		CORS:               true,
		DefaultContentType: mimetype.DefaultContentType,
	}
}

// Handler routes HTTP requests to the artifact store. It is stateless
// per request.
type Handler struct {
	store  *depot.Store
	cfg    Config
	logger *slog.Logger
}

// customMetaPrefix marks upload headers carried into an artifact's
// custom metadata: X-Meta-Foo: bar stores {"foo": "bar"}.
const customMetaPrefix = "X-Meta-"

// NewHandler creates the artifact HTTP handler.
func NewHandler(store *depot.Store, cfg Config, logger *slog.Logger) *Handler {
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = mimetype.DefaultContentType
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = DefaultConfig().CacheMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, cfg: cfg, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.CORS {
		writeCORSHeaders(w)
	}

	// Preflight is answered for any path.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/artifact":
		h.handleUpload(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/a/"):
		h.handleRetrieve(w, r)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/a/"):
		h.handleDelete(w, r)
	default:
		// Malformed or unknown routes fail closed.
		writeNotFound(w)
	}
}

func writeCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Filename")
	h.Set("Access-Control-Max-Age", "86400")
}

// handleUpload reads the full request body and stores it by digest.
// The filename comes from the "filename" query parameter or the
// X-Filename header; X-Meta-* headers become custom metadata.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.cfg.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if h.cfg.MaxUploadBytes > 0 && errors.As(err, &maxErr) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.cfg.MaxUploadBytes))
			return
		}
		writeErrorJSON(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = r.Header.Get("X-Filename")
	}

	opts := &depot.PutOptions{
		ContentType: r.Header.Get("Content-Type"),
		Filename:    filename,
		Custom:      customMetadataFromHeaders(r.Header),
	}

	result, err := h.store.Put(r.Context(), data, opts)
	if err != nil {
		h.logger.Error("upload failed", "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("artifact stored",
		"digest", result.Hash, "size", result.Metadata.Size, "created", result.Created)
	writeJSON(w, http.StatusOK, result)
}

// handleRetrieve serves an artifact body with immutable cache headers.
// The path segment's extension is cosmetic and stripped before lookup.
func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	digest, ok := h.digestFromPath(w, r)
	if !ok {
		return
	}

	artifact, err := h.store.Get(r.Context(), digest)
	if err != nil {
		h.logger.Error("retrieve failed", "digest", digest, "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if artifact == nil {
		writeNotFound(w)
		return
	}
	defer func() { _ = artifact.Body.Close() }()

	etag := fmt.Sprintf("%q", digest)

	// The content behind a digest can never change, so a matching ETag
	// is always still valid. The 304 carries the same ETag the 200
	// would have (RFC 9110).
	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	contentType := artifact.Metadata.ContentType
	if contentType == "" {
		contentType = h.cfg.DefaultContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control",
		fmt.Sprintf("public, max-age=%d, immutable", h.cfg.CacheMaxAge))
	w.Header().Set("ETag", etag)
	if artifact.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}

	// Stream the body through; adapter bodies may be lazy (e.g. S3).
	if _, err := io.Copy(w, artifact.Body); err != nil {
		h.logger.Error("failed to write artifact body", "digest", digest, "error", err)
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	digest, ok := h.digestFromPath(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.Delete(r.Context(), digest)
	if err != nil {
		h.logger.Error("delete failed", "digest", digest, "error", err)
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		writeNotFound(w)
		return
	}

	h.logger.Info("artifact deleted", "digest", digest)
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": true,
		"hash":    digest,
	})
}

// digestFromPath extracts the digest from /a/{digest[.ext]}, answering
// 404 itself when the segment is not a plausible digest.
func (h *Handler) digestFromPath(w http.ResponseWriter, r *http.Request) (cas.Digest, bool) {
	segment := strings.TrimPrefix(r.URL.Path, "/a/")
	if segment == "" || strings.Contains(segment, "/") {
		writeNotFound(w)
		return "", false
	}

	digest, err := cas.ParsePath(segment)
	if err != nil {
		writeNotFound(w)
		return "", false
	}
	return digest, true
}

func customMetadataFromHeaders(headers http.Header) map[string]string {
	var custom map[string]string
	for name, values := range headers {
		if !strings.HasPrefix(name, customMetaPrefix) || len(values) == 0 {
			continue
		}
		if custom == nil {
			custom = make(map[string]string)
		}
		key := strings.ToLower(strings.TrimPrefix(name, customMetaPrefix))
		custom[key] = values[0]
	}
	return custom
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorJSON writes the JSON error body used for all non-404
// failures. The message is human-readable; internals (stack traces,
// backend details) never leak beyond it.
func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeNotFound writes the plain-text 404 used for absent artifacts and
// unrecognized routes alike.
func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not found"))
}
