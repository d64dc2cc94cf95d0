package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Mindburn-Labs/depot/pkg/cas"
)

// SQLAdapter stores artifacts in a relational database: one row per
// digest with the payload as a BLOB column and metadata alongside.
// It works against sqlite (lite mode) and postgres; the driver is
// registered by the caller (cmd imports it blank).
type SQLAdapter struct {
	db          *sql.DB
	placeholder func(n int) string
}

// NewSQLAdapter wraps db and creates the artifacts table if missing.
// driverName selects the placeholder dialect ("sqlite" or "postgres").
func NewSQLAdapter(ctx context.Context, db *sql.DB, driverName string) (*SQLAdapter, error) {
	a := &SQLAdapter{db: db}
	switch driverName {
	case "postgres":
		a.placeholder = func(n int) string { return fmt.Sprintf("$%d", n) }
	case "sqlite", "sqlite3":
		a.placeholder = func(int) string { return "?" }
	default:
		return nil, fmt.Errorf("unsupported sql driver: %s", driverName)
	}

	if err := a.migrate(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SQLAdapter) migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS artifacts (
        digest TEXT PRIMARY KEY,
        body BLOB NOT NULL,
        content_type TEXT NOT NULL DEFAULT '',
        filename TEXT NOT NULL DEFAULT '',
        size INTEGER NOT NULL,
        uploaded_at TEXT NOT NULL,
        custom_metadata TEXT NOT NULL DEFAULT '{}'
    );`
	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate artifacts table: %w", err)
	}
	return nil
}

// bind replaces the '?' placeholders in query with the dialect's
// positional form.
func (a *SQLAdapter) bind(query string) string {
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(a.placeholder(n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// Put upserts the row for digest. A repeat put of the same digest
// replaces the stored metadata (last-write-wins, matching the
// orchestrator's policy).
func (a *SQLAdapter) Put(ctx context.Context, digest cas.Digest, data []byte, meta Metadata) error {
	custom, err := json.Marshal(meta.Custom)
	if err != nil {
		return fmt.Errorf("failed to marshal custom metadata: %w", err)
	}

	query := a.bind(`
        INSERT INTO artifacts (digest, body, content_type, filename, size, uploaded_at, custom_metadata)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (digest) DO UPDATE SET
            content_type = excluded.content_type,
            filename = excluded.filename,
            size = excluded.size,
            uploaded_at = excluded.uploaded_at,
            custom_metadata = excluded.custom_metadata
    `)
	_, err = a.db.ExecContext(ctx, query,
		string(digest), data, meta.ContentType, meta.Filename,
		meta.Size, meta.UploadedAt.UTC().Format(time.RFC3339Nano), string(custom))
	if err != nil {
		return fmt.Errorf("sql put failed for %s: %w", digest, err)
	}
	return nil
}

// Get reads the full row; (nil, nil) when absent.
func (a *SQLAdapter) Get(ctx context.Context, digest cas.Digest) (*StoredArtifact, error) {
	query := a.bind(`
        SELECT body, content_type, filename, size, uploaded_at, custom_metadata
        FROM artifacts WHERE digest = ?
    `)

	var (
		body        []byte
		contentType string
		filename    string
		size        int64
		uploadedAt  string
		customJSON  string
	)
	err := a.db.QueryRowContext(ctx, query, string(digest)).
		Scan(&body, &contentType, &filename, &size, &uploadedAt, &customJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sql get failed for %s: %w", digest, err)
	}

	meta := Metadata{
		ContentType: contentType,
		Filename:    filename,
		Size:        size,
	}
	meta.UploadedAt, _ = time.Parse(time.RFC3339Nano, uploadedAt)
	if customJSON != "" && customJSON != "{}" {
		if err := json.Unmarshal([]byte(customJSON), &meta.Custom); err != nil {
			return nil, fmt.Errorf("corrupt custom metadata for %s: %w", digest, err)
		}
	}

	return &StoredArtifact{
		Digest:   digest,
		Body:     io.NopCloser(bytes.NewReader(body)),
		Size:     size,
		Metadata: meta,
	}, nil
}

// Delete removes the row, reporting whether it was present.
func (a *SQLAdapter) Delete(ctx context.Context, digest cas.Digest) (bool, error) {
	query := a.bind(`DELETE FROM artifacts WHERE digest = ?`)
	result, err := a.db.ExecContext(ctx, query, string(digest))
	if err != nil {
		return false, fmt.Errorf("sql delete failed for %s: %w", digest, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sql delete failed for %s: %w", digest, err)
	}
	return affected > 0, nil
}

// Exists probes the row without reading the body.
func (a *SQLAdapter) Exists(ctx context.Context, digest cas.Digest) (bool, error) {
	query := a.bind(`SELECT 1 FROM artifacts WHERE digest = ?`)
	var one int
	err := a.db.QueryRowContext(ctx, query, string(digest)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sql exists failed for %s: %w", digest, err)
	}
	return true, nil
}

// List pages in digest order with keyset pagination; the cursor is the
// last digest of the previous page.
func (a *SQLAdapter) List(ctx context.Context, opts ListOptions) ([]cas.Digest, string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := a.bind(`
        SELECT digest FROM artifacts
        WHERE digest > ?
        ORDER BY digest
        LIMIT ?
    `)
	rows, err := a.db.QueryContext(ctx, query, opts.Cursor, limit+1)
	if err != nil {
		return nil, "", fmt.Errorf("sql list failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var digests []cas.Digest
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, "", fmt.Errorf("sql list scan failed: %w", err)
		}
		digests = append(digests, cas.Digest(d))
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("sql list failed: %w", err)
	}

	next := ""
	if len(digests) > limit {
		digests = digests[:limit]
		next = string(digests[limit-1])
	}
	return digests, next, nil
}
