package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// AdapterType selects the storage backend.
type AdapterType string

const (
	AdapterTypeMemory   AdapterType = "memory"
	AdapterTypeFS       AdapterType = "fs"
	AdapterTypeS3       AdapterType = "s3"
	AdapterTypeGCS      AdapterType = "gcs"
	AdapterTypeSQLite   AdapterType = "sqlite"
	AdapterTypePostgres AdapterType = "postgres"
)

// NewAdapterFromEnv creates a storage adapter based on environment
// variables.
//
// Environment variables:
//   - DEPOT_STORAGE: "fs" (default), "memory", "s3", "gcs", "sqlite",
//     or "postgres"
//   - DATA_DIR: base directory for fs and sqlite (default: "data")
//
// For S3:
//   - DEPOT_S3_BUCKET (required)
//   - DEPOT_S3_REGION or AWS_REGION
//   - DEPOT_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - DEPOT_S3_PREFIX (optional)
//
// For GCS (requires -tags gcp):
//   - DEPOT_GCS_BUCKET (required)
//   - DEPOT_GCS_PREFIX (optional)
//
// For postgres:
//   - DATABASE_URL (required)
//
// When DEPOT_REDIS_ADDR is set, the adapter is wrapped in a redis
// read-through cache (DEPOT_REDIS_PASSWORD, DEPOT_REDIS_DB,
// DEPOT_REDIS_TTL_SECONDS optional).
func NewAdapterFromEnv(ctx context.Context, logger *slog.Logger) (Adapter, error) {
	adapterType := AdapterType(os.Getenv("DEPOT_STORAGE"))
	if adapterType == "" {
		adapterType = AdapterTypeFS
	}

	var (
		adapter Adapter
		err     error
	)
	switch adapterType {
	case AdapterTypeMemory:
		adapter = NewMemoryAdapter()
	case AdapterTypeFS:
		adapter, err = NewFileAdapter(filepath.Join(dataDir(), "artifacts"))
	case AdapterTypeS3:
		adapter, err = newS3AdapterFromEnv(ctx)
	case AdapterTypeGCS:
		adapter, err = newGCSAdapterFromEnv(ctx)
	case AdapterTypeSQLite:
		adapter, err = newSQLiteAdapterFromEnv(ctx)
	case AdapterTypePostgres:
		adapter, err = newPostgresAdapterFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported storage adapter type: %s", adapterType)
	}
	if err != nil {
		return nil, err
	}

	if addr := os.Getenv("DEPOT_REDIS_ADDR"); addr != "" {
		db, _ := strconv.Atoi(os.Getenv("DEPOT_REDIS_DB"))
		ttl := time.Duration(0)
		if secs, convErr := strconv.Atoi(os.Getenv("DEPOT_REDIS_TTL_SECONDS")); convErr == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
		adapter = NewRedisCache(adapter, RedisCacheConfig{
			Addr:     addr,
			Password: os.Getenv("DEPOT_REDIS_PASSWORD"),
			DB:       db,
			TTL:      ttl,
		}, logger)
		logger.Info("redis cache enabled", "addr", addr)
	}

	return adapter, nil
}

func dataDir() string {
	dir := os.Getenv("DATA_DIR")
	if dir == "" {
		dir = "data"
	}
	return dir
}

func newS3AdapterFromEnv(ctx context.Context) (Adapter, error) {
	bucket := os.Getenv("DEPOT_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("DEPOT_S3_BUCKET is required for S3 storage")
	}

	region := os.Getenv("DEPOT_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Adapter(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("DEPOT_S3_ENDPOINT"),
		Prefix:   os.Getenv("DEPOT_S3_PREFIX"),
	})
}

func newSQLiteAdapterFromEnv(ctx context.Context) (Adapter, error) {
	dir := dataDir()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "depot.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return NewSQLAdapter(ctx, db, "sqlite")
}

func newPostgresAdapterFromEnv(ctx context.Context) (Adapter, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for postgres storage")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return NewSQLAdapter(ctx, db, "postgres")
}
