//go:build gcp

package storage

import (
	"context"
	"fmt"
	"os"
)

func newGCSAdapterFromEnv(ctx context.Context) (Adapter, error) {
	bucket := os.Getenv("DEPOT_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("DEPOT_GCS_BUCKET is required for GCS storage")
	}

	return NewGCSAdapter(ctx, GCSConfig{
		Bucket: bucket,
		Prefix: os.Getenv("DEPOT_GCS_PREFIX"),
	})
}
