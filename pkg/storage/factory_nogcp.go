//go:build !gcp

package storage

import (
	"context"
	"fmt"
)

func newGCSAdapterFromEnv(ctx context.Context) (Adapter, error) {
	return nil, fmt.Errorf("GCS storage is not enabled in this build (use -tags gcp)")
}
