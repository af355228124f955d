package workflow

import (
	"context"
	"fmt"
)

// ObjectStore is the narrow interface a store_in_r2 step uploads through.
// The engine never implements object storage itself; callers supply one.
type ObjectStore interface {
	Upload(ctx context.Context, filePath, bucket, key string) (url string, err error)
}

// NopObjectStore rejects every upload, explaining that no store is wired.
// It's the Engine's default so a workflow author sees a clear configuration
// error instead of a silent no-op the first time they set store_in_r2.
type NopObjectStore struct{}

func (NopObjectStore) Upload(ctx context.Context, filePath, bucket, key string) (string, error) {
	return "", fmt.Errorf("workflow: store_in_r2 requested but no ObjectStore is configured")
}
