package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ObjectStorage defines the interface for object storage operations.
// Buckets are passed per call: one bucket holds originals (thumbnails are
// path-prefixed within it) and each quality tier may map to its own bucket.
type ObjectStorage interface {
	// Put streams an object of known size into the given bucket.
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error

	// Get returns the object's byte stream. The caller closes it.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// PresignedGetURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider.
	PresignedGetURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// StorageError wraps failures talking to the object store so callers can
// distinguish them from validation or persistence failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
