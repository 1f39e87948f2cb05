package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ObjectStore is the narrow surface the execution context consumes
// for durable byte storage. Keys are bucket-relative; Put returns an
// addressable URL of the form s3://<bucket>/<key>.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Fetch materializes a stored object as a readable local path.
	// The ref may be a bare key or a s3://bucket/key URL.
	Fetch(ctx context.Context, ref string) (string, error)

	PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

// ResolutionError reports an artifact reference that could not be
// turned into retrievable content.
type ResolutionError struct {
	Ref   string
	Cause error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve artifact %q: %v", e.Ref, e.Cause)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// ParseRef splits a s3://bucket/key URL into its parts. A ref with no
// scheme is treated as a bare key with an empty bucket.
func ParseRef(ref string) (bucket, key string, err error) {
	if !strings.Contains(ref, "://") {
		return "", ref, nil
	}

	trimmed, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("unsupported artifact ref scheme: %s", ref)
	}

	bucket, key, ok = strings.Cut(trimmed, "/")
	if !ok || key == "" {
		return "", "", fmt.Errorf("artifact ref missing object key: %s", ref)
	}

	return bucket, key, nil
}
