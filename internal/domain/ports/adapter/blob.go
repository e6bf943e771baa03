package adapter

import (
	"context"
	"time"
)

// BlobStore is the durable store for original uploads and generated report artifacts.
type BlobStore interface {
	Download(ctx context.Context, ref string) ([]byte, error)
	// Upload writes data under key and returns the stable reference to read it back.
	Upload(ctx context.Context, key string, data []byte, meta map[string]string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}
