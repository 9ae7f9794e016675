package providers

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider stores serialized segmentation results by input fingerprint
type CacheProvider interface {
	// Get retrieves a value, or ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; ttl <= 0 keeps it until evicted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value, e.g. one that no longer decodes
	Delete(ctx context.Context, key string) error
}
