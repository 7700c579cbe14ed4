// Package cache provides the byte-level cache backends behind the fetch
// layer. Release-index and installer-manifest responses are cached here so
// repeated resolutions work offline within the TTL window.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long fetched release metadata stays fresh. Release
// indexes change at most a few times a month; a short TTL keeps "latest"
// honest without hammering the CDN.
const DefaultTTL = 6 * time.Hour

// Cache is the interface for cache backends.
//
// Implementations must treat Get misses as (nil, false, nil), reserving the
// error return for real storage failures.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
