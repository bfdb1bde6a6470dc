// Package cache provides response caching for the HTTP clients used during
// metadata resolution.
//
// Two implementations are provided:
//   - FileCache: stores entries under the user cache directory for reuse
//     across runs
//   - NullCache: discards everything, used by --refresh and in tests
//
// Cached data only ever holds registry and repository metadata; the manifest
// itself is always recomputed from the lockfile, so a stale cache can never
// change what a given lock produces once the cached metadata is re-fetched.
package cache

import (
	"context"
	"time"
)

// Cache stores raw response bytes keyed by string.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means the entry
	// never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
