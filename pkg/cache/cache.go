// Package cache provides the byte cache used for fetched responses, with
// file, Redis and no-op backends.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by helpers that require an entry to exist.
var ErrNotFound = errors.New("cache: not found")

// Cache stores opaque byte payloads under string keys with an optional TTL.
// A miss is reported as (nil, false, nil); errors are reserved for backend
// failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}
