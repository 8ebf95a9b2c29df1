// Package cache defines the key/value contract behind the gallery's read
// path. Values are opaque byte slices; callers own their encoding.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a key that was never set, was deleted or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a TTL key/value store shared by every service instance.
//
// Implementations must treat Delete of a missing key as success, and must
// not return a value past its TTL. A zero TTL means the entry does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
