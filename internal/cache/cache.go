// Package cache provides the content-addressed store used for embedding
// caching. Failures of any Store implementation are treated as misses by
// callers, never as pipeline failures.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss indicates the key is not present (or expired).
var ErrMiss = errors.New("cache miss")

// Store is a minimal expiring key/value store.
type Store interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
