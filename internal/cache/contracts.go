// Package cache defines the TTL key-value store the location layer is built
// on, with a Redis implementation for production and an in-memory one for
// tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a TTL-capable key-value store with set operations. Set mutations
// must be atomic; concurrent AddToSet/RemoveFromSet on one key must not lose
// updates.
type Store interface {
	// Set stores value under key with the given TTL, overwriting any
	// previous value and its TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value stored under key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Del removes key. Removing an absent key is not an error.
	Del(ctx context.Context, keys ...string) error

	// AddToSet adds members to the set at key and refreshes the set's TTL.
	AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error
	// RemoveFromSet removes members from the set at key. The set is deleted
	// once it becomes empty.
	RemoveFromSet(ctx context.Context, key string, members ...string) error
	// SetMembers returns the members of the set at key; empty when the set
	// is absent or expired.
	SetMembers(ctx context.Context, key string) ([]string, error)
}
