package cache

import (
	"context"
	"errors"
	"time"
)

// ErrPrefixUnsupported is returned when a store cannot purge by prefix
var ErrPrefixUnsupported = errors.New("store does not support prefix removal")

// Store is a key/value cache with per-entry TTL. A miss is (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// PrefixRemover is implemented by stores that can purge every key with a prefix
type PrefixRemover interface {
	RemovePrefix(ctx context.Context, prefix string) (int, error)
}

// NoopStore never holds anything
type NoopStore struct{}

// Get always misses
func (NoopStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Put discards the value
func (NoopStore) Put(context.Context, string, []byte, time.Duration) error { return nil }

// Remove does nothing
func (NoopStore) Remove(context.Context, string) error { return nil }

// RemovePrefix does nothing
func (NoopStore) RemovePrefix(context.Context, string) (int, error) { return 0, nil }
