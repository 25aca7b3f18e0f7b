// Package kvstore provides durable key-value storage with optional TTL.
//
// The kvstore package follows the kit conventions:
// - Interface-driven design for testability
// - Uses logger.Logger interface for unified logging
// - Configuration with validation and defaults
// - Structured error handling
//
// Available implementations:
// - Memory: in-process map, lost on restart (tests, fallbacks)
// - Redis: backed by a Redis server
// - SQLite: backed by a local SQLite database file
//
// Expired entries are deleted lazily on read; no implementation runs a
// background sweep.
package kvstore

import (
	"context"
	"time"
)

// Store is a durable key-value store with per-entry TTL.
type Store interface {
	// Get returns the value stored under key.
	// The boolean result is false when the key is absent or expired.
	// An expired entry is removed as a side effect of the read.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl of zero means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Remove deletes the entry stored under key.
	// Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys returns all live keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Clear removes all entries whose key starts with prefix.
	// An empty prefix clears the whole store.
	Clear(ctx context.Context, prefix string) error

	// Close releases any resources held by the store.
	Close() error
}
