// Package cache is the lookaside layer in front of status metadata reads.
//
// Two backends implement Cache: Memory (in-process TTL map) and Redis.
// Values are opaque bytes; Take handles JSON encoding and collapses
// concurrent misses for the same key into a single loader call.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Key joins a cache name and a field into one key: Key("a", "b") == "a/b".
func Key(name, field string) string {
	return name + "/" + field
}
