// Package repository defines data access interfaces for ClassReel.
package repository

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Implemented in-memory for single-node deployments and on Redis for
// distributed ones. The blob user repository uses it to front record reads;
// the redis license ledger uses the atomic counters.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Increment atomically increments an integer value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Decrement atomically decrements an integer value.
	Decrement(ctx context.Context, key string, delta int64) (int64, error)
}

// CacheError represents a cache error type.
type CacheError string

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrCacheUnavailable indicates the cache is unavailable.
	ErrCacheUnavailable CacheError = "cache unavailable"
)

func (e CacheError) Error() string {
	return string(e)
}

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// User returns a cache key for a user record.
func (CacheKey) User(email string) string {
	return "cache:user:" + email
}

// LicenseCount returns the counter key for a license key's registered slots.
func (CacheKey) LicenseCount(licenseKey string) string {
	return "ledger:license:" + licenseKey
}
