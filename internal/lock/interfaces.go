// Package lock provides distributed and local locking abstractions.
// The blob store offers no transactions, so every check-then-write sequence
// (duplicate email, license limit, duplicate video title) is serialized
// through a lock keyed by the contended value. For single-node deployments
// memory-based locks are used; for distributed deployments Redis-based locks
// can be used.
package lock

import (
	"context"
	"time"
)

// Locker defines the interface for distributed/local locking.
// This abstraction allows switching between in-memory locks (single-node)
// and Redis-based locks (distributed) without changing business logic.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another process.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry attempts to acquire a lock with retries.
	// Will retry up to maxRetries times with retryDelay between attempts.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release releases a lock.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// IsHeld checks if the lock is currently held.
	IsHeld(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for the contended invariants.
var Keys = lockKeys{}

type lockKeys struct{}

// Registration returns a lock key serializing registration per email.
func (lockKeys) Registration(email string) string {
	return "lock:register:email:" + email
}

// License returns a lock key serializing slot accounting per license key.
func (lockKeys) License(licenseKey string) string {
	return "lock:register:license:" + licenseKey
}

// VideoUpload returns a lock key serializing uploads of the same title.
func (lockKeys) VideoUpload(school, classCode, email, title string) string {
	return "lock:video:upload:" + school + "/" + classCode + "/" + email + "/" + title
}
