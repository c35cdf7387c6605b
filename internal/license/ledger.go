package license

import (
	"context"
	"fmt"

	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/repository"
)

// Ledger accounts for license slots: reserve one slot for a key, fail if
// exhausted. The scan backend reproduces the original count-then-check
// behavior; the redis, postgres and sqlite backends reserve atomically and
// are safe across instances.
type Ledger interface {
	// Reserve claims one slot for the key.
	// Returns domain.ErrLicenseLimitReached when the key is exhausted.
	Reserve(ctx context.Context, key string) error

	// Release returns one slot for the key. Called when a registration
	// fails after its reservation, and when a user is deleted.
	Release(ctx context.Context, key string) error

	// Count reports the number of slots currently used for the key.
	Count(ctx context.Context, key string) (int, error)
}

// =============================================================================
// Scan Ledger
// =============================================================================

// ScanLedger counts existing user records on every reservation.
// This is the original behavior: it holds no state of its own, so the
// check-then-write window stays open unless the caller serializes with a
// lock. Default backend.
type ScanLedger struct {
	users     repository.UserRepository
	validator *Validator
}

// NewScanLedger creates a ledger backed by user-record scans.
func NewScanLedger(users repository.UserRepository, validator *Validator) *ScanLedger {
	return &ScanLedger{users: users, validator: validator}
}

// Reserve checks the current count against the key's limit.
// The slot is implicitly taken by the user record written afterwards.
func (l *ScanLedger) Reserve(ctx context.Context, key string) error {
	limit := l.validator.LimitFor(key)
	if limit <= 0 {
		return domain.ErrLicenseLimitReached
	}

	count, err := l.users.CountByLicenseKey(ctx, key)
	if err != nil {
		return fmt.Errorf("counting license %s: %w", key, err)
	}
	if count >= limit {
		return domain.ErrLicenseLimitReached
	}
	return nil
}

// Release is a no-op: the scan recounts from the store every time.
func (l *ScanLedger) Release(ctx context.Context, key string) error {
	return ctx.Err()
}

// Count reports the number of user records under the key.
func (l *ScanLedger) Count(ctx context.Context, key string) (int, error) {
	return l.users.CountByLicenseKey(ctx, key)
}

// Ensure ScanLedger implements Ledger.
var _ Ledger = (*ScanLedger)(nil)

// =============================================================================
// Redis Ledger
// =============================================================================

// RedisLedger keeps one atomic counter per license key.
// Reservation is INCR-then-check: a transient overshoot is immediately
// decremented, and the outcome is correct under concurrency.
type RedisLedger struct {
	cache     repository.Cache
	validator *Validator
	keys      repository.CacheKey
}

// NewRedisLedger creates a ledger on the shared cache counters.
func NewRedisLedger(cache repository.Cache, validator *Validator) *RedisLedger {
	return &RedisLedger{cache: cache, validator: validator}
}

// Reserve atomically claims one slot.
func (l *RedisLedger) Reserve(ctx context.Context, key string) error {
	limit := l.validator.LimitFor(key)
	if limit <= 0 {
		return domain.ErrLicenseLimitReached
	}

	n, err := l.cache.Increment(ctx, l.keys.LicenseCount(key), 1)
	if err != nil {
		return fmt.Errorf("reserving license %s: %w", key, err)
	}
	if n > int64(limit) {
		if _, derr := l.cache.Decrement(ctx, l.keys.LicenseCount(key), 1); derr != nil {
			return fmt.Errorf("rolling back reservation for %s: %w", key, derr)
		}
		return domain.ErrLicenseLimitReached
	}
	return nil
}

// Release returns one slot.
func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if _, err := l.cache.Decrement(ctx, l.keys.LicenseCount(key), 1); err != nil {
		return fmt.Errorf("releasing license %s: %w", key, err)
	}
	return nil
}

// Count reports the counter value.
func (l *RedisLedger) Count(ctx context.Context, key string) (int, error) {
	n, err := l.cache.Increment(ctx, l.keys.LicenseCount(key), 0)
	if err != nil {
		return 0, fmt.Errorf("reading license counter %s: %w", key, err)
	}
	return int(n), nil
}

// Seed sets the counter for a key to the given value.
// The admin CLI uses this to align counters with existing user records.
func (l *RedisLedger) Seed(ctx context.Context, key string, used int) error {
	current, err := l.Count(ctx, key)
	if err != nil {
		return err
	}
	if _, err := l.cache.Increment(ctx, l.keys.LicenseCount(key), int64(used-current)); err != nil {
		return fmt.Errorf("seeding license counter %s: %w", key, err)
	}
	return nil
}

// Ensure RedisLedger implements Ledger.
var _ Ledger = (*RedisLedger)(nil)
