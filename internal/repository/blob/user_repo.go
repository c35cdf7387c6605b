// Package blob implements the repositories over the blob store.
// Every record is one JSON object in a single flat bucket; there are no
// transactions, so multi-step operations are coordinated above this layer.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/classreel/classreel/internal/blobstore"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/repository"
)

const recordContentType = "application/json"

// UserRepository implements repository.UserRepository over the blob store.
// An optional cache fronts Get with a short TTL.
type UserRepository struct {
	store    blobstore.Store
	cache    repository.Cache
	cacheTTL time.Duration
	keys     repository.CacheKey
	logger   zerolog.Logger
}

// NewUserRepository creates a blob-backed user repository.
// cache may be nil to disable record caching.
func NewUserRepository(store blobstore.Store, cache repository.Cache, cacheTTL time.Duration, logger zerolog.Logger) *UserRepository {
	return &UserRepository{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("repository", "user").Logger(),
	}
}

// Create persists a new user record. Uniqueness is the caller's concern.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	return r.write(ctx, user)
}

// Get fetches one user record by email.
func (r *UserRepository) Get(ctx context.Context, email string) (*domain.User, error) {
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, r.keys.User(email)); err == nil {
			var user domain.User
			if err := json.Unmarshal(data, &user); err == nil {
				return &user, nil
			}
		}
	}

	obj, err := r.store.Get(ctx, blobstore.UserKey(email))
	if err != nil {
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("fetching user %s: %w", email, err)
	}

	user, err := decodeUser(obj.Data)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, r.keys.User(email), obj.Data, r.cacheTTL)
	}

	return user, nil
}

// List returns every stored user record.
// One malformed record fails the whole listing; a corrupt store is
// surfaced, not papered over.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	keys, err := r.store.List(ctx, blobstore.UsersPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	users := make([]*domain.User, 0, len(keys))
	for _, key := range keys {
		obj, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", key, err)
		}
		user, err := decodeUser(obj.Data)
		if err != nil {
			r.logger.Warn().Str("key", key).Msg("malformed user record poisons listing")
			return nil, domain.NewDomainError(domain.ErrMalformedRecord, "while listing users", key)
		}
		users = append(users, user)
	}

	return users, nil
}

// Update writes the full record back. Last write wins.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	return r.write(ctx, user)
}

// Delete removes the user record.
func (r *UserRepository) Delete(ctx context.Context, email string) error {
	exists, err := r.Exists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}

	if err := r.store.Delete(ctx, blobstore.UserKey(email)); err != nil {
		return fmt.Errorf("deleting user %s: %w", email, err)
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, r.keys.User(email))
	}

	r.logger.Info().Str("email", email).Msg("user record deleted")
	return nil
}

// Exists checks whether a record is stored for the email.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	exists, err := r.store.Head(ctx, blobstore.UserKey(email))
	if err != nil {
		return false, fmt.Errorf("checking user %s: %w", email, err)
	}
	return exists, nil
}

// CountByLicenseKey counts stored users registered under a license key.
// A linear scan over all user records; the store is the only source of truth.
func (r *UserRepository) CountByLicenseKey(ctx context.Context, licenseKey string) (int, error) {
	keys, err := r.store.List(ctx, blobstore.UsersPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}

	count := 0
	for _, key := range keys {
		obj, err := r.store.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("fetching %s: %w", key, err)
		}
		var user domain.User
		if err := json.Unmarshal(obj.Data, &user); err != nil {
			// Malformed records hold no license slot.
			continue
		}
		if user.LicenseKey == licenseKey {
			count++
		}
	}

	return count, nil
}

func (r *UserRepository) write(ctx context.Context, user *domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user %s: %w", user.Email, err)
	}
	if err := r.store.Put(ctx, blobstore.UserKey(user.Email), data, recordContentType); err != nil {
		return fmt.Errorf("writing user %s: %w", user.Email, err)
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, r.keys.User(user.Email), data, r.cacheTTL)
	}
	return nil
}

// decodeUser unmarshals and validates a stored user record.
func decodeUser(data []byte) (*domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, domain.ErrMalformedRecord
	}
	user.AccountType = domain.AccountType(strings.ToLower(string(user.AccountType)))
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return &user, nil
}

// Ensure UserRepository implements repository.UserRepository.
var _ repository.UserRepository = (*UserRepository)(nil)
