// Package repository defines data access interfaces for ClassReel.
// Implementations live in subpackages; the blob package persists everything
// as JSON objects in the blob store.
package repository

import (
	"context"

	"github.com/classreel/classreel/internal/domain"
)

// UserRepository provides CRUD over user records.
// One JSON object per user, keyed by email.
type UserRepository interface {
	// Create persists a new user record. The caller is responsible for
	// uniqueness checks; Create overwrites blindly.
	Create(ctx context.Context, user *domain.User) error

	// Get fetches one user record by email.
	// Returns ErrNotFound if absent, domain.ErrMalformedRecord if the
	// stored record is missing required fields.
	Get(ctx context.Context, email string) (*domain.User, error)

	// List returns every stored user record. A single malformed record
	// fails the whole listing with domain.ErrMalformedRecord.
	List(ctx context.Context) ([]*domain.User, error)

	// Update writes the full record back. Last write wins.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes the user record.
	// Returns ErrNotFound if the record does not exist.
	Delete(ctx context.Context, email string) error

	// Exists checks whether a record is stored for the email.
	Exists(ctx context.Context, email string) (bool, error)

	// CountByLicenseKey counts stored users registered under a license key.
	CountByLicenseKey(ctx context.Context, licenseKey string) (int, error)
}

// ListScope describes whose videos a listing covers.
type ListScope struct {
	// Email is the caller's email.
	Email string

	// AccountType selects the listing prefix: teachers scan the whole
	// school namespace, students their own per-class namespaces.
	AccountType domain.AccountType

	// SchoolName scopes the listing.
	SchoolName string

	// ClassCodes are the caller's classes. For teachers they filter the
	// school-wide scan; for students they select the prefixes scanned.
	ClassCodes []string
}

// VideoRepository provides listing and lifecycle operations over the paired
// metadata/payload video objects.
type VideoRepository interface {
	// List returns the caller's visible videos, enriched with presigned
	// access URLs. Entries whose payload or metadata object is missing are
	// skipped. In lenient mode failures produce an empty or partial result;
	// in strict mode they propagate.
	List(ctx context.Context, scope ListScope) ([]*domain.VideoEntry, error)

	// GetMeta fetches one metadata record.
	// Returns ErrNotFound if the record is absent.
	GetMeta(ctx context.Context, school, classCode, email, title string) (*domain.Video, error)

	// Upload writes the payload object first, then the metadata record as
	// the commit record. Returns the stored metadata.
	Upload(ctx context.Context, video *domain.Video, payload []byte) (*domain.Video, error)

	// UpdateMeta rewrites a metadata record in place.
	UpdateMeta(ctx context.Context, video *domain.Video) error

	// Delete removes a video's metadata record and payload object,
	// metadata first so listings stop surfacing it immediately.
	Delete(ctx context.Context, school, classCode, email, title string) error

	// DeleteByOwner removes every video owned by the email within a school.
	// Best effort: individual failures are counted, not rolled back.
	// Returns the number of videos deleted and the number of failures.
	DeleteByOwner(ctx context.Context, school, email string) (deleted, failed int, err error)
}
