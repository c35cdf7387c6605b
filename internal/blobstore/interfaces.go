// Package blobstore wraps the object storage SDK behind a small key-value
// interface. The whole system persists through a single bucket used as a flat
// JSON store; this package is the only place that talks to the SDK.
package blobstore

import (
	"context"
	"time"
)

// Object is a stored payload together with its declared content type.
type Object struct {
	// Data is the raw object payload.
	Data []byte

	// ContentType is the MIME type declared when the object was written.
	ContentType string
}

// Store defines the capability set consumed by the repositories.
// Implementations include the S3 backend and an in-memory store for tests
// and local development.
type Store interface {
	// Ping verifies the backing bucket is reachable.
	// Returns domain.ErrStoreUnavailable on connectivity failure.
	Ping(ctx context.Context) error

	// Head checks whether an object exists without fetching it.
	Head(ctx context.Context, key string) (bool, error)

	// Get fetches an object's payload and content type.
	// Returns domain.ErrObjectNotFound if the key does not exist.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes an object, overwriting any existing value.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// List returns the keys under a prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet produces a time-limited, credential-free retrieval URL
	// for one object. Returns the URL and its expiry instant.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, time.Time, error)
}
