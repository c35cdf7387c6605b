package blobstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/classreel/classreel/internal/domain"
)

// MemoryStore implements Store using an in-process map.
// It backs package tests and local development without a real bucket.
// Not suitable for anything persistent.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object

	// PresignBase is the URL prefix used for fake presigned links.
	PresignBase string

	// FailPuts makes every Put fail; tests use it to exercise partial-write paths.
	FailPuts bool

	// FailLists makes every List fail; tests use it to exercise lenient listing.
	FailLists bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:     make(map[string]Object),
		PresignBase: "https://store.invalid/",
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Head checks whether an object exists.
func (m *MemoryStore) Head(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Get fetches an object's payload and content type.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, domain.ErrObjectNotFound
	}
	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	return &Object{Data: data, ContentType: obj.ContentType}, nil
}

// Put writes an object, overwriting any existing value.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailPuts {
		return domain.ErrStoreUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[key] = Object{Data: stored, ContentType: contentType}
	return nil
}

// List returns the keys under a prefix in lexical order.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailLists {
		return nil, domain.ErrStoreUnavailable
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// PresignGet produces a fake but stable URL for one object.
func (m *MemoryStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, err
	}
	return m.PresignBase + key, time.Now().UTC().Add(expiry), nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
