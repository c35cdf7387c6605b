package metrics

import (
	"context"
	"time"

	"github.com/classreel/classreel/internal/blobstore"
)

// InstrumentedStore decorates a blobstore.Store with operation metrics.
type InstrumentedStore struct {
	next blobstore.Store
	m    *Metrics
}

// InstrumentStore wraps a store. With a nil Metrics the wrapper is inert.
func InstrumentStore(next blobstore.Store, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, m: m}
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.next.Ping(ctx)
	s.m.RecordStoreOp("ping", time.Since(start), err)
	return err
}

func (s *InstrumentedStore) Head(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Head(ctx, key)
	s.m.RecordStoreOp("head", time.Since(start), err)
	return ok, err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (*blobstore.Object, error) {
	start := time.Now()
	obj, err := s.next.Get(ctx, key)
	s.m.RecordStoreOp("get", time.Since(start), err)
	return obj, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := s.next.Put(ctx, key, data, contentType)
	s.m.RecordStoreOp("put", time.Since(start), err)
	return err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.next.List(ctx, prefix)
	s.m.RecordStoreOp("list", time.Since(start), err)
	return keys, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.next.Delete(ctx, key)
	s.m.RecordStoreOp("delete", time.Since(start), err)
	return err
}

func (s *InstrumentedStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, time.Time, error) {
	start := time.Now()
	url, expiresAt, err := s.next.PresignGet(ctx, key, expiry)
	s.m.RecordStoreOp("presign", time.Since(start), err)
	return url, expiresAt, err
}

// Ensure InstrumentedStore implements blobstore.Store.
var _ blobstore.Store = (*InstrumentedStore)(nil)
