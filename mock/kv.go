package mock

import (
	"context"

	"github.com/influxdata/mlcore/kv"
)

var _ kv.Connector = (*Connector)(nil)

// Connector is a mock kv.Connector.
type Connector struct {
	OpenFn func(ctx context.Context, name string) (kv.Store, error)
}

// Open returns the store for the named session.
func (c *Connector) Open(ctx context.Context, name string) (kv.Store, error) {
	return c.OpenFn(ctx, name)
}

var _ kv.Store = (*Store)(nil)

// Store is a mock kv.Store
type Store struct {
	ViewFn         func(func(kv.Tx) error) error
	UpdateFn       func(func(kv.Tx) error) error
	DeleteBucketFn func(b []byte) error
	DropFn         func() error
	CloseFn        func() error
}

// View opens up a transaction that will not write to any data.
func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	return s.ViewFn(fn)
}

// Update opens up a transaction that will mutate data.
func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	return s.UpdateFn(fn)
}

// DeleteBucket removes bucket b.
func (s *Store) DeleteBucket(ctx context.Context, b []byte) error {
	return s.DeleteBucketFn(b)
}

// Drop removes the session.
func (s *Store) Drop(ctx context.Context) error {
	return s.DropFn()
}

// Close releases the store.
func (s *Store) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

var _ kv.Tx = (*Tx)(nil)

// Tx is mock of a kv.Tx.
type Tx struct {
	BucketFn      func(b []byte) (kv.Bucket, error)
	ContextFn     func() context.Context
	WithContextFn func(ctx context.Context)
}

// Bucket possibly creates and returns bucket, b.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	return t.BucketFn(b)
}

// Context returns the context associated with this Tx.
func (t *Tx) Context() context.Context {
	return t.ContextFn()
}

// WithContext associates a context with this Tx.
func (t *Tx) WithContext(ctx context.Context) {
	t.WithContextFn(ctx)
}

var _ kv.Bucket = (*Bucket)(nil)

// Bucket is a mock kv.Bucket.
type Bucket struct {
	GetFn    func(key []byte) ([]byte, error)
	CursorFn func() (kv.Cursor, error)
	PutFn    func(key, value []byte) error
	DeleteFn func(key []byte) error
}

// Get returns a key within this bucket. Errors if key does not exist.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	return b.GetFn(key)
}

// Cursor returns a cursor at the beginning of this bucket.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return b.CursorFn()
}

// Put should error if the transaction it was called in is not writable.
func (b *Bucket) Put(key, value []byte) error {
	return b.PutFn(key, value)
}

// Delete should error if the transaction it was called in is not writable.
func (b *Bucket) Delete(key []byte) error {
	return b.DeleteFn(key)
}

// NewFailingStore returns a store whose transactions all fail with err.
func NewFailingStore(err error) *Store {
	fail := func(func(kv.Tx) error) error { return err }
	return &Store{
		ViewFn:         fail,
		UpdateFn:       fail,
		DeleteBucketFn: func([]byte) error { return err },
		DropFn:         func() error { return err },
	}
}

// NewConnector returns a connector that always hands out s.
func NewConnector(s kv.Store) *Connector {
	return &Connector{
		OpenFn: func(context.Context, string) (kv.Store, error) { return s, nil },
	}
}
