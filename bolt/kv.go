package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/influxdata/mlcore/kv"
	"github.com/opentracing/opentracing-go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var _ kv.Connector = (*Connector)(nil)

// Connector opens one bolt file per session inside a directory. Stores
// opened on the same name share a single *bolt.DB, the file is closed when
// the last of them is closed.
type Connector struct {
	dir    string
	logger *zap.Logger

	mu  sync.Mutex
	dbs map[string]*sharedDB
}

type sharedDB struct {
	db   *bolt.DB
	refs int
}

// NewConnector returns a Connector storing its sessions under dir.
func NewConnector(log *zap.Logger, dir string) *Connector {
	return &Connector{
		dir:    dir,
		logger: log,
		dbs:    map[string]*sharedDB{},
	}
}

// Path returns the file backing the named session.
func (c *Connector) Path(name string) string {
	return filepath.Join(c.dir, name+".bolt")
}

// Open creates the session's boltDB file if it doesn't exist and opens it otherwise.
func (c *Connector) Open(ctx context.Context, name string) (kv.Store, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "Connector.Open")
	defer span.Finish()

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.Path(name)
	if sh, ok := c.dbs[name]; ok {
		sh.refs++
		return &KVStore{name: name, path: path, db: sh.db, connector: c, logger: c.logger}, nil
	}

	// Ensure the required directory structure exists.
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create directory %s: %v", path, err)
	}

	if _, err := os.Stat(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Open database file.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open boltdb file %v", err)
	}
	c.dbs[name] = &sharedDB{db: db, refs: 1}

	c.logger.Debug("Resources opened", zap.String("path", path))
	return &KVStore{name: name, path: path, db: db, connector: c, logger: c.logger}, nil
}

// release drops one reference to the named db, closing it on the last one.
// When remove is set the db is closed regardless and its file deleted.
func (c *Connector) release(name string, remove bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sh, ok := c.dbs[name]
	if !ok {
		return nil
	}
	sh.refs--
	if sh.refs > 0 && !remove {
		return nil
	}
	delete(c.dbs, name)
	if err := sh.db.Close(); err != nil {
		return err
	}
	c.logger.Debug("Resources closed", zap.String("path", c.Path(name)))
	if remove {
		if err := os.Remove(c.Path(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

var _ kv.Store = (*KVStore)(nil)

// KVStore is a kv.Store backed by boltdb.
type KVStore struct {
	name      string
	path      string
	db        *bolt.DB
	connector *Connector
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Path returns the path of the bolt file.
func (s *KVStore) Path() string {
	return s.path
}

// DB returns the underlying bolt database.
func (s *KVStore) DB() *bolt.DB {
	return s.db
}

func (s *KVStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close the connection to the bolt database.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.connector.release(s.name, false)
}

// Drop closes the bolt database and removes its file.
func (s *KVStore) Drop(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.Drop")
	defer span.Finish()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrStoreClosed
	}
	s.closed = true
	return s.connector.release(s.name, true)
}

// DeleteBucket removes the bucket named b.
func (s *KVStore) DeleteBucket(ctx context.Context, b []byte) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "KVStore.DeleteBucket")
	defer span.Finish()

	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(b)
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// View opens up a view transaction against the store.
func (s *KVStore) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.View")
	defer span.Finish()

	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Update opens up an update transaction against the store.
func (s *KVStore) Update(ctx context.Context, fn func(tx kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "KVStore.Update")
	defer span.Finish()

	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{
			tx:  tx,
			ctx: ctx,
		})
	})
}

// Tx is a light wrapper around a boltdb transaction. It implements kv.Tx.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context for the transaction.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// WithContext sets the context for the transaction.
func (tx *Tx) WithContext(ctx context.Context) {
	tx.ctx = ctx
}

// createBucketIfNotExists creates a bucket with the provided byte slice.
func (tx *Tx) createBucketIfNotExists(b []byte) (*Bucket, error) {
	bkt, err := tx.tx.CreateBucketIfNotExists(b)
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return nil, kv.ErrTxNotWritable
	}
	if err != nil {
		return nil, err
	}
	return &Bucket{
		bucket: bkt,
	}, nil
}

// Bucket retrieves the bucket named b.
func (tx *Tx) Bucket(b []byte) (kv.Bucket, error) {
	bkt := tx.tx.Bucket(b)
	if bkt == nil {
		return tx.createBucketIfNotExists(b)
	}
	return &Bucket{
		bucket: bkt,
	}, nil
}

// Bucket implements kv.Bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	val := b.bucket.Get(key)
	if val == nil {
		return nil, kv.ErrKeyNotFound
	}

	return val, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key []byte, value []byte) error {
	err := b.bucket.Put(key, value)
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return kv.ErrTxNotWritable
	}
	return err
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	err := b.bucket.Delete(key)
	if errors.Is(err, bolt.ErrTxNotWritable) {
		return kv.ErrTxNotWritable
	}
	return err
}

// Cursor retrieves a cursor for iterating through the entries
// in the key value store.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &Cursor{
		cursor: b.bucket.Cursor(),
	}, nil
}

// Cursor is a struct for iterating through the entries
// in the key value store.
type Cursor struct {
	cursor *bolt.Cursor
}

// Seek seeks for the first key that matches the prefix provided.
func (c *Cursor) Seek(prefix []byte) ([]byte, []byte) {
	k, v := c.cursor.Seek(prefix)
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// First retrieves the first key value pair in the bucket.
func (c *Cursor) First() ([]byte, []byte) {
	k, v := c.cursor.First()
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// Last retrieves the last key value pair in the bucket.
func (c *Cursor) Last() ([]byte, []byte) {
	k, v := c.cursor.Last()
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// Next retrieves the next key in the bucket.
func (c *Cursor) Next() ([]byte, []byte) {
	k, v := c.cursor.Next()
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}

// Prev retrieves the previous key in the bucket.
func (c *Cursor) Prev() ([]byte, []byte) {
	k, v := c.cursor.Prev()
	if len(k) == 0 && len(v) == 0 {
		return nil, nil
	}
	return k, v
}
