package inmem

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
	"github.com/influxdata/mlcore/kv"
)

var _ kv.Connector = (*Connector)(nil)

// Connector hands out in memory sessions. A session outlives the stores
// opened on it until it is dropped, so data written through one store is
// visible to a later Open of the same name.
type Connector struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewConnector creates an instance of a Connector.
func NewConnector() *Connector {
	return &Connector{
		sessions: map[string]*session{},
	}
}

// Open returns a store on the named session, creating it if needed.
func (c *Connector) Open(ctx context.Context, name string) (kv.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[name]
	if !ok {
		s = &session{buckets: map[string]*Bucket{}}
		c.sessions[name] = s
	}
	return &KVStore{
		name:      name,
		connector: c,
		session:   s,
	}, nil
}

// Sessions returns the number of live sessions.
func (c *Connector) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Connector) drop(name string, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[name] == s {
		delete(c.sessions, name)
	}
}

type session struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

var _ kv.Store = (*KVStore)(nil)

// KVStore is an in memory btree backed kv.Store.
type KVStore struct {
	name      string
	connector *Connector

	mu      sync.RWMutex
	session *session
}

func (s *KVStore) current() (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, kv.ErrStoreClosed
	}
	return s.session, nil
}

// View opens up a transaction with a read lock.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return fn(&Tx{
		session:  sess,
		writable: false,
		ctx:      ctx,
	})
}

// Update opens up a transaction with a write lock.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(&Tx{
		session:  sess,
		writable: true,
		ctx:      ctx,
	})
}

// DeleteBucket removes the bucket and all of its keys.
func (s *KVStore) DeleteBucket(ctx context.Context, b []byte) error {
	sess, err := s.current()
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.buckets, string(b))
	return nil
}

// Drop removes the session from the connector and closes the store.
func (s *KVStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return kv.ErrStoreClosed
	}
	s.session.mu.Lock()
	s.session.buckets = map[string]*Bucket{}
	s.session.mu.Unlock()

	s.connector.drop(s.name, s.session)
	s.session = nil
	return nil
}

// Close detaches the store from its session. The session's data is kept.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// Tx is an in memory transaction.
// TODO: make transactions actually transactional
type Tx struct {
	session  *session
	writable bool
	ctx      context.Context
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// createBucketIfNotExists creates a btree bucket at the provided key.
func (t *Tx) createBucketIfNotExists(b []byte) (kv.Bucket, error) {
	if !t.writable {
		return nil, kv.ErrTxNotWritable
	}

	bkt, ok := t.session.buckets[string(b)]
	if !ok {
		bkt = &Bucket{btree.New(2)}
		t.session.buckets[string(b)] = bkt
	}
	return &bucket{
		Bucket:   bkt,
		writable: t.writable,
	}, nil
}

// Bucket retrieves the bucket at the provided key.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	bkt, ok := t.session.buckets[string(b)]
	if !ok {
		return t.createBucketIfNotExists(b)
	}

	return &bucket{
		Bucket:   bkt,
		writable: t.writable,
	}, nil
}

// Bucket is a btree that implements kv.Bucket.
type Bucket struct {
	btree *btree.BTree
}

type bucket struct {
	kv.Bucket
	writable bool
}

// Put wraps the put method of a kv bucket and ensures that the
// bucket is writable.
func (b *bucket) Put(key, value []byte) error {
	if b.writable {
		return b.Bucket.Put(key, value)
	}
	return kv.ErrTxNotWritable
}

// Delete wraps the delete method of a kv bucket and ensures that the
// bucket is writable.
func (b *bucket) Delete(key []byte) error {
	if b.writable {
		return b.Bucket.Delete(key)
	}
	return kv.ErrTxNotWritable
}

type item struct {
	key   []byte
	value []byte
}

// Less is used to implement btree.Item.
func (i *item) Less(b btree.Item) bool {
	j, ok := b.(*item)
	if !ok {
		return false
	}

	return bytes.Compare(i.key, j.key) < 0
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	i := b.btree.Get(&item{key: key})

	if i == nil {
		return nil, kv.ErrKeyNotFound
	}

	j, ok := i.(*item)
	if !ok {
		return nil, fmt.Errorf("error item is type %T not *item", i)
	}

	return j.value, nil
}

// Put sets the key value pair provided. Both slices are copied, callers may
// reuse them.
func (b *Bucket) Put(key []byte, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	_ = b.btree.ReplaceOrInsert(&item{key: k, value: v})
	return nil
}

// Delete removes the key provided.
func (b *Bucket) Delete(key []byte) error {
	_ = b.btree.Delete(&item{key: key})
	return nil
}

// Cursor creates a static cursor from all entries in the database.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	// TODO we should do this by using the Ascend/Descend methods that
	// the btree provides.
	pairs, err := b.getAll()
	if err != nil {
		return nil, err
	}

	return kv.NewStaticCursor(pairs), nil
}

func (b *Bucket) getAll() ([]kv.Pair, error) {
	pairs := []kv.Pair{}
	var err error
	b.btree.Ascend(func(i btree.Item) bool {
		j, ok := i.(*item)
		if !ok {
			err = fmt.Errorf("error item is type %T not *item", i)
			return false
		}

		pairs = append(pairs, kv.Pair{Key: j.key, Value: j.value})
		return true
	})

	if err != nil {
		return nil, err
	}

	return pairs, nil
}
