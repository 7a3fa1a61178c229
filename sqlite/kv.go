package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	sq "github.com/Masterminds/squirrel"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/sqlite/migrations"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of values kept by the read cache.
const DefaultCacheSize = 4096

var _ kv.Connector = (*Connector)(nil)

// Connector stores every session as rows of one sqlite database. Values
// read outside of writable transactions are served from an LRU cache.
type Connector struct {
	store *SqlStore
	log   *zap.Logger
	cache *lru.Cache[string, []byte]
}

// NewConnector opens the database at path and brings its schema up to date.
func NewConnector(ctx context.Context, log *zap.Logger, path string) (*Connector, error) {
	store, err := NewSqlStore(path, log)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(store, log).Up(ctx, migrations.AllUp); err != nil {
		_ = store.Close()
		return nil, err
	}

	cache, err := lru.New[string, []byte](DefaultCacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Connector{
		store: store,
		log:   log,
		cache: cache,
	}, nil
}

// Store returns the underlying SqlStore.
func (c *Connector) Store() *SqlStore {
	return c.store
}

// Close closes the database. Every store opened from c becomes unusable.
func (c *Connector) Close() error {
	c.cache.Purge()
	return c.store.Close()
}

// Open registers the named session and returns a store on it.
func (c *Connector) Open(ctx context.Context, name string) (kv.Store, error) {
	query, args, err := sq.Insert("sessions").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := c.store.DB.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return &KVStore{
		session:   name,
		connector: c,
	}, nil
}

// Sessions lists the names of every live session.
func (c *Connector) Sessions(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("name").From("sessions").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}
	var names []string
	err = c.store.DB.SelectContext(ctx, &names, query, args...)
	return names, err
}

// where selects the rows of one session, narrowed by more conditions.
func (s *KVStore) where(eq sq.Eq) sq.Eq {
	cond := sq.Eq{"session": s.session}
	for k, v := range eq {
		cond[k] = v
	}
	return cond
}

func cacheKey(session string, bucket, key []byte) string {
	return session + "\x00" + string(bucket) + "\x00" + string(key)
}

var _ kv.Store = (*KVStore)(nil)

// KVStore is a single session of a sqlite Connector.
type KVStore struct {
	session   string
	connector *Connector

	mu     sync.RWMutex
	closed bool
}

func (s *KVStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// View runs fn in a transaction that is always rolled back.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	tx, err := s.connector.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&Tx{
		tx:    tx,
		store: s,
		ctx:   ctx,
	})
}

// Update runs fn in a transaction that is committed when fn returns nil.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	tx, err := s.connector.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	t := &Tx{
		tx:       tx,
		store:    s,
		ctx:      ctx,
		writable: true,
		touched:  map[string]struct{}{},
	}
	if err := fn(t); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for k := range t.touched {
		s.connector.cache.Remove(k)
	}
	return nil
}

// DeleteBucket removes every key of the bucket.
func (s *KVStore) DeleteBucket(ctx context.Context, b []byte) error {
	if s.isClosed() {
		return kv.ErrStoreClosed
	}
	query, args, err := sq.Delete("kv").Where(s.where(sq.Eq{"bucket": b})).ToSql()
	if err != nil {
		return err
	}
	_, err = s.connector.store.DB.ExecContext(ctx, query, args...)
	s.connector.cache.Purge()
	return err
}

// Drop removes every key of the session and closes the store.
func (s *KVStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kv.ErrStoreClosed
	}

	err := s.execTrans(ctx,
		sq.Delete("kv").Where(s.where(nil)),
		sq.Delete("sessions").Where(sq.Eq{"name": s.session}))
	s.connector.cache.Purge()
	if err != nil {
		return err
	}
	s.closed = true
	return nil
}

func (s *KVStore) execTrans(ctx context.Context, stmts ...sq.Sqlizer) error {
	tx, err := s.connector.store.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		query, args, err := stmt.ToSql()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close detaches the store. The session's rows are kept.
func (s *KVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Tx wraps a sqlx transaction. It implements kv.Tx.
type Tx struct {
	tx       *sqlx.Tx
	store    *KVStore
	ctx      context.Context
	writable bool
	// touched collects the cache keys written by the transaction.
	touched map[string]struct{}
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// Bucket returns the named bucket. Buckets have no rows of their own, so
// any name is valid.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	return &Bucket{
		tx:   t,
		name: append([]byte(nil), b...),
	}, nil
}

// Bucket implements kv.Bucket over the rows of one bucket.
type Bucket struct {
	tx   *Tx
	name []byte
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	ck := cacheKey(b.tx.store.session, b.name, key)
	if !b.tx.writable {
		if v, ok := b.tx.store.connector.cache.Get(ck); ok {
			return v, nil
		}
	}

	query, args, err := sq.Select("value").
		From("kv").
		Where(b.tx.store.where(sq.Eq{"bucket": b.name, "key": key})).
		ToSql()
	if err != nil {
		return nil, err
	}

	var v []byte
	err = b.tx.tx.GetContext(b.tx.ctx, &v, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}

	if !b.tx.writable {
		b.tx.store.connector.cache.Add(ck, v)
	}
	return v, nil
}

// Put sets the value at the provided key.
func (b *Bucket) Put(key []byte, value []byte) error {
	if !b.tx.writable {
		return kv.ErrTxNotWritable
	}
	query, args, err := sq.Insert("kv").
		Columns("session", "bucket", "key", "value").
		Values(b.tx.store.session, b.name, key, value).
		Suffix("ON CONFLICT (session, bucket, key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := b.tx.tx.ExecContext(b.tx.ctx, query, args...); err != nil {
		return err
	}
	b.tx.touched[cacheKey(b.tx.store.session, b.name, key)] = struct{}{}
	return nil
}

// Delete removes the provided key.
func (b *Bucket) Delete(key []byte) error {
	if !b.tx.writable {
		return kv.ErrTxNotWritable
	}
	query, args, err := sq.Delete("kv").
		Where(b.tx.store.where(sq.Eq{"bucket": b.name, "key": key})).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := b.tx.tx.ExecContext(b.tx.ctx, query, args...); err != nil {
		return err
	}
	b.tx.touched[cacheKey(b.tx.store.session, b.name, key)] = struct{}{}
	return nil
}

type row struct {
	Key   []byte `db:"key"`
	Value []byte `db:"value"`
}

// Cursor loads the bucket into a static cursor.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	query, args, err := sq.Select("key", "value").
		From("kv").
		Where(b.tx.store.where(sq.Eq{"bucket": b.name})).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := b.tx.tx.SelectContext(b.tx.ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	pairs := make([]kv.Pair, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, kv.Pair{Key: r.Key, Value: r.Value})
	}
	return kv.NewStaticCursor(pairs), nil
}
