// Package storetest holds a conformance suite for kv.Connector
// implementations. Every backend runs it from its own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/influxdata/mlcore/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewConnectorFunc returns a fresh connector for a single test.
type NewConnectorFunc func(t *testing.T) kv.Connector

// Run executes the conformance suite against the connectors returned by fn.
func Run(t *testing.T, fn NewConnectorFunc) {
	t.Run("PutGet", func(t *testing.T) { putGet(t, fn(t)) })
	t.Run("NotWritable", func(t *testing.T) { notWritable(t, fn(t)) })
	t.Run("CursorOrder", func(t *testing.T) { cursorOrder(t, fn(t)) })
	t.Run("DeleteKey", func(t *testing.T) { deleteKey(t, fn(t)) })
	t.Run("DeleteBucket", func(t *testing.T) { deleteBucket(t, fn(t)) })
	t.Run("SessionPersistence", func(t *testing.T) { sessionPersistence(t, fn(t)) })
	t.Run("SessionIsolation", func(t *testing.T) { sessionIsolation(t, fn(t)) })
	t.Run("Drop", func(t *testing.T) { drop(t, fn(t)) })
	t.Run("Closed", func(t *testing.T) { closed(t, fn(t)) })
}

var bucket = []byte("suitev1")

func open(t *testing.T, c kv.Connector, name string) kv.Store {
	t.Helper()
	s, err := c.Open(context.Background(), name)
	require.NoError(t, err)
	return s
}

func put(t *testing.T, s kv.Store, pairs ...kv.Pair) {
	t.Helper()
	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			if err := b.Put(p.Key, p.Value); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func get(s kv.Store, key []byte) ([]byte, error) {
	var v []byte
	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		got, err := b.Get(key)
		if err != nil {
			return err
		}
		v = append([]byte(nil), got...)
		return nil
	})
	return v, err
}

func keys(t *testing.T, s kv.Store) []string {
	t.Helper()
	var out []string
	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		cur, err := b.Cursor()
		if err != nil {
			return err
		}
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			out = append(out, string(k))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func putGet(t *testing.T, c kv.Connector) {
	s := open(t, c, "putget")
	defer s.Drop(context.Background())

	put(t, s, kv.Pair{Key: []byte("k1"), Value: []byte("v1")})

	v, err := get(s, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(v))

	// overwrite keeps keys unique
	put(t, s, kv.Pair{Key: []byte("k1"), Value: []byte("v2")})
	v, err = get(s, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	assert.Equal(t, []string{"k1"}, keys(t, s))

	_, err = get(s, []byte("missing"))
	assert.True(t, kv.IsNotFound(err), "expected not found, got %v", err)
}

func notWritable(t *testing.T, c kv.Connector) {
	s := open(t, c, "notwritable")
	defer s.Drop(context.Background())

	put(t, s, kv.Pair{Key: []byte("k"), Value: []byte("v")})

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("other"))
	})
	assert.ErrorIs(t, err, kv.ErrTxNotWritable)
}

func cursorOrder(t *testing.T, c kv.Connector) {
	s := open(t, c, "cursor")
	defer s.Drop(context.Background())

	var pairs []kv.Pair
	for _, k := range []string{"c", "a", "d", "b"} {
		pairs = append(pairs, kv.Pair{Key: []byte(k), Value: []byte("v" + k)})
	}
	put(t, s, pairs...)

	assert.Equal(t, []string{"a", "b", "c", "d"}, keys(t, s))

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		cur, err := b.Cursor()
		if err != nil {
			return err
		}
		k, v := cur.Seek([]byte("c"))
		assert.Equal(t, "c", string(k))
		assert.Equal(t, "vc", string(v))
		k, _ = cur.Last()
		assert.Equal(t, "d", string(k))
		return nil
	})
	require.NoError(t, err)
}

func deleteKey(t *testing.T, c kv.Connector) {
	s := open(t, c, "deletekey")
	defer s.Drop(context.Background())

	put(t, s,
		kv.Pair{Key: []byte("a"), Value: []byte("1")},
		kv.Pair{Key: []byte("b"), Value: []byte("2")},
	)

	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket(bucket)
		if err != nil {
			return err
		}
		return b.Delete([]byte("a"))
	})
	require.NoError(t, err)

	_, err = get(s, []byte("a"))
	assert.True(t, kv.IsNotFound(err))
	assert.Equal(t, []string{"b"}, keys(t, s))
}

func deleteBucket(t *testing.T, c kv.Connector) {
	ctx := context.Background()
	s := open(t, c, "deletebucket")
	defer s.Drop(ctx)

	put(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, s.DeleteBucket(ctx, bucket))
	assert.Empty(t, keysAfterRecreate(t, s))

	// deleting a bucket that was never created is fine
	require.NoError(t, s.DeleteBucket(ctx, []byte("nonesuch")))
}

// keysAfterRecreate recreates the suite bucket in a writable transaction
// before listing it, since a deleted bucket may not be visible to views.
func keysAfterRecreate(t *testing.T, s kv.Store) []string {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx kv.Tx) error {
		_, err := tx.Bucket(bucket)
		return err
	}))
	return keys(t, s)
}

func sessionPersistence(t *testing.T, c kv.Connector) {
	ctx := context.Background()
	s := open(t, c, "persist")
	put(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, s.Close())

	s = open(t, c, "persist")
	defer s.Drop(ctx)
	v, err := get(s, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
}

func sessionIsolation(t *testing.T, c kv.Connector) {
	ctx := context.Background()
	s1 := open(t, c, "isolation-1")
	defer s1.Drop(ctx)
	s2 := open(t, c, "isolation-2")
	defer s2.Drop(ctx)

	put(t, s1, kv.Pair{Key: []byte("a"), Value: []byte("1")})
	put(t, s2, kv.Pair{Key: []byte("b"), Value: []byte("2")})

	assert.Equal(t, []string{"a"}, keys(t, s1))
	assert.Equal(t, []string{"b"}, keys(t, s2))
}

func drop(t *testing.T, c kv.Connector) {
	ctx := context.Background()
	s := open(t, c, "drop")
	put(t, s, kv.Pair{Key: []byte("a"), Value: []byte("1")})
	require.NoError(t, s.Drop(ctx))

	s = open(t, c, "drop")
	defer s.Drop(ctx)
	assert.Empty(t, keysAfterRecreate(t, s))
}

func closed(t *testing.T, c kv.Connector) {
	ctx := context.Background()
	s := open(t, c, "closed")
	defer func() {
		s, err := c.Open(ctx, "closed")
		if err == nil {
			_ = s.Drop(ctx)
		}
	}()
	require.NoError(t, s.Close())

	err := s.View(ctx, func(kv.Tx) error { return nil })
	assert.ErrorIs(t, err, kv.ErrStoreClosed)
	err = s.Update(ctx, func(kv.Tx) error { return nil })
	assert.ErrorIs(t, err, kv.ErrStoreClosed)
}
