package inmem_test

import (
	"context"
	"testing"

	"github.com/influxdata/mlcore/inmem"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/kv/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) kv.Connector {
		return inmem.NewConnector()
	})
}

func TestConnector_Sessions(t *testing.T) {
	ctx := context.Background()
	c := inmem.NewConnector()

	s1, err := c.Open(ctx, "a")
	require.NoError(t, err)
	_, err = c.Open(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Sessions())

	require.NoError(t, s1.Close())
	assert.Equal(t, 2, c.Sessions())

	s1, err = c.Open(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s1.Drop(ctx))
	assert.Equal(t, 1, c.Sessions())
	assert.ErrorIs(t, s1.Drop(ctx), kv.ErrStoreClosed)
}

func TestBucket_PutCopiesInput(t *testing.T) {
	ctx := context.Background()
	s, err := inmem.NewConnector().Open(ctx, "copy")
	require.NoError(t, err)

	key := []byte("k")
	val := []byte("abc")
	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		return b.Put(key, val)
	}))
	val[0] = 'x'

	require.NoError(t, s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		got, err := b.Get(key)
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
		return nil
	}))
}
