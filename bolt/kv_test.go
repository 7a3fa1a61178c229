package bolt_test

import (
	"context"
	"os"
	"testing"

	"github.com/influxdata/mlcore/bolt"
	"github.com/influxdata/mlcore/kit/prom/promtest"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/kv/storetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func NewTestConnector(t *testing.T) *bolt.Connector {
	t.Helper()
	return bolt.NewConnector(zaptest.NewLogger(t), t.TempDir())
}

func TestKVStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) kv.Connector {
		return NewTestConnector(t)
	})
}

func TestConnector_SharedSession(t *testing.T) {
	ctx := context.Background()
	c := NewTestConnector(t)

	s1, err := c.Open(ctx, "shared")
	require.NoError(t, err)
	s2, err := c.Open(ctx, "shared")
	require.NoError(t, err)

	require.NoError(t, s1.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	}))

	// closing one handle leaves the other usable
	require.NoError(t, s1.Close())
	require.NoError(t, s2.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		v, err := b.Get([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, "v", string(v))
		return nil
	}))

	require.NoError(t, s2.Drop(ctx))
	_, err = os.Stat(c.Path("shared"))
	assert.True(t, os.IsNotExist(err), "expected bolt file to be removed, got %v", err)
}

func TestKVStore_ViewMissingBucket(t *testing.T) {
	ctx := context.Background()
	s, err := NewTestConnector(t).Open(ctx, "missing")
	require.NoError(t, err)
	defer s.Drop(ctx)

	err = s.View(ctx, func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("nonesuch"))
		return err
	})
	assert.ErrorIs(t, err, kv.ErrTxNotWritable)
}

func TestKVStore_Metrics(t *testing.T) {
	ctx := context.Background()
	s, err := NewTestConnector(t).Open(ctx, "metrics")
	require.NoError(t, err)
	defer s.Drop(ctx)

	require.NoError(t, s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("recordsv1"))
		if err != nil {
			return err
		}
		for _, k := range []string{"a", "b", "c"} {
			if err := b.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(s.(*bolt.KVStore))
	mfs := promtest.MustGather(t, reg)

	m := promtest.MustFindMetric(t, mfs, "boltdb_bucket_keys", map[string]string{
		"session": "metrics",
		"bucket":  "recordsv1",
	})
	assert.Equal(t, float64(3), promtest.Value(m))

	m = promtest.MustFindMetric(t, mfs, "boltdb_writes_total", map[string]string{"session": "metrics"})
	assert.Greater(t, promtest.Value(m), float64(0))
}
