package dataframe_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/bolt"
	"github.com/influxdata/mlcore/dataframe"
	"github.com/influxdata/mlcore/inmem"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/mock"
	"github.com/influxdata/mlcore/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// connectors returns one connector of every backend.
func connectors(t *testing.T) map[string]kv.Connector {
	t.Helper()

	sc, err := sqlite.NewConnector(context.Background(), zaptest.NewLogger(t), sqlite.InmemPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })

	return map[string]kv.Connector{
		"inmem":  inmem.NewConnector(),
		"bolt":   bolt.NewConnector(zaptest.NewLogger(t), t.TempDir()),
		"sqlite": sc,
	}
}

func newDataset(t *testing.T, conn kv.Connector, records ...*mlcore.Record) *dataframe.Dataset {
	t.Helper()

	d, err := dataframe.New(context.Background(), conn, dataframe.WithLogger(zaptest.NewLogger(t)), dataframe.WithPageSize(2))
	require.NoError(t, err)
	for _, r := range records {
		_, err := d.Append(context.Background(), r)
		require.NoError(t, err)
	}
	return d
}

func rows(t *testing.T, d *dataframe.Dataset) []*mlcore.Record {
	t.Helper()

	var out []*mlcore.Record
	require.NoError(t, d.Range(context.Background(), func(_ int, r *mlcore.Record) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func assertRecordsEqual(t *testing.T, want, got []*mlcore.Record) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "row %d: want %v, got %v", i, want[i], got[i])
	}
}

func errCode(t *testing.T, want string, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, mlcore.ErrorCode(err), "unexpected error %v", err)
}

func TestDataset_DenseIDs(t *testing.T) {
	for name, conn := range connectors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := newDataset(t, conn)
			defer d.Delete(ctx)

			for i := 0; i < 5; i++ {
				id, err := d.Append(ctx, mlcore.NewRecord(mlcore.Features{"x": i}, i%2 == 0))
				require.NoError(t, err)
				assert.Equal(t, i, id)
			}
			ids, err := d.AppendAll(ctx, []*mlcore.Record{
				mlcore.NewRecord(mlcore.Features{"x": 5}, false),
				mlcore.NewRecord(mlcore.Features{"x": 6}, true),
			})
			require.NoError(t, err)
			assert.Equal(t, []int{5, 6}, ids)

			assert.Equal(t, 7, d.Len())
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, d.IDs())

			var seen []int
			require.NoError(t, d.Range(ctx, func(id int, r *mlcore.Record) error {
				seen = append(seen, id)
				assert.Equal(t, int64(id), r.Features["x"])
				return nil
			}))
			assert.Equal(t, d.IDs(), seen)
		})
	}
}

func TestDataset_Get(t *testing.T) {
	ctx := context.Background()
	d := newDataset(t, inmem.NewConnector(),
		mlcore.NewRecord(mlcore.Features{"a": 1, "b": "x", "c": 1.5, "d": nil}, "yes"),
	)

	r, err := d.Get(ctx, 0)
	require.NoError(t, err)
	if diff := cmp.Diff(mlcore.Features{"a": int64(1), "b": "x", "c": 1.5, "d": nil}, r.Features); diff != "" {
		t.Fatalf("unexpected features -want/+got:\n%s", diff)
	}
	assert.Equal(t, "yes", r.Label)

	_, err = d.Get(ctx, 1)
	errCode(t, mlcore.EOutOfRange, err)
	_, err = d.Get(ctx, -1)
	errCode(t, mlcore.EOutOfRange, err)
}

func TestDataset_AppendInvalid(t *testing.T) {
	ctx := context.Background()
	d := newDataset(t, inmem.NewConnector())

	_, err := d.Append(ctx, mlcore.NewRecord(mlcore.Features{"a": []int{1}}, nil))
	errCode(t, mlcore.EInvalid, err)
	_, err = d.Append(ctx, mlcore.NewRecord(mlcore.Features{"": 1}, nil))
	errCode(t, mlcore.EInvalid, err)
	_, err = d.Append(ctx, mlcore.NewRecord(nil, map[string]int{}))
	errCode(t, mlcore.EInvalid, err)
	_, err = d.Append(ctx, nil)
	errCode(t, mlcore.EInvalid, err)

	assert.Equal(t, 0, d.Len())
}

func TestDataset_Removal(t *testing.T) {
	ctx := context.Background()
	r := mlcore.NewRecord(mlcore.Features{"a": 1}, true)
	d := newDataset(t, inmem.NewConnector(), r, r.Copy())

	var c dataframe.Collection = d
	errCode(t, mlcore.EUnsupported, c.Remove(ctx, r))
	errCode(t, mlcore.EUnsupported, c.RemoveAll(ctx, []*mlcore.Record{r}))
	errCode(t, mlcore.EUnsupported, c.RetainAll(ctx, nil))
	errCode(t, mlcore.EUnsupported, c.RemoveID(ctx, 0))

	assert.Equal(t, 2, d.Len())
	ok, err := c.Contains(ctx, r)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDataset_Metadata(t *testing.T) {
	for name, conn := range connectors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := newDataset(t, conn,
				mlcore.NewRecord(mlcore.Features{"a": 1}, true),
				mlcore.NewRecord(mlcore.Features{"a": 2.5}, false),
			)
			defer d.Delete(ctx)

			check := func() {
				lt, err := d.LabelType(ctx)
				require.NoError(t, err)
				assert.Equal(t, mlcore.Boolean, lt)

				types, err := d.ColumnTypes(ctx)
				require.NoError(t, err)
				assert.Equal(t, map[string]mlcore.DataType{"a": mlcore.Numerical}, types)
			}
			check()
			require.NoError(t, d.RecomputeMetadata(ctx))
			check()
		})
	}
}

func TestDataset_MetadataFirstLabel(t *testing.T) {
	ctx := context.Background()
	d := newDataset(t, inmem.NewConnector(),
		mlcore.NewRecord(mlcore.Features{"a": nil, "b": "x"}, nil),
	)

	lt, err := d.LabelType(ctx)
	require.NoError(t, err)
	assert.Equal(t, mlcore.DataType(0), lt)

	// the first non nil label and value fix the types
	_, err = d.Append(ctx, mlcore.NewRecord(mlcore.Features{"a": true, "b": 1}, "spam"))
	require.NoError(t, err)
	_, err = d.Append(ctx, mlcore.NewRecord(mlcore.Features{"a": 2}, 1.0))
	require.NoError(t, err)

	lt, err = d.LabelType(ctx)
	require.NoError(t, err)
	assert.Equal(t, mlcore.Categorical, lt)

	types, err := d.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]mlcore.DataType{"a": mlcore.Boolean, "b": mlcore.Categorical}, types)

	n, err := d.ColumnCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDataset_Replace(t *testing.T) {
	ctx := context.Background()
	d := newDataset(t, inmem.NewConnector(),
		mlcore.NewRecord(mlcore.Features{"a": 1, "b": 2}, "x"),
	)

	errCode(t, mlcore.EOutOfRange, d.Replace(ctx, 1, mlcore.NewRecord(nil, "x")))

	require.NoError(t, d.Replace(ctx, 0, mlcore.NewRecord(mlcore.Features{"a": 1, "c": "z"}, "x")))
	r, err := d.Get(ctx, 0)
	require.NoError(t, err)
	assert.True(t, mlcore.NewRecord(mlcore.Features{"a": 1, "c": "z"}, "x").Equal(r))

	// b is stale until metadata is recomputed
	types, err := d.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]mlcore.DataType{
		"a": mlcore.Numerical,
		"b": mlcore.Numerical,
		"c": mlcore.Categorical,
	}, types)

	require.NoError(t, d.RecomputeMetadata(ctx))
	types, err = d.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]mlcore.DataType{
		"a": mlcore.Numerical,
		"c": mlcore.Categorical,
	}, types)
}

func TestDataset_Subset(t *testing.T) {
	for name, conn := range connectors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src := []*mlcore.Record{
				mlcore.NewRecord(mlcore.Features{"a": 0}, "r0"),
				mlcore.NewRecord(mlcore.Features{"a": 1}, "r1"),
				mlcore.NewRecord(mlcore.Features{"a": 2}, "r2"),
			}
			d := newDataset(t, conn, src...)
			defer d.Delete(ctx)

			sub, err := d.Subset(ctx, []int{2, 0})
			require.NoError(t, err)
			defer sub.Delete(ctx)

			assert.NotEqual(t, d.Name(), sub.Name())
			assert.Equal(t, []int{0, 1}, sub.IDs())
			assertRecordsEqual(t, []*mlcore.Record{src[2], src[0]}, rows(t, sub))
			assertRecordsEqual(t, src, rows(t, d))

			_, err = d.Subset(ctx, []int{0, 3})
			errCode(t, mlcore.EOutOfRange, err)
		})
	}
}

func TestDataset_Copy(t *testing.T) {
	for name, conn := range connectors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			src := []*mlcore.Record{
				mlcore.NewRecord(mlcore.Features{"a": 1, "b": "u"}, true),
				mlcore.NewRecord(mlcore.Features{"a": 2, "b": "v"}, false),
				mlcore.NewRecord(mlcore.Features{"a": 3, "b": "w"}, true),
			}
			d := newDataset(t, conn, src...)
			defer d.Delete(ctx)

			cp, err := d.Copy(ctx)
			require.NoError(t, err)
			assertRecordsEqual(t, rows(t, d), rows(t, cp))

			// changes to the copy never reach the original
			require.NoError(t, cp.Replace(ctx, 0, mlcore.NewRecord(mlcore.Features{"a": 9}, false)))
			require.NoError(t, cp.Delete(ctx))

			assert.Equal(t, 3, d.Len())
			assertRecordsEqual(t, src, rows(t, d))
		})
	}
}

func TestDataset_DropColumns(t *testing.T) {
	for name, conn := range connectors(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			d := newDataset(t, conn,
				mlcore.NewRecord(mlcore.Features{"a": 1, "b": 2, "c": 3}, "x"),
				mlcore.NewRecord(mlcore.Features{"a": 4}, "y"),
				mlcore.NewRecord(mlcore.Features{"b": 5, "c": 6}, "z"),
			)
			defer d.Delete(ctx)

			r, err := d.Get(ctx, 0)
			require.NoError(t, err)
			require.NoError(t, d.Replace(ctx, 0, r.WithPrediction("x", map[interface{}]float64{"x": 1})))

			require.NoError(t, d.DropColumns(ctx, "b", "nonesuch"))

			types, err := d.ColumnTypes(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]mlcore.DataType{"a": mlcore.Numerical, "c": mlcore.Numerical}, types)

			got := rows(t, d)
			assertRecordsEqual(t, []*mlcore.Record{
				mlcore.NewRecord(mlcore.Features{"a": 1, "c": 3}, "x"),
				mlcore.NewRecord(mlcore.Features{"a": 4}, "y"),
				mlcore.NewRecord(mlcore.Features{"c": 6}, "z"),
			}, got)
			assert.Equal(t, "x", got[0].Predicted)
			assert.Equal(t, map[interface{}]float64{"x": 1}, got[0].Probabilities)

			// unknown columns only: nothing to do
			require.NoError(t, d.DropColumns(ctx, "b"))
			assert.Equal(t, 3, d.Len())
		})
	}
}

func TestDataset_RangeReplace(t *testing.T) {
	ctx := context.Background()
	d := newDataset(t, inmem.NewConnector(),
		mlcore.NewRecord(mlcore.Features{"a": 1}, "x"),
		mlcore.NewRecord(mlcore.Features{"a": 2}, "y"),
		mlcore.NewRecord(mlcore.Features{"a": 3}, "z"),
	)

	require.NoError(t, d.Range(ctx, func(id int, r *mlcore.Record) error {
		return d.Replace(ctx, id, r.WithPrediction(r.Label, nil))
	}))

	for _, r := range rows(t, d) {
		assert.Equal(t, r.Label, r.Predicted)
	}

	stop := assert.AnError
	var visited int
	err := d.Range(ctx, func(int, *mlcore.Record) error {
		visited++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, visited)
}

func TestDataset_Values(t *testing.T) {
	ctx := context.Background()
	r0 := mlcore.NewRecord(mlcore.Features{"a": 1}, "x")
	r1 := mlcore.NewRecord(mlcore.Features{"b": "q"}, nil)
	r2 := mlcore.NewRecord(mlcore.Features{"a": 2.5}, "z")
	d := newDataset(t, inmem.NewConnector(), r0, r1, r2)

	values, err := d.ColumnValues(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), nil, 2.5}, values)

	labels, err := d.LabelValues(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", nil, "z"}, labels)

	id, err := d.IndexOf(ctx, r2)
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	// predictions are ignored when comparing
	id, err = d.IndexOf(ctx, r1.WithPrediction("p", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = d.IndexOf(ctx, mlcore.NewRecord(mlcore.Features{"a": 1.0}, "x"))
	require.NoError(t, err)
	assert.Equal(t, -1, id)

	ok, err := d.ContainsAll(ctx, []*mlcore.Record{r2, r0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.ContainsAll(ctx, []*mlcore.Record{r0, mlcore.NewRecord(nil, "x")})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDataset_Delete(t *testing.T) {
	ctx := context.Background()
	conn := inmem.NewConnector()
	d := newDataset(t, conn, mlcore.NewRecord(mlcore.Features{"a": 1}, "x"))
	require.Equal(t, 1, conn.Sessions())

	require.NoError(t, d.Delete(ctx))
	assert.Equal(t, 0, conn.Sessions())
	assert.Equal(t, 0, d.Len())

	_, err := d.Append(ctx, mlcore.NewRecord(nil, "x"))
	errCode(t, mlcore.EInvalid, err)
	_, err = d.Get(ctx, 0)
	errCode(t, mlcore.EInvalid, err)
	errCode(t, mlcore.EInvalid, d.Delete(ctx))
}

func TestDataset_Reopen(t *testing.T) {
	ctx := context.Background()
	conn := bolt.NewConnector(zaptest.NewLogger(t), t.TempDir())

	d := newDataset(t, conn,
		mlcore.NewRecord(mlcore.Features{"a": 1}, "x"),
		mlcore.NewRecord(mlcore.Features{"a": 2}, "y"),
	)
	require.NoError(t, d.Close())
	_, err := d.Get(ctx, 0)
	errCode(t, mlcore.EInvalid, err)

	d, err = dataframe.New(ctx, conn, dataframe.WithName(d.Name()))
	require.NoError(t, err)
	defer d.Delete(ctx)

	assert.Equal(t, 2, d.Len())
	id, err := d.Append(ctx, mlcore.NewRecord(mlcore.Features{"a": 3}, "z"))
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestDataset_StoreFailure(t *testing.T) {
	ctx := context.Background()

	conn := mock.NewConnector(mock.NewFailingStore(assert.AnError))
	_, err := dataframe.New(ctx, conn)
	errCode(t, mlcore.EIO, err)
	assert.ErrorIs(t, err, assert.AnError)
}
