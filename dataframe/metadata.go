package dataframe

import (
	"context"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
)

// updateMetadata records the type of every column of records that is not
// known yet, and the label type if none is set. Known types are never
// changed and columns are never removed.
func updateMetadata(tx kv.Tx, records ...*mlcore.Record) error {
	cols, err := tx.Bucket(columnsBucket)
	if err != nil {
		return err
	}
	meta, err := tx.Bucket(metaBucket)
	if err != nil {
		return err
	}

	labelType, err := readDataType(meta, labelTypeKey)
	if err != nil {
		return err
	}

	// columns already written by this call
	seen := map[string]struct{}{}
	for _, r := range records {
		if labelType == 0 && r.Label != nil {
			labelType = mlcore.InferDataType(r.Label)
			if err := writeDataType(meta, labelTypeKey, labelType); err != nil {
				return err
			}
		}

		for col, v := range r.Features {
			if v == nil {
				continue
			}
			if _, ok := seen[col]; ok {
				continue
			}
			t, err := readDataType(cols, []byte(col))
			if err != nil {
				return err
			}
			if t == 0 {
				if err := writeDataType(cols, []byte(col), mlcore.InferDataType(v)); err != nil {
					return err
				}
			}
			seen[col] = struct{}{}
		}
	}
	return nil
}

// seedMetadata writes declared types. Declared types win over anything
// inferred before.
func (d *Dataset) seedMetadata(ctx context.Context, label mlcore.DataType, columns map[string]mlcore.DataType) error {
	const op = "dataframe.seedMetadata"
	if err := d.check(op); err != nil {
		return err
	}

	err := d.store.Update(ctx, func(tx kv.Tx) error {
		cols, err := tx.Bucket(columnsBucket)
		if err != nil {
			return err
		}
		for col, t := range columns {
			if err := writeDataType(cols, []byte(col), t); err != nil {
				return err
			}
		}
		if label == 0 {
			return nil
		}
		meta, err := tx.Bucket(metaBucket)
		if err != nil {
			return err
		}
		return writeDataType(meta, labelTypeKey, label)
	})
	return mlcore.IOError(op, err)
}

// LabelType returns the type of the label column, or zero if no labelled
// record has been seen.
func (d *Dataset) LabelType(ctx context.Context) (mlcore.DataType, error) {
	const op = "dataframe.LabelType"
	if err := d.check(op); err != nil {
		return 0, err
	}

	var t mlcore.DataType
	err := d.store.View(ctx, func(tx kv.Tx) error {
		meta, err := tx.Bucket(metaBucket)
		if err != nil {
			return err
		}
		t, err = readDataType(meta, labelTypeKey)
		return err
	})
	if err != nil {
		return 0, mlcore.IOError(op, err)
	}
	return t, nil
}

// ColumnTypes returns the type of every known feature column.
func (d *Dataset) ColumnTypes(ctx context.Context) (map[string]mlcore.DataType, error) {
	const op = "dataframe.ColumnTypes"
	if err := d.check(op); err != nil {
		return nil, err
	}

	types := map[string]mlcore.DataType{}
	err := d.store.View(ctx, func(tx kv.Tx) error {
		cols, err := tx.Bucket(columnsBucket)
		if err != nil {
			return err
		}
		cur, err := cols.Cursor()
		if err != nil {
			return err
		}
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			var t mlcore.DataType
			if err := t.UnmarshalText(v); err != nil {
				return err
			}
			types[string(k)] = t
		}
		return nil
	})
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}
	return types, nil
}

// ColumnCount returns the number of known feature columns.
func (d *Dataset) ColumnCount(ctx context.Context) (int, error) {
	types, err := d.ColumnTypes(ctx)
	if err != nil {
		return 0, err
	}
	return len(types), nil
}

// RecomputeMetadata clears the column and label types and rebuilds them by
// scanning every row.
func (d *Dataset) RecomputeMetadata(ctx context.Context) error {
	const op = "dataframe.RecomputeMetadata"
	if err := d.check(op); err != nil {
		return err
	}

	err := d.store.Update(ctx, func(tx kv.Tx) error {
		if err := clearBucket(tx, columnsBucket); err != nil {
			return err
		}
		meta, err := tx.Bucket(metaBucket)
		if err != nil {
			return err
		}
		return meta.Delete(labelTypeKey)
	})
	if err != nil {
		return mlcore.IOError(op, err)
	}

	return d.pages(ctx, op, func(ids []int, records []*mlcore.Record) error {
		return d.store.Update(ctx, func(tx kv.Tx) error {
			return updateMetadata(tx, records...)
		})
	})
}

// DropColumns removes the given columns from the metadata and from every
// row holding them. Predictions are left untouched. Columns that are not
// known are ignored.
func (d *Dataset) DropColumns(ctx context.Context, columns ...string) error {
	const op = "dataframe.DropColumns"
	if err := d.check(op); err != nil {
		return err
	}

	var drop []string
	err := d.store.Update(ctx, func(tx kv.Tx) error {
		cols, err := tx.Bucket(columnsBucket)
		if err != nil {
			return err
		}
		for _, col := range columns {
			_, err := cols.Get([]byte(col))
			if kv.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if err := cols.Delete([]byte(col)); err != nil {
				return err
			}
			drop = append(drop, col)
		}
		return nil
	})
	if err != nil {
		return mlcore.IOError(op, err)
	}
	if len(drop) == 0 {
		return nil
	}

	return d.pages(ctx, op, func(ids []int, records []*mlcore.Record) error {
		return d.store.Update(ctx, func(tx kv.Tx) error {
			b, err := tx.Bucket(recordsBucket)
			if err != nil {
				return err
			}
			for i, r := range records {
				if !hasAny(r.Features, drop) {
					continue
				}
				if err := putRecord(b, ids[i], r.WithFeatures(r.Features.Without(drop...))); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func hasAny(x mlcore.Features, columns []string) bool {
	for _, col := range columns {
		if _, ok := x[col]; ok {
			return true
		}
	}
	return false
}

func clearBucket(tx kv.Tx, name []byte) error {
	b, err := tx.Bucket(name)
	if err != nil {
		return err
	}
	cur, err := b.Cursor()
	if err != nil {
		return err
	}
	var keys [][]byte
	for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func readDataType(b kv.Bucket, key []byte) (mlcore.DataType, error) {
	v, err := b.Get(key)
	if kv.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var t mlcore.DataType
	if err := t.UnmarshalText(v); err != nil {
		return 0, err
	}
	return t, nil
}

func writeDataType(b kv.Bucket, key []byte, t mlcore.DataType) error {
	v, err := t.MarshalText()
	if err != nil {
		return err
	}
	return b.Put(key, v)
}
