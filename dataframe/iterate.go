package dataframe

import (
	"context"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
)

// pages reads the rows in id order, pageSize rows per read transaction, and
// hands every page to fn outside of the transaction. Rows appended while
// iterating are not visited.
func (d *Dataset) pages(ctx context.Context, op string, fn func(ids []int, records []*mlcore.Record) error) error {
	n := d.Len()
	for from := 0; from < n; from += d.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		to := from + d.pageSize
		if to > n {
			to = n
		}
		ids := make([]int, 0, to-from)
		for id := from; id < to; id++ {
			ids = append(ids, id)
		}

		records, err := d.read(ctx, ids)
		if err != nil {
			return mlcore.IOError(op, err)
		}
		if err := fn(ids, records); err != nil {
			return mlcore.IOError(op, err)
		}
	}
	return nil
}

// read fetches the given rows in a single read transaction.
func (d *Dataset) read(ctx context.Context, ids []int) ([]*mlcore.Record, error) {
	records := make([]*mlcore.Record, 0, len(ids))
	err := d.store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(recordsBucket)
		if err != nil {
			return err
		}
		for _, id := range ids {
			r, err := getRecord(b, id)
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	return records, err
}

// Range calls fn for every row in id order. No transaction is held while fn
// runs, so fn may call Replace on the dataset. Iteration stops at the first
// error returned by fn, which is returned unchanged.
func (d *Dataset) Range(ctx context.Context, fn func(id int, r *mlcore.Record) error) error {
	const op = "dataframe.Range"
	if err := d.check(op); err != nil {
		return err
	}

	var fnErr error
	err := d.pages(ctx, op, func(ids []int, records []*mlcore.Record) error {
		for i, r := range records {
			if err := fn(ids[i], r); err != nil {
				fnErr = err
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	return err
}

// IDs returns every row id in order.
func (d *Dataset) IDs() []int {
	ids := make([]int, d.Len())
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// ColumnValues returns the value of column for every row in id order. Rows
// lacking the column contribute nil.
func (d *Dataset) ColumnValues(ctx context.Context, column string) ([]interface{}, error) {
	values := make([]interface{}, 0, d.Len())
	err := d.Range(ctx, func(_ int, r *mlcore.Record) error {
		values = append(values, r.Features[column])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// LabelValues returns the label of every row in id order.
func (d *Dataset) LabelValues(ctx context.Context) ([]interface{}, error) {
	values := make([]interface{}, 0, d.Len())
	err := d.Range(ctx, func(_ int, r *mlcore.Record) error {
		values = append(values, r.Label)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// errStop ends a Range early.
type errStop struct{}

func (errStop) Error() string { return "stop" }

// IndexOf returns the id of the first row equal to r, comparing features and
// label only, or -1.
func (d *Dataset) IndexOf(ctx context.Context, r *mlcore.Record) (int, error) {
	found := -1
	err := d.Range(ctx, func(id int, row *mlcore.Record) error {
		if row.Equal(r) {
			found = id
			return errStop{}
		}
		return nil
	})
	if _, ok := err.(errStop); ok {
		err = nil
	}
	return found, err
}

// Contains reports whether a row equal to r exists.
func (d *Dataset) Contains(ctx context.Context, r *mlcore.Record) (bool, error) {
	id, err := d.IndexOf(ctx, r)
	return id >= 0, err
}

// ContainsAll reports whether every record of records has an equal row.
func (d *Dataset) ContainsAll(ctx context.Context, records []*mlcore.Record) (bool, error) {
	missing := make([]*mlcore.Record, 0, len(records))
	missing = append(missing, records...)

	err := d.Range(ctx, func(_ int, row *mlcore.Record) error {
		for i := 0; i < len(missing); {
			if missing[i].Equal(row) {
				missing = append(missing[:i], missing[i+1:]...)
				continue
			}
			i++
		}
		if len(missing) == 0 {
			return errStop{}
		}
		return nil
	})
	if _, ok := err.(errStop); ok {
		err = nil
	}
	if err != nil {
		return false, err
	}
	return len(missing) == 0, nil
}
