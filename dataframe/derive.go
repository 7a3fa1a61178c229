package dataframe

import (
	"context"

	"github.com/influxdata/mlcore"
	"go.uber.org/zap"
)

// Subset returns a new dataset, in a fresh session of the same connector,
// holding copies of the rows named by ids in that order. The new rows are
// numbered from 0. Ids may repeat.
func (d *Dataset) Subset(ctx context.Context, ids []int) (*Dataset, error) {
	const op = "dataframe.Subset"
	if err := d.check(op); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := d.checkID(op, id); err != nil {
			return nil, err
		}
	}

	sub, err := New(ctx, d.conn, WithLogger(d.log), WithPageSize(d.pageSize))
	if err != nil {
		return nil, err
	}

	for from := 0; from < len(ids); from += d.pageSize {
		to := from + d.pageSize
		if to > len(ids) {
			to = len(ids)
		}

		records, err := d.read(ctx, ids[from:to])
		if err == nil {
			_, err = sub.AppendAll(ctx, records)
		}
		if err != nil {
			return nil, d.abortSubset(ctx, op, sub, err)
		}
	}

	if err := d.inheritTypes(ctx, sub); err != nil {
		return nil, d.abortSubset(ctx, op, sub, err)
	}
	return sub, nil
}

// inheritTypes overwrites the inferred types of sub with the types d holds
// for the same columns, so declared types such as Ordinal survive.
func (d *Dataset) inheritTypes(ctx context.Context, sub *Dataset) error {
	srcTypes, err := d.ColumnTypes(ctx)
	if err != nil {
		return err
	}
	srcLabel, err := d.LabelType(ctx)
	if err != nil {
		return err
	}
	subTypes, err := sub.ColumnTypes(ctx)
	if err != nil {
		return err
	}
	subLabel, err := sub.LabelType(ctx)
	if err != nil {
		return err
	}

	override := map[string]mlcore.DataType{}
	for col, t := range subTypes {
		if st, ok := srcTypes[col]; ok && st != t {
			override[col] = st
		}
	}
	label := mlcore.DataType(0)
	if subLabel != 0 && srcLabel != 0 && subLabel != srcLabel {
		label = srcLabel
	}
	if len(override) == 0 && label == 0 {
		return nil
	}
	return sub.seedMetadata(ctx, label, override)
}

func (d *Dataset) abortSubset(ctx context.Context, op string, sub *Dataset, err error) error {
	if derr := sub.Delete(context.WithoutCancel(ctx)); derr != nil {
		d.log.Warn("Failed to delete partial subset",
			zap.String("subset", sub.Name()),
			zap.Error(derr))
	}
	return mlcore.IOError(op, err)
}

// Copy returns a new dataset holding a copy of every row.
func (d *Dataset) Copy(ctx context.Context) (*Dataset, error) {
	return d.Subset(ctx, d.IDs())
}
