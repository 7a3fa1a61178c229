package dataframe

import (
	"context"

	"github.com/influxdata/mlcore"
)

// Frame is the read and append surface of a dataset. Algorithms should
// depend on Frame.
type Frame interface {
	Len() int
	Get(ctx context.Context, id int) (*mlcore.Record, error)
	Range(ctx context.Context, fn func(id int, r *mlcore.Record) error) error
	Append(ctx context.Context, r *mlcore.Record) (int, error)
	Replace(ctx context.Context, id int, r *mlcore.Record) error
	LabelType(ctx context.Context) (mlcore.DataType, error)
	ColumnTypes(ctx context.Context) (map[string]mlcore.DataType, error)
}

// Collection is Frame plus the membership and removal methods of a general
// purpose collection. Removal methods are present for interface conformance
// only: rows are addressed by dense ids and removing one would leave a gap,
// so they always fail with EUnsupported.
type Collection interface {
	Frame
	Contains(ctx context.Context, r *mlcore.Record) (bool, error)
	ContainsAll(ctx context.Context, records []*mlcore.Record) (bool, error)
	Remove(ctx context.Context, r *mlcore.Record) error
	RemoveAll(ctx context.Context, records []*mlcore.Record) error
	RetainAll(ctx context.Context, records []*mlcore.Record) error
	RemoveID(ctx context.Context, id int) error
}

var (
	_ Frame      = (*Dataset)(nil)
	_ Collection = (*Dataset)(nil)
)

func unsupported(op string) error {
	return &mlcore.Error{
		Code: mlcore.EUnsupported,
		Op:   op,
		Msg:  "rows cannot be removed from a dataset",
	}
}

// Remove always fails with EUnsupported.
func (d *Dataset) Remove(ctx context.Context, r *mlcore.Record) error {
	return unsupported("dataframe.Remove")
}

// RemoveAll always fails with EUnsupported.
func (d *Dataset) RemoveAll(ctx context.Context, records []*mlcore.Record) error {
	return unsupported("dataframe.RemoveAll")
}

// RetainAll always fails with EUnsupported.
func (d *Dataset) RetainAll(ctx context.Context, records []*mlcore.Record) error {
	return unsupported("dataframe.RetainAll")
}

// RemoveID always fails with EUnsupported.
func (d *Dataset) RemoveID(ctx context.Context, id int) error {
	return unsupported("dataframe.RemoveID")
}
