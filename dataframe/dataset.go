package dataframe

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	recordsBucket = []byte("recordsv1")
	columnsBucket = []byte("columnsv1")
	metaBucket    = []byte("metav1")

	countKey     = []byte("count")
	labelTypeKey = []byte("label_type")
)

// DefaultPageSize is the number of rows read per transaction when iterating.
const DefaultPageSize = 1000

// SessionPrefix prefixes the session name of every dataset created without
// an explicit name.
const SessionPrefix = "dataframe-"

// Dataset is an ordered collection of records stored in a kv session. Rows
// are addressed by dense ids 0..Len()-1 and can never be removed. Column and
// label types are kept in the store next to the rows; only the row count is
// held in memory.
//
// A Dataset is not safe for concurrent mutation. Concurrent reads are fine.
type Dataset struct {
	name     string
	conn     kv.Connector
	store    kv.Store
	log      *zap.Logger
	pageSize int

	mu      sync.RWMutex
	count   int
	deleted bool
	closed  bool
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger sets the logger of the dataset.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dataset) {
		d.log = log
	}
}

// WithName opens the dataset stored in the named session instead of a fresh
// one. Use it to reopen a dataset kept by a persistent connector.
func WithName(name string) Option {
	return func(d *Dataset) {
		d.name = name
	}
}

// WithPageSize sets how many rows are read per transaction while iterating.
func WithPageSize(n int) Option {
	return func(d *Dataset) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// New creates a dataset in a fresh session of conn.
func New(ctx context.Context, conn kv.Connector, opts ...Option) (*Dataset, error) {
	const op = "dataframe.New"

	d := &Dataset{
		conn:     conn,
		log:      zap.NewNop(),
		pageSize: DefaultPageSize,
	}
	for _, o := range opts {
		o(d)
	}
	if d.name == "" {
		d.name = SessionPrefix + uuid.NewString()
	}

	store, err := conn.Open(ctx, d.name)
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}
	d.store = store

	err = store.Update(ctx, func(tx kv.Tx) error {
		for _, b := range [][]byte{recordsBucket, columnsBucket} {
			if _, err := tx.Bucket(b); err != nil {
				return err
			}
		}
		meta, err := tx.Bucket(metaBucket)
		if err != nil {
			return err
		}
		d.count, err = readCount(meta)
		return err
	})
	if err != nil {
		_ = store.Close()
		return nil, mlcore.IOError(op, err)
	}

	d.log = d.log.With(zap.String("dataset", d.name))
	d.log.Debug("Dataset opened", zap.Int("rows", d.count))
	return d, nil
}

// Name returns the session name of the dataset.
func (d *Dataset) Name() string {
	return d.name
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

func (d *Dataset) check(op string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case d.deleted:
		return &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   op,
			Msg:  "dataset has been deleted",
		}
	case d.closed:
		return &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   op,
			Msg:  "dataset is closed",
		}
	}
	return nil
}

func (d *Dataset) checkID(op string, id int) error {
	if n := d.Len(); id < 0 || id >= n {
		return &mlcore.Error{
			Code: mlcore.EOutOfRange,
			Op:   op,
			Msg:  fmt.Sprintf("row %d out of range [0, %d)", id, n),
		}
	}
	return nil
}

func validateRecord(op string, r *mlcore.Record) error {
	if r == nil {
		return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: "record is nil"}
	}
	for col, v := range r.Features {
		if col == "" {
			return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: "column name is empty"}
		}
		if !mlcore.IsScalar(v) {
			return &mlcore.Error{
				Code: mlcore.EInvalid,
				Op:   op,
				Msg:  fmt.Sprintf("column %q holds non scalar value of type %T", col, v),
			}
		}
	}
	if !mlcore.IsScalar(r.Label) {
		return &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   op,
			Msg:  fmt.Sprintf("label of type %T is not a scalar", r.Label),
		}
	}
	return nil
}

// Get returns a copy of row id.
func (d *Dataset) Get(ctx context.Context, id int) (*mlcore.Record, error) {
	const op = "dataframe.Get"
	if err := d.check(op); err != nil {
		return nil, err
	}
	if err := d.checkID(op, id); err != nil {
		return nil, err
	}

	var r *mlcore.Record
	err := d.store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(recordsBucket)
		if err != nil {
			return err
		}
		r, err = getRecord(b, id)
		return err
	})
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}
	return r, nil
}

// Append stores r as the next row and returns its id. Columns not seen
// before get their type from r, and the label type is set by the first
// record carrying a label.
func (d *Dataset) Append(ctx context.Context, r *mlcore.Record) (int, error) {
	ids, err := d.appendAll(ctx, "dataframe.Append", []*mlcore.Record{r}, true)
	if err != nil {
		return -1, err
	}
	return ids[0], nil
}

// AppendAll appends records in order within a single transaction and
// returns their ids.
func (d *Dataset) AppendAll(ctx context.Context, records []*mlcore.Record) ([]int, error) {
	return d.appendAll(ctx, "dataframe.AppendAll", records, true)
}

// appendRaw appends records without touching the column metadata. Callers
// that already know the types seed them with seedMetadata.
func (d *Dataset) appendRaw(ctx context.Context, records []*mlcore.Record) error {
	_, err := d.appendAll(ctx, "dataframe.appendRaw", records, false)
	return err
}

func (d *Dataset) appendAll(ctx context.Context, op string, records []*mlcore.Record, meta bool) ([]int, error) {
	if err := d.check(op); err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := validateRecord(op, r); err != nil {
			return nil, err
		}
	}
	if len(records) == 0 {
		return []int{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	first := d.count
	err := d.store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(recordsBucket)
		if err != nil {
			return err
		}
		for i, r := range records {
			if err := putRecord(b, first+i, r); err != nil {
				return err
			}
		}
		if meta {
			if err := updateMetadata(tx, records...); err != nil {
				return err
			}
		}
		m, err := tx.Bucket(metaBucket)
		if err != nil {
			return err
		}
		return writeCount(m, first+len(records))
	})
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}

	d.count = first + len(records)
	ids := make([]int, len(records))
	for i := range ids {
		ids[i] = first + i
	}
	return ids, nil
}

// Replace overwrites row id with r. Metadata is updated the way Append
// updates it: new columns are added, columns r lacks are never removed.
// Use RecomputeMetadata to drop stale columns.
func (d *Dataset) Replace(ctx context.Context, id int, r *mlcore.Record) error {
	const op = "dataframe.Replace"
	if err := d.check(op); err != nil {
		return err
	}
	if err := d.checkID(op, id); err != nil {
		return err
	}
	if err := validateRecord(op, r); err != nil {
		return err
	}

	err := d.store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(recordsBucket)
		if err != nil {
			return err
		}
		if err := putRecord(b, id, r); err != nil {
			return err
		}
		return updateMetadata(tx, r)
	})
	return mlcore.IOError(op, err)
}

// Delete removes every bucket of the dataset and drops its session. The
// dataset must not be used afterwards.
func (d *Dataset) Delete(ctx context.Context) error {
	const op = "dataframe.Delete"
	if err := d.check(op); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = true
	d.count = 0

	var err error
	for _, b := range [][]byte{recordsBucket, columnsBucket, metaBucket} {
		err = multierr.Append(err, d.store.DeleteBucket(ctx, b))
	}
	err = multierr.Append(err, d.store.Drop(ctx))
	if err != nil {
		return mlcore.IOError(op, err)
	}

	d.log.Debug("Dataset deleted")
	return nil
}

// Close releases the session without deleting the dataset. Persistent
// connectors keep the rows for a later New with WithName.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleted || d.closed {
		return nil
	}
	d.closed = true
	return mlcore.IOError("dataframe.Close", d.store.Close())
}

func getRecord(b kv.Bucket, id int) (*mlcore.Record, error) {
	v, err := b.Get(encodeID(id))
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", id, err)
	}
	r, err := decodeRecord(v)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", id, err)
	}
	return r, nil
}

func putRecord(b kv.Bucket, id int, r *mlcore.Record) error {
	v, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return b.Put(encodeID(id), v)
}

func readCount(meta kv.Bucket) (int, error) {
	v, err := meta.Get(countKey)
	if kv.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeID(v)
}

func writeCount(meta kv.Bucket, n int) error {
	return meta.Put(countKey, encodeID(n))
}
