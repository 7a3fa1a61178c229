package dataframe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
	"go.uber.org/zap"
)

// csvBatchSize is the number of rows appended per write transaction.
const csvBatchSize = 500

// CSVOptions configures ParseCSV.
type CSVOptions struct {
	// Label names the label column. Without it every column is a feature.
	Label string
	// Types declares the type of each column to read, the label included.
	// Columns of the file that are not declared are ignored. When Types is
	// nil every column is read and its values are inferred.
	Types map[string]mlcore.DataType

	Comma      rune
	Comment    rune
	LazyQuotes bool
}

// ParseCSV builds a dataset from CSV with a header row. Rows whose number of
// fields differs from the header are skipped. On any read or storage
// failure the partially built dataset is deleted and the error returned.
func ParseCSV(ctx context.Context, conn kv.Connector, r io.Reader, opts CSVOptions, dopts ...Option) (*Dataset, error) {
	const op = "dataframe.ParseCSV"

	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.Comment = opts.Comment
	cr.LazyQuotes = opts.LazyQuotes
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: "missing header row"}
	}
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}

	p, err := newCSVParser(header, opts)
	if err != nil {
		return nil, err
	}

	d, err := New(ctx, conn, dopts...)
	if err != nil {
		return nil, err
	}
	abort := func(err error) (*Dataset, error) {
		if derr := d.Delete(context.WithoutCancel(ctx)); derr != nil {
			d.log.Warn("Failed to delete partial dataset", zap.Error(derr))
		}
		return nil, err
	}

	if p.typed {
		if err := d.seedMetadata(ctx, p.labelType, p.featureTypes()); err != nil {
			return abort(err)
		}
	}

	batch := make([]*mlcore.Record, 0, csvBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		var err error
		if p.typed {
			err = d.appendRaw(ctx, batch)
		} else {
			_, err = d.AppendAll(ctx, batch)
		}
		batch = batch[:0]
		return err
	}

	var skipped int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return abort(mlcore.IOError(op, err))
		}

		line, _ := cr.FieldPos(0)
		if len(row) != len(header) {
			d.log.Warn("Skipping row with wrong number of fields",
				zap.Int("line", line),
				zap.Int("fields", len(row)),
				zap.Int("expected", len(header)))
			skipped++
			continue
		}

		rec, err := p.record(row)
		if err != nil {
			return abort(&mlcore.Error{
				Code: mlcore.EInvalid,
				Op:   op,
				Msg:  fmt.Sprintf("line %d", line),
				Err:  err,
			})
		}

		batch = append(batch, rec)
		if len(batch) == csvBatchSize {
			if err := flush(); err != nil {
				return abort(err)
			}
		}
	}
	if err := flush(); err != nil {
		return abort(err)
	}

	d.log.Debug("Parsed csv", zap.Int("rows", d.Len()), zap.Int("skipped", skipped))
	return d, nil
}

type csvColumn struct {
	name  string
	index int
	typ   mlcore.DataType
}

type csvParser struct {
	typed     bool
	label     *csvColumn
	labelType mlcore.DataType
	features  []csvColumn
}

func newCSVParser(header []string, opts CSVOptions) (*csvParser, error) {
	const op = "dataframe.ParseCSV"

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("header field %d is empty", i)}
		}
		if _, ok := index[h]; ok {
			return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("duplicate header %q", h)}
		}
		index[h] = i
	}

	p := &csvParser{typed: opts.Types != nil}

	var names []string
	if p.typed {
		for col := range opts.Types {
			if _, ok := index[col]; !ok {
				return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("declared column %q is missing from the header", col)}
			}
			names = append(names, col)
		}
		sort.Strings(names)
	} else {
		for _, h := range header {
			names = append(names, strings.TrimSpace(h))
		}
	}

	if opts.Label != "" {
		i, ok := index[opts.Label]
		if !ok {
			return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("label column %q is missing from the header", opts.Label)}
		}
		p.label = &csvColumn{name: opts.Label, index: i}
		if p.typed {
			t, ok := opts.Types[opts.Label]
			if !ok {
				return nil, &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("label column %q has no declared type", opts.Label)}
			}
			p.label.typ = t
			p.labelType = t
		}
	}

	for _, col := range names {
		if col == opts.Label {
			continue
		}
		p.features = append(p.features, csvColumn{
			name:  col,
			index: index[col],
			typ:   opts.Types[col],
		})
	}
	return p, nil
}

func (p *csvParser) featureTypes() map[string]mlcore.DataType {
	types := make(map[string]mlcore.DataType, len(p.features))
	for _, c := range p.features {
		types[c.name] = c.typ
	}
	return types
}

func (p *csvParser) parse(c csvColumn, raw string) (interface{}, error) {
	if !p.typed {
		return mlcore.ParseValue(raw), nil
	}
	v, err := c.typ.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.name, err)
	}
	return v, nil
}

func (p *csvParser) record(row []string) (*mlcore.Record, error) {
	x := make(mlcore.Features, len(p.features))
	for _, c := range p.features {
		v, err := p.parse(c, row[c.index])
		if err != nil {
			return nil, err
		}
		x[c.name] = v
	}

	var y interface{}
	if p.label != nil {
		v, err := p.parse(*p.label, row[p.label.index])
		if err != nil {
			return nil, err
		}
		y = v
	}
	return mlcore.NewRecord(x, y), nil
}
