package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/dataframe"
	"github.com/influxdata/mlcore/kit/cli"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// dataFlags describe how a CSV input file is read.
type dataFlags struct {
	schema string
	label  string
	comma  string
}

func (d *dataFlags) opts() []cli.Opt {
	return []cli.Opt{
		{
			DestP: &d.schema,
			Flag:  "schema",
			Desc:  "TOML file declaring the label and the column types",
		},
		{
			DestP: &d.label,
			Flag:  "label",
			Desc:  "label column, when no schema is given",
		},
		{
			DestP:   &d.comma,
			Flag:    "comma",
			Default: ",",
			Desc:    "field delimiter",
		},
	}
}

func (d *dataFlags) csvOptions() (dataframe.CSVOptions, error) {
	var opts dataframe.CSVOptions
	if d.schema != "" {
		s, err := dataframe.LoadSchema(d.schema)
		if err != nil {
			return opts, err
		}
		opts = s.CSVOptions()
	} else {
		opts.Label = d.label
	}

	if utf8.RuneCountInString(d.comma) != 1 {
		return opts, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   "mlcore.csvOptions",
			Msg:  fmt.Sprintf("delimiter must be a single character, got %q", d.comma),
		}
	}
	opts.Comma, _ = utf8.DecodeRuneInString(d.comma)
	return opts, nil
}

// load reads the CSV file at path into a new dataset. The caller deletes
// it with e.drop.
func (e *env) load(ctx context.Context, d *dataFlags, path string) (*dataframe.Dataset, dataframe.CSVOptions, error) {
	opts, err := d.csvOptions()
	if err != nil {
		return nil, opts, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, opts, err
	}
	defer f.Close()

	data, err := dataframe.ParseCSV(ctx, e.conn, bufio.NewReader(f), opts, dataframe.WithLogger(e.log))
	if err != nil {
		return nil, opts, err
	}
	e.log.Info("Dataset loaded", zap.String("file", path), zap.Int("rows", data.Len()))
	return data, opts, nil
}

func (e *env) drop(ctx context.Context, data *dataframe.Dataset) {
	if err := data.Delete(context.WithoutCancel(ctx)); err != nil {
		e.log.Warn("Failed to delete dataset", zap.String("dataset", data.Name()), zap.Error(err))
	}
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writePredictions writes every row of data as CSV: the feature columns in
// name order, the label column when there is one, then the prediction.
func writePredictions(ctx context.Context, w io.Writer, data *dataframe.Dataset, label string) error {
	types, err := data.ColumnTypes(ctx)
	if err != nil {
		return err
	}
	columns := make([]string, 0, len(types))
	for c := range types {
		if c != label {
			columns = append(columns, c)
		}
	}
	sort.Strings(columns)

	header := append([]string{}, columns...)
	if label != "" {
		header = append(header, label)
	}
	header = append(header, "predicted")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	err = data.Range(ctx, func(_ int, r *mlcore.Record) error {
		for i, c := range columns {
			row[i] = format(r.Features[c])
		}
		i := len(columns)
		if label != "" {
			row[i] = format(r.Label)
			i++
		}
		row[i] = format(r.Predicted)
		return cw.Write(row)
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func format(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
