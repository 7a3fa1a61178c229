package dataframe

import (
	"fmt"
	"io"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/influxdata/mlcore"
)

// Schema declares the label column and the type of every column of a CSV
// file. It is usually read from TOML:
//
//	label = "class"
//
//	[columns]
//	age   = "numerical"
//	grade = "ordinal"
//	class = "categorical"
type Schema struct {
	Label   string                     `toml:"label"`
	Columns map[string]mlcore.DataType `toml:"columns"`
}

// DecodeSchema reads a TOML schema from r.
func DecodeSchema(r io.Reader) (*Schema, error) {
	var s Schema
	if _, err := toml.NewDecoder(r).Decode(&s); err != nil {
		return nil, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   "dataframe.DecodeSchema",
			Err:  err,
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSchema reads a TOML schema from the file at path.
func LoadSchema(path string) (*Schema, error) {
	var s Schema
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return nil, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   "dataframe.LoadSchema",
			Msg:  fmt.Sprintf("reading schema %s", path),
			Err:  err,
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every declared type is known and that the label, if
// any, is declared.
func (s *Schema) Validate() error {
	for _, col := range s.ColumnNames() {
		if !s.Columns[col].Valid() {
			return &mlcore.Error{
				Code: mlcore.EInvalid,
				Op:   "dataframe.Schema",
				Msg:  fmt.Sprintf("column %q has no valid type", col),
			}
		}
	}
	if s.Label != "" {
		if _, ok := s.Columns[s.Label]; !ok {
			return &mlcore.Error{
				Code: mlcore.EInvalid,
				Op:   "dataframe.Schema",
				Msg:  fmt.Sprintf("label column %q is not declared", s.Label),
			}
		}
	}
	return nil
}

// ColumnNames returns the declared columns in sorted order.
func (s *Schema) ColumnNames() []string {
	cols := make([]string, 0, len(s.Columns))
	for col := range s.Columns {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// CSVOptions returns options for ParseCSV using the schema's types.
func (s *Schema) CSVOptions() CSVOptions {
	return CSVOptions{
		Label: s.Label,
		Types: s.Columns,
	}
}
