package mlcore

import (
	"sort"
)

// Features maps a column name to its value. Values are scalars: nil, bool,
// integers, floats or strings.
type Features map[string]interface{}

// Copy returns a shallow copy of x.
func (x Features) Copy() Features {
	if x == nil {
		return nil
	}
	c := make(Features, len(x))
	for k, v := range x {
		c[k] = v
	}
	return c
}

// Without returns a copy of x lacking the given columns.
func (x Features) Without(columns ...string) Features {
	c := x.Copy()
	for _, col := range columns {
		delete(c, col)
	}
	return c
}

// Columns returns the column names of x in sorted order.
func (x Features) Columns() []string {
	cols := make([]string, 0, len(x))
	for k := range x {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Record is a single row of a dataset. Records are treated as values: once
// placed in a dataset they are replaced whole, never mutated in place.
type Record struct {
	Features Features
	Label    interface{}

	// Predicted and Probabilities are only set by a model.
	Predicted     interface{}
	Probabilities map[interface{}]float64
}

// NewRecord returns a record with the given features and label.
func NewRecord(x Features, y interface{}) *Record {
	return &Record{
		Features: x,
		Label:    y,
	}
}

// Copy returns a copy of r that shares no maps with it.
func (r *Record) Copy() *Record {
	c := &Record{
		Features:  r.Features.Copy(),
		Label:     r.Label,
		Predicted: r.Predicted,
	}
	if r.Probabilities != nil {
		c.Probabilities = make(map[interface{}]float64, len(r.Probabilities))
		for k, v := range r.Probabilities {
			c.Probabilities[k] = v
		}
	}
	return c
}

// WithFeatures returns a copy of r whose features are replaced by x.
// Label and predictions are kept.
func (r *Record) WithFeatures(x Features) *Record {
	c := r.Copy()
	c.Features = x
	return c
}

// WithPrediction returns a copy of r carrying the given prediction.
func (r *Record) WithPrediction(y interface{}, probabilities map[interface{}]float64) *Record {
	c := r.Copy()
	c.Predicted = y
	c.Probabilities = probabilities
	return c
}

// Equal reports whether r and o hold the same features and label.
// Predictions are not compared.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !ValuesEqual(r.Label, o.Label) {
		return false
	}
	if len(r.Features) != len(o.Features) {
		return false
	}
	for k, v := range r.Features {
		ov, ok := o.Features[k]
		if !ok || !ValuesEqual(v, ov) {
			return false
		}
	}
	return true
}

// IsScalar reports whether v can be stored as a feature or label value.
func IsScalar(v interface{}) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// NormalizeValue widens integers to int64 and floats to float64 so that a
// value compares equal to itself after a round trip through storage.
// Unsigned values beyond the int64 range are kept as uint64.
func NormalizeValue(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return normalizeUint(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return normalizeUint(n)
	case float32:
		return float64(n)
	}
	return v
}

func normalizeUint(n uint64) interface{} {
	if n > 1<<63-1 {
		return n
	}
	return int64(n)
}

// ValuesEqual compares two scalar values after normalization. An integer is
// never equal to a float.
func ValuesEqual(a, b interface{}) bool {
	return NormalizeValue(a) == NormalizeValue(b)
}
