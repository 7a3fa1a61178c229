package mlcore

import (
	"fmt"
	"strconv"
	"strings"
)

// DataType is the inferred or declared category of a column or label.
// The zero value means the type is not known yet.
type DataType uint8

const (
	// Boolean values are true/false.
	Boolean DataType = iota + 1
	// Ordinal values are ordered integers. Ordinals are never inferred from a
	// value; they only come from an explicit declaration.
	Ordinal
	// Numerical values are integers or floats.
	Numerical
	// Categorical values are strings or any other comparable value.
	Categorical
)

var dataTypeNames = map[DataType]string{
	Boolean:     "boolean",
	Ordinal:     "ordinal",
	Numerical:   "numerical",
	Categorical: "categorical",
}

func (t DataType) String() string {
	if s, ok := dataTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether t names a known type.
func (t DataType) Valid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t DataType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DataType) UnmarshalText(b []byte) error {
	dt, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*t = dt
	return nil
}

// ParseDataType returns the DataType named by s.
func ParseDataType(s string) (DataType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range dataTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, &Error{
		Code: EInvalid,
		Op:   "mlcore.ParseDataType",
		Msg:  fmt.Sprintf("unknown data type %q", s),
	}
}

// InferDataType returns the category of v. A nil value has no type.
// Mixed integers and floats under one column both infer Numerical.
func InferDataType(v interface{}) DataType {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return Boolean
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Numerical
	default:
		return Categorical
	}
}

// Parse converts the raw text s into a value of type t. Empty text is a
// missing value and parses to nil.
func (t DataType) Parse(s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch t {
	case Boolean:
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return nil, parseError(t, s, err)
		}
		return b, nil
	case Ordinal, Numerical:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, parseError(t, s, err)
		}
		return f, nil
	case Categorical:
		return s, nil
	default:
		return nil, &Error{
			Code: EInvalid,
			Op:   "mlcore.Parse",
			Msg:  fmt.Sprintf("cannot parse %q as unknown type", s),
		}
	}
}

// ParseValue converts raw text into the narrowest scalar it represents:
// bool, int64, float64 and otherwise string.
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func parseError(t DataType, s string, err error) error {
	return &Error{
		Code: EInvalid,
		Op:   "mlcore.Parse",
		Msg:  fmt.Sprintf("cannot parse %q as %s", s, t),
		Err:  err,
	}
}
