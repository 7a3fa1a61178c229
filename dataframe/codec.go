package dataframe

import (
	"encoding/binary"
	"fmt"

	"github.com/influxdata/mlcore"
	"github.com/tinylib/msgp/msgp"
)

// encodeID returns the key of row id. Keys sort in id order.
func encodeID(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func decodeID(b []byte) (int, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid row key length %d", len(b))
	}
	return int(binary.BigEndian.Uint64(b)), nil
}

const (
	fieldFeatures      = "f"
	fieldLabel         = "l"
	fieldPredicted     = "p"
	fieldProbabilities = "pr"
)

// encodeRecord writes r as a msgpack map. Values are normalized first, so
// every integer decodes as int64 and every float as float64.
func encodeRecord(r *mlcore.Record) ([]byte, error) {
	var err error
	b := make([]byte, 0, 32+16*len(r.Features))

	n := uint32(2)
	if r.Predicted != nil {
		n++
	}
	if len(r.Probabilities) > 0 {
		n++
	}
	b = msgp.AppendMapHeader(b, n)

	b = msgp.AppendString(b, fieldFeatures)
	b = msgp.AppendMapHeader(b, uint32(len(r.Features)))
	for _, col := range r.Features.Columns() {
		b = msgp.AppendString(b, col)
		if b, err = msgp.AppendIntf(b, mlcore.NormalizeValue(r.Features[col])); err != nil {
			return nil, err
		}
	}

	b = msgp.AppendString(b, fieldLabel)
	if b, err = msgp.AppendIntf(b, mlcore.NormalizeValue(r.Label)); err != nil {
		return nil, err
	}

	if r.Predicted != nil {
		b = msgp.AppendString(b, fieldPredicted)
		if b, err = msgp.AppendIntf(b, mlcore.NormalizeValue(r.Predicted)); err != nil {
			return nil, err
		}
	}

	if len(r.Probabilities) > 0 {
		// keys are arbitrary scalars so the map is written as a flat list of pairs
		b = msgp.AppendString(b, fieldProbabilities)
		b = msgp.AppendArrayHeader(b, uint32(2*len(r.Probabilities)))
		for k, v := range r.Probabilities {
			if b, err = msgp.AppendIntf(b, mlcore.NormalizeValue(k)); err != nil {
				return nil, err
			}
			b = msgp.AppendFloat64(b, v)
		}
	}
	return b, nil
}

func decodeRecord(b []byte) (*mlcore.Record, error) {
	sz, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return nil, err
	}

	r := &mlcore.Record{}
	for i := uint32(0); i < sz; i++ {
		var field string
		if field, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, err
		}

		switch field {
		case fieldFeatures:
			var n uint32
			if n, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
				return nil, err
			}
			r.Features = make(mlcore.Features, n)
			for j := uint32(0); j < n; j++ {
				var col string
				var v interface{}
				if col, b, err = msgp.ReadStringBytes(b); err != nil {
					return nil, err
				}
				if v, b, err = msgp.ReadIntfBytes(b); err != nil {
					return nil, err
				}
				r.Features[col] = v
			}
		case fieldLabel:
			if r.Label, b, err = msgp.ReadIntfBytes(b); err != nil {
				return nil, err
			}
		case fieldPredicted:
			if r.Predicted, b, err = msgp.ReadIntfBytes(b); err != nil {
				return nil, err
			}
		case fieldProbabilities:
			var n uint32
			if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
				return nil, err
			}
			r.Probabilities = make(map[interface{}]float64, n/2)
			for j := uint32(0); j < n/2; j++ {
				var k interface{}
				var v float64
				if k, b, err = msgp.ReadIntfBytes(b); err != nil {
					return nil, err
				}
				if v, b, err = msgp.ReadFloat64Bytes(b); err != nil {
					return nil, err
				}
				r.Probabilities[k] = v
			}
		default:
			if b, err = msgp.Skip(b); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}
