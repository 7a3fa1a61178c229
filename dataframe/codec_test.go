package dataframe

import (
	"bytes"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/influxdata/mlcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCodec(t *testing.T) {
	r := &mlcore.Record{
		Features: mlcore.Features{
			"int":    7,
			"int8":   int8(-3),
			"uint":   uint16(9),
			"huge":   uint64(math.MaxUint64),
			"float":  float32(0.5),
			"double": 2.25,
			"bool":   true,
			"str":    "abc",
			"nil":    nil,
		},
		Label:     int32(4),
		Predicted: "spam",
		Probabilities: map[interface{}]float64{
			"spam":   0.75,
			int64(1): 0.25,
		},
	}

	b, err := encodeRecord(r)
	require.NoError(t, err)
	got, err := decodeRecord(b)
	require.NoError(t, err)

	want := mlcore.Features{
		"int":    int64(7),
		"int8":   int64(-3),
		"uint":   int64(9),
		"huge":   uint64(math.MaxUint64),
		"float":  0.5,
		"double": 2.25,
		"bool":   true,
		"str":    "abc",
		"nil":    nil,
	}
	if diff := cmp.Diff(want, got.Features); diff != "" {
		t.Fatalf("unexpected features -want/+got:\n%s", diff)
	}
	assert.Equal(t, int64(4), got.Label)
	assert.Equal(t, "spam", got.Predicted)
	assert.Equal(t, map[interface{}]float64{"spam": 0.75, int64(1): 0.25}, got.Probabilities)
	assert.True(t, r.Equal(got))
}

func TestRecordCodec_NoPrediction(t *testing.T) {
	b, err := encodeRecord(mlcore.NewRecord(nil, nil))
	require.NoError(t, err)
	got, err := decodeRecord(b)
	require.NoError(t, err)

	assert.Empty(t, got.Features)
	assert.Nil(t, got.Label)
	assert.Nil(t, got.Predicted)
	assert.Nil(t, got.Probabilities)
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	_, err := decodeRecord([]byte{0xc1})
	assert.Error(t, err)
}

func TestID(t *testing.T) {
	for _, id := range []int{0, 1, 255, 256, 1 << 40} {
		got, err := decodeID(encodeID(id))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
	assert.Equal(t, -1, bytes.Compare(encodeID(255), encodeID(256)))

	_, err := decodeID([]byte{1, 2})
	assert.Error(t, err)
}
