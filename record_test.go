package mlcore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestRecord_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b *Record
		want bool
	}{
		{
			name: "same features and label",
			a:    NewRecord(Features{"a": 1, "b": "x"}, true),
			b:    NewRecord(Features{"a": int64(1), "b": "x"}, true),
			want: true,
		},
		{
			name: "predictions are ignored",
			a:    NewRecord(Features{"a": 1.5}, "yes"),
			b: &Record{
				Features:      Features{"a": 1.5},
				Label:         "yes",
				Predicted:     "no",
				Probabilities: map[interface{}]float64{"no": 1},
			},
			want: true,
		},
		{
			name: "different label",
			a:    NewRecord(Features{"a": 1}, true),
			b:    NewRecord(Features{"a": 1}, false),
		},
		{
			name: "int is not float",
			a:    NewRecord(Features{"a": 1}, nil),
			b:    NewRecord(Features{"a": 1.0}, nil),
		},
		{
			name: "missing column",
			a:    NewRecord(Features{"a": 1, "b": 2}, nil),
			b:    NewRecord(Features{"a": 1, "c": 2}, nil),
		},
		{
			name: "nil records",
			a:    nil,
			b:    nil,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestRecord_WithFeatures(t *testing.T) {
	r := &Record{
		Features:      Features{"a": 1, "b": 2, "c": 3},
		Label:         "y",
		Predicted:     "y",
		Probabilities: map[interface{}]float64{"y": 0.75},
	}

	got := r.WithFeatures(r.Features.Without("b"))

	if diff := cmp.Diff(Features{"a": 1, "c": 3}, got.Features); diff != "" {
		t.Fatalf("unexpected features (-want +got):\n%s", diff)
	}
	assert.Equal(t, "y", got.Predicted)
	assert.Equal(t, 0.75, got.Probabilities["y"])
	// the source record is untouched
	assert.Len(t, r.Features, 3)
}

func TestRecord_WithPrediction(t *testing.T) {
	r := NewRecord(Features{"a": 1}, "y")
	got := r.WithPrediction("n", map[interface{}]float64{"n": 0.6, "y": 0.4})

	assert.Nil(t, r.Predicted)
	assert.Equal(t, "n", got.Predicted)
	assert.True(t, got.Equal(r))
}

func TestFeatures_Columns(t *testing.T) {
	x := Features{"c": 1, "a": 2, "b": 3}
	assert.Equal(t, []string{"a", "b", "c"}, x.Columns())
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(3), NormalizeValue(int8(3)))
	assert.Equal(t, int64(3), NormalizeValue(uint32(3)))
	assert.Equal(t, uint64(1<<63), NormalizeValue(uint64(1<<63)))
	assert.Equal(t, float64(float32(0.5)), NormalizeValue(float32(0.5)))
	assert.Equal(t, "s", NormalizeValue("s"))
}

func TestIsScalar(t *testing.T) {
	assert.True(t, IsScalar(nil))
	assert.True(t, IsScalar(uint8(1)))
	assert.True(t, IsScalar("x"))
	assert.False(t, IsScalar([]int{1}))
	assert.False(t, IsScalar(map[string]int{}))
}
