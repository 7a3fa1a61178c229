package dataframe_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/dataframe"
	"github.com/influxdata/mlcore/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const weather = `outlook,temp,grade,windy,play
sunny,85,3,false,no
overcast,83.5,2,true,yes
rainy,70,1
rainy,,1,TRUE,yes
`

func TestParseCSV_Typed(t *testing.T) {
	ctx := context.Background()
	conn := inmem.NewConnector()

	d, err := dataframe.ParseCSV(ctx, conn, strings.NewReader(weather), dataframe.CSVOptions{
		Label: "play",
		Types: map[string]mlcore.DataType{
			"outlook": mlcore.Categorical,
			"temp":    mlcore.Numerical,
			"grade":   mlcore.Ordinal,
			"windy":   mlcore.Boolean,
			"play":    mlcore.Categorical,
		},
	}, dataframe.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer d.Delete(ctx)

	// the short row is skipped
	assertRecordsEqual(t, []*mlcore.Record{
		mlcore.NewRecord(mlcore.Features{"outlook": "sunny", "temp": 85, "grade": 3, "windy": false}, "no"),
		mlcore.NewRecord(mlcore.Features{"outlook": "overcast", "temp": 83.5, "grade": 2, "windy": true}, "yes"),
		mlcore.NewRecord(mlcore.Features{"outlook": "rainy", "temp": nil, "grade": 1, "windy": true}, "yes"),
	}, rows(t, d))

	types, err := d.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]mlcore.DataType{
		"outlook": mlcore.Categorical,
		"temp":    mlcore.Numerical,
		"grade":   mlcore.Ordinal,
		"windy":   mlcore.Boolean,
	}, types)

	lt, err := d.LabelType(ctx)
	require.NoError(t, err)
	assert.Equal(t, mlcore.Categorical, lt)

	// declared types survive a subset
	sub, err := d.Subset(ctx, []int{1})
	require.NoError(t, err)
	defer sub.Delete(ctx)
	types, err = sub.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, mlcore.Ordinal, types["grade"])
}

func TestParseCSV_Inferred(t *testing.T) {
	ctx := context.Background()
	d, err := dataframe.ParseCSV(ctx, inmem.NewConnector(), strings.NewReader(weather), dataframe.CSVOptions{
		Label: "play",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, d.Len())
	types, err := d.ColumnTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]mlcore.DataType{
		"outlook": mlcore.Categorical,
		"temp":    mlcore.Numerical,
		"grade":   mlcore.Numerical,
		"windy":   mlcore.Boolean,
	}, types)
}

func TestParseCSV_Options(t *testing.T) {
	ctx := context.Background()
	in := "# comment\na;b\n1;2\n"
	d, err := dataframe.ParseCSV(ctx, inmem.NewConnector(), strings.NewReader(in), dataframe.CSVOptions{
		Comma:   ';',
		Comment: '#',
	})
	require.NoError(t, err)

	assertRecordsEqual(t, []*mlcore.Record{
		mlcore.NewRecord(mlcore.Features{"a": 1, "b": 2}, nil),
	}, rows(t, d))
}

func TestParseCSV_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts dataframe.CSVOptions
	}{
		{
			name: "empty input",
			in:   "",
		},
		{
			name: "missing label",
			in:   "a,b\n1,2\n",
			opts: dataframe.CSVOptions{Label: "c"},
		},
		{
			name: "undeclared label",
			in:   "a,b\n1,2\n",
			opts: dataframe.CSVOptions{Label: "b", Types: map[string]mlcore.DataType{"a": mlcore.Numerical}},
		},
		{
			name: "declared column missing",
			in:   "a,b\n1,2\n",
			opts: dataframe.CSVOptions{Types: map[string]mlcore.DataType{"c": mlcore.Numerical}},
		},
		{
			name: "duplicate header",
			in:   "a,a\n1,2\n",
		},
		{
			name: "bad value",
			in:   "a,b\n1,2\nx,3\n",
			opts: dataframe.CSVOptions{Types: map[string]mlcore.DataType{"a": mlcore.Numerical}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := inmem.NewConnector()
			_, err := dataframe.ParseCSV(context.Background(), conn, strings.NewReader(tt.in), tt.opts)
			errCode(t, mlcore.EInvalid, err)
			assert.Equal(t, 0, conn.Sessions())
		})
	}
}

func TestParseCSV_ReadFailure(t *testing.T) {
	boom := errors.New("boom")
	conn := inmem.NewConnector()

	r := io.MultiReader(strings.NewReader("a,b\n1,2\n"), iotest.ErrReader(boom))
	_, err := dataframe.ParseCSV(context.Background(), conn, r, dataframe.CSVOptions{})
	errCode(t, mlcore.EIO, err)
	assert.ErrorIs(t, err, boom)

	// the partial dataset is gone
	assert.Equal(t, 0, conn.Sessions())
}
