package mlcore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMsg(t *testing.T) {
	cases := []struct {
		name string
		err  error
		msg  string
	}{
		{
			name: "simple error",
			err:  &Error{Code: ENotFound},
			msg:  "<not found>",
		},
		{
			name: "with op",
			err: &Error{
				Code: EOutOfRange,
				Op:   "dataframe.Replace",
			},
			msg: "dataframe.Replace: <out of range>",
		},
		{
			name: "with op and value",
			err: &Error{
				Code: EOutOfRange,
				Op:   "dataframe.Replace",
				Msg:  fmt.Sprintf("row %d", 7),
			},
			msg: "dataframe.Replace: <out of range> row 7",
		},
		{
			name: "with a third party error",
			err: &Error{
				Code: EIO,
				Op:   "dataframe.Append",
				Err:  errors.New("disk full"),
			},
			msg: "dataframe.Append: disk full",
		},
		{
			name: "with an internal error",
			err: &Error{
				Code: EIO,
				Op:   "dataframe.ParseCSV",
				Err:  &Error{Code: EInvalid, Op: "dataframe.Append"},
			},
			msg: "dataframe.ParseCSV: dataframe.Append: <invalid>",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.msg, c.err.Error())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
		},
		{
			name: "simple error",
			err:  &Error{Msg: "simple error"},
			want: "simple error",
		},
		{
			name: "embedded error",
			err:  &Error{Err: &Error{Msg: "embedded error"}},
			want: "embedded error",
		},
		{
			name: "default error",
			err:  errors.New("s"),
			want: "An internal error has occurred.",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ErrorMessage(c.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil error",
		},
		{
			name: "simple error",
			err:  &Error{Code: ENotFound},
			want: ENotFound,
		},
		{
			name: "embedded error",
			err:  &Error{Code: EUnsupported, Err: &Error{Code: EInvalid}},
			want: EUnsupported,
		},
		{
			name: "code from wrapped error",
			err:  &Error{Op: "model.Predict", Err: &Error{Code: EUntrained}},
			want: EUntrained,
		},
		{
			name: "wrapped with fmt",
			err:  fmt.Errorf("loading: %w", &Error{Code: EOutOfRange}),
			want: EOutOfRange,
		},
		{
			name: "default error",
			err:  errors.New("s"),
			want: EInternal,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ErrorCode(c.err))
		})
	}
}

func TestErrorOp(t *testing.T) {
	err := &Error{Err: &Error{Op: "kv.Get", Code: ENotFound}}
	assert.Equal(t, "kv.Get", ErrorOp(err))
	assert.Equal(t, "", ErrorOp(errors.New("plain")))
}

func TestIOError(t *testing.T) {
	assert.NoError(t, IOError("op", nil))

	err := IOError("dataframe.Append", errors.New("boom"))
	assert.Equal(t, EIO, ErrorCode(err))
	assert.Equal(t, "dataframe.Append", ErrorOp(err))

	coded := &Error{Code: EOutOfRange}
	assert.Same(t, coded, IOError("dataframe.Replace", coded))
}

func TestNewError(t *testing.T) {
	inner := errors.New("inner")
	err := NewError(
		WithErrorCode(EInvalid),
		WithErrorMsg("bad column"),
		WithErrorOp("dataframe.Append"),
		WithErrorErr(inner),
	)
	assert.Equal(t, EInvalid, err.Code)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "dataframe.Append: bad column: inner", err.Error())
}
