package dataframe

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"unicode"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// TextSource is a reader holding one example per line, all of one class.
type TextSource struct {
	Label  interface{}
	Reader io.Reader
}

// Extractor turns a cleaned line of text into features.
type Extractor func(text string) mlcore.Features

// CleanText normalizes s to NFKC, folds case and collapses runs of
// whitespace and punctuation into single spaces.
func CleanText(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}), " ")
}

// WordCounts is an Extractor counting the occurrences of every word.
func WordCounts(text string) mlcore.Features {
	x := mlcore.Features{}
	for _, w := range strings.Fields(text) {
		n, _ := x[w].(int64)
		x[w] = n + 1
	}
	return x
}

// ParseText builds a dataset with one record per line of every source,
// labelled with the source's label. Blank lines give records without
// features. Lines may be of any length. Lines are cleaned with
// CleanText before extract sees them; a nil extract uses WordCounts. On any
// read or storage failure the partially built dataset is deleted.
func ParseText(ctx context.Context, conn kv.Connector, sources []TextSource, extract Extractor, opts ...Option) (*Dataset, error) {
	const op = "dataframe.ParseText"
	if extract == nil {
		extract = WordCounts
	}

	d, err := New(ctx, conn, opts...)
	if err != nil {
		return nil, err
	}
	abort := func(err error) (*Dataset, error) {
		if derr := d.Delete(context.WithoutCancel(ctx)); derr != nil {
			d.log.Warn("Failed to delete partial dataset", zap.Error(derr))
		}
		return nil, mlcore.IOError(op, err)
	}

	for _, src := range sources {
		batch := make([]*mlcore.Record, 0, csvBatchSize)
		br := bufio.NewReader(src.Reader)
		for {
			line, rerr := br.ReadString('\n')
			if rerr != nil && !errors.Is(rerr, io.EOF) {
				return abort(rerr)
			}
			if line == "" && rerr != nil {
				break
			}

			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			batch = append(batch, mlcore.NewRecord(extract(CleanText(line)), src.Label))
			if len(batch) == csvBatchSize {
				if _, err := d.AppendAll(ctx, batch); err != nil {
					return abort(err)
				}
				batch = batch[:0]
			}
			if rerr != nil {
				break
			}
		}
		if _, err := d.AppendAll(ctx, batch); err != nil {
			return abort(err)
		}
	}

	d.log.Debug("Parsed text", zap.Int("rows", d.Len()), zap.Int("sources", len(sources)))
	return d, nil
}
