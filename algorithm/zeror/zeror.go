// Package zeror implements ZeroR, the baseline learner that ignores every
// feature: it predicts the most frequent class of the training labels, or
// their mean when the label is numerical.
package zeror

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/dataframe"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/model"
	"gonum.org/v1/gonum/stat"
)

// Task selects what kind of label is learned.
type Task string

const (
	// Auto picks Regression for numerical labels and Classification
	// otherwise.
	Auto           Task = "auto"
	Classification Task = "classification"
	Regression     Task = "regression"
)

// TrainingParameters are the hyperparameters of ZeroR.
type TrainingParameters struct {
	Task Task `json:"task" yaml:"task"`
}

// ModelParameters is what ZeroR learns. Class values are keyed by their
// text form and converted back with LabelType when predicting.
type ModelParameters struct {
	Task      Task               `json:"task" yaml:"task"`
	LabelType mlcore.DataType    `json:"label_type" yaml:"label_type"`
	Class     string             `json:"class,omitempty" yaml:"class,omitempty"`
	Priors    map[string]float64 `json:"priors,omitempty" yaml:"priors,omitempty"`
	Mean      float64            `json:"mean,omitempty" yaml:"mean,omitempty"`
}

// Metrics scores ZeroR. Accuracy is set for classification and RMSE for
// regression.
type Metrics struct {
	Task     Task    `json:"task" yaml:"task"`
	Rows     int     `json:"rows" yaml:"rows"`
	Accuracy float64 `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`
	RMSE     float64 `json:"rmse,omitempty" yaml:"rmse,omitempty"`
}

// Algorithm is ZeroR.
type Algorithm struct{}

var _ model.Algorithm[ModelParameters, TrainingParameters, Metrics] = Algorithm{}

// New returns a ZeroR model.
func New(name string, conn kv.Connector, opts ...model.Option) *model.Model[ModelParameters, TrainingParameters, Metrics] {
	return model.New[ModelParameters, TrainingParameters, Metrics](name, Algorithm{}, conn, opts...)
}

func (Algorithm) task(tp TrainingParameters, labelType mlcore.DataType) (Task, error) {
	switch tp.Task {
	case "", Auto:
		if labelType == mlcore.Numerical {
			return Regression, nil
		}
		return Classification, nil
	case Classification:
		return Classification, nil
	case Regression:
		if labelType != mlcore.Numerical && labelType != mlcore.Ordinal {
			return "", &mlcore.Error{
				Code: mlcore.EInvalid,
				Op:   "zeror.Fit",
				Msg:  fmt.Sprintf("regression needs a numerical label, got %s", labelType),
			}
		}
		return Regression, nil
	}
	return "", &mlcore.Error{
		Code: mlcore.EInvalid,
		Op:   "zeror.Fit",
		Msg:  fmt.Sprintf("unknown task %q", tp.Task),
	}
}

// Fit counts the labels of data. Rows without a label are skipped.
func (a Algorithm) Fit(ctx context.Context, data dataframe.Frame, tp TrainingParameters) (ModelParameters, error) {
	const op = "zeror.Fit"

	labelType, err := data.LabelType(ctx)
	if err != nil {
		return ModelParameters{}, err
	}
	task, err := a.task(tp, labelType)
	if err != nil {
		return ModelParameters{}, err
	}
	mp := ModelParameters{Task: task, LabelType: labelType}

	counts := make(map[string]int)
	var values []float64
	err = data.Range(ctx, func(_ int, r *mlcore.Record) error {
		if r.Label == nil {
			return nil
		}
		if task == Regression {
			v, err := toFloat(r.Label)
			if err != nil {
				return err
			}
			values = append(values, v)
			return nil
		}
		counts[fmt.Sprint(r.Label)]++
		return nil
	})
	if err != nil {
		return ModelParameters{}, err
	}

	if task == Regression {
		if len(values) == 0 {
			return ModelParameters{}, noLabels(op)
		}
		mp.Mean = stat.Mean(values, nil)
		return mp, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return ModelParameters{}, noLabels(op)
	}

	classes := make([]string, 0, len(counts))
	for c := range counts {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	mp.Priors = make(map[string]float64, len(classes))
	best := -1
	for _, c := range classes {
		mp.Priors[c] = float64(counts[c]) / float64(total)
		// ties go to the first class in sort order
		if counts[c] > best {
			best = counts[c]
			mp.Class = c
		}
	}
	return mp, nil
}

// PredictDataset replaces every row of data with a copy carrying the
// prediction.
func (a Algorithm) PredictDataset(ctx context.Context, mp ModelParameters, tp TrainingParameters, data dataframe.Frame) error {
	predicted, probabilities, err := a.prediction(mp)
	if err != nil {
		return err
	}
	return data.Range(ctx, func(id int, r *mlcore.Record) error {
		var p map[interface{}]float64
		if probabilities != nil {
			p = make(map[interface{}]float64, len(probabilities))
			for k, v := range probabilities {
				p[k] = v
			}
		}
		return data.Replace(ctx, id, r.WithPrediction(predicted, p))
	})
}

func (Algorithm) prediction(mp ModelParameters) (interface{}, map[interface{}]float64, error) {
	if mp.Task == Regression {
		return mp.Mean, nil, nil
	}

	predicted, err := parseClass(mp.LabelType, mp.Class)
	if err != nil {
		return nil, nil, err
	}
	probabilities := make(map[interface{}]float64, len(mp.Priors))
	for c, p := range mp.Priors {
		v, err := parseClass(mp.LabelType, c)
		if err != nil {
			return nil, nil, err
		}
		probabilities[v] = p
	}
	return predicted, probabilities, nil
}

// ValidateModel scores the prediction of mp against the labels of data.
// Rows without a label are not counted.
func (a Algorithm) ValidateModel(ctx context.Context, mp ModelParameters, tp TrainingParameters, data dataframe.Frame) (Metrics, error) {
	predicted, _, err := a.prediction(mp)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{Task: mp.Task}
	var hits int
	var sq float64
	err = data.Range(ctx, func(_ int, r *mlcore.Record) error {
		if r.Label == nil {
			return nil
		}
		m.Rows++
		if mp.Task == Regression {
			v, err := toFloat(r.Label)
			if err != nil {
				return err
			}
			d := v - mp.Mean
			sq += d * d
			return nil
		}
		if fmt.Sprint(r.Label) == fmt.Sprint(predicted) {
			hits++
		}
		return nil
	})
	if err != nil {
		return Metrics{}, err
	}
	if m.Rows == 0 {
		return m, nil
	}

	if mp.Task == Regression {
		m.RMSE = math.Sqrt(sq / float64(m.Rows))
	} else {
		m.Accuracy = float64(hits) / float64(m.Rows)
	}
	return m, nil
}

// AggregateMetrics averages the scores of the folds and sums their rows.
func (Algorithm) AggregateMetrics(folds []Metrics) (Metrics, error) {
	if len(folds) == 0 {
		return Metrics{}, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   "zeror.AggregateMetrics",
			Msg:  "no folds to aggregate",
		}
	}

	out := Metrics{Task: folds[0].Task}
	scores := make([]float64, len(folds))
	for i, f := range folds {
		out.Rows += f.Rows
		if f.Task == Regression {
			scores[i] = f.RMSE
		} else {
			scores[i] = f.Accuracy
		}
	}
	if out.Task == Regression {
		out.RMSE = stat.Mean(scores, nil)
	} else {
		out.Accuracy = stat.Mean(scores, nil)
	}
	return out, nil
}

func parseClass(t mlcore.DataType, s string) (interface{}, error) {
	if !t.Valid() {
		return s, nil
	}
	return t.Parse(s)
}

func toFloat(v interface{}) (float64, error) {
	switch n := mlcore.NormalizeValue(v).(type) {
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, &mlcore.Error{
		Code: mlcore.EInvalid,
		Op:   "zeror.Fit",
		Msg:  fmt.Sprintf("label %v is not numerical", v),
	}
}

func noLabels(op string) error {
	return &mlcore.Error{
		Code: mlcore.EInvalid,
		Op:   op,
		Msg:  "no labelled rows to learn from",
	}
}
