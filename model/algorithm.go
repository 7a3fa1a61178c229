package model

import (
	"context"

	"github.com/influxdata/mlcore/dataframe"
)

// Algorithm holds the steps a learning algorithm supplies to a Model. MP is
// the learned state, TP the caller supplied hyperparameters and VM the
// validation metrics. All three must round trip through encoding/json.
type Algorithm[MP, TP, VM any] interface {
	// Fit learns model parameters from data.
	Fit(ctx context.Context, data dataframe.Frame, tp TP) (MP, error)
	// PredictDataset stores a prediction in every row of data, replacing the
	// rows in place. Features and labels must be left unchanged.
	PredictDataset(ctx context.Context, mp MP, tp TP, data dataframe.Frame) error
	// ValidateModel scores the model against the labels of data.
	ValidateModel(ctx context.Context, mp MP, tp TP, data dataframe.Frame) (VM, error)
	// AggregateMetrics combines the metrics of the folds of a cross
	// validation, given in fold order. It must be deterministic.
	AggregateMetrics(folds []VM) (VM, error)
}
