package main

import (
	"context"

	"github.com/influxdata/mlcore/algorithm/zeror"
	"github.com/influxdata/mlcore/kit/cli"
	"github.com/influxdata/mlcore/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCrossvalCommand(g *globalFlags) (*cobra.Command, error) {
	var (
		d           dataFlags
		task        string
		folds       int
		shuffle     bool
		seed        int64
		parallelism int
	)
	cmd := &cobra.Command{
		Use:   "crossval <model> <file.csv>",
		Short: "Estimate how a model generalises with k-fold cross validation",
		Args:  cobra.ExactArgs(2),
	}
	opts := append(d.opts(),
		taskOpt(&task),
		cli.Opt{
			DestP:   &folds,
			Flag:    "folds",
			Short:   'k',
			Default: 10,
			Desc:    "number of folds",
		},
		cli.Opt{
			DestP: &shuffle,
			Flag:  "shuffle",
			Desc:  "assign rows to folds at random instead of in blocks",
		},
		cli.Opt{
			DestP:   &seed,
			Flag:    "seed",
			Default: int64(1),
			Desc:    "seed of the shuffle",
		},
		cli.Opt{
			DestP:   &parallelism,
			Flag:    "parallelism",
			Default: 1,
			Desc:    "number of folds run at once",
		},
	)
	return newCommand(g, cmd, opts, func(ctx context.Context, e *env, args []string) error {
		data, _, err := e.load(ctx, &d, args[1])
		if err != nil {
			return err
		}
		defer e.drop(ctx, data)

		mopts := []model.Option{model.WithParallelism(parallelism)}
		if shuffle {
			mopts = append(mopts, model.WithFolds(model.ShuffledFolds(seed)))
		}
		m := e.model(args[0], mopts...)

		metrics, err := m.KFoldCrossValidation(ctx, data, zeror.TrainingParameters{Task: zeror.Task(task)}, folds)
		if err != nil {
			return err
		}
		e.log.Info("Cross validation done", zap.Int("folds", folds), zap.Int("rows", metrics.Rows))
		return writeYAML(cmd.OutOrStdout(), metrics)
	})
}
