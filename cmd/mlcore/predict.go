package main

import (
	"context"
	"io"
	"os"

	"github.com/influxdata/mlcore/kit/cli"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newPredictCommand(g *globalFlags) (*cobra.Command, error) {
	var (
		d      dataFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "predict <model> <file.csv>",
		Short: "Predict every row of a CSV file with a trained model",
		Args:  cobra.ExactArgs(2),
	}
	opts := append(d.opts(), cli.Opt{
		DestP:   &output,
		Flag:    "output",
		Default: "-",
		Desc:    "file the predictions are written to, - for stdout",
	})
	return newCommand(g, cmd, opts, func(ctx context.Context, e *env, args []string) (err error) {
		data, csvOpts, err := e.load(ctx, &d, args[1])
		if err != nil {
			return err
		}
		defer e.drop(ctx, data)

		if err := e.model(args[0]).Predict(ctx, data); err != nil {
			return err
		}
		e.observeSession(ctx, args[0])

		var w io.Writer = cmd.OutOrStdout()
		if output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, f.Close())
			}()
			w = f
		}
		return writePredictions(ctx, w, data, csvOpts.Label)
	})
}
