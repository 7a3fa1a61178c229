package main

import (
	"context"

	"github.com/influxdata/mlcore/kit/cli"
	"github.com/spf13/cobra"
)

func newValidateCommand(g *globalFlags) (*cobra.Command, error) {
	var (
		d    dataFlags
		save bool
	)
	cmd := &cobra.Command{
		Use:   "validate <model> <file.csv>",
		Short: "Score a trained model against a labelled CSV file",
		Args:  cobra.ExactArgs(2),
	}
	opts := append(d.opts(), cli.Opt{
		DestP: &save,
		Flag:  "save",
		Desc:  "keep the metrics in the knowledge base of the model",
	})
	return newCommand(g, cmd, opts, func(ctx context.Context, e *env, args []string) error {
		data, _, err := e.load(ctx, &d, args[1])
		if err != nil {
			return err
		}
		defer e.drop(ctx, data)

		m := e.model(args[0])
		metrics, err := m.Validate(ctx, data)
		if err != nil {
			return err
		}
		if save {
			if err := m.SetValidationMetrics(ctx, metrics); err != nil {
				return err
			}
		}
		e.observeSession(ctx, args[0])
		return writeYAML(cmd.OutOrStdout(), metrics)
	})
}
