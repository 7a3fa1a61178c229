package main

import (
	"context"

	"github.com/influxdata/mlcore/algorithm/zeror"
	"github.com/influxdata/mlcore/kit/cli"
	"github.com/influxdata/mlcore/model"
	"github.com/spf13/cobra"
)

type knowledgeBase struct {
	Model              string                   `yaml:"model"`
	ModelParameters    zeror.ModelParameters    `yaml:"model_parameters"`
	TrainingParameters zeror.TrainingParameters `yaml:"training_parameters"`
	ValidationMetrics  zeror.Metrics            `yaml:"validation_metrics"`
}

func (e *env) model(name string, opts ...model.Option) *model.Model[zeror.ModelParameters, zeror.TrainingParameters, zeror.Metrics] {
	opts = append([]model.Option{model.WithLogger(e.log), model.WithMetrics(e.metrics)}, opts...)
	return zeror.New(name, e.conn, opts...)
}

func taskOpt(task *string) cli.Opt {
	return cli.Opt{
		DestP:   task,
		Flag:    "task",
		Default: string(zeror.Auto),
		Desc:    "auto, classification or regression",
	}
}

func newTrainCommand(g *globalFlags) (*cobra.Command, error) {
	var (
		d        dataFlags
		task     string
		validate bool
	)
	cmd := &cobra.Command{
		Use:   "train <model> <file.csv>",
		Short: "Train a model and save its knowledge base",
		Args:  cobra.ExactArgs(2),
	}
	opts := append(d.opts(), taskOpt(&task), cli.Opt{
		DestP: &validate,
		Flag:  "validate-on-train",
		Desc:  "score the model against its training data and save the metrics",
	})
	return newCommand(g, cmd, opts, func(ctx context.Context, e *env, args []string) error {
		data, _, err := e.load(ctx, &d, args[1])
		if err != nil {
			return err
		}
		defer e.drop(ctx, data)

		m := e.model(args[0], model.WithValidateOnTrain(validate))
		if err := m.Train(ctx, data, zeror.TrainingParameters{Task: zeror.Task(task)}); err != nil {
			return err
		}
		e.observeSession(ctx, args[0])

		kb := m.KnowledgeBase()
		return writeYAML(cmd.OutOrStdout(), knowledgeBase{
			Model:              m.Name(),
			ModelParameters:    kb.ModelParameters(),
			TrainingParameters: kb.TrainingParameters(),
			ValidationMetrics:  kb.ValidationMetrics(),
		})
	})
}
