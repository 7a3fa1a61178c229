package main

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

type description struct {
	File      string            `yaml:"file"`
	Size      string            `yaml:"size"`
	Rows      int               `yaml:"rows"`
	Label     string            `yaml:"label,omitempty"`
	LabelType string            `yaml:"label_type,omitempty"`
	Columns   map[string]string `yaml:"columns"`
}

func newDescribeCommand(g *globalFlags) (*cobra.Command, error) {
	var d dataFlags
	cmd := &cobra.Command{
		Use:   "describe <file.csv>",
		Short: "Print the size and column types of a CSV file",
		Args:  cobra.ExactArgs(1),
	}
	return newCommand(g, cmd, d.opts(), func(ctx context.Context, e *env, args []string) error {
		fi, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		data, opts, err := e.load(ctx, &d, args[0])
		if err != nil {
			return err
		}
		defer e.drop(ctx, data)

		types, err := data.ColumnTypes(ctx)
		if err != nil {
			return err
		}
		out := description{
			File:    fi.Name(),
			Size:    humanize.Bytes(uint64(fi.Size())),
			Rows:    data.Len(),
			Label:   opts.Label,
			Columns: make(map[string]string, len(types)),
		}
		for c, t := range types {
			out.Columns[c] = t.String()
		}
		if opts.Label != "" {
			lt, err := data.LabelType(ctx)
			if err != nil {
				return err
			}
			out.LabelType = lt.String()
		}
		return writeYAML(cmd.OutOrStdout(), out)
	})
}
