package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/bolt"
	"github.com/influxdata/mlcore/inmem"
	"github.com/influxdata/mlcore/kit/cli"
	"github.com/influxdata/mlcore/kv"
	"github.com/influxdata/mlcore/logger"
	"github.com/influxdata/mlcore/model"
	"github.com/influxdata/mlcore/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const programName = "mlcore"

// globalFlags are the options every subcommand takes.
type globalFlags struct {
	store       string
	storePath   string
	logLevel    zapcore.Level
	logFormat   string
	logFile     string
	metricsFile string
}

func (g *globalFlags) opts() []cli.Opt {
	return []cli.Opt{
		{
			DestP:   &g.store,
			Flag:    "store",
			Default: "bolt",
			Desc:    "storage backend: inmem, bolt or sqlite",
		},
		{
			DestP:   &g.storePath,
			Flag:    "store-path",
			Default: defaultDir(),
			Desc:    "directory holding the bolt files or the sqlite database",
		},
		{
			DestP:   &g.logLevel,
			Flag:    "log-level",
			Default: zapcore.WarnLevel,
			Desc:    "supported log levels are debug, info, warn and error",
		},
		{
			DestP:   &g.logFormat,
			Flag:    "log-format",
			Default: "auto",
			Desc:    "log format: auto, console, json or logfmt",
		},
		{
			DestP: &g.logFile,
			Flag:  "log-file",
			Desc:  "write logs to this file, rotated, instead of stderr",
		},
		{
			DestP: &g.metricsFile,
			Flag:  "metrics-file",
			Desc:  "write prometheus metrics to this file on exit",
		},
	}
}

func defaultDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			dir = "."
		}
	}
	return filepath.Join(dir, ".mlcore")
}

// env is what a subcommand runs with.
type env struct {
	log     *zap.Logger
	conn    kv.Connector
	metrics *model.Metrics
	reg     *prometheus.Registry

	closers []func() error
	g       *globalFlags
}

func (g *globalFlags) env(ctx context.Context) (*env, error) {
	lc := logger.NewConfig()
	lc.Format, lc.Level, lc.File = g.logFormat, g.logLevel, g.logFile
	log, closeLog, err := lc.New(os.Stderr)
	if err != nil {
		return nil, err
	}

	e := &env{
		log:     log.With(zap.String("store", g.store)),
		metrics: model.NewMetrics(),
		reg:     prometheus.NewRegistry(),
		closers: []func() error{closeLog},
		g:       g,
	}
	e.reg.MustRegister(e.metrics.PrometheusCollectors()...)

	switch g.store {
	case "inmem":
		e.conn = inmem.NewConnector()
	case "bolt":
		e.conn = bolt.NewConnector(e.log, g.storePath)
	case "sqlite":
		c, err := sqlite.NewConnector(ctx, e.log, g.storePath)
		if err != nil {
			_ = e.close()
			return nil, err
		}
		e.conn = c
		e.closers = append(e.closers, c.Close)
	default:
		_ = e.close()
		return nil, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   "mlcore.env",
			Msg:  fmt.Sprintf("unknown store %q; supported stores are inmem, bolt and sqlite", g.store),
		}
	}
	return e, nil
}

// observeSession exports the storage metrics of a session when a metrics
// file is asked for and the backend has any. The session stays open until
// the env is closed.
func (e *env) observeSession(ctx context.Context, name string) {
	if e.g.metricsFile == "" {
		return
	}
	s, err := e.conn.Open(ctx, name)
	if err != nil {
		e.log.Warn("Failed to open session for metrics", zap.String("session", name), zap.Error(err))
		return
	}
	c, ok := s.(prometheus.Collector)
	if !ok {
		_ = s.Close()
		return
	}
	if err := e.reg.Register(c); err != nil {
		e.log.Warn("Failed to register session metrics", zap.Error(err))
	}
	e.closers = append(e.closers, s.Close)
}

// close writes the metrics file, if asked for, and releases everything the
// env holds in reverse order.
func (e *env) close() error {
	var err error
	if e.g.metricsFile != "" && e.reg != nil {
		err = prometheus.WriteToTextfile(e.g.metricsFile, e.reg)
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, e.closers[i]())
	}
	return err
}

func newRootCommand() (*cobra.Command, error) {
	root := &cobra.Command{
		Use:          programName,
		Short:        "Train, validate and apply models over tabular data",
		SilenceUsage: true,
	}

	for _, fn := range []func(*globalFlags) (*cobra.Command, error){
		newDescribeCommand,
		newTrainCommand,
		newPredictCommand,
		newValidateCommand,
		newCrossvalCommand,
	} {
		cmd, err := fn(&globalFlags{})
		if err != nil {
			return nil, err
		}
		root.AddCommand(cmd)
	}
	return root, nil
}

// newCommand builds a subcommand whose options, global ones included, are
// bound to their own viper instance.
func newCommand(g *globalFlags, cmd *cobra.Command, opts []cli.Opt, run func(ctx context.Context, e *env, args []string) error) (*cobra.Command, error) {
	v := viper.New()
	if err := cli.InitViper(v, programName); err != nil {
		return nil, err
	}
	if err := cli.BindOptions(v, cmd, append(g.opts(), opts...)); err != nil {
		return nil, err
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		e, err := g.env(ctx)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, e.close())
		}()
		return run(ctx, e, args)
	}
	return cmd, nil
}
