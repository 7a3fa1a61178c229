package model

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/dataframe"
	"github.com/influxdata/mlcore/kv"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Model.
type State int

const (
	// Untrained models have no knowledge base in memory.
	Untrained State = iota
	// Trained models have fit or loaded their knowledge base.
	Trained
)

func (s State) String() string {
	switch s {
	case Untrained:
		return "untrained"
	case Trained:
		return "trained"
	}
	return "unknown"
}

type config struct {
	log             *zap.Logger
	clock           clock.Clock
	folds           FoldFunc
	parallelism     int
	validateOnTrain bool
	metrics         *Metrics
}

// Option configures a Model.
type Option func(*config)

// WithLogger sets the logger of the model.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithClock sets the clock operation durations are measured with.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithFolds sets how cross validation splits row ids into folds.
// SequentialFolds is the default.
func WithFolds(fn FoldFunc) Option {
	return func(c *config) {
		c.folds = fn
	}
}

// WithParallelism sets how many cross validation folds run at once.
func WithParallelism(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithValidateOnTrain makes Train score the model against its training data
// and keep the result as the validation metrics.
func WithValidateOnTrain(v bool) Option {
	return func(c *config) {
		c.validateOnTrain = v
	}
}

// WithMetrics records model operations in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Model drives an Algorithm through training, persistence, prediction and
// validation. Its knowledge base lives in the session of conn named after
// the model, so a second Model with the same name and connector can predict
// with what the first one trained.
//
// A Model must not be used from several goroutines at once.
type Model[MP, TP, VM any] struct {
	name string
	algo Algorithm[MP, TP, VM]
	conn kv.Connector
	kb   *KnowledgeBase[MP, TP, VM]
	cfg  config

	mu    sync.Mutex
	state State
}

// New returns an untrained model.
func New[MP, TP, VM any](name string, algo Algorithm[MP, TP, VM], conn kv.Connector, opts ...Option) *Model[MP, TP, VM] {
	cfg := config{
		log:         zap.NewNop(),
		clock:       clock.New(),
		folds:       SequentialFolds,
		parallelism: 1,
	}
	for _, o := range opts {
		o(&cfg)
	}
	cfg.log = cfg.log.With(zap.String("model", name))

	return &Model[MP, TP, VM]{
		name: name,
		algo: algo,
		conn: conn,
		kb:   NewKnowledgeBase[MP, TP, VM](name, conn, cfg.log),
		cfg:  cfg,
	}
}

// Name returns the name of the model.
func (m *Model[MP, TP, VM]) Name() string {
	return m.name
}

// State returns the lifecycle state of the model.
func (m *Model[MP, TP, VM]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// KnowledgeBase returns the knowledge base of the model.
func (m *Model[MP, TP, VM]) KnowledgeBase() *KnowledgeBase[MP, TP, VM] {
	return m.kb
}

func (m *Model[MP, TP, VM]) setTrained() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Trained
}

// Load reads the saved knowledge base. It fails with EUntrained if the
// model has never been trained.
func (m *Model[MP, TP, VM]) Load(ctx context.Context) error {
	if err := m.kb.Load(ctx); err != nil {
		return err
	}
	m.setTrained()
	return nil
}

// Train fits the algorithm to data with tp and saves the knowledge base.
// Validation metrics saved by an earlier training are cleared. A failed fit
// leaves the knowledge base untouched.
func (m *Model[MP, TP, VM]) Train(ctx context.Context, data dataframe.Frame, tp TP) (err error) {
	const op = "model.Train"
	defer m.observe("train", m.cfg.clock.Now(), &err)

	mp, err := m.algo.Fit(ctx, data, tp)
	if err != nil {
		return wrap(op, err)
	}

	// metrics of an earlier fit describe another model
	var vm VM
	if m.cfg.validateOnTrain {
		vm, err = m.algo.ValidateModel(ctx, mp, tp, data)
		if err != nil {
			return wrap(op, err)
		}
	}

	m.kb.modelParameters, m.kb.trainingParameters, m.kb.validationMetrics = mp, tp, vm
	if err := m.kb.Save(ctx); err != nil {
		return err
	}
	m.setTrained()
	m.cfg.log.Debug("Model trained", zap.Int("rows", data.Len()))
	return nil
}

// Predict loads the knowledge base and stores a prediction in every row of
// data.
func (m *Model[MP, TP, VM]) Predict(ctx context.Context, data dataframe.Frame) (err error) {
	const op = "model.Predict"
	defer m.observe("predict", m.cfg.clock.Now(), &err)

	if err := m.Load(ctx); err != nil {
		return err
	}
	if err := m.algo.PredictDataset(ctx, m.kb.modelParameters, m.kb.trainingParameters, data); err != nil {
		return wrap(op, err)
	}
	return nil
}

// Validate loads the knowledge base and scores the model against data. The
// metrics are returned, not saved; see SetValidationMetrics.
func (m *Model[MP, TP, VM]) Validate(ctx context.Context, data dataframe.Frame) (vm VM, err error) {
	const op = "model.Validate"
	defer m.observe("validate", m.cfg.clock.Now(), &err)

	if err := m.Load(ctx); err != nil {
		return vm, err
	}
	vm, err = m.algo.ValidateModel(ctx, m.kb.modelParameters, m.kb.trainingParameters, data)
	if err != nil {
		return vm, wrap(op, err)
	}
	return vm, nil
}

// ValidationMetrics loads the knowledge base and returns its saved metrics.
func (m *Model[MP, TP, VM]) ValidationMetrics(ctx context.Context) (VM, error) {
	if err := m.Load(ctx); err != nil {
		var zero VM
		return zero, err
	}
	return m.kb.ValidationMetrics(), nil
}

// SetValidationMetrics loads the knowledge base, replaces its metrics and
// saves it.
func (m *Model[MP, TP, VM]) SetValidationMetrics(ctx context.Context, vm VM) error {
	if err := m.Load(ctx); err != nil {
		return err
	}
	return m.kb.SetValidationMetrics(ctx, vm)
}

// Delete removes the saved knowledge base. The model must not be used
// afterwards.
func (m *Model[MP, TP, VM]) Delete(ctx context.Context) error {
	return m.kb.Delete(ctx)
}

func (m *Model[MP, TP, VM]) observe(operation string, start time.Time, err *error) {
	m.cfg.metrics.observe(m.name, operation, m.cfg.clock.Since(start), err)
}

// wrap gives errors returned by an algorithm the operation name. Coded
// errors are kept as they are.
func wrap(op string, err error) error {
	if mlcore.ErrorCode(err) != mlcore.EInternal {
		return err
	}
	return &mlcore.Error{
		Code: mlcore.EInternal,
		Op:   op,
		Err:  err,
	}
}
