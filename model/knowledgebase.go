package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/kv"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	knowledgeBaseBucket = []byte("knowledgebasev1")

	modelParametersKey    = []byte("model_parameters")
	trainingParametersKey = []byte("training_parameters")
	validationMetricsKey  = []byte("validation_metrics")
)

// errNotSaved marks a session without a persisted knowledge base.
var errNotSaved = errors.New("no knowledge base saved")

// KnowledgeBase is the persisted state of a model: its learned parameters,
// the training parameters it was fit with and its validation metrics. The
// three blocks are always saved and loaded together, in the session named
// after the model.
type KnowledgeBase[MP, TP, VM any] struct {
	name string
	conn kv.Connector
	log  *zap.Logger

	modelParameters    MP
	trainingParameters TP
	validationMetrics  VM
	loaded             bool
}

// NewKnowledgeBase returns an empty knowledge base for the named model.
func NewKnowledgeBase[MP, TP, VM any](name string, conn kv.Connector, log *zap.Logger) *KnowledgeBase[MP, TP, VM] {
	if log == nil {
		log = zap.NewNop()
	}
	return &KnowledgeBase[MP, TP, VM]{
		name: name,
		conn: conn,
		log:  log,
	}
}

// Name returns the name of the model the knowledge base belongs to.
func (kb *KnowledgeBase[MP, TP, VM]) Name() string {
	return kb.name
}

// Loaded reports whether the in memory state has been loaded or saved.
func (kb *KnowledgeBase[MP, TP, VM]) Loaded() bool {
	return kb.loaded
}

// ModelParameters returns the in memory model parameters.
func (kb *KnowledgeBase[MP, TP, VM]) ModelParameters() MP {
	return kb.modelParameters
}

// TrainingParameters returns the in memory training parameters.
func (kb *KnowledgeBase[MP, TP, VM]) TrainingParameters() TP {
	return kb.trainingParameters
}

// ValidationMetrics returns the in memory validation metrics.
func (kb *KnowledgeBase[MP, TP, VM]) ValidationMetrics() VM {
	return kb.validationMetrics
}

// SetValidationMetrics replaces the validation metrics and saves the
// knowledge base.
func (kb *KnowledgeBase[MP, TP, VM]) SetValidationMetrics(ctx context.Context, vm VM) error {
	kb.validationMetrics = vm
	return kb.Save(ctx)
}

func (kb *KnowledgeBase[MP, TP, VM]) open(ctx context.Context, op string) (kv.Store, error) {
	s, err := kb.conn.Open(ctx, kb.name)
	if err != nil {
		return nil, mlcore.IOError(op, err)
	}
	return s, nil
}

// Save writes the three blocks in one transaction, overwriting what was
// saved before.
func (kb *KnowledgeBase[MP, TP, VM]) Save(ctx context.Context) (err error) {
	const op = "model.Save"

	blocks := make(map[string][]byte, 3)
	for key, v := range map[string]interface{}{
		string(modelParametersKey):    kb.modelParameters,
		string(trainingParametersKey): kb.trainingParameters,
		string(validationMetricsKey):  kb.validationMetrics,
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return &mlcore.Error{
				Code: mlcore.EInternal,
				Op:   op,
				Msg:  fmt.Sprintf("encoding %s", key),
				Err:  err,
			}
		}
		blocks[key] = b
	}

	s, err := kb.open(ctx, op)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, mlcore.IOError(op, s.Close()))
	}()

	err = s.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(knowledgeBaseBucket)
		if err != nil {
			return err
		}
		for key, v := range blocks {
			if err := b.Put([]byte(key), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mlcore.IOError(op, err)
	}

	kb.loaded = true
	kb.log.Debug("Knowledge base saved")
	return nil
}

// Load replaces the in memory state with the saved one. It fails with
// EUntrained when nothing has been saved under the model's name.
func (kb *KnowledgeBase[MP, TP, VM]) Load(ctx context.Context) (err error) {
	const op = "model.Load"

	s, err := kb.open(ctx, op)
	if err != nil {
		return err
	}

	var (
		mp MP
		tp TP
		vm VM
	)
	err = s.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(knowledgeBaseBucket)
		if errors.Is(err, kv.ErrTxNotWritable) {
			// the bucket was never created
			return errNotSaved
		}
		if err != nil {
			return err
		}

		for _, blk := range []struct {
			key      []byte
			v        interface{}
			optional bool
		}{
			{key: modelParametersKey, v: &mp},
			{key: trainingParametersKey, v: &tp},
			{key: validationMetricsKey, v: &vm, optional: true},
		} {
			raw, err := b.Get(blk.key)
			if kv.IsNotFound(err) {
				if blk.optional {
					continue
				}
				return errNotSaved
			}
			if err != nil {
				return err
			}
			if err := json.Unmarshal(raw, blk.v); err != nil {
				return &mlcore.Error{
					Code: mlcore.EInternal,
					Msg:  fmt.Sprintf("decoding %s", blk.key),
					Err:  err,
				}
			}
		}
		return nil
	})

	if errors.Is(err, errNotSaved) {
		// nothing to keep, do not leave an empty session behind
		if derr := s.Drop(context.WithoutCancel(ctx)); derr != nil {
			kb.log.Warn("Failed to drop empty knowledge base session", zap.Error(derr))
		}
		return &mlcore.Error{
			Code: mlcore.EUntrained,
			Op:   op,
			Msg:  fmt.Sprintf("model %q has no saved knowledge base; train it first", kb.name),
		}
	}
	defer func() {
		err = multierr.Append(err, mlcore.IOError(op, s.Close()))
	}()
	if err != nil {
		return mlcore.IOError(op, err)
	}

	kb.modelParameters = mp
	kb.trainingParameters = tp
	kb.validationMetrics = vm
	kb.loaded = true
	return nil
}

// Delete removes the saved knowledge base and clears the in memory state.
func (kb *KnowledgeBase[MP, TP, VM]) Delete(ctx context.Context) error {
	const op = "model.Delete"

	s, err := kb.open(ctx, op)
	if err != nil {
		return err
	}
	if err := s.Drop(ctx); err != nil {
		return mlcore.IOError(op, err)
	}

	var (
		mp MP
		tp TP
		vm VM
	)
	kb.modelParameters, kb.trainingParameters, kb.validationMetrics = mp, tp, vm
	kb.loaded = false
	return nil
}
