package model

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/influxdata/mlcore"
	"github.com/influxdata/mlcore/dataframe"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FoldFunc splits the row ids 0..n-1 into k folds. Every id must land in
// exactly one fold.
type FoldFunc func(n, k int) [][]int

// SequentialFolds splits 0..n-1 into k contiguous blocks. The first n%k
// blocks hold one id more than the others.
func SequentialFolds(n, k int) [][]int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return blocks(ids, k)
}

// ShuffledFolds permutes the ids with a source seeded by seed before
// splitting them like SequentialFolds. The same seed gives the same folds.
func ShuffledFolds(seed int64) FoldFunc {
	return func(n, k int) [][]int {
		ids := rand.New(rand.NewSource(seed)).Perm(n)
		return blocks(ids, k)
	}
}

func blocks(ids []int, k int) [][]int {
	n := len(ids)
	folds := make([][]int, k)
	size, rest := n/k, n%k
	from := 0
	for i := range folds {
		to := from + size
		if i < rest {
			to++
		}
		folds[i] = ids[from:to]
		from = to
	}
	return folds
}

// checkFolds verifies folds form a partition of 0..n-1 into k non empty
// parts.
func checkFolds(folds [][]int, n, k int) error {
	const op = "model.KFoldCrossValidation"
	if len(folds) != k {
		return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("fold function returned %d folds, want %d", len(folds), k)}
	}

	seen := make([]bool, n)
	total := 0
	for i, fold := range folds {
		if len(fold) == 0 {
			return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("fold %d is empty", i)}
		}
		for _, id := range fold {
			if id < 0 || id >= n {
				return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("fold %d holds id %d outside [0, %d)", i, id, n)}
			}
			if seen[id] {
				return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("id %d is in more than one fold", id)}
			}
			seen[id] = true
			total++
		}
	}
	if total != n {
		return &mlcore.Error{Code: mlcore.EInvalid, Op: op, Msg: fmt.Sprintf("folds cover %d of %d ids", total, n)}
	}
	return nil
}

// KFoldCrossValidation splits data into k folds and, for each of them,
// trains a throwaway model on the other folds and validates it on the fold.
// The fold metrics are combined by the algorithm's AggregateMetrics, in fold
// order. The model's own knowledge base is not touched.
func (m *Model[MP, TP, VM]) KFoldCrossValidation(ctx context.Context, data *dataframe.Dataset, tp TP, k int) (vm VM, err error) {
	const op = "model.KFoldCrossValidation"
	defer m.observe("crossval", m.cfg.clock.Now(), &err)

	n := data.Len()
	if k < 2 || k > n {
		return vm, &mlcore.Error{
			Code: mlcore.EInvalid,
			Op:   op,
			Msg:  fmt.Sprintf("k must be between 2 and the number of rows %d, got %d", n, k),
		}
	}

	folds := m.cfg.folds(n, k)
	if err := checkFolds(folds, n, k); err != nil {
		return vm, err
	}

	results := make([]VM, k)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.parallelism)
	for i := range folds {
		i := i
		g.Go(func() error {
			res, err := m.runFold(gctx, data, tp, folds, i)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return vm, err
	}

	vm, err = m.algo.AggregateMetrics(results)
	if err != nil {
		return vm, wrap(op, err)
	}
	return vm, nil
}

func (m *Model[MP, TP, VM]) runFold(ctx context.Context, data *dataframe.Dataset, tp TP, folds [][]int, i int) (vm VM, err error) {
	log := m.cfg.log.With(zap.Int("fold", i))
	// a failing sibling fold cancels ctx
	cleanupCtx := context.WithoutCancel(ctx)

	var trainIDs []int
	for j, fold := range folds {
		if j != i {
			trainIDs = append(trainIDs, fold...)
		}
	}

	train, err := data.Subset(ctx, trainIDs)
	if err != nil {
		return vm, err
	}
	defer func() {
		if derr := train.Delete(cleanupCtx); derr != nil {
			log.Warn("Failed to delete fold training data", zap.Error(derr))
		}
	}()

	test, err := data.Subset(ctx, folds[i])
	if err != nil {
		return vm, err
	}
	defer func() {
		if derr := test.Delete(cleanupCtx); derr != nil {
			log.Warn("Failed to delete fold test data", zap.Error(derr))
		}
	}()

	name := fmt.Sprintf("%s-cv%d-%s", m.name, i, uuid.NewString())
	fm := New[MP, TP, VM](name, m.algo, m.conn, WithLogger(m.cfg.log), WithClock(m.cfg.clock))
	defer func() {
		if derr := fm.Delete(cleanupCtx); derr != nil {
			log.Warn("Failed to delete fold model", zap.Error(derr))
		}
	}()

	if err := fm.Train(ctx, train, tp); err != nil {
		return vm, err
	}
	vm, err = fm.Validate(ctx, test)
	if err != nil {
		return vm, err
	}

	log.Debug("Fold validated", zap.Int("train_rows", train.Len()), zap.Int("test_rows", test.Len()))
	return vm, nil
}
