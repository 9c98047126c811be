// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/core/parallel"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/tree"
)

// RandomForestRegressor averages regression trees grown on bootstrap samples
// with random feature subsets per split.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int // 0 => unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => int(log2(F)) + 1
	Bootstrap       bool
	RandomState     int64
	NJobs           int // trees grown concurrently; <= 1 is sequential

	State *model.StateManager
	Trees []*tree.DecisionTreeRegressor
}

// Option functional config for RandomForestRegressor
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(rf *RandomForestRegressor) { rf.NEstimators = n } }

// WithMaxDepth sets the maximum depth of every tree.
func WithMaxDepth(d int) Option { return func(rf *RandomForestRegressor) { rf.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum node size for a split in every tree.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum leaf size of every tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestRegressor) { rf.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the number of features tried per split.
func WithMaxFeatures(k int) Option { return func(rf *RandomForestRegressor) { rf.MaxFeatures = k } }

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(b bool) Option { return func(rf *RandomForestRegressor) { rf.Bootstrap = b } }

// WithRandomState sets the base seed; tree i uses seed+i.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// WithNJobs sets how many trees are grown concurrently.
func WithNJobs(n int) Option { return func(rf *RandomForestRegressor) { rf.NJobs = n } }

// NewRandomForestRegressor returns a forest with 100 bootstrapped trees.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		State:           model.NewStateManager(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// SetRandomState implements model.Seeded.
func (rf *RandomForestRegressor) SetRandomState(seed int64) { rf.RandomState = seed }

// Fit grows NEstimators trees. The result depends only on RandomState, not on NJobs.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.NEstimators)
	}
	rows, target, err := tree.ToRows("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n, p := len(rows), len(rows[0])

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Log2(float64(p))) + 1
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = parallel.ForEach(rf.NEstimators, rf.NJobs, "RandomForestRegressor.Fit", func(idx int) error {
		seed := rf.RandomState + int64(idx)
		sample := make([]int, n)
		if rf.Bootstrap {
			rnd := rand.New(rand.NewPCG(uint64(seed), 1))
			for i := range sample {
				sample[i] = rnd.IntN(n)
			}
		} else {
			for i := range sample {
				sample[i] = i
			}
		}

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(rf.MaxDepth),
			tree.WithMinSamplesSplit(rf.MinSamplesSplit),
			tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
			tree.WithMaxFeatures(maxFeatures),
			tree.WithRandomState(seed),
		)
		if err := t.FitSubset(rows, target, sample); err != nil {
			return errors.Wrapf(err, "tree %d", idx)
		}
		trees[idx] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.Trees = trees
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetDimensions(p, n)
	rf.State.SetFitted()
	return nil
}

// Predict returns the mean tree prediction as an n x 1 column.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if rf.State == nil || len(rf.Trees) == 0 {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := rf.State.RequireFeatures("RandomForestRegressor.Predict", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			var sum float64
			for _, t := range rf.Trees {
				sum += t.PredictRow(row)
			}
			out.Set(i, 0, sum/float64(len(rf.Trees)))
		}
	})
	return out, nil
}

// Score returns R² on (X, y).
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances averages the trees' importances.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	if len(rf.Trees) == 0 {
		return nil
	}
	out := make([]float64, len(rf.Trees[0].Importances))
	for _, t := range rf.Trees {
		for i, v := range t.Importances {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(rf.Trees))
	}
	return out
}
