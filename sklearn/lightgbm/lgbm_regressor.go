package lightgbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/core/parallel"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/pkg/log"
)

// LGBMRegressor is a gradient-boosted tree regressor with LightGBM's
// parameter names and defaults.
type LGBMRegressor struct {
	State *model.StateManager
	Model *Model

	NumLeaves       int     // Number of leaves in one tree
	MaxDepth        int     // Maximum tree depth, <= 0 for no limit
	LearningRate    float64 // Boosting learning rate
	NumIterations   int     // Number of boosting iterations
	MinChildSamples int     // Minimum number of data in one leaf
	Subsample       float64 // Row subsample ratio
	SubsampleFreq   int     // Resample rows every SubsampleFreq iterations, 0 disables
	ColsampleBytree float64 // Column subsample ratio per tree
	RegLambda       float64 // L2 regularization
	MinSplitGain    float64 // Minimum gain to make a split
	RandomState     int64
	Objective       string  // regression, regression_l1, huber, fair
	HuberDelta      float64 // For huber
	FairC           float64 // For fair

	ShowProgress bool // log start and end of training at info level
}

// NewLGBMRegressor creates a new LightGBM regressor with default parameters
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{
		State:           model.NewStateManager(),
		NumLeaves:       31,
		MaxDepth:        -1,
		LearningRate:    0.1,
		NumIterations:   100,
		MinChildSamples: 20,
		Subsample:       1.0,
		ColsampleBytree: 1.0,
		RandomState:     42,
		Objective:       string(RegressionL2),
		HuberDelta:      1.0,
		FairC:           1.0,
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum leaf size
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithSubsample sets row bagging: fraction of rows redrawn every freq iterations
func (lgb *LGBMRegressor) WithSubsample(fraction float64, freq int) *LGBMRegressor {
	lgb.Subsample = fraction
	lgb.SubsampleFreq = freq
	return lgb
}

// WithColsampleBytree sets the fraction of features each tree may split on
func (lgb *LGBMRegressor) WithColsampleBytree(fraction float64) *LGBMRegressor {
	lgb.ColsampleBytree = fraction
	return lgb
}

// WithRegLambda sets the L2 penalty on leaf values
func (lgb *LGBMRegressor) WithRegLambda(lambda float64) *LGBMRegressor {
	lgb.RegLambda = lambda
	return lgb
}

// WithMinSplitGain sets the minimum gain to split
func (lgb *LGBMRegressor) WithMinSplitGain(gain float64) *LGBMRegressor {
	lgb.MinSplitGain = gain
	return lgb
}

// WithObjective sets the objective function
func (lgb *LGBMRegressor) WithObjective(obj string) *LGBMRegressor {
	lgb.Objective = obj
	return lgb
}

// WithRandomState sets the random seed
func (lgb *LGBMRegressor) WithRandomState(seed int64) *LGBMRegressor {
	lgb.RandomState = seed
	return lgb
}

// WithProgress enables info-level training logs
func (lgb *LGBMRegressor) WithProgress() *LGBMRegressor {
	lgb.ShowProgress = true
	return lgb
}

// SetRandomState implements model.Seeded.
func (lgb *LGBMRegressor) SetRandomState(seed int64) { lgb.RandomState = seed }

func (lgb *LGBMRegressor) trainingParams() TrainingParams {
	return TrainingParams{
		NumIterations:   lgb.NumIterations,
		LearningRate:    lgb.LearningRate,
		NumLeaves:       lgb.NumLeaves,
		MaxDepth:        lgb.MaxDepth,
		MinDataInLeaf:   lgb.MinChildSamples,
		Lambda:          lgb.RegLambda,
		MinGainToSplit:  lgb.MinSplitGain,
		BaggingFraction: lgb.Subsample,
		BaggingFreq:     lgb.SubsampleFreq,
		FeatureFraction: lgb.ColsampleBytree,
		Objective:       lgb.Objective,
		HuberDelta:      lgb.HuberDelta,
		FairC:           lgb.FairC,
		Seed:            lgb.RandomState,
	}
}

// Fit trains the regressor on X (N x F) and the column y (N x 1).
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	rows, cols := X.Dims()
	logger := log.GetLoggerWithName("lightgbm.regressor")
	if lgb.ShowProgress {
		logger.Info("Training LGBMRegressor",
			log.SamplesKey, rows,
			log.FeaturesKey, cols,
			"objective", lgb.Objective,
		)
	}

	trainer := NewTrainer(lgb.trainingParams())
	if err := trainer.Fit(X, y); err != nil {
		return errors.Wrap(err, "LGBMRegressor.Fit")
	}
	lgb.Model = trainer.GetModel()

	if lgb.State == nil {
		lgb.State = model.NewStateManager()
	}
	lgb.State.SetDimensions(cols, rows)
	lgb.State.SetFitted()

	if lgb.ShowProgress {
		losses := trainer.Losses()
		logger.Info("Training completed", log.LossKey, losses[len(losses)-1])
	}
	return nil
}

// Predict returns the boosted predictions as an N x 1 column.
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if lgb.State == nil || lgb.Model == nil {
		return nil, errors.NewNotFittedError("LGBMRegressor", "Predict")
	}
	if err := lgb.State.RequireFitted("LGBMRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := lgb.State.RequireFeatures("LGBMRegressor.Predict", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.Set(i, 0, lgb.Model.PredictRow(row))
		}
	})
	return out, nil
}

// Score returns the coefficient of determination R^2 of the prediction
func (lgb *LGBMRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lgb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportance returns feature importance scores ("split" or "gain").
func (lgb *LGBMRegressor) GetFeatureImportance(importanceType string) []float64 {
	if lgb.Model == nil {
		return nil
	}
	return lgb.Model.GetFeatureImportance(importanceType)
}

// GetParams returns the parameters of the regressor
func (lgb *LGBMRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_leaves":        lgb.NumLeaves,
		"max_depth":         lgb.MaxDepth,
		"learning_rate":     lgb.LearningRate,
		"num_iterations":    lgb.NumIterations,
		"min_child_samples": lgb.MinChildSamples,
		"subsample":         lgb.Subsample,
		"subsample_freq":    lgb.SubsampleFreq,
		"colsample_bytree":  lgb.ColsampleBytree,
		"reg_lambda":        lgb.RegLambda,
		"min_split_gain":    lgb.MinSplitGain,
		"random_state":      lgb.RandomState,
		"objective":         lgb.Objective,
	}
}
