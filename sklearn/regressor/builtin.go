package regressor

import (
	"encoding/gob"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/linear"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/ensemble"
	"github.com/YuminosukeSato/labelembed/sklearn/lightgbm"
	"github.com/YuminosukeSato/labelembed/sklearn/tree"
)

// ForestConfig configures the "forest" kind (RandomForestRegressor).
type ForestConfig struct {
	NEstimators     int  `koanf:"n_estimators"`
	MaxDepth        int  `koanf:"max_depth"`
	MinSamplesSplit int  `koanf:"min_samples_split"`
	MinSamplesLeaf  int  `koanf:"min_samples_leaf"`
	MaxFeatures     int  `koanf:"max_features"`
	Bootstrap       bool `koanf:"bootstrap"`
	NJobs           int  `koanf:"n_jobs"`
}

// Validate checks the forest parameters.
func (c *ForestConfig) Validate() error {
	switch {
	case c.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be positive", c.NEstimators)
	case c.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", c.MaxDepth)
	case c.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", c.MinSamplesSplit)
	case c.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", c.MinSamplesLeaf)
	case c.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be non-negative", c.MaxFeatures)
	}
	return nil
}

// TreeConfig configures the "tree" kind (DecisionTreeRegressor).
type TreeConfig struct {
	MaxDepth            int     `koanf:"max_depth"`
	MinSamplesSplit     int     `koanf:"min_samples_split"`
	MinSamplesLeaf      int     `koanf:"min_samples_leaf"`
	MaxFeatures         int     `koanf:"max_features"`
	MinImpurityDecrease float64 `koanf:"min_impurity_decrease"`
}

// Validate checks the tree parameters.
func (c *TreeConfig) Validate() error {
	switch {
	case c.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", c.MaxDepth)
	case c.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be at least 2", c.MinSamplesSplit)
	case c.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", c.MinSamplesLeaf)
	case c.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be non-negative", c.MaxFeatures)
	case c.MinImpurityDecrease < 0:
		return errors.NewValidationError("min_impurity_decrease", "must be non-negative", c.MinImpurityDecrease)
	}
	return nil
}

// LinearConfig configures the "linear" kind (ridge LinearRegression).
// The small default penalty keeps constant feature columns from making the
// normal equations singular.
type LinearConfig struct {
	Alpha        float64 `koanf:"alpha"`
	FitIntercept bool    `koanf:"fit_intercept"`
}

// Validate checks the linear parameters.
func (c *LinearConfig) Validate() error {
	if c.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", c.Alpha)
	}
	return nil
}

// GBDTConfig configures the "gbdt" kind (lightgbm.LGBMRegressor).
// Parameter names follow LightGBM.
type GBDTConfig struct {
	NumIterations   int     `koanf:"num_iterations"`
	LearningRate    float64 `koanf:"learning_rate"`
	NumLeaves       int     `koanf:"num_leaves"`
	MaxDepth        int     `koanf:"max_depth"` // <= 0 => unlimited
	MinDataInLeaf   int     `koanf:"min_data_in_leaf"`
	LambdaL2        float64 `koanf:"lambda_l2"`
	MinGainToSplit  float64 `koanf:"min_gain_to_split"`
	BaggingFraction float64 `koanf:"bagging_fraction"`
	BaggingFreq     int     `koanf:"bagging_freq"`
	FeatureFraction float64 `koanf:"feature_fraction"`
	Objective       string  `koanf:"objective"`
}

// Validate checks the boosting parameters.
func (c *GBDTConfig) Validate() error {
	switch {
	case c.NumIterations < 1:
		return errors.NewValidationError("num_iterations", "must be positive", c.NumIterations)
	case !(c.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be positive", c.LearningRate)
	case c.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", c.NumLeaves)
	case c.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be positive", c.MinDataInLeaf)
	case c.LambdaL2 < 0:
		return errors.NewValidationError("lambda_l2", "must be non-negative", c.LambdaL2)
	case c.MinGainToSplit < 0:
		return errors.NewValidationError("min_gain_to_split", "must be non-negative", c.MinGainToSplit)
	case !(c.BaggingFraction > 0 && c.BaggingFraction <= 1):
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", c.BaggingFraction)
	case c.BaggingFreq < 0:
		return errors.NewValidationError("bagging_freq", "must be non-negative", c.BaggingFreq)
	case !(c.FeatureFraction > 0 && c.FeatureFraction <= 1):
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", c.FeatureFraction)
	}
	_, err := lightgbm.CreateObjectiveFunction(c.Objective, nil)
	return err
}

func init() {
	Register("forest",
		func() ForestConfig {
			return ForestConfig{NEstimators: 100, MinSamplesSplit: 2, MinSamplesLeaf: 1, Bootstrap: true}
		},
		func(c ForestConfig) (model.Regressor, error) {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithNEstimators(c.NEstimators),
				ensemble.WithMaxDepth(c.MaxDepth),
				ensemble.WithMinSamplesSplit(c.MinSamplesSplit),
				ensemble.WithMinSamplesLeaf(c.MinSamplesLeaf),
				ensemble.WithMaxFeatures(c.MaxFeatures),
				ensemble.WithBootstrap(c.Bootstrap),
				ensemble.WithNJobs(c.NJobs),
			), nil
		})

	Register("tree",
		func() TreeConfig { return TreeConfig{MinSamplesSplit: 2, MinSamplesLeaf: 1} },
		func(c TreeConfig) (model.Regressor, error) {
			return tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(c.MaxDepth),
				tree.WithMinSamplesSplit(c.MinSamplesSplit),
				tree.WithMinSamplesLeaf(c.MinSamplesLeaf),
				tree.WithMaxFeatures(c.MaxFeatures),
				tree.WithMinImpurityDecrease(c.MinImpurityDecrease),
			), nil
		})

	Register("linear",
		func() LinearConfig { return LinearConfig{Alpha: 1e-6, FitIntercept: true} },
		func(c LinearConfig) (model.Regressor, error) {
			return linear.NewLinearRegression(linear.WithAlpha(c.Alpha), linear.WithFitIntercept(c.FitIntercept)), nil
		})

	Register("gbdt",
		func() GBDTConfig {
			return GBDTConfig{
				NumIterations:   100,
				LearningRate:    0.1,
				NumLeaves:       31,
				MaxDepth:        -1,
				MinDataInLeaf:   20,
				BaggingFraction: 1,
				FeatureFraction: 1,
				Objective:       "regression",
			}
		},
		func(c GBDTConfig) (model.Regressor, error) {
			reg := lightgbm.NewLGBMRegressor().
				WithNumIterations(c.NumIterations).
				WithLearningRate(c.LearningRate).
				WithNumLeaves(c.NumLeaves).
				WithMaxDepth(c.MaxDepth).
				WithMinChildSamples(c.MinDataInLeaf).
				WithRegLambda(c.LambdaL2).
				WithMinSplitGain(c.MinGainToSplit).
				WithSubsample(c.BaggingFraction, c.BaggingFreq).
				WithColsampleBytree(c.FeatureFraction).
				WithObjective(c.Objective)
			return reg, nil
		})

	// fitted regressors are persisted inside embedders as model.Regressor values
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&tree.DecisionTreeRegressor{})
	gob.Register(&linear.LinearRegression{})
	gob.Register(&lightgbm.LGBMRegressor{})
}
