package lightgbm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// stepData: y jumps from 0 to 10 at x0 = 20; x1 is noise.
func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(40, 2, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%5))
		if i >= 20 {
			y.Set(i, 0, 10)
		}
	}
	return X, y
}

func TestTrainer_LossNeverIncreases(t *testing.T) {
	X, y := stepData()
	trainer := NewTrainer(TrainingParams{NumIterations: 20, LearningRate: 0.2, MinDataInLeaf: 2})
	require.NoError(t, trainer.Fit(X, y))

	losses := trainer.Losses()
	require.Len(t, losses, 20)
	for i := 1; i < len(losses); i++ {
		assert.LessOrEqual(t, losses[i], losses[i-1]+1e-12, "iteration %d", i)
	}
	assert.Less(t, losses[len(losses)-1], 0.1*losses[0])
}

func TestTrainer_InitScoreIsTargetMean(t *testing.T) {
	X, y := stepData()
	trainer := NewTrainer(TrainingParams{NumIterations: 1, MinDataInLeaf: 2})
	require.NoError(t, trainer.Fit(X, y))

	m := trainer.GetModel()
	assert.InDelta(t, 5.0, m.InitScore, 1e-12)
	assert.Equal(t, RegressionL2, m.Objective)
	assert.Equal(t, 2, m.NumFeatures)
	assert.Equal(t, 1, m.NumIteration)

	// the first tree splits on x0 between 19 and 20
	root := m.Trees[0].Nodes[0]
	assert.Equal(t, NumericalNode, root.NodeType)
	assert.Equal(t, 0, root.SplitFeature)
	assert.InDelta(t, 19.5, root.Threshold, 1e-12)
}

func TestTrainer_NumLeavesLimit(t *testing.T) {
	X, y := stepData()
	trainer := NewTrainer(TrainingParams{NumIterations: 5, NumLeaves: 2, MinDataInLeaf: 1})
	require.NoError(t, trainer.Fit(X, y))

	for _, tr := range trainer.GetModel().Trees {
		leaves := 0
		for i := range tr.Nodes {
			if tr.Nodes[i].IsLeaf() {
				leaves++
			}
		}
		assert.Equal(t, tr.NumLeaves, leaves)
		assert.LessOrEqual(t, leaves, 2)
	}
}

func TestTrainer_MaxDepth(t *testing.T) {
	X, y := stepData()
	trainer := NewTrainer(TrainingParams{NumIterations: 3, MaxDepth: 1, MinDataInLeaf: 1})
	require.NoError(t, trainer.Fit(X, y))

	for _, tr := range trainer.GetModel().Trees {
		assert.LessOrEqual(t, len(tr.Nodes), 3)
	}
}

func TestTrainer_BaggingIsSeeded(t *testing.T) {
	X, y := stepData()
	params := TrainingParams{
		NumIterations:   10,
		MinDataInLeaf:   2,
		BaggingFraction: 0.5,
		BaggingFreq:     1,
		FeatureFraction: 0.5,
		Seed:            11,
	}

	a := NewTrainer(params)
	b := NewTrainer(params)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.GetModel(), b.GetModel())
}

func TestTrainer_Validation(t *testing.T) {
	X, y := stepData()
	tests := []struct {
		name   string
		params TrainingParams
		param  string
	}{
		{"learning rate", TrainingParams{LearningRate: -0.1}, "learning_rate"},
		{"num leaves", TrainingParams{NumLeaves: 1}, "num_leaves"},
		{"min data", TrainingParams{MinDataInLeaf: -1}, "min_data_in_leaf"},
		{"lambda", TrainingParams{Lambda: -1}, "lambda_l2"},
		{"bagging fraction", TrainingParams{BaggingFraction: 1.5}, "bagging_fraction"},
		{"feature fraction", TrainingParams{FeatureFraction: -0.5}, "feature_fraction"},
		{"objective", TrainingParams{Objective: "poisson"}, "objective"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTrainer(tt.params).Fit(X, y)
			var valErr *errors.ValidationError
			require.True(t, errors.As(err, &valErr), "got %v", err)
			assert.Equal(t, tt.param, valErr.ParamName)
		})
	}
}

func TestTrainer_RowMismatch(t *testing.T) {
	X, _ := stepData()
	err := NewTrainer(TrainingParams{}).Fit(X, mat.NewDense(3, 1, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestObjectives(t *testing.T) {
	t.Run("L2", func(t *testing.T) {
		obj := L2Objective{}
		assert.InDelta(t, 1.0, obj.CalculateGradient(2, 1), 1e-12)
		assert.InDelta(t, 1.0, obj.CalculateHessian(2, 1), 1e-12)
		assert.InDelta(t, 2.0, obj.CalculateLoss(3, 1), 1e-12)
		assert.InDelta(t, 3.0, obj.GetInitScore([]float64{1, 2, 3, 4, 5}), 1e-12)
	})

	t.Run("L1", func(t *testing.T) {
		obj := L1Objective{}
		assert.Equal(t, 1.0, obj.CalculateGradient(3, 1))
		assert.Equal(t, -1.0, obj.CalculateGradient(1, 3))
		assert.Equal(t, 0.0, obj.CalculateGradient(1, 1))
		assert.InDelta(t, 3.0, obj.GetInitScore([]float64{4, 1, 100, 2}), 1e-12)
	})

	t.Run("Huber", func(t *testing.T) {
		obj := HuberObjective{Delta: 1}
		assert.InDelta(t, 0.5, obj.CalculateGradient(1.5, 1), 1e-12)
		assert.InDelta(t, 1.0, obj.CalculateGradient(5, 1), 1e-12)
		assert.InDelta(t, -1.0, obj.CalculateGradient(-5, 1), 1e-12)
		assert.InDelta(t, 3.5, obj.CalculateLoss(5, 1), 1e-12)
	})

	t.Run("Fair", func(t *testing.T) {
		obj := FairObjective{C: 1}
		assert.InDelta(t, 0.5, obj.CalculateGradient(2, 1), 1e-12)
		assert.InDelta(t, 0.25, obj.CalculateHessian(2, 1), 1e-12)
	})

	t.Run("aliases", func(t *testing.T) {
		for name, want := range map[string]string{
			"":      "regression",
			"mse":   "regression",
			"mae":   "regression_l1",
			"huber": "huber",
			"fair":  "fair",
		} {
			obj, err := CreateObjectiveFunction(name, nil)
			require.NoError(t, err)
			assert.Equal(t, want, obj.Name())
		}
	})
}
