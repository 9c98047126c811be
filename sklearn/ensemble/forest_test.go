package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

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

func TestRandomForestRegressor_FitsStep(t *testing.T) {
	X, y := stepData()

	rf := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(3))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees, 20)

	pred, err := rf.Predict(mat.NewDense(2, 2, []float64{2, 2, 37, 2}))
	require.NoError(t, err)
	assert.Less(t, pred.At(0, 0), 2.0)
	assert.Greater(t, pred.At(1, 0), 8.0)

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.8)

	imp := rf.GetFeatureImportances()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])
}

func TestRandomForestRegressor_DeterministicAcrossJobs(t *testing.T) {
	X, y := stepData()

	seq := NewRandomForestRegressor(WithNEstimators(8), WithRandomState(42))
	par := NewRandomForestRegressor(WithNEstimators(8), WithRandomState(42), WithNJobs(4))
	require.NoError(t, seq.Fit(X, y))
	require.NoError(t, par.Fit(X, y))

	a, err := seq.Predict(X)
	require.NoError(t, err)
	b, err := par.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
	for i := range seq.Trees {
		assert.Equal(t, seq.Trees[i].Nodes, par.Trees[i].Nodes)
	}
}

func TestRandomForestRegressor_NoBootstrapSingleTreeMatchesTree(t *testing.T) {
	X, y := stepData()

	rf := NewRandomForestRegressor(WithNEstimators(1), WithBootstrap(false), WithMaxFeatures(2))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0))
	}
}

func TestRandomForestRegressor_Errors(t *testing.T) {
	rf := NewRandomForestRegressor()
	_, err := rf.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	bad := NewRandomForestRegressor(WithNEstimators(0))
	X, y := stepData()
	var valErr *errors.ValidationError
	assert.True(t, errors.As(bad.Fit(X, y), &valErr))

	small := NewRandomForestRegressor(WithNEstimators(2))
	require.NoError(t, small.Fit(X, y))
	_, err = small.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
