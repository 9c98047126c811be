package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/lightgbm"
	"github.com/YuminosukeSato/labelembed/sklearn/regressor"
)

var errRegressorBroken = errors.New("regressor broken")

type brokenRegressor struct{}

func (brokenRegressor) Fit(X, y mat.Matrix) error { return errRegressorBroken }

func (brokenRegressor) Predict(X mat.Matrix) (mat.Matrix, error) { return nil, errRegressorBroken }

type brokenConfig struct{}

func init() {
	regressor.Register("broken",
		func() brokenConfig { return brokenConfig{} },
		func(brokenConfig) (model.Regressor, error) { return brokenRegressor{}, nil })
}

func linearData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 1,
		1, 0,
		2, 3,
		3, 1,
		4, 4,
		5, 2,
	})
	targets := mat.NewDense(6, 2, nil)
	for i := 0; i < 6; i++ {
		x0, x1 := X.At(i, 0), X.At(i, 1)
		targets.Set(i, 0, 2*x0+1)
		targets.Set(i, 1, x0-x1)
	}
	return X, targets
}

func TestDimensionEnsemble_FitPredict(t *testing.T) {
	X, targets := linearData()
	e := NewDimensionEnsemble(regressor.MustParse("linear alpha=0"), 1, 1)

	require.NoError(t, e.Fit(X, targets))
	assert.Equal(t, 2, e.Dimensions())
	assert.Equal(t, []int{2, 2}, e.InputWidths)

	pred, err := e.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(targets, pred, 1e-8))
}

func TestDimensionEnsemble_ParallelMatchesSequential(t *testing.T) {
	X, targets := linearData()
	spec := regressor.MustParse("forest n_estimators=5")

	seq := NewDimensionEnsemble(spec, 42, 1)
	par := NewDimensionEnsemble(spec, 42, 4)
	require.NoError(t, seq.Fit(X, targets))
	require.NoError(t, par.Fit(X, targets))

	a, err := seq.Predict(X)
	require.NoError(t, err)
	b, err := par.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
}

func TestDimensionEnsemble_GBDTMembers(t *testing.T) {
	X, targets := linearData()
	spec := regressor.MustParse("gbdt num_iterations=200 learning_rate=0.3 min_data_in_leaf=1")

	seq := NewDimensionEnsemble(spec, 7, 1)
	par := NewDimensionEnsemble(spec, 7, 2)
	require.NoError(t, seq.Fit(X, targets))
	require.NoError(t, par.Fit(X, targets))

	for k, r := range seq.Regressors {
		reg, ok := r.(*lightgbm.LGBMRegressor)
		require.True(t, ok)
		assert.Equal(t, int64(7+k), reg.RandomState)
	}

	a, err := seq.Predict(X)
	require.NoError(t, err)
	b, err := par.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b))
	assert.True(t, mat.EqualApprox(targets, a, 1e-6))
}

func TestDimensionEnsemble_RegressorFailure(t *testing.T) {
	X, targets := linearData()
	e := NewDimensionEnsemble(regressor.MustParse("broken"), 1, 1)

	err := e.Fit(X, targets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRegressorBroken))
	var modelErr *errors.ModelError
	assert.True(t, errors.As(err, &modelErr))
	assert.Equal(t, 0, e.Dimensions())

	_, err = e.Predict(X)
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestDimensionEnsemble_WidthMismatch(t *testing.T) {
	X, targets := linearData()
	e := NewDimensionEnsemble(regressor.MustParse("tree"), 1, 1)
	require.NoError(t, e.Fit(X, targets))

	_, err := e.Predict(mat.NewDense(2, 3, nil))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	err = e.Fit(X, mat.NewDense(5, 2, nil))
	assert.True(t, errors.As(err, &dimErr))
}
