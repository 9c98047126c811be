// Package linear implements ordinary least squares and ridge regression.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/core/parallel"
	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// LinearRegression は線形回帰モデル（Alpha > 0 でリッジ回帰）
type LinearRegression struct {
	State        *model.StateManager
	Weights      []float64 // 重み（係数）
	Intercept    float64   // 切片
	Alpha        float64   // L2正則化の強さ
	FitIntercept bool
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State:        model.NewStateManager(),
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 中心化したデータで (X^T X + αI) w = X^T y をCholesky分解で解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", lr.Alpha)
	}

	// 列平均と目的変数の平均
	xMean := make([]float64, c)
	var yMean float64
	if lr.FitIntercept {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				xMean[j] += X.At(i, j)
			}
			yMean += y.At(i, 0)
		}
		for j := range xMean {
			xMean[j] /= float64(r)
		}
		yMean /= float64(r)
	}

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	const parallelThreshold = 1000

	Xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yc.SetVec(i, y.At(i, 0)-yMean)
		}
	})

	gram := mat.NewSymDense(c, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lr.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	var xty mat.VecDense
	xty.MulVec(Xc.T(), yc)

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	lr.Weights = make([]float64, c)
	intercept := yMean
	for j := 0; j < c; j++ {
		lr.Weights[j] = w.AtVec(j)
		intercept -= xMean[j] * lr.Weights[j]
	}
	lr.Intercept = intercept

	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	if err := lr.State.RequireFeatures("LinearRegression.Predict", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, yPred)
}
