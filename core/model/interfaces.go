// Package model defines the contracts shared by regressors and embedders, the
// fitted-state bookkeeping they embed, and compressed gob persistence.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is the collaborator trained once per embedding dimension.
// y is an N x 1 column; Predict returns an N x 1 column.
type Regressor interface {
	Fitter
	Predictor
}

// Seeded is implemented by regressors whose training is randomised.
// The embedder derives one seed per dimension from its own seed.
type Seeded interface {
	SetRandomState(seed int64)
}

// Scorer is the interface for models that can compute a score.
type Scorer interface {
	// Score returns the coefficient of determination R^2 of the prediction.
	Score(X, y mat.Matrix) (float64, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}
