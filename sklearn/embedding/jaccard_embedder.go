package embedding

import (
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/dataset"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/regressor"
)

// DefaultDimensions is the embedding size of JaccardEmbedder.
const DefaultDimensions = 16

// JaccardEmbedder は非線形のJaccard埋め込みフィルタ
//
// 学習は2段階で行う:
//  1. TargetFitter で各インスタンスの目標座標を求める
//  2. 次元ごとに1つの回帰器を特徴量→目標座標で学習する
//
// 目標座標は学習後に破棄され、推論には回帰器のアンサンブルだけを使う。
type JaccardEmbedder struct {
	filterBase

	dimensions int
	spec       *regressor.Spec
	sweeps     int
	stepSize   float64
	seed       int64
	progress   ProgressReporter
	nJobs      int

	ensemble *DimensionEnsemble
}

// Option configures a JaccardEmbedder.
type Option func(*JaccardEmbedder) error

// WithDimensions sets D. D must be positive.
func WithDimensions(d int) Option {
	return func(e *JaccardEmbedder) error {
		if d <= 0 {
			return errors.NewValidationError("dimensions", "must be positive", d)
		}
		e.dimensions = d
		return nil
	}
}

// WithRegressor sets the per-dimension regressor from a specification string
// such as "forest n_estimators=50".
func WithRegressor(spec string) Option {
	return func(e *JaccardEmbedder) error {
		s, err := regressor.Parse(spec)
		if err != nil {
			return err
		}
		e.spec = s
		return nil
	}
}

// WithRegressorSpec sets an already parsed regressor specification.
func WithRegressorSpec(spec *regressor.Spec) Option {
	return func(e *JaccardEmbedder) error {
		if spec == nil {
			return errors.NewValidationError("regressor", "must not be nil", nil)
		}
		e.spec = spec
		return nil
	}
}

// WithSweeps sets the number of target-fitting sweeps.
func WithSweeps(n int) Option {
	return func(e *JaccardEmbedder) error {
		if n < 1 {
			return errors.NewValidationError("sweeps", "must be positive", n)
		}
		e.sweeps = n
		return nil
	}
}

// WithStepSize sets the target-fitting learning rate.
func WithStepSize(step float64) Option {
	return func(e *JaccardEmbedder) error {
		if !(step > 0) {
			return errors.NewValidationError("step_size", "must be positive", step)
		}
		e.stepSize = step
		return nil
	}
}

// WithRandomState fixes the seed used for initialisation, partner sampling
// and the regressors.
func WithRandomState(seed int64) Option {
	return func(e *JaccardEmbedder) error {
		e.seed = seed
		return nil
	}
}

// WithProgress receives one SweepStats per target-fitting sweep.
func WithProgress(r ProgressReporter) Option {
	return func(e *JaccardEmbedder) error {
		e.progress = r
		return nil
	}
}

// WithNJobs trains up to n dimension regressors concurrently.
func WithNJobs(n int) Option {
	return func(e *JaccardEmbedder) error {
		e.nJobs = n
		return nil
	}
}

// WithKeepLabels copies the label columns into the output, before the targets.
func WithKeepLabels(keep bool) Option {
	return func(e *JaccardEmbedder) error {
		e.keepLabels = keep
		return nil
	}
}

// NewJaccardEmbedder は新しいJaccardEmbedderを作成する
//
// デフォルト: D=16、回帰器は "forest"、10000スイープ、ステップ幅0.01。
// シードを指定しない場合はグローバル乱数から1つ引き、学習時にログに出力する。
//
// 使用例:
//
//	emb, err := embedding.NewJaccardEmbedder(
//	    embedding.WithDimensions(8),
//	    embedding.WithRegressor("forest n_estimators=50"),
//	    embedding.WithRandomState(42),
//	)
func NewJaccardEmbedder(opts ...Option) (*JaccardEmbedder, error) {
	e := &JaccardEmbedder{
		filterBase: newFilterBase("JaccardEmbedder"),
		dimensions: DefaultDimensions,
		sweeps:     DefaultSweeps,
		stepSize:   DefaultStepSize,
		seed:       rand.Int64(),
		nJobs:      1,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.spec == nil {
		s, err := regressor.Parse(regressor.DefaultKind)
		if err != nil {
			return nil, err
		}
		e.spec = s
	}
	return e, nil
}

func (e *JaccardEmbedder) train(X *mat.Dense, labels []*roaring.Bitmap) (int, error) {
	fitter := &TargetFitter{
		Dimensions: e.dimensions,
		Sweeps:     e.sweeps,
		StepSize:   e.stepSize,
		InitStdDev: DefaultInitStdDev,
		Seed:       e.seed,
		Progress:   e.progress,
	}
	targets, err := fitter.Fit(labels)
	if err != nil {
		return 0, err
	}

	ensemble := NewDimensionEnsemble(e.spec, e.seed, e.nJobs)
	if err := ensemble.Fit(X, targets); err != nil {
		return 0, err
	}
	e.ensemble = ensemble
	return e.dimensions, nil
}

func (e *JaccardEmbedder) embed(X mat.Matrix) (*mat.Dense, error) {
	return e.ensemble.Predict(X)
}

func (e *JaccardEmbedder) randomState() int64 { return e.seed }

// Fit trains the embedder on t.
func (e *JaccardEmbedder) Fit(t *dataset.Table) error { return e.fit(t, e) }

// Transform replaces labels and features of t with the embedding.
func (e *JaccardEmbedder) Transform(t *dataset.Table) (*dataset.Table, error) {
	return e.transform(t, e)
}

// FitTransform trains on t and returns its embedding.
func (e *JaccardEmbedder) FitTransform(t *dataset.Table) (*dataset.Table, error) {
	if err := e.Fit(t); err != nil {
		return nil, err
	}
	return e.Transform(t)
}

// Process trains on the first batch it sees and embeds every batch.
func (e *JaccardEmbedder) Process(t *dataset.Table) (*dataset.Table, error) {
	return e.process(t, e)
}

// Embed maps an N x F feature matrix to N x D coordinates.
func (e *JaccardEmbedder) Embed(X mat.Matrix) (*mat.Dense, error) {
	return e.embedMatrix(X, e)
}

// Dimensions returns D.
func (e *JaccardEmbedder) Dimensions() int { return e.dimensions }

// Regressor returns the canonical regressor specification.
func (e *JaccardEmbedder) Regressor() string { return e.spec.String() }

// RandomState returns the seed in use.
func (e *JaccardEmbedder) RandomState() int64 { return e.seed }
