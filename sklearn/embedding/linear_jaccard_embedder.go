package embedding

import (
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/dataset"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/preprocessing"
)

// LinearJaccardEmbedder learns a single D x F projection W and embeds a
// feature row x as W x. Dimensions <= 0 resolves to F on the first fit.
type LinearJaccardEmbedder struct {
	filterBase

	dimensions   int
	learningRate float64
	patience     int
	maxSweeps    int
	seed         int64
	progress     ProgressReporter
	standardize  bool

	projection *mat.Dense
	scaler     *preprocessing.StandardScaler
}

// LinearOption configures a LinearJaccardEmbedder.
type LinearOption func(*LinearJaccardEmbedder) error

// WithLinearDimensions sets D; 0 or less means one output per feature.
func WithLinearDimensions(d int) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		e.dimensions = d
		return nil
	}
}

// WithLearningRate sets the Adam base learning rate.
func WithLearningRate(lr float64) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		if !(lr > 0) {
			return errors.NewValidationError("learning_rate", "must be positive", lr)
		}
		e.learningRate = lr
		return nil
	}
}

// WithPatience sets how many non-improving sweeps end training.
func WithPatience(p int) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		if p < 1 {
			return errors.NewValidationError("patience", "must be at least 1", p)
		}
		e.patience = p
		return nil
	}
}

// WithMaxSweeps caps the number of sweeps; 0 removes the cap.
func WithMaxSweeps(n int) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		if n < 0 {
			return errors.NewValidationError("max_sweeps", "must be non-negative", n)
		}
		e.maxSweeps = n
		return nil
	}
}

// WithLinearRandomState fixes the seed.
func WithLinearRandomState(seed int64) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		e.seed = seed
		return nil
	}
}

// WithLinearProgress receives one SweepStats per sweep.
func WithLinearProgress(r ProgressReporter) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		e.progress = r
		return nil
	}
}

// WithStandardize z-scores features with statistics of the training batch
// before projecting.
func WithStandardize(on bool) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		e.standardize = on
		return nil
	}
}

// WithLinearKeepLabels copies the label columns into the output.
func WithLinearKeepLabels(keep bool) LinearOption {
	return func(e *LinearJaccardEmbedder) error {
		e.keepLabels = keep
		return nil
	}
}

// NewLinearJaccardEmbedder は線形のJaccard埋め込みフィルタを作成する
//
// デフォルト: D=F（初回学習時に決定）、学習率1e-4、patience 5、スイープ上限なし。
func NewLinearJaccardEmbedder(opts ...LinearOption) (*LinearJaccardEmbedder, error) {
	e := &LinearJaccardEmbedder{
		filterBase:   newFilterBase("LinearJaccardEmbedder"),
		learningRate: DefaultLearningRate,
		patience:     DefaultPatience,
		seed:         rand.Int64(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *LinearJaccardEmbedder) train(X *mat.Dense, labels []*roaring.Bitmap) (int, error) {
	var scaler *preprocessing.StandardScaler
	input := X
	if e.standardize {
		scaler = preprocessing.NewStandardScaler(true, true)
		scaled, err := scaler.FitTransform(X)
		if err != nil {
			return 0, err
		}
		input = mat.DenseCopyOf(scaled)
	}

	fitter := NewProjectionFitter(e.dimensions, e.seed)
	fitter.LearningRate = e.learningRate
	fitter.Patience = e.patience
	fitter.MaxSweeps = e.maxSweeps
	fitter.Progress = e.progress

	w, err := fitter.Fit(input, labels)
	if err != nil {
		return 0, err
	}
	e.projection = w
	e.scaler = scaler
	d, _ := w.Dims()
	return d, nil
}

func (e *LinearJaccardEmbedder) embed(X mat.Matrix) (*mat.Dense, error) {
	if e.projection == nil {
		return nil, errors.NewNotFittedError("LinearJaccardEmbedder", "Embed")
	}
	input := X
	if e.scaler != nil {
		scaled, err := e.scaler.Transform(X)
		if err != nil {
			return nil, err
		}
		input = scaled
	}
	var out mat.Dense
	out.Mul(input, e.projection.T())
	return &out, nil
}

func (e *LinearJaccardEmbedder) randomState() int64 { return e.seed }

// Fit trains the projection on t.
func (e *LinearJaccardEmbedder) Fit(t *dataset.Table) error { return e.fit(t, e) }

// Transform replaces labels and features of t with the projection.
func (e *LinearJaccardEmbedder) Transform(t *dataset.Table) (*dataset.Table, error) {
	return e.transform(t, e)
}

// FitTransform trains on t and returns its embedding.
func (e *LinearJaccardEmbedder) FitTransform(t *dataset.Table) (*dataset.Table, error) {
	if err := e.Fit(t); err != nil {
		return nil, err
	}
	return e.Transform(t)
}

// Process trains on the first batch it sees and embeds every batch.
func (e *LinearJaccardEmbedder) Process(t *dataset.Table) (*dataset.Table, error) {
	return e.process(t, e)
}

// Embed maps an N x F feature matrix to N x D coordinates.
func (e *LinearJaccardEmbedder) Embed(X mat.Matrix) (*mat.Dense, error) {
	return e.embedMatrix(X, e)
}

// Dimensions returns the resolved D once trained, and the configured value
// (0 meaning "one per feature") before.
func (e *LinearJaccardEmbedder) Dimensions() int {
	if e.projection != nil {
		r, _ := e.projection.Dims()
		return r
	}
	if e.dimensions < 0 {
		return 0
	}
	return e.dimensions
}

// Projection returns a copy of W, or nil before training.
func (e *LinearJaccardEmbedder) Projection() *mat.Dense {
	if e.projection == nil {
		return nil
	}
	return mat.DenseCopyOf(e.projection)
}

// RandomState returns the seed in use.
func (e *LinearJaccardEmbedder) RandomState() int64 { return e.seed }
