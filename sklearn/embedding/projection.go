package embedding

import (
	"math"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/labelembed/metrics"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// Projection fitter defaults.
const (
	DefaultLearningRate = 1e-4
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultEpsilon      = 1e-8
	DefaultPatience     = 5
)

// ProjectionFitter learns a D x F matrix W so that |W xi - W xj|^2 tracks the
// Jaccard distance between the label sets of instances i and j.
//
// Every step pairs instance i with a uniformly drawn partner j and updates
// each entry of W with Adam. Fitting stops after Patience consecutive sweeps
// that fail to lower the best sweep loss, or after MaxSweeps when that is set.
type ProjectionFitter struct {
	// Dimensions <= 0 means one output per input feature.
	Dimensions   int
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	Patience     int
	// MaxSweeps caps the number of sweeps; 0 leaves it unbounded.
	MaxSweeps int
	Seed      int64
	Progress  ProgressReporter
}

// NewProjectionFitter returns a fitter with the default Adam schedule.
func NewProjectionFitter(dimensions int, seed int64) *ProjectionFitter {
	return &ProjectionFitter{
		Dimensions:   dimensions,
		LearningRate: DefaultLearningRate,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Epsilon:      DefaultEpsilon,
		Patience:     DefaultPatience,
		Seed:         seed,
	}
}

func (f *ProjectionFitter) validate() error {
	switch {
	case !(f.LearningRate > 0):
		return errors.NewValidationError("learning_rate", "must be positive", f.LearningRate)
	case f.Patience < 1:
		return errors.NewValidationError("patience", "must be at least 1", f.Patience)
	case f.MaxSweeps < 0:
		return errors.NewValidationError("max_sweeps", "must be non-negative", f.MaxSweeps)
	case f.Beta1 < 0 || f.Beta1 >= 1:
		return errors.NewValidationError("beta1", "must be in [0, 1)", f.Beta1)
	case f.Beta2 < 0 || f.Beta2 >= 1:
		return errors.NewValidationError("beta2", "must be in [0, 1)", f.Beta2)
	case !(f.Epsilon > 0):
		return errors.NewValidationError("epsilon", "must be positive", f.Epsilon)
	}
	return nil
}

// OutputDimensions resolves Dimensions against the feature count.
func (f *ProjectionFitter) OutputDimensions(features int) int {
	if f.Dimensions <= 0 {
		return features
	}
	return f.Dimensions
}

// Fit returns the learned D x F projection matrix.
func (f *ProjectionFitter) Fit(X *mat.Dense, labels []*roaring.Bitmap) (*mat.Dense, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return nil, errors.NewModelError("ProjectionFitter.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(labels) != n {
		return nil, errors.NewDimensionError("ProjectionFitter.Fit", n, len(labels), 0)
	}
	d := f.OutputDimensions(nFeatures)
	progress := reporterOrNop(f.Progress)

	src := rand.NewPCG(uint64(f.Seed), uint64(f.Seed))
	rnd := rand.New(src)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	// W は行優先 (k*F + l)
	w := make([]float64, d*nFeatures)
	scale := float64(nFeatures + d)
	for idx := range w {
		w[idx] = normal.Rand() / scale
	}
	adam := NewAdam(len(w), f.LearningRate, f.Beta1, f.Beta2, f.Epsilon)

	// 1回の fit で使い回すスクラッチ
	pi := make([]float64, d)
	pj := make([]float64, d)
	delta := make([]float64, d)
	xi := make([]float64, nFeatures)
	xj := make([]float64, nFeatures)

	best := math.MaxFloat64
	stale := 0
	sweep := 0
	for stale < f.Patience {
		if f.MaxSweeps > 0 && sweep >= f.MaxSweeps {
			errors.Warn(errors.NewConvergenceWarning("ProjectionFitter", sweep, "sweep limit reached before patience ran out"))
			break
		}
		sweep++

		var total float64
		for i := 0; i < n; i++ {
			j := rnd.IntN(n)
			mat.Row(xi, i, X)
			mat.Row(xj, j, X)
			project(pi, w, xi)
			project(pj, w, xj)

			y := metrics.LabelSetDistance(labels[i], labels[j])
			yHat := squaredDistance(delta, pi, pj)

			var factor float64
			if y < 1 {
				diff := y - yHat
				total += diff * diff
				factor = 2 * (yHat - y)
			} else {
				total -= math.Min(1, yHat)
				if yHat < 1 {
					factor = -1
				}
			}

			for k := 0; k < d; k++ {
				gk := factor * delta[k]
				row := w[k*nFeatures : (k+1)*nFeatures]
				for l := range row {
					g := gk*xi[l] - gk*xj[l]
					row[l] -= adam.Update(k*nFeatures+l, g)
				}
			}
		}

		if err := errors.CheckScalar("ProjectionFitter sweep loss", total, sweep); err != nil {
			return nil, err
		}
		if total < best {
			best = total
			stale = 0
		} else {
			stale++
		}
		progress.OnSweep(SweepStats{
			Fitter:      "projection",
			Sweep:       sweep,
			Loss:        total / float64(n),
			BestLoss:    best / float64(n),
			StaleSweeps: stale,
			Samples:     n,
		})
	}

	return mat.NewDense(d, nFeatures, w), nil
}

// project writes W x into dst.
func project(dst, w, x []float64) {
	f := len(x)
	for k := range dst {
		dst[k] = floats.Dot(w[k*f:(k+1)*f], x)
	}
}
