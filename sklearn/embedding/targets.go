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

// Target fitter defaults.
const (
	DefaultSweeps     = 10000
	DefaultStepSize   = 0.01
	DefaultInitStdDev = 0.02

	// convergenceTol is the per-instance loss improvement below which a sweep
	// no longer counts as progress. It only decides whether to warn.
	convergenceTol = 1e-4
)

// TargetFitter assigns every training instance a D-dimensional coordinate so
// that squared Euclidean distances between coordinates approximate the Jaccard
// distances between label sets.
//
// Each sweep visits every instance i once, pairs it with a uniformly drawn
// partner j (which may be i) and takes one gradient step on both coordinates.
// The loss is the squared error on squared distances; disjoint pairs (y == 1)
// contribute at most 1 and stop pushing once they are at least 1 apart.
// The run always performs Sweeps sweeps; the result is mean-centred.
type TargetFitter struct {
	Dimensions int
	Sweeps     int
	StepSize   float64
	InitStdDev float64
	Seed       int64
	Progress   ProgressReporter
}

// NewTargetFitter returns a fitter with the default schedule.
func NewTargetFitter(dimensions int, seed int64) *TargetFitter {
	return &TargetFitter{
		Dimensions: dimensions,
		Sweeps:     DefaultSweeps,
		StepSize:   DefaultStepSize,
		InitStdDev: DefaultInitStdDev,
		Seed:       seed,
	}
}

func (f *TargetFitter) validate() error {
	switch {
	case f.Dimensions <= 0:
		return errors.NewValidationError("dimensions", "must be positive", f.Dimensions)
	case f.Sweeps < 1:
		return errors.NewValidationError("sweeps", "must be positive", f.Sweeps)
	case !(f.StepSize > 0):
		return errors.NewValidationError("step_size", "must be positive", f.StepSize)
	case !(f.InitStdDev > 0):
		return errors.NewValidationError("init_std_dev", "must be positive", f.InitStdDev)
	}
	return nil
}

// Fit returns an N x D matrix of centred target coordinates, one row per label set.
func (f *TargetFitter) Fit(labels []*roaring.Bitmap) (*mat.Dense, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	n, d := len(labels), f.Dimensions
	if n == 0 {
		return nil, errors.NewModelError("TargetFitter.Fit", "empty data", errors.ErrEmptyData)
	}
	progress := reporterOrNop(f.Progress)

	src := rand.NewPCG(uint64(f.Seed), uint64(f.Seed))
	rnd := rand.New(src)
	normal := distuv.Normal{Mu: 0, Sigma: f.InitStdDev, Src: src}

	targets := mat.NewDense(n, d, nil)
	raw := targets.RawMatrix()
	for i := 0; i < n; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+d]
		for k := range row {
			row[k] = normal.Rand()
		}
	}

	delta := make([]float64, d)
	best := math.MaxFloat64
	lastImproved := 0
	for sweep := 1; sweep <= f.Sweeps; sweep++ {
		var total float64
		for i := 0; i < n; i++ {
			j := rnd.IntN(n)
			ti := raw.Data[i*raw.Stride : i*raw.Stride+d]
			tj := raw.Data[j*raw.Stride : j*raw.Stride+d]

			y := metrics.LabelSetDistance(labels[i], labels[j])
			yHat := squaredDistance(delta, ti, tj)
			diff := yHat - y

			var factor float64
			if y < 1 {
				total += diff * diff
				factor = diff
			} else {
				total += math.Min(diff*diff, 1)
				if yHat < 1 {
					factor = diff
				}
			}

			for k := 0; k < d; k++ {
				g := factor * delta[k]
				ti[k] -= f.StepSize * g
				tj[k] += f.StepSize * g
			}
		}

		loss := total / float64(n)
		if err := errors.CheckScalar("TargetFitter sweep loss", loss, sweep); err != nil {
			return nil, err
		}
		if best-loss >= convergenceTol {
			best = loss
			lastImproved = sweep
		}
		progress.OnSweep(SweepStats{Fitter: "targets", Sweep: sweep, Loss: loss, BestLoss: math.Min(best, loss), Samples: n})
	}

	if lastImproved == f.Sweeps && f.Sweeps > 1 {
		errors.Warn(errors.NewConvergenceWarning("TargetFitter", f.Sweeps, "loss was still decreasing"))
	}

	centerColumns(targets)
	return targets, nil
}

// squaredDistance leaves a-b in delta.
func squaredDistance(delta, a, b []float64) float64 {
	floats.SubTo(delta, a, b)
	return floats.Dot(delta, delta)
}

// centerColumns subtracts the column mean from every column.
func centerColumns(m *mat.Dense) {
	n, d := m.Dims()
	for k := 0; k < d; k++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += m.At(i, k)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			m.Set(i, k, m.At(i, k)-mean)
		}
	}
}
