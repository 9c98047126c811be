package embedding

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/core/model"
	"github.com/YuminosukeSato/labelembed/core/parallel"
	"github.com/YuminosukeSato/labelembed/pkg/errors"
	"github.com/YuminosukeSato/labelembed/sklearn/regressor"
)

// DimensionEnsemble holds one regressor per embedding dimension. Regressor k
// maps a feature row to coordinate k.
type DimensionEnsemble struct {
	Regressors []model.Regressor
	// InputWidths[k] is the feature count regressor k was trained on.
	InputWidths []int
	NJobs       int
	Seed        int64

	spec *regressor.Spec
}

// NewDimensionEnsemble returns an untrained ensemble that builds its members from spec.
// Seeded members get seed+k. nJobs > 1 trains dimensions concurrently.
func NewDimensionEnsemble(spec *regressor.Spec, seed int64, nJobs int) *DimensionEnsemble {
	return &DimensionEnsemble{spec: spec, Seed: seed, NJobs: nJobs}
}

// Fit trains regressor k on (X, targets[:, k]). On failure the ensemble is
// left untrained and the regressor error is wrapped in a ModelError.
func (e *DimensionEnsemble) Fit(X, targets *mat.Dense) (err error) {
	defer errors.Recover(&err, "DimensionEnsemble.Fit")

	if e.spec == nil {
		return errors.NewValidationError("regressor", "no regressor specification", nil)
	}
	n, width := X.Dims()
	tn, d := targets.Dims()
	if tn != n {
		return errors.NewDimensionError("DimensionEnsemble.Fit", n, tn, 0)
	}

	regressors := make([]model.Regressor, d)
	err = parallel.ForEach(d, e.NJobs, "DimensionEnsemble.Fit", func(k int) error {
		r, err := e.spec.New()
		if err != nil {
			return err
		}
		if s, ok := r.(model.Seeded); ok {
			s.SetRandomState(e.Seed + int64(k))
		}
		if err := r.Fit(X, targets.ColView(k)); err != nil {
			return errors.NewModelError("DimensionEnsemble.Fit",
				fmt.Sprintf("%s regressor for dimension %d failed", e.spec.Kind(), k), err)
		}
		regressors[k] = r
		return nil
	})
	if err != nil {
		return err
	}

	widths := make([]int, d)
	for k := range widths {
		widths[k] = width
	}
	e.Regressors = regressors
	e.InputWidths = widths
	return nil
}

// Predict returns an N x D matrix whose column k comes from regressor k.
func (e *DimensionEnsemble) Predict(X mat.Matrix) (*mat.Dense, error) {
	if len(e.Regressors) == 0 {
		return nil, errors.NewNotFittedError("DimensionEnsemble", "Predict")
	}
	n, width := X.Dims()
	out := mat.NewDense(n, len(e.Regressors), nil)
	for k, r := range e.Regressors {
		if r == nil {
			return nil, errors.NewNotFittedError("DimensionEnsemble", "Predict")
		}
		if width != e.InputWidths[k] {
			return nil, errors.NewDimensionError("DimensionEnsemble.Predict", e.InputWidths[k], width, 1)
		}
		pred, err := r.Predict(X)
		if err != nil {
			return nil, errors.NewModelError("DimensionEnsemble.Predict",
				fmt.Sprintf("regressor for dimension %d failed", k), err)
		}
		for i := 0; i < n; i++ {
			out.Set(i, k, pred.At(i, 0))
		}
	}
	return out, nil
}

// Dimensions returns D, or 0 before training.
func (e *DimensionEnsemble) Dimensions() int { return len(e.Regressors) }
