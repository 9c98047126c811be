package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// ObjectiveFunction defines the interface for regression objective functions
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial score for this objective
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

func (L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (L2Objective) CalculateHessian(prediction, target float64) float64 { return 1.0 }

func (L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (L2Objective) GetInitScore(targets []float64) float64 { return mean(targets) }

func (L2Objective) Name() string { return string(RegressionL2) }

// L1Objective implements L1 (Mean Absolute Error) loss
type L1Objective struct{}

// 微分不可能点の近傍では勾配0とみなす
const l1Epsilon = 1e-7

func (L1Objective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	switch {
	case math.Abs(diff) < l1Epsilon:
		return 0.0
	case diff > 0:
		return 1.0
	default:
		return -1.0
	}
}

// CalculateHessian returns 1, as LightGBM does for L1.
func (L1Objective) CalculateHessian(prediction, target float64) float64 { return 1.0 }

func (L1Objective) CalculateLoss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

func (L1Objective) GetInitScore(targets []float64) float64 { return median(targets) }

func (L1Objective) Name() string { return string(RegressionL1) }

// HuberObjective is quadratic within Delta of the target and linear outside.
type HuberObjective struct {
	Delta float64
}

func (o HuberObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	if math.Abs(diff) <= o.Delta {
		return diff
	}
	if diff > 0 {
		return o.Delta
	}
	return -o.Delta
}

func (o HuberObjective) CalculateHessian(prediction, target float64) float64 {
	if math.Abs(prediction-target) <= o.Delta {
		return 1.0
	}
	return 1e-7
}

func (o HuberObjective) CalculateLoss(prediction, target float64) float64 {
	absDiff := math.Abs(prediction - target)
	if absDiff <= o.Delta {
		return 0.5 * absDiff * absDiff
	}
	return o.Delta * (absDiff - 0.5*o.Delta)
}

func (o HuberObjective) GetInitScore(targets []float64) float64 { return mean(targets) }

func (o HuberObjective) Name() string { return string(RegressionHuber) }

// FairObjective implements Fair loss, a smooth robust alternative to Huber.
type FairObjective struct {
	C float64
}

func (o FairObjective) CalculateGradient(prediction, target float64) float64 {
	diff := prediction - target
	return o.C * diff / (math.Abs(diff) + o.C)
}

func (o FairObjective) CalculateHessian(prediction, target float64) float64 {
	d := math.Abs(prediction-target) + o.C
	return o.C * o.C / (d * d)
}

func (o FairObjective) CalculateLoss(prediction, target float64) float64 {
	diff := math.Abs(prediction - target)
	return o.C * o.C * (diff/o.C - math.Log1p(diff/o.C))
}

func (o FairObjective) GetInitScore(targets []float64) float64 { return median(targets) }

func (o FairObjective) Name() string { return string(RegressionFair) }

// CreateObjectiveFunction resolves an objective name and its aliases.
// params may be nil; then Huber and Fair use a scale of 1.
func CreateObjectiveFunction(objective string, params *TrainingParams) (ObjectiveFunction, error) {
	switch objective {
	case "", "regression", "regression_l2", "l2", "mean_squared_error", "mse":
		return L2Objective{}, nil
	case "regression_l1", "l1", "mean_absolute_error", "mae":
		return L1Objective{}, nil
	case "huber":
		delta := 1.0
		if params != nil && params.HuberDelta > 0 {
			delta = params.HuberDelta
		}
		return HuberObjective{Delta: delta}, nil
	case "fair":
		c := 1.0
		if params != nil && params.FairC > 0 {
			c = params.FairC
		}
		return FairObjective{C: c}, nil
	default:
		return nil, errors.NewValidationError("objective", "unknown objective (known: regression, regression_l1, huber, fair)", objective)
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0.0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2.0
}
