package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "DimensionEnsemble.Fit",
			kind:    "regressor failed",
			err:     fmt.Errorf("test error"),
			wantMsg: "labelembed: DimensionEnsemble.Fit: regressor failed: test error",
		},
		{
			name:    "without original error",
			op:      "Transform",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "labelembed: Transform: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "expected stack trace in %q", formatted)

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestModelErrorKeepsCause(t *testing.T) {
	cause := New("regressor exploded")
	err := NewModelError("DimensionEnsemble.Fit", "regressor for dimension 3 failed", cause)

	assert.True(t, Is(err, cause))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 7, 1)

	assert.Equal(t, "labelembed: Predict: dimension mismatch on axis 1 (features). Expected 10, got 7", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
	assert.Equal(t, 7, dimErr.Got)
}

func TestNewSchemaError(t *testing.T) {
	err := NewSchemaError("LinearJaccardEmbedder.Transform", "features", 4, 3)

	assert.Equal(t, "labelembed: LinearJaccardEmbedder.Transform: schema mismatch in features columns. Expected 4, got 3", err.Error())

	var schemaErr *SchemaError
	require.True(t, As(err, &schemaErr))
	assert.Equal(t, "features", schemaErr.Part)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("JaccardEmbedder", "Transform")

	want := "labelembed: JaccardEmbedder: this model is not fitted yet. Call Fit() before using Transform()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("dimensions", "must be positive", 0)

	assert.Equal(t, "labelembed: validation failed for parameter 'dimensions': must be positive (got: 0)", err.Error())

	var valErr *ValidationError
	require.True(t, As(err, &valErr))
	assert.Equal(t, 0, valErr.Value)
}

func TestNewValueError(t *testing.T) {
	err := NewValueError("NewLabelSet", "label value 2 at index 1 is not binary")

	assert.Equal(t, "labelembed: NewLabelSet: label value 2 at index 1 is not binary", err.Error())

	var valErr *ValueError
	assert.True(t, As(err, &valErr))
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("TargetFitter", 10000, "loss still decreasing")

	assert.Equal(t, "TargetFitter did not converge after 10000 sweeps: loss still decreasing", warn.Error())
	assert.Equal(t, "TargetFitter did not converge after 5 sweeps", NewConvergenceWarning("TargetFitter", 5, "").Error())
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewConvergenceWarning("ProjectionFitter", 3, ""))

	require.Len(t, got, 1)
	var convWarn *ConvergenceWarning
	assert.True(t, As(got[0], &convWarn))
}

func TestWarnPrefersZerolog(t *testing.T) {
	var handled, zl int
	SetWarningHandler(func(error) { handled++ })
	SetZerologWarnFunc(func(error) { zl++ })
	defer SetWarningHandler(nil)

	Warn(New("w"))

	assert.Equal(t, 0, handled)
	assert.Equal(t, 1, zl)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "in JaccardEmbedder.Fit")

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in JaccardEmbedder.Fit")
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrSingularMatrix, "in %s: rank %d", "LinearRegression.Fit", 2)

	assert.True(t, Is(wrapped, ErrSingularMatrix))
	assert.Contains(t, wrapped.Error(), "in LinearRegression.Fit: rank 2")
}

func TestStacktrace(t *testing.T) {
	err := NewValueError("op", "bad")
	assert.NotEmpty(t, Stacktrace(err))
	assert.Empty(t, Stacktrace(fmt.Errorf("plain")))
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("sweep_loss", 0.5, 1))

	err := CheckScalar("sweep_loss", nan(), 7)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 7, numErr.Iteration)
	assert.Contains(t, err.Error(), "sweep 7")
}

type grid [][]float64

func (g grid) At(i, j int) float64 { return g[i][j] }

func TestCheckMatrix(t *testing.T) {
	ok := grid{{1, 2}, {3, 4}}
	assert.NoError(t, CheckMatrix("projection", ok, 2, 2, 0))

	bad := grid{{1, inf()}, {nan(), 4}}
	err := CheckMatrix("projection", bad, 2, 2, 3)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Len(t, numErr.Values, 2)
}
