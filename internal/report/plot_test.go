package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

func TestLossCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	require.NoError(t, LossCurve([]float64{1, 0.6, 0.4, 0.35}, "targets", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	var valErr *errors.ValueError
	assert.True(t, errors.As(LossCurve(nil, "empty", path), &valErr))
}

func TestScatter(t *testing.T) {
	dir := t.TempDir()
	embedded := mat.NewDense(4, 2, []float64{
		0, 0,
		0.1, 0,
		1, 1,
		1.1, 0.9,
	})

	path := filepath.Join(dir, "scatter.svg")
	require.NoError(t, Scatter(embedded, []int{1, 1, 2, 2}, "embedding", path))
	_, err := os.Stat(path)
	assert.NoError(t, err)

	// 1次元の埋め込みと groups なし
	oneD := mat.NewDense(3, 1, []float64{0, 0.5, 1})
	require.NoError(t, Scatter(oneD, nil, "1d", filepath.Join(dir, "oned.png")))

	err = Scatter(embedded, []int{1}, "bad", filepath.Join(dir, "bad.png"))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}
