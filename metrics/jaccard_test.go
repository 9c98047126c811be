package metrics

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

func TestJaccardDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0, 1}, []float64{1, 0, 1}, 0},
		{"disjoint", []float64{1, 0, 0}, []float64{0, 1, 1}, 1},
		{"half overlap", []float64{1, 1, 0}, []float64{1, 0, 0}, 0.5},
		{"one of three", []float64{1, 1, 0}, []float64{0, 1, 1}, 2.0 / 3.0},
		{"both empty", []float64{0, 0}, []float64{0, 0}, 0},
		{"one empty", []float64{0, 0}, []float64{0, 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JaccardDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)

			sym, err := JaccardDistance(tt.b, tt.a)
			require.NoError(t, err)
			assert.Equal(t, got, sym)

			sa, err := NewLabelSet(tt.a)
			require.NoError(t, err)
			sb, err := NewLabelSet(tt.b)
			require.NoError(t, err)
			assert.InDelta(t, got, LabelSetDistance(sa, sb), 1e-12)
		})
	}
}

func TestJaccardDistanceLengthMismatch(t *testing.T) {
	_, err := JaccardDistance([]float64{1}, []float64{1, 0})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestNewLabelSetRejectsNonBinary(t *testing.T) {
	_, err := NewLabelSet([]float64{1, 2})
	var valErr *errors.ValueError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, err.Error(), "index 1")

	_, err = NewLabelSets([][]float64{{1, 0}, {0.5, 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestEmbeddingStress(t *testing.T) {
	labels := []*roaring.Bitmap{
		roaring.BitmapOf(0),
		roaring.BitmapOf(1),
	}
	// squared distance 1 between disjoint sets reproduces the Jaccard distance exactly
	perfect := mat.NewDense(2, 1, []float64{0, 1})
	stress, err := EmbeddingStress(perfect, labels)
	require.NoError(t, err)
	assert.InDelta(t, 0, stress, 1e-12)

	collapsed := mat.NewDense(2, 1, []float64{0, 0})
	stress, err = EmbeddingStress(collapsed, labels)
	require.NoError(t, err)
	assert.InDelta(t, 1, stress, 1e-12)

	_, err = EmbeddingStress(perfect, labels[:1])
	assert.Error(t, err)
	_, err = EmbeddingStress(mat.NewDense(1, 1, nil), labels[:1])
	assert.Error(t, err)
}
