package metrics

import (
	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// EmbeddingStress は埋め込みの品質を測る。全てのペア i<j について
// (‖e_i - e_j‖² - jaccard(i, j))² を平均した値で、0が完全な再現を表す。
// 計算量は O(N²·D)。
func EmbeddingStress(embedded mat.Matrix, labels []*roaring.Bitmap) (float64, error) {
	n, d := embedded.Dims()
	if n != len(labels) {
		return 0, errors.NewDimensionError("EmbeddingStress", n, len(labels), 0)
	}
	if n < 2 {
		return 0, errors.NewValueError("EmbeddingStress", "at least two instances are required")
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, embedded)
	}
	diff := make([]float64, d)

	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			floats.SubTo(diff, rows[i], rows[j])
			r := floats.Dot(diff, diff) - LabelSetDistance(labels[i], labels[j])
			sum += r * r
			pairs++
		}
	}
	return sum / float64(pairs), nil
}
