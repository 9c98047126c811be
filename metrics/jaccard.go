package metrics

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// JaccardDistance はラベルベクトル a, b のJaccard距離 1 - |A∩B|/|A∪B| を計算する。
// 非ゼロの位置を集合の要素とみなす。両方が空集合の場合は0を返す。
func JaccardDistance(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.NewDimensionError("JaccardDistance", len(a), len(b), 1)
	}

	var inter, union int
	for i := range a {
		x, y := a[i] != 0, b[i] != 0
		if x && y {
			inter++
		}
		if x || y {
			union++
		}
	}
	return distance(uint64(inter), uint64(union)), nil
}

// NewLabelSet は0/1のラベル行を、値が1の列番号からなるビットマップに変換する。
func NewLabelSet(row []float64) (*roaring.Bitmap, error) {
	set := roaring.New()
	for i, v := range row {
		switch v {
		case 0:
		case 1:
			set.Add(uint32(i))
		default:
			return nil, errors.NewValueError("NewLabelSet", fmt.Sprintf("label value %v at index %d is not binary", v, i))
		}
	}
	set.RunOptimize()
	return set, nil
}

// NewLabelSets converts every row. The error names the offending row.
func NewLabelSets(rows [][]float64) ([]*roaring.Bitmap, error) {
	sets := make([]*roaring.Bitmap, len(rows))
	for i, row := range rows {
		set, err := NewLabelSet(row)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		sets[i] = set
	}
	return sets, nil
}

// LabelSetDistance is JaccardDistance over prebuilt label sets.
func LabelSetDistance(a, b *roaring.Bitmap) float64 {
	return distance(a.AndCardinality(b), a.OrCardinality(b))
}

func distance(inter, union uint64) float64 {
	if union == 0 {
		return 0
	}
	return 1 - float64(inter)/float64(union)
}
