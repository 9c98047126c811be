package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

func TestNewMultiLabelTable(t *testing.T) {
	tbl, err := NewMultiLabelTable("emotions", 2, "x1", "x2", "x3")
	require.NoError(t, err)

	assert.Equal(t, "emotions", tbl.Name())
	assert.Equal(t, 5, tbl.NumAttributes())
	assert.Equal(t, []int{0, 1}, tbl.LabelIndices())
	assert.Equal(t, []int{2, 3, 4}, tbl.FeatureIndices())
	assert.Empty(t, tbl.PassthroughIndices())
	assert.Equal(t, []string{"label0", "label1"}, tbl.LabelNames())
	assert.Equal(t, 2, tbl.NumLabels())
	assert.Equal(t, 3, tbl.NumFeatures())
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable("t", []Attribute{{Name: "a"}, {Name: "a"}})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = NewTable("t", []Attribute{{Name: ""}})
	assert.True(t, errors.As(err, &valErr))

	_, err = NewMultiLabelTable("t", -1)
	assert.True(t, errors.As(err, &valErr))
}

func TestTableRowsAndViews(t *testing.T) {
	tbl, err := NewTable("t", []Attribute{
		{Name: "id", Role: RolePassthrough},
		{Name: "l0", Role: RoleLabel},
		{Name: "f0", Role: RoleFeature},
		{Name: "l1", Role: RoleLabel},
		{Name: "f1", Role: RoleFeature},
	})
	require.NoError(t, err)
	assert.Nil(t, tbl.Features())

	require.NoError(t, tbl.AddRow([]float64{7, 1, 0.5, 0, 2}))
	require.NoError(t, tbl.AddRow([]float64{8, 0, 1.5, 1, 3}))

	var dimErr *errors.DimensionError
	assert.True(t, errors.As(tbl.AddRow([]float64{1, 2}), &dimErr))

	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, tbl.LabelRows())

	X := tbl.Features()
	r, c := X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3.0, X.At(1, 1))

	P := tbl.Passthrough()
	assert.Equal(t, 8.0, P.At(1, 0))

	tbl.SetValue(0, 2, 9)
	assert.Equal(t, 9.0, tbl.Value(0, 2))

	row := tbl.Row(0)
	row[0] = -1
	assert.Equal(t, 7.0, tbl.Value(0, 0), "Row must return a copy")
}

func TestSelect(t *testing.T) {
	tbl, err := NewMultiLabelTable("t", 1, "x")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, tbl.AddRow([]float64{float64(i % 2), float64(i)}))
	}

	sub, err := tbl.Select([]int{3, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumRows())
	assert.Equal(t, 3.0, sub.Value(0, 1))
	assert.Equal(t, 1.0, sub.Value(1, 1))

	_, err = tbl.Select([]int{4})
	assert.Error(t, err)
}

func TestCSVRoundTrip(t *testing.T) {
	in := "a,b,id,x,y\n1,0,10,0.5,-1\n0,1,11,1e-3,2\n"

	tbl, err := ReadCSV(strings.NewReader(in), "scene", 2, "id")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"a", "b"}, tbl.LabelNames())
	assert.Equal(t, []string{"x", "y"}, tbl.FeatureNames())
	assert.Equal(t, []int{2}, tbl.PassthroughIndices())
	assert.Equal(t, 0.001, tbl.Value(1, 3))

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))
	assert.Equal(t, "a,b,id,x,y\n1,0,10,0.5,-1\n0,1,11,0.001,2\n", buf.String())
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "t", 0)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = ReadCSV(strings.NewReader("a,b\n1,x\n"), "t", 1)
	var valueErr *errors.ValueError
	require.True(t, errors.As(err, &valueErr))
	assert.Contains(t, err.Error(), "line 2")

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n"), "t", 3)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = ReadCSV(strings.NewReader("a,b\n1,2\n"), "t", 1, "missing")
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "column not found in header", valErr.Reason)

	// a label column cannot also be passed through
	_, err = ReadCSV(strings.NewReader("a,b,c\n1,0,2\n"), "t", 2, "b")
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "passthrough", valErr.ParamName)
	assert.Equal(t, "column overlaps the 2 label columns", valErr.Reason)
	assert.Equal(t, "b", valErr.Value)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"), "t", 1)
	assert.Error(t, err)
}
