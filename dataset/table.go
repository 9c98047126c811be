// Package dataset holds the tabular data the embedders read and write: a
// relation of numeric rows whose columns are tagged as labels, features, or
// passthrough attributes carried along untouched.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// Role tells the embedders how to treat a column.
type Role int

const (
	// RoleFeature columns are numeric inputs to the embedding.
	RoleFeature Role = iota
	// RoleLabel columns hold 0/1 label membership.
	RoleLabel
	// RolePassthrough columns are copied to the output unchanged.
	RolePassthrough
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleFeature:
		return "feature"
	case RoleLabel:
		return "label"
	case RolePassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Attribute is a named column.
type Attribute struct {
	Name string
	Role Role
}

// Table is a dense relation. Every row has exactly len(attributes) values.
// A Table is not safe for concurrent mutation.
type Table struct {
	name       string
	attributes []Attribute
	rows       [][]float64
}

// NewTable creates an empty table. Attribute names must be unique and non-empty.
func NewTable(name string, attributes []Attribute) (*Table, error) {
	seen := make(map[string]struct{}, len(attributes))
	for i, a := range attributes {
		if a.Name == "" {
			return nil, errors.NewValidationError("attributes", fmt.Sprintf("attribute %d has an empty name", i), a)
		}
		if _, dup := seen[a.Name]; dup {
			return nil, errors.NewValidationError("attributes", "duplicate attribute name", a.Name)
		}
		if a.Role < RoleFeature || a.Role > RolePassthrough {
			return nil, errors.NewValidationError("attributes", "unknown role", a.Role)
		}
		seen[a.Name] = struct{}{}
	}

	attrs := make([]Attribute, len(attributes))
	copy(attrs, attributes)
	return &Table{name: name, attributes: attrs}, nil
}

// NewMultiLabelTable builds the canonical multi-label layout: numLabels label
// columns named label0..label{L-1} first, then one feature column per name.
func NewMultiLabelTable(name string, numLabels int, featureNames ...string) (*Table, error) {
	if numLabels < 0 {
		return nil, errors.NewValidationError("numLabels", "must be non-negative", numLabels)
	}
	attrs := make([]Attribute, 0, numLabels+len(featureNames))
	for i := 0; i < numLabels; i++ {
		attrs = append(attrs, Attribute{Name: fmt.Sprintf("label%d", i), Role: RoleLabel})
	}
	for _, f := range featureNames {
		attrs = append(attrs, Attribute{Name: f, Role: RoleFeature})
	}
	return NewTable(name, attrs)
}

// Name returns the relation name.
func (t *Table) Name() string { return t.name }

// NumRows returns the number of instances.
func (t *Table) NumRows() int { return len(t.rows) }

// NumAttributes returns the number of columns.
func (t *Table) NumAttributes() int { return len(t.attributes) }

// Attribute returns column col.
func (t *Table) Attribute(col int) Attribute { return t.attributes[col] }

// Attributes returns a copy of the column descriptions.
func (t *Table) Attributes() []Attribute {
	out := make([]Attribute, len(t.attributes))
	copy(out, t.attributes)
	return out
}

// AddRow appends a copy of values.
func (t *Table) AddRow(values []float64) error {
	if len(values) != len(t.attributes) {
		return errors.NewDimensionError("Table.AddRow", len(t.attributes), len(values), 1)
	}
	row := make([]float64, len(values))
	copy(row, values)
	t.rows = append(t.rows, row)
	return nil
}

// Value returns the value at (row, col).
func (t *Table) Value(row, col int) float64 { return t.rows[row][col] }

// SetValue overwrites the value at (row, col).
func (t *Table) SetValue(row, col int, v float64) { t.rows[row][col] = v }

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	out := make([]float64, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

func (t *Table) indices(role Role) []int {
	var idx []int
	for i, a := range t.attributes {
		if a.Role == role {
			idx = append(idx, i)
		}
	}
	return idx
}

func (t *Table) names(role Role) []string {
	var out []string
	for _, a := range t.attributes {
		if a.Role == role {
			out = append(out, a.Name)
		}
	}
	return out
}

// LabelIndices returns the column indices of label attributes in order.
func (t *Table) LabelIndices() []int { return t.indices(RoleLabel) }

// FeatureIndices returns the column indices of feature attributes in order.
func (t *Table) FeatureIndices() []int { return t.indices(RoleFeature) }

// PassthroughIndices returns the column indices of passthrough attributes in order.
func (t *Table) PassthroughIndices() []int { return t.indices(RolePassthrough) }

// LabelNames returns the label attribute names in order.
func (t *Table) LabelNames() []string { return t.names(RoleLabel) }

// FeatureNames returns the feature attribute names in order.
func (t *Table) FeatureNames() []string { return t.names(RoleFeature) }

// NumLabels returns L.
func (t *Table) NumLabels() int { return len(t.LabelIndices()) }

// NumFeatures returns F.
func (t *Table) NumFeatures() int { return len(t.FeatureIndices()) }

// Features returns the N x F feature matrix. It returns nil when the table has
// no rows or no feature columns, since gonum cannot represent empty matrices.
func (t *Table) Features() *mat.Dense {
	return t.gather(t.FeatureIndices())
}

// Passthrough returns the N x P passthrough matrix, or nil when empty.
func (t *Table) Passthrough() *mat.Dense {
	return t.gather(t.PassthroughIndices())
}

func (t *Table) gather(cols []int) *mat.Dense {
	if len(t.rows) == 0 || len(cols) == 0 {
		return nil
	}
	out := mat.NewDense(len(t.rows), len(cols), nil)
	for i, row := range t.rows {
		for j, c := range cols {
			out.Set(i, j, row[c])
		}
	}
	return out
}

// LabelRows returns one label vector per instance.
func (t *Table) LabelRows() [][]float64 {
	cols := t.LabelIndices()
	out := make([][]float64, len(t.rows))
	for i, row := range t.rows {
		labels := make([]float64, len(cols))
		for j, c := range cols {
			labels[j] = row[c]
		}
		out[i] = labels
	}
	return out
}

// Select returns a new table with the given rows, in the given order.
func (t *Table) Select(rows []int) (*Table, error) {
	out := &Table{name: t.name, attributes: t.Attributes(), rows: make([][]float64, 0, len(rows))}
	for _, r := range rows {
		if r < 0 || r >= len(t.rows) {
			return nil, errors.NewValueError("Table.Select", fmt.Sprintf("row %d out of range [0, %d)", r, len(t.rows)))
		}
		out.rows = append(out.rows, t.Row(r))
	}
	return out, nil
}
