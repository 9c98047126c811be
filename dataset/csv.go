package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/YuminosukeSato/labelembed/pkg/errors"
)

// ReadCSV reads a table with a header row. The first numLabels columns are
// labels, columns named in passthrough are carried through, everything else is
// a feature. Every cell must parse as a float; the first bad cell aborts the
// read with its line and column.
func ReadCSV(r io.Reader, name string, numLabels int, passthrough ...string) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "ReadCSV: missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "ReadCSV: header")
	}
	if numLabels < 0 || numLabels > len(header) {
		return nil, errors.NewValidationError("numLabels", fmt.Sprintf("must be within [0, %d]", len(header)), numLabels)
	}

	keep := make(map[string]bool, len(passthrough))
	for _, p := range passthrough {
		keep[p] = true
	}
	attrs := make([]Attribute, len(header))
	for i, h := range header {
		role := RoleFeature
		switch {
		case i < numLabels:
			if keep[h] {
				return nil, errors.NewValidationError("passthrough", fmt.Sprintf("column overlaps the %d label columns", numLabels), h)
			}
			role = RoleLabel
		case keep[h]:
			role = RolePassthrough
			delete(keep, h)
		}
		attrs[i] = Attribute{Name: h, Role: role}
	}
	for p := range keep {
		return nil, errors.NewValidationError("passthrough", "column not found in header", p)
	}

	t, err := NewTable(name, attrs)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(attrs))
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "ReadCSV: line %d", line)
		}
		for i, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.NewValueError("ReadCSV", fmt.Sprintf("line %d column %q: %q is not a number", line, attrs[i].Name, s))
			}
			values[i] = v
		}
		if err := t.AddRow(values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// WriteCSV writes the header row followed by every instance.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	record := make([]string, len(t.attributes))
	for i, a := range t.attributes {
		record[i] = a.Name
	}
	if err := writer.Write(record); err != nil {
		return errors.Wrap(err, "WriteCSV: header")
	}
	for _, row := range t.rows {
		for i, v := range row {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "WriteCSV")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "WriteCSV: flush")
}
