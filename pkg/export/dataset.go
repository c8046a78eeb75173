package export

import "fmt"

// Column describes one exported field.
type Column struct {
	Header  string
	Numeric bool
	// Weight scales the PDF column width relative to the others. Zero means 1.
	Weight float64
}

// Dataset is tabular export content. Every row and the optional totals row carry
// one cell per column.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    [][]string
	Totals  []string
}

// Headers returns the column headers in order.
func (d Dataset) Headers() []string {
	headers := make([]string, len(d.Columns))
	for i, column := range d.Columns {
		headers[i] = column.Header
	}
	return headers
}

// Validate checks the dataset shape.
func (d Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset requires at least one column")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Columns))
		}
	}
	if d.Totals != nil && len(d.Totals) != len(d.Columns) {
		return fmt.Errorf("totals row has %d cells, want %d", len(d.Totals), len(d.Columns))
	}
	return nil
}
