package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/spektr-org/askcel/engine"
)

// CSV writes a result as CSV, ready for Sheets or Excel.
func CSV(w io.Writer, result *engine.Result) error {
	table := Table(result)
	if table == nil {
		cw := csv.NewWriter(w)
		cw.Write([]string{"Result", "No data"})
		cw.Flush()
		return cw.Error()
	}
	return TableCSV(w, table)
}

// TableCSV writes a table with a header row, followed by its summary row when present.
func TableCSV(w io.Writer, table *engine.TableData) error {
	if table == nil {
		return ErrNothingToExport
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(headers(table)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	if row := summaryRow(table); row != nil {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv summary: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// summaryRow lays a table's totals out under its columns, or returns nil.
func summaryRow(table *engine.TableData) []string {
	if table.Summary == nil || len(table.Columns) == 0 {
		return nil
	}
	row := make([]string, len(table.Columns))
	row[0] = table.Summary.Label
	for i, c := range table.Columns {
		if v, ok := table.Summary.Values[c.Key]; ok && i > 0 {
			row[i] = v
		}
	}
	return row
}
