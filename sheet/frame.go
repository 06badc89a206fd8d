package sheet

import (
	"math"
	"strings"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// Summary describes a frame at a glance.
type Summary struct {
	Rows           int            `json:"rows"`
	Columns        int            `json:"columns"`
	NumericColumns int            `json:"numericColumns"`
	MissingValues  int            `json:"missingValues"`
	ColumnTypes    map[string]int `json:"columnTypes"` // kind name → column count
}

// Summary counts rows, columns, numeric columns, missing cells and column kinds.
func (f *Frame) Summary() Summary {
	s := Summary{
		Rows:        len(f.Rows),
		Columns:     len(f.Headers),
		ColumnTypes: make(map[string]int),
	}
	for _, kind := range f.ColumnKinds() {
		s.ColumnTypes[kind.String()]++
		if kind == schema.KindNumber {
			s.NumericColumns++
		}
	}
	for _, row := range f.Rows {
		for _, cell := range row {
			if schema.IsNull(cell) {
				s.MissingValues++
			}
		}
	}
	return s
}

// ColumnKinds detects the value kind of every column.
func (f *Frame) ColumnKinds() []schema.Kind {
	kinds := make([]schema.Kind, len(f.Headers))
	for i := range f.Headers {
		kinds[i] = schema.DetectKind(f.Column(i))
	}
	return kinds
}

// Column returns the cells of column i.
func (f *Frame) Column(i int) []string {
	out := make([]string, len(f.Rows))
	for r, row := range f.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// ColumnIndex finds a column by header, ignoring case. It returns -1 when absent.
func (f *Frame) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range f.Headers {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// Floats parses column i as numbers. Cells that are not numbers are NaN.
func (f *Frame) Floats(i int) []float64 {
	cells := f.Column(i)
	out := make([]float64, len(cells))
	for r, cell := range cells {
		v, ok := schema.ParseNumber(cell)
		if !ok {
			v = math.NaN()
		}
		out[r] = v
	}
	return out
}

// Head returns up to n leading rows.
func (f *Frame) Head(n int) [][]string {
	if n < 0 || n > len(f.Rows) {
		n = len(f.Rows)
	}
	return f.Rows[:n]
}

// HeadTable renders Head(n) as a table in original column order.
func (f *Frame) HeadTable(n int) *engine.TableData {
	table := &engine.TableData{Title: "Data preview", Rows: [][]string{}}
	for i, kind := range f.ColumnKinds() {
		col := engine.Column{Key: f.Headers[i], Label: f.Headers[i], Type: "text", Align: "left"}
		if kind == schema.KindNumber {
			col.Type, col.Align = "number", "right"
		}
		table.Columns = append(table.Columns, col)
	}
	for _, row := range f.Head(n) {
		table.Rows = append(table.Rows, append([]string(nil), row...))
	}
	return table
}
