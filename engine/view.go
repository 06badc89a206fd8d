package engine

import (
	"maps"
	"slices"
)

// ============================================================================
// RECORD VIEW — zero-copy data access
// ============================================================================
// The engine never owns the dataset. It reads through RecordView.
//
// ColumnView holds a loaded sheet column by column. Everything else is a
// lazy view over another view: filtered rows, two views end to end, or a
// measure converted to the base currency as it is read.
// ============================================================================

// RecordView provides indexed access to a dataset.
// Dimension/Measure are called in tight loops.
type RecordView interface {
	Len() int
	Dimension(index int, key string) string
	Measure(index int, key string) float64
	DimensionKeys() []string
	MeasureKeys() []string
}

// RecordCountMeasure is the synthetic measure that is 1 for every row.
const RecordCountMeasure = "record_count"

// ============================================================================
// COLUMN VIEW
// ============================================================================

// ColumnView stores a dataset column by column.
type ColumnView struct {
	rows    int
	dimKeys []string
	mesKeys []string
	dims    map[string][]string
	meas    map[string][]float64
}

// NewColumnView creates an empty view with the given row count.
// Columns are attached with AddDimension and AddMeasure.
func NewColumnView(rows int) *ColumnView {
	return &ColumnView{
		rows: rows,
		dims: make(map[string][]string),
		meas: make(map[string][]float64),
	}
}

// AddDimension attaches a string column. Short columns read as "".
func (v *ColumnView) AddDimension(key string, values []string) *ColumnView {
	if _, ok := v.dims[key]; !ok {
		v.dimKeys = append(v.dimKeys, key)
	}
	v.dims[key] = values
	return v
}

// AddMeasure attaches a numeric column. NaN marks a missing cell; short
// columns read as 0.
func (v *ColumnView) AddMeasure(key string, values []float64) *ColumnView {
	if _, ok := v.meas[key]; !ok {
		v.mesKeys = append(v.mesKeys, key)
	}
	v.meas[key] = values
	return v
}

func (v *ColumnView) Len() int { return v.rows }

func (v *ColumnView) Dimension(i int, key string) string {
	col := v.dims[key]
	if i < 0 || i >= len(col) {
		return ""
	}
	return col[i]
}

func (v *ColumnView) Measure(i int, key string) float64 {
	if key == RecordCountMeasure {
		if _, ok := v.meas[key]; !ok {
			return 1
		}
	}
	col := v.meas[key]
	if i < 0 || i >= len(col) {
		return 0
	}
	return col[i]
}

func (v *ColumnView) DimensionKeys() []string { return v.dimKeys }
func (v *ColumnView) MeasureKeys() []string   { return v.mesKeys }

// ============================================================================
// DERIVED VIEWS
// ============================================================================

// recordsView adapts []Record, which is how tests and callers without a
// spreadsheet hand rows to the engine.
type recordsView struct {
	records []Record
	dimKeys []string
	mesKeys []string
}

// NewSliceView creates a RecordView over records. Keys are listed in
// first-seen order, sorted within each record.
func NewSliceView(records []Record) RecordView {
	v := &recordsView{records: records}
	for _, r := range records {
		v.dimKeys = appendNew(v.dimKeys, slices.Sorted(maps.Keys(r.Dimensions)))
		v.mesKeys = appendNew(v.mesKeys, slices.Sorted(maps.Keys(r.Measures)))
	}
	return v
}

func appendNew(keys, more []string) []string {
	for _, k := range more {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (v *recordsView) Len() int { return len(v.records) }

func (v *recordsView) record(i int) (Record, bool) {
	if i < 0 || i >= len(v.records) {
		return Record{}, false
	}
	return v.records[i], true
}

func (v *recordsView) Dimension(i int, key string) string {
	r, _ := v.record(i)
	return r.Dimensions[key]
}

func (v *recordsView) Measure(i int, key string) float64 {
	r, ok := v.record(i)
	if !ok {
		return 0
	}
	val, set := r.Measures[key]
	if !set && key == RecordCountMeasure {
		return 1
	}
	return val
}

func (v *recordsView) DimensionKeys() []string { return v.dimKeys }
func (v *recordsView) MeasureKeys() []string   { return v.mesKeys }

// subView exposes the parent rows named by rows, in that order.
type subView struct {
	parent RecordView
	rows   []int
}

func newSubView(parent RecordView, rows []int) RecordView {
	return &subView{parent: parent, rows: rows}
}

// Head returns the first n rows of parent, or all of them when n is
// negative or too large.
func Head(parent RecordView, n int) RecordView {
	if total := parent.Len(); n < 0 || n > total {
		n = total
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return newSubView(parent, rows)
}

func (v *subView) Len() int { return len(v.rows) }

func (v *subView) at(i int) int {
	if i < 0 || i >= len(v.rows) {
		return -1
	}
	return v.rows[i]
}

func (v *subView) Dimension(i int, key string) string { return v.parent.Dimension(v.at(i), key) }
func (v *subView) Measure(i int, key string) float64  { return v.parent.Measure(v.at(i), key) }
func (v *subView) DimensionKeys() []string            { return v.parent.DimensionKeys() }
func (v *subView) MeasureKeys() []string              { return v.parent.MeasureKeys() }

// concatView reads first, then second.
type concatView struct {
	first, second RecordView
}

func newConcatView(first, second RecordView) RecordView {
	return &concatView{first: first, second: second}
}

func (v *concatView) Len() int { return v.first.Len() + v.second.Len() }

// locate maps a combined index to the view holding it.
func (v *concatView) locate(i int) (RecordView, int) {
	if n := v.first.Len(); i >= n {
		return v.second, i - n
	}
	return v.first, i
}

func (v *concatView) Dimension(i int, key string) string {
	src, j := v.locate(i)
	return src.Dimension(j, key)
}

func (v *concatView) Measure(i int, key string) float64 {
	src, j := v.locate(i)
	return src.Measure(j, key)
}

func (v *concatView) DimensionKeys() []string { return v.first.DimensionKeys() }
func (v *concatView) MeasureKeys() []string   { return v.first.MeasureKeys() }

// convertedView reads one measure in the base currency. Rows whose code has
// a positive rate are multiplied by it and report the base code; unknown
// codes pass through untouched.
type convertedView struct {
	RecordView
	measure string
	codeDim string
	base    string
	rates   map[string]float64
}

func newCurrencyView(parent RecordView, measure, codeDim, base string, rates map[string]float64) RecordView {
	return &convertedView{RecordView: parent, measure: measure, codeDim: codeDim, base: base, rates: rates}
}

func (v *convertedView) rate(i int) (float64, bool) {
	code := v.RecordView.Dimension(i, v.codeDim)
	if code == v.base {
		return 1, false
	}
	r, ok := v.rates[code]
	return r, ok && r > 0
}

func (v *convertedView) Dimension(i int, key string) string {
	if key == v.codeDim {
		if _, ok := v.rate(i); ok {
			return v.base
		}
	}
	return v.RecordView.Dimension(i, key)
}

func (v *convertedView) Measure(i int, key string) float64 {
	val := v.RecordView.Measure(i, key)
	if key != v.measure {
		return val
	}
	if r, ok := v.rate(i); ok {
		return val * r
	}
	return val
}
