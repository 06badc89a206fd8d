package sheet

import (
	"math"
	"strings"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// View lays a frame out column by column for the engine.
//
// Dimensions and skipped columns become string columns, measures are parsed
// with schema.ParseNumber. Blank or unparsable measure cells are NaN, which
// the engine treats as missing. Schema entries are matched to frame columns
// by key, then by source header.
func View(f *Frame, cfg *schema.Config) *engine.ColumnView {
	view := engine.NewColumnView(len(f.Rows))
	if cfg == nil {
		return view
	}

	byKey := make(map[string]int)
	for i, key := range schema.ColumnKeys(f.Headers) {
		byKey[key] = i
	}
	lookup := func(key, column string) (int, bool) {
		if i, ok := byKey[key]; ok {
			return i, true
		}
		if column != "" {
			if i := f.ColumnIndex(column); i >= 0 {
				return i, true
			}
		}
		return 0, false
	}

	for _, d := range cfg.Dimensions {
		if i, ok := lookup(d.Key, d.Column); ok {
			view.AddDimension(d.Key, f.Column(i))
		}
	}
	for _, s := range cfg.SkippedColumns {
		key := s.Key
		if key == "" {
			key = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s.Column), " ", "_"))
		}
		if i, ok := lookup(key, s.Column); ok {
			view.AddDimension(key, f.Column(i))
		}
	}
	for _, m := range cfg.Measures {
		if m.IsSynthetic {
			continue
		}
		i, ok := lookup(m.Key, m.Column)
		if !ok {
			continue
		}
		cells := f.Column(i)
		values := make([]float64, len(cells))
		for r, cell := range cells {
			v, ok := schema.ParseNumber(cell)
			if !ok {
				v = math.NaN()
			}
			values[r] = v
		}
		view.AddMeasure(m.Key, values)
	}
	return view
}

// Discover runs schema discovery over a frame, recording the file as the source.
func Discover(f *Frame, opts ...schema.DiscoverOptions) (*schema.Config, error) {
	opt := schema.DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Source == "" {
		opt.Source = f.Name
		if f.Sheet != "" && f.Sheet != strings.TrimSuffix(f.Name, ".csv") {
			opt.Source += " [" + f.Sheet + "]"
		}
	}
	if opt.Name == "" {
		opt.Name = f.Sheet
	}
	return schema.DiscoverFromRows(f.Headers, f.Rows, opt)
}

// NumericView keeps every number column of f as a measure keyed by its header.
// Rows missing a value in any of those columns are dropped.
func NumericView(f *Frame) *engine.ColumnView {
	var cols []int
	for i, kind := range f.ColumnKinds() {
		if kind == schema.KindNumber {
			cols = append(cols, i)
		}
	}
	floats := make([][]float64, len(cols))
	for j, c := range cols {
		floats[j] = f.Floats(c)
	}

	var keep []int
	for r := range f.Rows {
		complete := true
		for j := range cols {
			if math.IsNaN(floats[j][r]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}

	view := engine.NewColumnView(len(keep))
	for j, c := range cols {
		values := make([]float64, len(keep))
		for k, r := range keep {
			values[k] = floats[j][r]
		}
		view.AddMeasure(f.Headers[c], values)
	}
	return view
}
