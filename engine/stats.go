package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ============================================================================
// STATS — descriptive statistics over measures
// ============================================================================

// Stats summarises one measure the way a describe() call does.
type Stats struct {
	Measure string
	Count   int
	Mean    float64
	Std     float64 // sample standard deviation, NaN below two values
	Min     float64
	Q1      float64
	Median  float64
	Q3      float64
	Max     float64
}

// DataMeasures lists the view's measures without the synthetic record count.
func DataMeasures(view RecordView) []string {
	var out []string
	for _, k := range view.MeasureKeys() {
		if k != RecordCountMeasure {
			out = append(out, k)
		}
	}
	return out
}

// DescribeMeasure computes Stats for one measure.
func DescribeMeasure(view RecordView, measure string) Stats {
	vals := measureValues(view, measure)
	s := Stats{Measure: measure, Count: len(vals), Std: math.NaN()}
	if len(vals) == 0 {
		s.Mean, s.Min, s.Q1, s.Median, s.Q3, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	sort.Float64s(vals)

	var sum float64
	for _, v := range vals {
		sum += v
	}
	s.Mean = sum / float64(len(vals))
	if len(vals) > 1 {
		var sq float64
		for _, v := range vals {
			sq += (v - s.Mean) * (v - s.Mean)
		}
		s.Std = math.Sqrt(sq / float64(len(vals)-1))
	}
	s.Min = vals[0]
	s.Max = vals[len(vals)-1]
	s.Q1 = quantileSorted(vals, 0.25)
	s.Median = quantileSorted(vals, 0.5)
	s.Q3 = quantileSorted(vals, 0.75)
	return s
}

// Describe returns a table with one column per measure and one row per statistic.
func Describe(view RecordView) *TableData {
	measures := DataMeasures(view)
	stats := make([]Stats, len(measures))
	for i, m := range measures {
		stats[i] = DescribeMeasure(view, m)
	}
	return DescribeTable(stats, LabelForDimension)
}

// DescribeTable lays precomputed stats out like Describe. label names each
// measure column; nil keeps the measure key.
func DescribeTable(stats []Stats, label func(string) string) *TableData {
	table := &TableData{Title: "Summary statistics", Columns: []Column{{Key: "statistic", Label: "", Type: "text", Align: "left"}}}
	for _, s := range stats {
		name := s.Measure
		if label != nil {
			name = label(s.Measure)
		}
		table.Columns = append(table.Columns, Column{Key: s.Measure, Label: name, Type: "number", Align: "right"})
	}

	rows := []struct {
		label string
		get   func(Stats) float64
	}{
		{"count", func(s Stats) float64 { return float64(s.Count) }},
		{"mean", func(s Stats) float64 { return s.Mean }},
		{"std", func(s Stats) float64 { return s.Std }},
		{"min", func(s Stats) float64 { return s.Min }},
		{"25%", func(s Stats) float64 { return s.Q1 }},
		{"50%", func(s Stats) float64 { return s.Median }},
		{"75%", func(s Stats) float64 { return s.Q3 }},
		{"max", func(s Stats) float64 { return s.Max }},
	}
	for _, r := range rows {
		row := []string{r.label}
		for _, s := range stats {
			row = append(row, formatStat(r.get(s)))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// CorrelationMatrix computes Pearson correlation between every pair of measures
// over the rows where both are present. Pairs with zero variance are NaN.
func CorrelationMatrix(view RecordView) ([]string, [][]float64) {
	measures := DataMeasures(view)
	cols := make([][]float64, len(measures))
	for i, m := range measures {
		col := make([]float64, view.Len())
		for r := range col {
			col[r] = view.Measure(r, m)
		}
		cols[i] = col
	}
	matrix := make([][]float64, len(measures))
	for i := range measures {
		matrix[i] = make([]float64, len(measures))
		for j := range measures {
			if j < i {
				matrix[i][j] = matrix[j][i]
				continue
			}
			matrix[i][j] = pearson(cols[i], cols[j])
		}
	}
	return measures, matrix
}

// Correlation renders CorrelationMatrix as a table.
func Correlation(view RecordView) *TableData {
	measures, matrix := CorrelationMatrix(view)
	table := &TableData{Title: "Correlation matrix", Columns: []Column{{Key: "measure", Label: "", Type: "text", Align: "left"}}}
	for _, m := range measures {
		table.Columns = append(table.Columns, Column{Key: m, Label: LabelForDimension(m), Type: "number", Align: "right"})
	}
	for i, m := range measures {
		row := []string{LabelForDimension(m)}
		for j := range measures {
			row = append(row, formatStat(matrix[i][j]))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func pearson(x, y []float64) float64 {
	if len(x) != len(y) {
		return math.NaN()
	}
	var xs, ys []float64
	for i := range x {
		if !math.IsNaN(x[i]) && !math.IsNaN(y[i]) {
			xs, ys = append(xs, x[i]), append(ys, y[i])
		}
	}
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// parseFormatted reads numbers written by the formatters: "USD 1,234.50", "12.5%".
func parseFormatted(s string) float64 {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	if i := strings.LastIndex(s, " "); i >= 0 {
		s = s[i+1:]
	}
	s = strings.NewReplacer(",", "", "%", "", "-", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if negative {
		v = -v
	}
	return v
}
