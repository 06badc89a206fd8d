package visual

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/sheet"
)

// Request is the advanced visualization form.
type Request struct {
	Type   string `json:"type"`
	X      string `json:"x"`     // names column for pie, value column for histogram
	Y      string `json:"y"`     // numeric column
	Color  string `json:"color"` // optional grouping column for bar and scatter
	Title  string `json:"title"`
	Scheme string `json:"scheme"`
}

// Build draws a chart straight from a frame.
func Build(frame *sheet.Frame, req Request) (*Figure, error) {
	if frame == nil || len(frame.Rows) == 0 {
		return nil, ErrNoData
	}
	frame = safeFrame(frame)
	req.X, req.Y, req.Color, req.Title = scriptSafe(req.X), scriptSafe(req.Y), scriptSafe(req.Color), scriptSafe(req.Title)
	switch req.Type {
	case Bar:
		return buildBar(frame, req)
	case Line:
		return buildLine(frame, req)
	case Scatter:
		return buildScatter(frame, req)
	case Histogram:
		return buildHistogram(frame, req)
	case Box:
		return buildBox(frame, req)
	case Pie:
		return buildPie(frame, req)
	case Heatmap:
		return buildHeatmap(frame, req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, req.Type)
	}
}

// safeFrame returns f, or a copy with every cell and header passed
// through scriptSafe when any of them contains "<".
func safeFrame(f *sheet.Frame) *sheet.Frame {
	dirty := slices.ContainsFunc(f.Headers, hasTag)
	for _, row := range f.Rows {
		dirty = dirty || slices.ContainsFunc(row, hasTag)
	}
	if !dirty {
		return f
	}
	out := *f
	out.Headers = mapStrings(f.Headers, scriptSafe)
	out.Rows = make([][]string, len(f.Rows))
	for i, row := range f.Rows {
		out.Rows[i] = mapStrings(row, scriptSafe)
	}
	return &out
}

func mapStrings(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}

// NumericColumns lists the headers of number columns.
func NumericColumns(frame *sheet.Frame) []string {
	var out []string
	for i, kind := range frame.ColumnKinds() {
		if kind == schema.KindNumber {
			out = append(out, frame.Headers[i])
		}
	}
	return out
}

// CategoricalColumns lists the headers of every non-number column.
func CategoricalColumns(frame *sheet.Frame) []string {
	var out []string
	for i, kind := range frame.ColumnKinds() {
		if kind != schema.KindNumber {
			out = append(out, frame.Headers[i])
		}
	}
	return out
}

// ============================================================================
// COLUMN HELPERS
// ============================================================================

func column(frame *sheet.Frame, name, role string) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("%w: %s", ErrColumnRequired, role)
	}
	i := frame.ColumnIndex(name)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return i, nil
}

// optionalColumn returns -1 for an empty name.
func optionalColumn(frame *sheet.Frame, name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	return column(frame, name, "")
}

type grouped struct {
	cats   []string
	names  []string
	values map[string]map[string]float64
}

// groupSum sums y per x category, one series per color value. Rows whose y
// is not a number are skipped. With y < 0 it counts rows instead.
func groupSum(frame *sheet.Frame, x, y, color int, seriesName string) grouped {
	g := grouped{values: make(map[string]map[string]float64)}
	seenCat := make(map[string]bool)
	var ys []float64
	if y >= 0 {
		ys = frame.Floats(y)
	}
	for r, row := range frame.Rows {
		v := 1.0
		if y >= 0 {
			if v = ys[r]; math.IsNaN(v) {
				continue
			}
		}
		cat := row[x]
		name := seriesName
		if color >= 0 {
			name = row[color]
		}
		if !seenCat[cat] {
			seenCat[cat] = true
			g.cats = append(g.cats, cat)
		}
		if _, ok := g.values[name]; !ok {
			g.values[name] = make(map[string]float64)
			g.names = append(g.names, name)
		}
		g.values[name][cat] += v
	}
	return g
}

func (g grouped) series() []Series {
	out := make([]Series, len(g.names))
	for i, name := range g.names {
		vals := make([]float64, len(g.cats))
		for j, c := range g.cats {
			vals[j] = g.values[name][c]
		}
		out[i] = Series{Name: name, Values: vals}
	}
	return out
}

// ============================================================================
// CHART BUILDERS
// ============================================================================

func buildBar(frame *sheet.Frame, req Request) (*Figure, error) {
	x, err := column(frame, req.X, "x axis")
	if err != nil {
		return nil, err
	}
	y, err := column(frame, req.Y, "y axis")
	if err != nil {
		return nil, err
	}
	color, err := optionalColumn(frame, req.Color)
	if err != nil {
		return nil, err
	}

	g := groupSum(frame, x, y, color, frame.Headers[y])
	if len(g.cats) == 0 {
		return nil, ErrNoData
	}
	fig := &Figure{Type: Bar, Title: req.Title, Categories: g.cats, Series: g.series()}

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(globalOpts(req.Title, seriesPalette(req.Scheme, len(fig.Series)), color >= 0),
		charts.WithXAxisOpts(opts.XAxis{Name: frame.Headers[x]}),
		charts.WithYAxisOpts(opts.YAxis{Name: frame.Headers[y]}))...)
	bar.SetXAxis(g.cats)
	for _, s := range fig.Series {
		bar.AddSeries(s.Name, barData(s.Values), charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
	}
	fig.chart = bar
	return fig, nil
}

func buildLine(frame *sheet.Frame, req Request) (*Figure, error) {
	x, err := column(frame, req.X, "x axis")
	if err != nil {
		return nil, err
	}
	y, err := column(frame, req.Y, "y axis")
	if err != nil {
		return nil, err
	}

	var cats []string
	var vals []float64
	for r, v := range frame.Floats(y) {
		if math.IsNaN(v) {
			continue
		}
		cats = append(cats, frame.Rows[r][x])
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return nil, ErrNoData
	}
	fig := &Figure{Type: Line, Title: req.Title, Categories: cats, Series: []Series{{Name: frame.Headers[y], Values: vals}}}

	line := charts.NewLine()
	line.SetGlobalOptions(append(globalOpts(req.Title, Palette(req.Scheme), false),
		charts.WithXAxisOpts(opts.XAxis{Name: frame.Headers[x]}),
		charts.WithYAxisOpts(opts.YAxis{Name: frame.Headers[y]}))...)
	line.SetXAxis(cats).AddSeries(frame.Headers[y], lineData(vals))
	fig.chart = line
	return fig, nil
}

func buildScatter(frame *sheet.Frame, req Request) (*Figure, error) {
	x, err := column(frame, req.X, "x axis")
	if err != nil {
		return nil, err
	}
	y, err := column(frame, req.Y, "y axis")
	if err != nil {
		return nil, err
	}
	color, err := optionalColumn(frame, req.Color)
	if err != nil {
		return nil, err
	}

	xs, ys := frame.Floats(x), frame.Floats(y)
	points := make(map[string][]opts.ScatterData)
	index := make(map[string]int)
	fig := &Figure{Type: Scatter, Title: req.Title}
	for r := range frame.Rows {
		if math.IsNaN(xs[r]) || math.IsNaN(ys[r]) {
			continue
		}
		name := frame.Headers[y]
		if color >= 0 {
			name = frame.Rows[r][color]
		}
		i, ok := index[name]
		if !ok {
			i = len(fig.Series)
			index[name] = i
			fig.Series = append(fig.Series, Series{Name: name})
		}
		fig.Series[i].X = append(fig.Series[i].X, xs[r])
		fig.Series[i].Values = append(fig.Series[i].Values, ys[r])
		points[name] = append(points[name], opts.ScatterData{Value: []float64{xs[r], ys[r]}})
	}
	if len(fig.Series) == 0 {
		return nil, ErrNoData
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(append(globalOpts(req.Title, seriesPalette(req.Scheme, len(fig.Series)), color >= 0),
		charts.WithXAxisOpts(opts.XAxis{Name: frame.Headers[x], Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: frame.Headers[y], Type: "value", Scale: opts.Bool(true)}))...)
	for _, s := range fig.Series {
		scatter.AddSeries(s.Name, points[s.Name])
	}
	fig.chart = scatter
	return fig, nil
}

func buildHistogram(frame *sheet.Frame, req Request) (*Figure, error) {
	x, err := column(frame, req.X, "value column")
	if err != nil {
		return nil, err
	}
	var vals []float64
	for _, v := range frame.Floats(x) {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, ErrNoData
	}

	labels, counts := histogramBins(vals)
	fig := &Figure{Type: Histogram, Title: req.Title, Categories: labels, Series: []Series{{Name: "Count", Values: counts}}}

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(globalOpts(req.Title, Palette(req.Scheme), false),
		charts.WithXAxisOpts(opts.XAxis{Name: frame.Headers[x]}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Count"}))...)
	bar.SetXAxis(labels).AddSeries("Count", barData(counts), charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "0%"}))
	fig.chart = bar
	return fig, nil
}

// histogramBins splits vals into Sturges' ceil(log2 n + 1) equal-width bins.
func histogramBins(vals []float64) ([]string, []float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		return []string{engine.FormatNumber(lo)}, []float64{float64(len(vals))}
	}

	k := int(math.Ceil(math.Log2(float64(len(vals))) + 1))
	width := (hi - lo) / float64(k)
	counts := make([]float64, k)
	for _, v := range vals {
		b := int((v - lo) / width)
		if b >= k {
			b = k - 1
		}
		counts[b]++
	}
	labels := make([]string, k)
	for i := range labels {
		labels[i] = fmt.Sprintf("%s – %s", engine.FormatNumber(lo+float64(i)*width), engine.FormatNumber(lo+float64(i+1)*width))
	}
	return labels, counts
}

// buildBox draws one box per X category. Each Figure series holds
// min, Q1, median, Q3, max for one category.
func buildBox(frame *sheet.Frame, req Request) (*Figure, error) {
	y, err := column(frame, req.Y, "y axis")
	if err != nil {
		return nil, err
	}
	x, err := optionalColumn(frame, req.X)
	if err != nil {
		return nil, err
	}

	var cats []string
	byCat := make(map[string][]float64)
	for r, v := range frame.Floats(y) {
		if math.IsNaN(v) {
			continue
		}
		cat := frame.Headers[y]
		if x >= 0 {
			cat = frame.Rows[r][x]
		}
		if _, ok := byCat[cat]; !ok {
			cats = append(cats, cat)
		}
		byCat[cat] = append(byCat[cat], v)
	}
	if len(cats) == 0 {
		return nil, ErrNoData
	}

	fig := &Figure{Type: Box, Title: req.Title, Categories: cats}
	data := make([]opts.BoxPlotData, len(cats))
	for i, cat := range cats {
		vals := byCat[cat]
		s := engine.DescribeMeasure(engine.NewColumnView(len(vals)).AddMeasure("y", vals), "y")
		five := []float64{s.Min, s.Q1, s.Median, s.Q3, s.Max}
		fig.Series = append(fig.Series, Series{Name: cat, Values: five})
		data[i] = opts.BoxPlotData{Name: cat, Value: five}
	}

	box := charts.NewBoxPlot()
	xName := ""
	if x >= 0 {
		xName = frame.Headers[x]
	}
	box.SetGlobalOptions(append(globalOpts(req.Title, Palette(req.Scheme), false),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: frame.Headers[y], Scale: opts.Bool(true)}))...)
	box.SetXAxis(cats).AddSeries(frame.Headers[y], data)
	fig.chart = box
	return fig, nil
}

// buildPie sums Y per name; without Y it counts rows per name.
func buildPie(frame *sheet.Frame, req Request) (*Figure, error) {
	x, err := column(frame, req.X, "names column")
	if err != nil {
		return nil, err
	}
	y, err := optionalColumn(frame, req.Y)
	if err != nil {
		return nil, err
	}

	name := "Count"
	if y >= 0 {
		name = frame.Headers[y]
	}
	g := groupSum(frame, x, y, -1, name)
	if len(g.cats) == 0 {
		return nil, ErrNoData
	}
	fig := &Figure{Type: Pie, Title: req.Title, Categories: g.cats, Series: g.series()}

	pie := charts.NewPie()
	pie.SetGlobalOptions(globalOpts(req.Title, seriesPalette(req.Scheme, len(g.cats)), true)...)
	pie.AddSeries(name, pieData(g.cats, fig.Series[0].Values),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}))
	fig.chart = pie
	return fig, nil
}

// buildHeatmap renders the correlation matrix of every numeric column when
// X or Y is missing, otherwise the mean of Y for each X category.
func buildHeatmap(frame *sheet.Frame, req Request) (*Figure, error) {
	if req.X == "" || req.Y == "" {
		return correlationHeatmap(frame, req)
	}
	x, err := column(frame, req.X, "x axis")
	if err != nil {
		return nil, err
	}
	y, err := column(frame, req.Y, "y axis")
	if err != nil {
		return nil, err
	}

	var cats []string
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for r, v := range frame.Floats(y) {
		if math.IsNaN(v) {
			continue
		}
		cat := frame.Rows[r][x]
		if counts[cat] == 0 {
			cats = append(cats, cat)
		}
		sums[cat] += v
		counts[cat]++
	}
	if len(cats) == 0 {
		return nil, ErrNoData
	}

	fig := &Figure{Type: Heatmap, Title: req.Title, Categories: []string{frame.Headers[y]}}
	rows := make([][]float64, len(cats))
	for i, c := range cats {
		rows[i] = []float64{sums[c] / float64(counts[c])}
		fig.Series = append(fig.Series, Series{Name: c, Values: rows[i]})
	}
	fig.chart = heatmapChart(req, fig.Categories, cats, rows, frame.Headers[x])
	return fig, nil
}

func correlationHeatmap(frame *sheet.Frame, req Request) (*Figure, error) {
	names, matrix := engine.CorrelationMatrix(sheet.NumericView(frame))
	if len(names) < 2 {
		return nil, fmt.Errorf("%w: correlation needs two numeric columns", ErrNoData)
	}

	title := req.Title
	if title == "" {
		title = "Correlation Matrix"
	}
	fig := &Figure{Type: Heatmap, Title: title, Categories: names}
	for i, row := range matrix {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
		fig.Series = append(fig.Series, Series{Name: names[i], Values: row})
	}
	req.Title = title
	fig.chart = heatmapChart(req, names, names, matrix, "")
	return fig, nil
}

// heatmapChart draws rows × cols cells; cells[i][j] is row i, column j.
func heatmapChart(req Request, cols, rows []string, cells [][]float64, yName string) *charts.HeatMap {
	lo, hi := math.Inf(1), math.Inf(-1)
	var data []opts.HeatMapData
	for i := range rows {
		for j := range cols {
			v := engine.RoundTo2(cells[i][j])
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, v}})
		}
	}
	if lo == hi {
		hi = lo + 1
	}

	colors := Palette(req.Scheme)
	if len(colors) < 2 {
		colors = schemes["diverging"]
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(append(globalOpts(req.Title, colors, false),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: cols}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rows, Name: yName}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: colors},
		}))...)
	hm.SetXAxis(cols).AddSeries(req.Y, data, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return hm
}
