// Package visual renders charts with go-echarts.
//
// Render draws an engine.ChartConfig produced by a query. Build draws the
// advanced chart form directly from a sheet.Frame. Both return a Figure that
// renders to a standalone HTML page for embedding in an iframe.
package visual

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/render"

	"github.com/spektr-org/askcel/engine"
)

var (
	// ErrUnknownChart is returned for chart types Build or Render cannot draw.
	ErrUnknownChart = errors.New("unknown chart type")
	// ErrColumnRequired is returned when a chart type needs a column that was not chosen.
	ErrColumnRequired = errors.New("column is required")
	// ErrUnknownColumn is returned when a requested column is not in the frame.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrNoData is returned when there is nothing to plot.
	ErrNoData = errors.New("no data to plot")
)

// Chart types offered by the advanced visualization form.
const (
	Bar       = "bar"
	Line      = "line"
	Scatter   = "scatter"
	Histogram = "histogram"
	Box       = "box"
	Pie       = "pie"
	Heatmap   = "heatmap"
)

// ChartType describes one entry of the chart type picker.
type ChartType struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	// Which inputs the form should show.
	NeedsY     bool `json:"needsY"`
	AllowColor bool `json:"allowColor"`
}

// ChartTypes lists the chart types in display order.
func ChartTypes() []ChartType {
	return []ChartType{
		{Key: Bar, Label: "Bar Chart", NeedsY: true, AllowColor: true},
		{Key: Line, Label: "Line Chart", NeedsY: true},
		{Key: Scatter, Label: "Scatter Plot", NeedsY: true, AllowColor: true},
		{Key: Histogram, Label: "Histogram"},
		{Key: Box, Label: "Box Plot", NeedsY: true},
		{Key: Pie, Label: "Pie Chart", NeedsY: true},
		{Key: Heatmap, Label: "Heatmap", NeedsY: true},
	}
}

// ============================================================================
// COLOR SCHEMES
// ============================================================================

var schemes = map[string][]string{
	"default": {"#4B8BBE"},
	"categorical": {
		"#8dd3c7", "#ffffb3", "#bebada", "#fb8072", "#80b1d3", "#fdb462",
		"#b3de69", "#fccde5", "#d9d9d9", "#bc80bd", "#ccebc5", "#ffed6f",
	},
	"sequential": {
		"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
		"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
	},
	"diverging": {
		"#67001f", "#b2182b", "#d6604d", "#f4a582", "#fddbc7", "#f7f7f7",
		"#d1e5f0", "#92c5de", "#4393c3", "#2166ac", "#053061",
	},
}

// Schemes returns the color scheme names in display order.
func Schemes() []string {
	return []string{"default", "categorical", "sequential", "diverging"}
}

// Palette returns the colors of a scheme. Unknown names get the default scheme.
func Palette(scheme string) []string {
	if colors, ok := schemes[scheme]; ok {
		return colors
	}
	return schemes["default"]
}

// seriesPalette widens the single-color default scheme when several series
// would otherwise share one color.
func seriesPalette(scheme string, series int) []string {
	colors := Palette(scheme)
	if len(colors) == 1 && series > 1 {
		return engine.DefaultPalette
	}
	return colors
}

// ============================================================================
// FIGURE
// ============================================================================

// Series is one plotted series, kept alongside the chart for callers and tests.
type Series struct {
	Name   string    `json:"name"`
	X      []float64 `json:"x,omitempty"` // scatter only
	Values []float64 `json:"values"`
}

// Figure is a rendered-ready chart.
type Figure struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Categories []string `json:"categories,omitempty"`
	Series     []Series `json:"series"`

	chart render.Renderer
}

// Render writes the chart as a standalone HTML page.
func (f *Figure) Render(w io.Writer) error {
	if f == nil || f.chart == nil {
		return ErrNoData
	}
	if err := f.chart.Render(w); err != nil {
		return fmt.Errorf("render %s chart: %w", f.Type, err)
	}
	return nil
}

// HTML returns the standalone HTML page.
func (f *Figure) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// go-echarts writes chart text into an inline script without escaping
// markup. A zero-width space after every "<" keeps cell text from closing
// that script or opening a tag while reading the same on screen.
func scriptSafe(s string) string {
	return strings.ReplaceAll(s, "<", "<\u200b")
}

func hasTag(s string) bool { return strings.Contains(s, "<") }

func globalOpts(title string, colors []string, legend bool) []charts.GlobalOpts {
	page := title
	if page == "" {
		page = "askcel chart"
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", PageTitle: page}),
		charts.WithTitleOpts(opts.Title{Title: title, Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(legend), Bottom: "0"}),
		charts.WithColorsOpts(opts.Colors(colors)),
	}
}

func barData(values []float64) []opts.BarData {
	out := make([]opts.BarData, len(values))
	for i, v := range values {
		out[i] = opts.BarData{Value: v}
	}
	return out
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func pieData(names []string, values []float64) []opts.PieData {
	out := make([]opts.PieData, len(values))
	for i, v := range values {
		out[i] = opts.PieData{Name: names[i], Value: v}
	}
	return out
}
