package visual

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/sheet"
)

func salesFrame() *sheet.Frame {
	return &sheet.Frame{
		Name:    "sales.xlsx",
		Sheet:   "Sales",
		Headers: []string{"Region", "Product", "Units", "Revenue"},
		Rows: [][]string{
			{"North", "Desk", "3", "300"},
			{"South", "Lamp", "1", "40"},
			{"North", "Chair", "5", "250"},
			{"East", "Desk", "2", "200"},
			{"South", "Desk", "", "n/a"},
		},
	}
}

func TestChartTypesAndSchemes(t *testing.T) {
	var keys []string
	for _, ct := range ChartTypes() {
		keys = append(keys, ct.Key)
	}
	assert.Equal(t, []string{"bar", "line", "scatter", "histogram", "box", "pie", "heatmap"}, keys)
	assert.Equal(t, []string{"default", "categorical", "sequential", "diverging"}, Schemes())
	assert.Equal(t, []string{"#4B8BBE"}, Palette("nope"))
	assert.Len(t, Palette("categorical"), 12)
	assert.Equal(t, engine.DefaultPalette, seriesPalette("default", 3))
}

func TestColumnLists(t *testing.T) {
	frame := salesFrame()
	assert.Equal(t, []string{"Units", "Revenue"}, NumericColumns(frame))
	assert.Equal(t, []string{"Region", "Product"}, CategoricalColumns(frame))
}

func TestBuildBar(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Bar, X: "region", Y: "Revenue", Title: "Revenue by region"})
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South", "East"}, fig.Categories)
	require.Len(t, fig.Series, 1)
	assert.Equal(t, []float64{550, 40, 200}, fig.Series[0].Values)

	html, err := fig.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(html), "Revenue by region")
	assert.Contains(t, string(html), "echarts")
}

func TestBuildBarByColor(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Bar, X: "Region", Y: "Units", Color: "Product"})
	require.NoError(t, err)
	require.Len(t, fig.Series, 3)
	assert.Equal(t, "Desk", fig.Series[0].Name)
	assert.Equal(t, []float64{3, 0, 2}, fig.Series[0].Values)
	assert.Equal(t, "Lamp", fig.Series[1].Name)
	assert.Equal(t, []float64{0, 1, 0}, fig.Series[1].Values)
}

func TestBuildLine(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Line, X: "Product", Y: "Units"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desk", "Lamp", "Chair", "Desk"}, fig.Categories)
	assert.Equal(t, []float64{3, 1, 5, 2}, fig.Series[0].Values)
}

func TestBuildScatter(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Scatter, X: "Units", Y: "Revenue", Color: "Region"})
	require.NoError(t, err)
	require.Len(t, fig.Series, 3)
	assert.Equal(t, "North", fig.Series[0].Name)
	assert.Equal(t, []float64{3, 5}, fig.Series[0].X)
	assert.Equal(t, []float64{300, 250}, fig.Series[0].Values)
}

func TestBuildHistogram(t *testing.T) {
	frame := &sheet.Frame{Headers: []string{"v"}}
	for _, v := range []string{"1", "2", "2", "3", "4", "5", "6", "7", "8"} {
		frame.Rows = append(frame.Rows, []string{v})
	}
	fig, err := Build(frame, Request{Type: Histogram, X: "v"})
	require.NoError(t, err)

	// 9 values → ceil(log2 9 + 1) = 5 bins of width 1.4
	require.Len(t, fig.Categories, 5)
	assert.Equal(t, "1 – 2.40", fig.Categories[0])
	assert.Equal(t, []float64{3, 1, 2, 1, 2}, fig.Series[0].Values)

	labels, counts := histogramBins([]float64{4, 4})
	assert.Equal(t, []string{"4"}, labels)
	assert.Equal(t, []float64{2}, counts)
}

func TestBuildBox(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Box, X: "Product", Y: "Revenue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desk", "Lamp", "Chair"}, fig.Categories)
	assert.Equal(t, []float64{200, 225, 250, 275, 300}, fig.Series[0].Values)

	fig, err = Build(salesFrame(), Request{Type: Box, Y: "Units"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Units"}, fig.Categories)
}

func TestBuildPie(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Pie, X: "Product", Y: "Revenue", Scheme: "categorical"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desk", "Lamp", "Chair"}, fig.Categories)
	assert.Equal(t, []float64{500, 40, 250}, fig.Series[0].Values)

	counted, err := Build(salesFrame(), Request{Type: Pie, X: "Product"})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 1}, counted.Series[0].Values)
}

func TestBuildHeatmap(t *testing.T) {
	fig, err := Build(salesFrame(), Request{Type: Heatmap})
	require.NoError(t, err)
	assert.Equal(t, "Correlation Matrix", fig.Title)
	assert.Equal(t, []string{"Units", "Revenue"}, fig.Categories)
	assert.InDelta(t, 1.0, fig.Series[0].Values[0], 1e-9)

	html, err := fig.HTML()
	require.NoError(t, err)
	assert.Contains(t, string(html), "Correlation Matrix")

	pivot, err := Build(salesFrame(), Request{Type: Heatmap, X: "Region", Y: "Revenue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue"}, pivot.Categories)
	assert.Equal(t, "North", pivot.Series[0].Name)
	assert.Equal(t, []float64{275}, pivot.Series[0].Values)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(salesFrame(), Request{Type: "violin", X: "Region", Y: "Units"})
	assert.ErrorIs(t, err, ErrUnknownChart)

	_, err = Build(salesFrame(), Request{Type: Bar, X: "Region"})
	assert.ErrorIs(t, err, ErrColumnRequired)

	_, err = Build(salesFrame(), Request{Type: Bar, X: "Region", Y: "Cost"})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = Build(&sheet.Frame{Headers: []string{"a"}}, Request{Type: Bar})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Build(salesFrame(), Request{Type: Histogram, X: "Region"})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRender(t *testing.T) {
	cfg := &engine.ChartConfig{
		ChartType:  "stacked_bar",
		Title:      "Revenue by month",
		XAxis:      "Month",
		ShowLegend: true,
		Series: []engine.ChartSeries{
			{Name: "North", Data: []engine.ChartPoint{{Label: "Jan", Value: 1}, {Label: "Feb", Value: 2}}},
			{Name: "South", Data: []engine.ChartPoint{{Label: "Feb", Value: 3}, {Label: "Mar", Value: 4}}},
		},
		Colors: []string{"#111111", "#222222"},
	}
	fig, err := Render(cfg, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Jan", "Feb", "Mar"}, fig.Categories)
	assert.Equal(t, []float64{0, 3, 4}, fig.Series[1].Values)

	html, err := fig.HTML()
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "#222222"), "series colors are kept without a scheme")

	for _, chartType := range []string{"bar", "line", "area", "pie"} {
		cfg.ChartType = chartType
		_, err := Render(cfg, "sequential")
		assert.NoError(t, err, chartType)
	}

	cfg.ChartType = "radar"
	_, err = Render(cfg, "")
	assert.ErrorIs(t, err, ErrUnknownChart)

	_, err = Render(nil, "")
	assert.ErrorIs(t, err, ErrNoData)

	var empty *Figure
	assert.ErrorIs(t, empty.Render(nil), ErrNoData)
}

func TestChartTextCannotCloseScript(t *testing.T) {
	const payload = "</script><script>alert(1)</script>"
	frame := salesFrame()
	frame.Rows[0][0] = payload

	fig, err := Build(frame, Request{Type: Bar, X: "Region", Y: "Revenue", Title: payload})
	require.NoError(t, err)
	html, err := fig.HTML()
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>alert(1)")
	assert.Contains(t, fig.Categories, "<\u200b/script><\u200bscript>alert(1)<\u200b/script>")
	assert.Equal(t, payload, frame.Rows[0][0], "the caller's frame is untouched")

	fig, err = Render(&engine.ChartConfig{
		ChartType: "pie",
		Title:     payload,
		Series:    []engine.ChartSeries{{Name: payload, Data: []engine.ChartPoint{{Label: payload, Value: 1}}}},
	}, "")
	require.NoError(t, err)
	html, err = fig.HTML()
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>alert(1)")
}
