package visual

import (
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/spektr-org/askcel/engine"
)

// Render draws a query chart. Supported types are bar, stacked_bar, line,
// area and pie. Series colors from cfg win over the scheme when scheme is empty.
func Render(cfg *engine.ChartConfig, scheme string) (*Figure, error) {
	if cfg == nil || len(cfg.Series) == 0 || len(cfg.Series[0].Data) == 0 {
		return nil, ErrNoData
	}
	cfg = safeConfig(cfg)

	colors := cfg.Colors
	if scheme != "" || len(colors) == 0 {
		colors = seriesPalette(scheme, len(cfg.Series))
	}

	fig := &Figure{Type: cfg.ChartType, Title: cfg.Title}
	fig.Categories = categories(cfg.Series)
	for _, s := range cfg.Series {
		fig.Series = append(fig.Series, Series{Name: s.Name, Values: alignValues(s, fig.Categories)})
	}
	global := globalOpts(cfg.Title, colors, cfg.ShowLegend && len(cfg.Series) > 1)

	switch cfg.ChartType {
	case "bar", "stacked_bar":
		bar := charts.NewBar()
		bar.SetGlobalOptions(append(global,
			charts.WithXAxisOpts(opts.XAxis{Name: cfg.XAxis}),
			charts.WithYAxisOpts(opts.YAxis{Name: cfg.YAxis}))...)
		bar.SetXAxis(fig.Categories)
		for _, s := range fig.Series {
			if cfg.ChartType == "stacked_bar" {
				bar.AddSeries(s.Name, barData(s.Values), charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
			} else {
				bar.AddSeries(s.Name, barData(s.Values))
			}
		}
		fig.chart = bar

	case "line", "area":
		line := charts.NewLine()
		line.SetGlobalOptions(append(global,
			charts.WithXAxisOpts(opts.XAxis{Name: cfg.XAxis}),
			charts.WithYAxisOpts(opts.YAxis{Name: cfg.YAxis}))...)
		line.SetXAxis(fig.Categories)
		for _, s := range fig.Series {
			if cfg.ChartType == "area" {
				line.AddSeries(s.Name, lineData(s.Values), charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}))
			} else {
				line.AddSeries(s.Name, lineData(s.Values))
			}
		}
		fig.chart = line

	case "pie":
		pie := charts.NewPie()
		s := fig.Series[0]
		pie.SetGlobalOptions(globalOpts(cfg.Title, seriesPalette(scheme, len(s.Values)), true)...)
		pie.AddSeries(s.Name, pieData(fig.Categories, s.Values),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}))
		fig.chart = pie

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, cfg.ChartType)
	}
	return fig, nil
}

// safeConfig copies the text of cfg through scriptSafe.
func safeConfig(cfg *engine.ChartConfig) *engine.ChartConfig {
	out := *cfg
	out.Title, out.XAxis, out.YAxis = scriptSafe(cfg.Title), scriptSafe(cfg.XAxis), scriptSafe(cfg.YAxis)
	out.Series = make([]engine.ChartSeries, len(cfg.Series))
	for i, s := range cfg.Series {
		points := make([]engine.ChartPoint, len(s.Data))
		for j, p := range s.Data {
			points[j] = engine.ChartPoint{Label: scriptSafe(p.Label), Value: p.Value}
		}
		out.Series[i] = engine.ChartSeries{Name: scriptSafe(s.Name), Data: points, Color: s.Color}
	}
	return &out
}

// categories collects point labels across all series in first-seen order.
func categories(series []engine.ChartSeries) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range series {
		for _, p := range s.Data {
			if !seen[p.Label] {
				seen[p.Label] = true
				out = append(out, p.Label)
			}
		}
	}
	return out
}

// alignValues lays a series out over the shared categories; gaps are 0.
func alignValues(s engine.ChartSeries, cats []string) []float64 {
	byLabel := make(map[string]float64, len(s.Data))
	for _, p := range s.Data {
		byLabel[p.Label] += p.Value
	}
	out := make([]float64, len(cats))
	for i, c := range cats {
		out[i] = byLabel[c]
	}
	return out
}
