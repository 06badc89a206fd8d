package engine

import "sort"

// DefaultPalette is the series palette used when no color scheme is chosen.
var DefaultPalette = []string{
	"#4B8BBE", "#306998", "#FFE873", "#FFD43B", "#646464",
	"#10B981", "#F59E0B", "#EF4444", "#8B5CF6", "#06B6D4",
}

// BuildChart produces a ChartConfig from a QuerySpec and aggregated groups.
// It returns nil when there is nothing to plot.
func BuildChart(spec QuerySpec, groups []Group) *ChartConfig {
	if len(groups) == 0 {
		return nil
	}

	chartType := spec.Visualize
	switch chartType {
	case "bar", "line", "pie", "area", "stacked_bar":
	default:
		chartType = "bar"
	}

	cfg := &ChartConfig{
		ChartType:  chartType,
		Title:      spec.Title,
		YAxis:      LabelForAggregation(spec.Aggregation),
		ShowLegend: true,
		ShowGrid:   chartType != "pie",
	}
	if len(spec.GroupBy) > 0 {
		cfg.XAxis = LabelForDimension(spec.GroupBy[0])
	}

	if len(spec.GroupBy) >= 2 && hasSubGroups(groups) {
		cfg.Series = buildMultiSeries(groups)
	} else {
		name := spec.Title
		if name == "" {
			name = cfg.YAxis
		}
		cfg.Series = []ChartSeries{buildSeries(name, groups)}
	}

	cfg.Colors = make([]string, len(cfg.Series))
	for i := range cfg.Colors {
		cfg.Colors[i] = DefaultPalette[i%len(DefaultPalette)]
	}
	return cfg
}

// ChartFromTable plots one numeric column of a table against its first column.
func ChartFromTable(table *TableData, column int) *ChartConfig {
	if table == nil || column <= 0 || column >= len(table.Columns) || len(table.Rows) == 0 {
		return nil
	}
	points := make([]ChartPoint, 0, len(table.Rows))
	for _, row := range table.Rows {
		if column >= len(row) {
			continue
		}
		points = append(points, ChartPoint{Label: row[0], Value: RoundTo2(parseFormatted(row[column]))})
	}
	name := table.Columns[column].Label
	return &ChartConfig{
		ChartType:  "bar",
		Title:      name + " by " + table.Columns[0].Label,
		XAxis:      table.Columns[0].Label,
		YAxis:      name,
		Series:     []ChartSeries{{Name: name, Data: points}},
		Colors:     []string{DefaultPalette[0]},
		ShowLegend: false,
		ShowGrid:   true,
	}
}

func buildSeries(name string, groups []Group) ChartSeries {
	points := make([]ChartPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, ChartPoint{Label: g.Label, Value: RoundTo2(g.Value)})
	}
	return ChartSeries{Name: name, Data: points}
}

// buildMultiSeries pivots sub-groups into one series per sub-group key.
// Series are named in sorted order so repeated runs render identically.
func buildMultiSeries(groups []Group) []ChartSeries {
	keySet := make(map[string]bool)
	for _, g := range groups {
		for _, sg := range g.SubGroups {
			keySet[sg.Key] = true
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := make([]ChartSeries, len(keys))
	for i, key := range keys {
		series[i] = ChartSeries{Name: key, Color: DefaultPalette[i%len(DefaultPalette)], Data: make([]ChartPoint, 0, len(groups))}
	}
	for _, g := range groups {
		values := make(map[string]float64, len(g.SubGroups))
		for _, sg := range g.SubGroups {
			values[sg.Key] = sg.Value
		}
		for i, key := range keys {
			series[i].Data = append(series[i].Data, ChartPoint{Label: g.Label, Value: RoundTo2(values[key])})
		}
	}
	return series
}

func hasSubGroups(groups []Group) bool {
	for _, g := range groups {
		if len(g.SubGroups) > 0 {
			return true
		}
	}
	return false
}
