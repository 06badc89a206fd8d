package engine

import (
	"fmt"
	"math"
	"strconv"
)

// ============================================================================
// TABLE BUILDER — TableData from QuerySpec + Groups
// ============================================================================
// Column discovery uses view.DimensionKeys() / MeasureKeys().
// ============================================================================

// BuildTable produces a TableData for a QuerySpec.
func BuildTable(spec QuerySpec, groups []Group, view RecordView, measure, unit string) *TableData {
	if spec.Aggregation == AggList {
		return buildListTable(spec, view, measure, unit)
	}
	return buildAggregatedTable(spec, groups, unit)
}

// ============================================================================
// LIST TABLE — one row per record
// ============================================================================

func buildListTable(spec QuerySpec, view RecordView, measure, unit string) *TableData {
	table := &TableData{Title: spec.Title, Columns: []Column{}, Rows: [][]string{}}
	if view.Len() == 0 {
		return table
	}

	dimKeys := view.DimensionKeys()
	var mesKeys []string
	for _, k := range view.MeasureKeys() {
		if k != RecordCountMeasure {
			mesKeys = append(mesKeys, k)
		}
	}
	if measure != RecordCountMeasure && !hasKey(mesKeys, measure) {
		mesKeys = append(mesKeys, measure)
	}

	for _, key := range dimKeys {
		table.Columns = append(table.Columns, Column{Key: key, Label: LabelForDimension(key), Type: "text", Align: "left"})
	}
	for _, key := range mesKeys {
		table.Columns = append(table.Columns, Column{Key: key, Label: LabelForDimension(key), Type: "number", Align: "right"})
	}

	n := view.Len()
	if spec.Limit > 0 && spec.Limit < n {
		n = spec.Limit
	}

	totals := make(map[string]float64, len(mesKeys))
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(table.Columns))
		for _, key := range dimKeys {
			row = append(row, view.Dimension(i, key))
		}
		for _, key := range mesKeys {
			v := view.Measure(i, key)
			if math.IsNaN(v) {
				row = append(row, "")
				continue
			}
			totals[key] += v
			row = append(row, FormatNumber(v))
		}
		table.Rows = append(table.Rows, row)
	}

	if measure != RecordCountMeasure {
		table.Summary = &Summary{
			Label:  fmt.Sprintf("Total (%s records)", FormatInt(n)),
			Values: map[string]string{measure: FormatCurrency(totals[measure], unit)},
		}
	}
	return table
}

// ============================================================================
// AGGREGATED TABLE — one row per group (and sub-group)
// ============================================================================

func buildAggregatedTable(spec QuerySpec, groups []Group, unit string) *TableData {
	table := &TableData{Title: spec.Title, Columns: []Column{}, Rows: [][]string{}}
	if len(groups) == 0 {
		return table
	}

	groupLabel := "Group"
	if len(spec.GroupBy) > 0 {
		groupLabel = LabelForDimension(spec.GroupBy[0])
	}
	nested := len(spec.GroupBy) >= 2 && hasSubGroups(groups)

	table.Columns = append(table.Columns, Column{Key: "group", Label: groupLabel, Type: "text", Align: "left"})
	if nested {
		table.Columns = append(table.Columns, Column{Key: "subgroup", Label: LabelForDimension(spec.GroupBy[1]), Type: "text", Align: "left"})
	}
	table.Columns = append(table.Columns,
		Column{Key: "value", Label: LabelForAggregation(spec.Aggregation), Type: "number", Align: "right"},
		Column{Key: "count", Label: "Count", Type: "number", Align: "center"},
	)

	format := func(v float64) string {
		if spec.Aggregation == AggCount {
			return strconv.Itoa(int(v))
		}
		return fmt.Sprintf("%.2f", v)
	}

	var totalValue float64
	var totalCount int
	for _, g := range groups {
		if nested {
			for _, sg := range g.SubGroups {
				table.Rows = append(table.Rows, []string{g.Label, sg.Label, format(sg.Value), strconv.Itoa(sg.Count)})
			}
		} else {
			table.Rows = append(table.Rows, []string{g.Label, format(g.Value), strconv.Itoa(g.Count)})
		}
		totalValue += g.Value
		totalCount += g.Count
	}

	values := map[string]string{"count": FormatInt(totalCount)}
	// totals are only meaningful for additive aggregations
	switch spec.Aggregation {
	case AggSum, "":
		values["value"] = FormatCurrency(totalValue, unit)
	case AggCount:
		values["value"] = FormatInt(int(totalValue))
	}
	table.Summary = &Summary{Label: "Total", Values: values}
	return table
}
