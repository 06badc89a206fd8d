package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildChartMultiSeries(t *testing.T) {
	spec := QuerySpec{Intent: IntentChart, GroupBy: []string{"month", "category"}, SortBy: "chronological", Visualize: "stacked_bar"}
	groups := GroupAndAggregate(ledgerView(), GroupSpec{GroupBy: spec.GroupBy, Measure: "amount", SortBy: spec.SortBy})

	chart := BuildChart(spec, groups)
	require.NotNil(t, chart)
	assert.Equal(t, "stacked_bar", chart.ChartType)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, "Expense", chart.Series[0].Name, "series are named in sorted order")
	assert.Equal(t, "Income", chart.Series[1].Name)
	assert.Equal(t, []ChartPoint{{"Jan-2026", 100}, {"Feb-2026", 80}, {"Mar-2026", 70}}, chart.Series[0].Data)
	assert.Equal(t, []ChartPoint{{"Jan-2026", 100}, {"Feb-2026", 150}, {"Mar-2026", 200}}, chart.Series[1].Data)
	assert.Len(t, chart.Colors, 2)
}

func TestBuildChartPie(t *testing.T) {
	spec := QuerySpec{Intent: IntentChart, GroupBy: []string{"category"}, Visualize: "pie", Aggregation: AggCount}
	groups := GroupAndAggregate(ledgerView(), GroupSpec{GroupBy: spec.GroupBy, Aggregation: AggCount})

	chart := BuildChart(spec, groups)
	require.NotNil(t, chart)
	assert.False(t, chart.ShowGrid)
	assert.Equal(t, "Count", chart.Series[0].Name)
	assert.Equal(t, []ChartPoint{{"Income", 3}, {"Expense", 5}}, chart.Series[0].Data)

	assert.Nil(t, BuildChart(spec, nil))
}

func TestChartFromTable(t *testing.T) {
	table := &TableData{
		Columns: []Column{{Key: "region", Label: "Region"}, {Key: "sales", Label: "Sales", Type: "number"}},
		Rows:    [][]string{{"North", "USD 1,200.50"}, {"South", "300"}, {"short"}},
	}
	chart := ChartFromTable(table, 1)
	require.NotNil(t, chart)
	assert.Equal(t, "Sales by Region", chart.Title)
	assert.Equal(t, []ChartPoint{{"North", 1200.5}, {"South", 300}}, chart.Series[0].Data)

	assert.Nil(t, ChartFromTable(table, 0))
	assert.Nil(t, ChartFromTable(nil, 1))
}

func TestBuildTableNested(t *testing.T) {
	spec := QuerySpec{Intent: IntentTable, GroupBy: []string{"region", "category"}, Aggregation: AggAvg}
	groups := GroupAndAggregate(ledgerView(), GroupSpec{GroupBy: spec.GroupBy, Measure: "amount", Aggregation: AggAvg, SortBy: "label_asc"})

	table := BuildTable(spec, groups, ledgerView(), "amount", "")
	assert.Equal(t, []string{"group", "subgroup", "value", "count"}, columnKeys(table))
	assert.Equal(t, "Average", table.Columns[2].Label)
	assert.Equal(t, []string{"North", "Income", "150.00", "3"}, table.Rows[0])
	assert.Equal(t, []string{"North", "Expense", "60.00", "1"}, table.Rows[1])
	_, hasValue := table.Summary.Values["value"]
	assert.False(t, hasValue, "averages are not totalled")
}
