package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ============================================================================
// FIXTURES
// ============================================================================

// ledgerView is an 8-row income/expense sheet over three months.
//
//	month     region  category  amount
//	Jan-2026  North   Income    100
//	Jan-2026  South   Expense    40
//	Jan-2026  North   Expense    60
//	Feb-2026  North   Income    150
//	Feb-2026  South   Expense    50
//	Feb-2026  West    Expense    30
//	Mar-2026  North   Income    200
//	Mar-2026  South   Expense    70
func ledgerView() *ColumnView {
	return NewColumnView(8).
		AddDimension("month", []string{"Jan-2026", "Jan-2026", "Jan-2026", "Feb-2026", "Feb-2026", "Feb-2026", "Mar-2026", "Mar-2026"}).
		AddDimension("region", []string{"North", "South", "North", "North", "South", "West", "North", "South"}).
		AddDimension("category", []string{"Income", "Expense", "Expense", "Income", "Expense", "Expense", "Income", "Expense"}).
		AddMeasure("amount", []float64{100, 40, 60, 150, 50, 30, 200, 70})
}

func ledgerOpts(t *testing.T) []Option {
	return []Option{
		WithDefaultMeasure("amount"),
		WithTemporalDimension("month"),
		WithLogger(zaptest.NewLogger(t)),
	}
}

// ============================================================================
// TEXT
// ============================================================================

func TestExecuteTotal(t *testing.T) {
	result, err := Execute(QuerySpec{Intent: IntentText, Aggregation: AggSum}, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, IntentText, result.Type)
	require.NotNil(t, result.Data)
	assert.InDelta(t, 700, result.Data.RawValue, 1e-9)
	assert.Equal(t, "700.00", result.Data.Value)
	assert.Equal(t, "700.00", result.Summary)
	assert.Equal(t, 8, result.Data.Count)
	assert.Equal(t, "Jan-2026 – Mar-2026", result.Data.Period)
	assert.Equal(t, "Found 8 records with a total amount of 700.00.", result.Reply)
}

func TestExecuteAggregations(t *testing.T) {
	tests := []struct {
		aggregation string
		want        float64
		value       string
	}{
		{AggSum, 700, "700.00"},
		{AggAvg, 87.5, "87.50"},
		{AggMedian, 65, "65.00"},
		{AggMax, 200, "200.00"},
		{AggMin, 30, "30.00"},
		{AggCount, 8, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.aggregation, func(t *testing.T) {
			result, err := Execute(QuerySpec{Intent: IntentText, Aggregation: tt.aggregation, Measure: "amount"}, ledgerView(), ledgerOpts(t)...)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, result.Data.RawValue, 1e-9)
			assert.Equal(t, tt.value, result.Data.Value)
		})
	}
}

func TestExecuteRecordCount(t *testing.T) {
	result, err := Execute(QuerySpec{Intent: IntentText, Measure: RecordCountMeasure}, ledgerView())
	require.NoError(t, err)
	assert.Equal(t, "8", result.Data.Value)
	assert.Equal(t, "Found 8 records.", result.Reply)
	assert.Equal(t, "All time", result.Data.Period, "no temporal dimension configured")
}

func TestExecuteFilters(t *testing.T) {
	spec := QuerySpec{
		Intent:      IntentText,
		Aggregation: AggSum,
		Filters:     Filters{Dimensions: map[string][]string{"category": {" income "}}},
		Reply:       "Income was {total} across {count} rows ({period}).",
	}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)
	assert.InDelta(t, 450, result.Data.RawValue, 1e-9)
	assert.Equal(t, "Income was 450.00 across 3 rows (Jan-2026 – Mar-2026).", result.Reply)
}

func TestExecuteNoMatches(t *testing.T) {
	spec := QuerySpec{Intent: IntentChart, GroupBy: []string{"region"}, Filters: Filters{Dimensions: map[string][]string{"region": {"East"}}}}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)
	assert.Equal(t, IntentText, result.Type)
	assert.Equal(t, "No records match your query filters. Try broadening your search.", result.Reply)
	assert.Nil(t, result.ChartConfig)
}

func TestExecuteEmptyView(t *testing.T) {
	result, err := Execute(QuerySpec{Intent: IntentTable}, NewColumnView(0))
	require.NoError(t, err)
	assert.Equal(t, "No data available to analyze.", result.Reply)
}

func TestExecutePlaceholders(t *testing.T) {
	spec := QuerySpec{
		Intent:      IntentText,
		Aggregation: AggSum,
		GroupBy:     []string{"region"},
		Reply:       "Total {total} over {count} records, top {top_category} {top_amount}, median {median}{unknown} done.",
	}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)
	assert.Equal(t, "Total 700.00 over 8 records, top North 510.00, median 65.00 done.", result.Reply)
}

// ============================================================================
// CHART / TABLE
// ============================================================================

func TestExecuteChart(t *testing.T) {
	spec := QuerySpec{Intent: IntentChart, Aggregation: AggSum, GroupBy: []string{"region"}, SortBy: "value_desc", Visualize: "donut", Title: "By region"}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	require.Equal(t, IntentChart, result.Type)
	chart := result.ChartConfig
	require.NotNil(t, chart)
	assert.Equal(t, "bar", chart.ChartType, "unknown chart types fall back to bar")
	assert.Equal(t, "Region", chart.XAxis)
	assert.Equal(t, "Total", chart.YAxis)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, []ChartPoint{{"North", 510}, {"South", 160}, {"West", 30}}, chart.Series[0].Data)
	assert.Equal(t, []string{DefaultPalette[0]}, chart.Colors)
}

func TestExecuteAggregatedTable(t *testing.T) {
	spec := QuerySpec{Intent: IntentTable, Aggregation: AggSum, GroupBy: []string{"region"}}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	table := result.TableData
	require.NotNil(t, table)
	assert.Equal(t, []string{"group", "value", "count"}, columnKeys(table))
	assert.Equal(t, [][]string{
		{"North", "510.00", "4"},
		{"South", "160.00", "3"},
		{"West", "30.00", "1"},
	}, table.Rows)
	require.NotNil(t, table.Summary)
	assert.Equal(t, "700.00", table.Summary.Values["value"])
	assert.Equal(t, "8", table.Summary.Values["count"])
}

func TestExecuteListTable(t *testing.T) {
	spec := QuerySpec{Intent: IntentText, Aggregation: "LIST", Limit: 2}
	spec = NormalizeQuerySpec(spec)
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	require.Equal(t, IntentTable, result.Type)
	table := result.TableData
	assert.Equal(t, []string{"month", "region", "category", "amount"}, columnKeys(table))
	assert.Equal(t, [][]string{
		{"Jan-2026", "North", "Income", "100"},
		{"Jan-2026", "South", "Expense", "40"},
	}, table.Rows)
	assert.Equal(t, "Total (2 records)", table.Summary.Label)
	assert.Equal(t, "140.00", table.Summary.Values["amount"])
}

// ============================================================================
// RATIO / GROWTH
// ============================================================================

func TestExecuteRatio(t *testing.T) {
	spec := QuerySpec{
		Intent:         IntentText,
		Aggregation:    AggRatio,
		CompareFilters: &Filters{Dimensions: map[string][]string{"category": {"Income"}}},
	}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	assert.Equal(t, "64.3%", result.Summary)
	assert.Equal(t, "Income is 64.3% of All records.", result.Reply)
	require.NotNil(t, result.Data.Ratio)
	assert.InDelta(t, 450, result.Data.Ratio.NumeratorTotal, 1e-9)
	assert.InDelta(t, 700, result.Data.Ratio.DenominatorTotal, 1e-9)
	assert.Equal(t, "Jan-2026 – Mar-2026", result.Data.Period)
}

func TestExecuteGrowth(t *testing.T) {
	spec := QuerySpec{
		Intent:      IntentText,
		Aggregation: AggGrowth,
		Reply:       "Spending {direction} by {growth_percent} from {earliest_period} to {latest_period}.",
	}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)

	require.NotNil(t, result.Data.Growth)
	g := result.Data.Growth
	assert.Equal(t, "increased", g.Direction)
	assert.InDelta(t, 200, g.EarliestValue, 1e-9)
	assert.InDelta(t, 270, g.LatestValue, 1e-9)
	assert.InDelta(t, 70, g.ChangeAmount, 1e-9)
	assert.InDelta(t, 35, g.ChangePercent, 1e-9)
	assert.Equal(t, "↑ 35.0%", result.Data.Value)
	assert.Equal(t, "Spending increased by 35.0% from Jan-2026 to Mar-2026.", result.Reply)
}

func TestExecuteGrowthInsufficientData(t *testing.T) {
	spec := QuerySpec{
		Intent:      IntentText,
		Aggregation: AggGrowth,
		Filters:     Filters{Dimensions: map[string][]string{"month": {"Jan-2026"}}},
	}
	result, err := Execute(spec, ledgerView(), ledgerOpts(t)...)
	require.NoError(t, err)
	assert.Equal(t, "insufficient data", result.Data.Growth.Direction)
	assert.Equal(t, "Your data shows 200.00 for Jan-2026. Need at least 2 periods of data to show trends.", result.Reply)
}

func TestExecuteGrowthDecrease(t *testing.T) {
	view := NewColumnView(2).
		AddDimension("date", []string{"2025-01-10", "2026-03-02"}).
		AddMeasure("sales", []float64{400, 300})
	data := BuildText(QuerySpec{Aggregation: AggGrowth}, view, "sales", "", "date")
	assert.Equal(t, "decreased", data.Growth.Direction)
	assert.Equal(t, "↓ 25.0%", data.Value)
	assert.Equal(t, "Jan-2025 – Mar-2026", data.Period)
}

// ============================================================================
// CURRENCY
// ============================================================================

func currencyView() *ColumnView {
	return NewColumnView(3).
		AddDimension("currency", []string{"SGD", "INR", "SGD"}).
		AddMeasure("amount", []float64{100, 1000, 50})
}

func TestExecuteCurrencyConversion(t *testing.T) {
	opts := []Option{WithDefaultMeasure("amount"), WithCurrency("SGD", "currency", map[string]float64{"INR": 0.016})}

	result, err := Execute(QuerySpec{Intent: IntentText, Aggregation: AggSum}, currencyView(), opts...)
	require.NoError(t, err)
	assert.True(t, result.ShouldConvert)
	assert.Equal(t, "SGD", result.DisplayUnit)
	assert.Equal(t, "SGD 166.00", result.Data.Value)

	spec := QuerySpec{Intent: IntentText, Aggregation: AggSum, Filters: Filters{Dimensions: map[string][]string{"currency": {"INR"}}}}
	result, err = Execute(spec, currencyView(), opts...)
	require.NoError(t, err)
	assert.False(t, result.ShouldConvert)
	assert.Equal(t, "INR 1,000.00", result.Data.Value)
}

func TestCurrencyViewRewritesCode(t *testing.T) {
	v := newCurrencyView(currencyView(), "amount", "currency", "SGD", map[string]float64{"INR": 0.016})
	assert.Equal(t, "SGD", v.Dimension(1, "currency"))
	assert.InDelta(t, 16, v.Measure(1, "amount"), 1e-9)
	assert.InDelta(t, 100, v.Measure(0, "amount"), 1e-9)
}

// ============================================================================
// NORMALIZATION
// ============================================================================

func TestNormalizeQuerySpec(t *testing.T) {
	tests := []struct {
		name string
		in   QuerySpec
		want QuerySpec
	}{
		{"mean becomes avg", QuerySpec{Intent: "TEXT", Aggregation: "Mean"}, QuerySpec{Intent: IntentText, Aggregation: AggAvg}},
		{"unknown intent", QuerySpec{Intent: "graph"}, QuerySpec{Intent: IntentText}},
		{"list forces table", QuerySpec{Intent: IntentChart, Aggregation: AggList}, QuerySpec{Intent: IntentTable, Aggregation: AggList, Visualize: "table"}},
		{"chart without groups", QuerySpec{Intent: IntentChart, Visualize: "bar"}, QuerySpec{Intent: IntentText, Visualize: "text"}},
		{"max without groups", QuerySpec{Intent: IntentTable, Aggregation: AggMax}, QuerySpec{Intent: IntentText, Aggregation: AggMax, Visualize: "text"}},
		{"negative limit", QuerySpec{Intent: IntentText, Limit: -3}, QuerySpec{Intent: IntentText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuerySpec(tt.in))
		})
	}

	spec := NormalizeQuerySpec(QuerySpec{Intent: IntentText, Measure: "revenue"}, "amount")
	assert.Empty(t, spec.Measure, "unknown measure is cleared")
	spec = NormalizeQuerySpec(QuerySpec{Intent: IntentText, Measure: RecordCountMeasure}, "amount")
	assert.Equal(t, RecordCountMeasure, spec.Measure)
}

func TestBuildFilterLabel(t *testing.T) {
	assert.Equal(t, "All records", buildFilterLabel(nil))
	assert.Equal(t, "Income — North, South", buildFilterLabel(&Filters{Dimensions: map[string][]string{
		"region":   {"North", "South"},
		"category": {"Income"},
	}}))
}

func columnKeys(table *TableData) []string {
	keys := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		keys[i] = c.Key
	}
	return keys
}
