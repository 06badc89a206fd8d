package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

func TestBuildPrompt(t *testing.T) {
	sch := salesSchema()
	sch.DiscoveredFrom = "sales.xlsx"
	sch.Currency = &schema.CurrencyConfig{Enabled: true, CodeDimension: "currency", BaseCurrency: "SGD"}
	sch.SkippedColumns = []schema.SkippedColumn{{Column: "Notes", Reason: "free text"}}

	prompt := BuildPrompt(sch, &DataSummary{
		RecordCount: 3,
		Dimensions:  map[string][]string{"region": {"North"}},
		Truncated:   []string{"region"},
	})

	assert.Contains(t, prompt, `You are a query translator for "Sales"`)
	assert.Contains(t, prompt, "SOURCE: sales.xlsx\nROWS: 3\n")
	assert.Contains(t, prompt, "\nDATA MODEL:\n")
	assert.Contains(t, prompt, `- "region" (Region) — values: ["North"] (more exist)`+"\n")
	assert.Contains(t, prompt, `- "month" (Month) — values: ["Jan-2026", "Feb-2026"] [TEMPORAL — use for time-based queries]`)
	assert.Contains(t, prompt, `- "revenue" (Revenue) [unit: currency] — aggregations: [sum, avg, median, min, max, count], default: sum`)
	assert.Contains(t, prompt, `[one per row]`)
	assert.Contains(t, prompt, `"product" is a child of "region"`)
	assert.Contains(t, prompt, `- "Notes": free text`)
	assert.Contains(t, prompt, "Base currency: SGD")
	assert.Contains(t, prompt, `"measure": "revenue"`)
	assert.Contains(t, prompt, `"aggregation": "sum|count|avg|median|max|min|list|growth|ratio|none"`)
	assert.Contains(t, prompt, `"region": []`)
	assert.Contains(t, prompt, `1. "intent"`)
	assert.Contains(t, prompt, `- "median revenue" → intent:"text", aggregation:"median"`)
	assert.Contains(t, prompt, `- "revenue by region and product" → groupBy:["region", "product"]`)
	assert.Contains(t, prompt, `- "trend over time" → groupBy:["month"]`)
}

func TestBuildPromptWithoutSummaryOrDimensions(t *testing.T) {
	prompt := BuildPrompt(schema.Config{Name: "Empty"}, nil)
	assert.Contains(t, prompt, "DATA MODEL")
	assert.NotContains(t, prompt, "ROWS:")
	assert.NotContains(t, prompt, "EXAMPLE QUERY TRANSLATIONS")
	assert.NotContains(t, prompt, "DIMENSION HIERARCHIES")
	assert.NotContains(t, prompt, "UNAVAILABLE COLUMNS")
	assert.NotContains(t, prompt, "CURRENCY:")
}

func TestBuildDataSummary(t *testing.T) {
	view := engine.NewColumnView(4).
		AddDimension("month", []string{"Feb-2026", "Jan-2026", "Feb-2026", "Mar-2026"}).
		AddDimension("region", []string{"South", "east", "", "North"}).
		AddDimension("secret", []string{"a", "b", "c", "d"}).
		AddMeasure("revenue", []float64{1, 2, 3, 4})

	summary := BuildDataSummary(view, salesSchema())
	assert.Equal(t, 4, summary.RecordCount)
	assert.Equal(t, []string{"Jan-2026", "Feb-2026", "Mar-2026"}, summary.Dimensions["month"])
	assert.Equal(t, []string{"east", "North", "South"}, summary.Dimensions["region"])
	assert.Empty(t, summary.Dimensions["product"])
	assert.NotContains(t, summary.Dimensions, "secret", "only schema dimensions are summarised")
	assert.Empty(t, summary.Truncated)
}

func TestBuildDataSummaryCapsValues(t *testing.T) {
	ids := make([]string, MaxSummaryValues+10)
	for i := range ids {
		ids[i] = engine.FormatInt(i + 1000)
	}
	view := engine.NewColumnView(len(ids)).AddDimension("region", ids)

	summary := BuildDataSummary(view, salesSchema())
	require.Len(t, summary.Dimensions["region"], MaxSummaryValues)
	assert.Equal(t, []string{"region"}, summary.Truncated)

	empty := BuildDataSummary(nil, salesSchema())
	assert.Equal(t, 0, empty.RecordCount)
	assert.Empty(t, empty.Dimensions)
}
