package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// DISCOVERY TESTS
// ============================================================================

var jiraCSV = []byte(`Issue Key,Summary,Status,Priority,Issue Type,Assignee,Component,Sprint,Story Points,Time Spent Hours,Created,Resolved
PROJ-101,Login timeout on mobile,In Progress,P1 - Critical,Bug,alice@corp.com,Backend,Sprint 17,5,12.5,2026-01-15,
PROJ-102,Dashboard crash on Safari,To Do,P2 - High,Bug,bob@corp.com,Frontend,Sprint 17,3,0,2026-01-16,
PROJ-103,Add dark mode toggle,Done,P3 - Medium,Story,charlie@corp.com,Frontend,Sprint 16,8,16,2026-01-10,2026-01-20
PROJ-104,Update user docs,In Review,P4 - Low,Task,alice@corp.com,Documentation,Sprint 17,2,4,2026-01-18,
PROJ-105,Payment fails with expired card,In Progress,P1 - Critical,Bug,dave@corp.com,Backend,Sprint 17,8,20,2026-01-12,
PROJ-106,Optimize DB queries,Done,P2 - High,Task,eve@corp.com,Backend,Sprint 16,5,10,2026-01-08,2026-01-15
PROJ-107,Mobile push notifications,To Do,P2 - High,Story,frank@corp.com,Mobile,Sprint 18,13,0,2026-01-20,
PROJ-108,Fix memory leak in worker,In Progress,P1 - Critical,Bug,alice@corp.com,Infrastructure,Sprint 17,5,8,2026-01-14,
PROJ-109,Redesign settings page,Done,P3 - Medium,Story,bob@corp.com,Frontend,Sprint 15,8,14,2026-01-05,2026-01-12
PROJ-110,API rate limiting,Done,P2 - High,Story,charlie@corp.com,Backend,Sprint 16,5,9,2026-01-09,2026-01-18
PROJ-111,Add export to CSV,To Do,P3 - Medium,Story,dave@corp.com,Backend,Sprint 18,3,0,2026-01-22,
PROJ-112,Update SSL certs,Done,P1 - Critical,Task,eve@corp.com,Infrastructure,Sprint 16,1,2,2026-01-07,2026-01-07
`)

var financeCSV = []byte(`Month,Location,Category,Field,Currency,Amount
Jan-2026,Singapore,Income,Salary,SGD,8500.00
Jan-2026,Singapore,Expense,Rent,SGD,2200.00
Jan-2026,Singapore,Expense,Groceries,SGD,450.00
Jan-2026,Singapore,Expense,Transport,SGD,120.00
Jan-2026,India,Income,Rental Income,INR,25000.00
Jan-2026,India,Expense,Property Tax,INR,5000.00
Feb-2026,Singapore,Income,Salary,SGD,8500.00
Feb-2026,Singapore,Expense,Rent,SGD,2200.00
Feb-2026,Singapore,Expense,Internet,SGD,49.90
Feb-2026,India,Transfer,ToIndia,INR,50000.00
`)

func TestDiscoverJiraCSV(t *testing.T) {
	cfg, err := DiscoverFromCSV(jiraCSV)
	require.NoError(t, err)

	dims := cfg.DimensionKeys()
	for _, key := range []string{"status", "priority", "issue_type", "assignee", "component", "sprint", "created", "resolved"} {
		assert.Contains(t, dims, key)
	}

	measures := cfg.MeasureKeys()
	assert.Contains(t, measures, "story_points")
	assert.Contains(t, measures, "time_spent_hours")
	assert.Contains(t, measures, RecordCountKey)
	assert.NotContains(t, dims, "story_points")

	var skipped []string
	for _, s := range cfg.SkippedColumns {
		skipped = append(skipped, s.Column)
	}
	assert.Contains(t, skipped, "Issue Key")
	assert.Contains(t, skipped, "Summary")

	points, ok := cfg.Measure("story_points")
	require.True(t, ok)
	assert.Equal(t, "points", points.Unit)
	assert.Equal(t, "avg", points.DefaultAggregation)

	hours, _ := cfg.Measure("time_spent_hours")
	assert.Equal(t, "hours", hours.Unit)

	created, _ := cfg.Dimension("created")
	assert.True(t, created.IsTemporal)
	assert.Equal(t, "created", cfg.TemporalDimension())

	sprint, _ := cfg.Dimension("sprint")
	assert.False(t, sprint.IsTemporal, "Sprint 17 is not a calendar period")

	assert.Equal(t, 12, cfg.RowCount)
	assert.Equal(t, "CSV", cfg.DiscoveredFrom)
}

func TestDiscoverFinanceCSV(t *testing.T) {
	cfg, err := DiscoverFromCSV(financeCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"month", "location", "category", "field", "currency"}, cfg.DimensionKeys())
	assert.Equal(t, []string{"amount", RecordCountKey}, cfg.MeasureKeys())
	assert.Equal(t, "amount", cfg.DefaultMeasureKey())

	amount, _ := cfg.Measure("amount")
	assert.Equal(t, "currency", amount.Unit)
	assert.True(t, amount.IsCurrency)
	assert.Equal(t, "sum", amount.DefaultAggregation)

	require.NotNil(t, cfg.Currency)
	assert.True(t, cfg.Currency.Enabled)
	assert.Equal(t, "currency", cfg.Currency.CodeDimension)
	assert.Equal(t, "INR", cfg.Currency.BaseCurrency)

	month, _ := cfg.Dimension("month")
	assert.True(t, month.IsTemporal)

	field, _ := cfg.Dimension("field")
	assert.Equal(t, "category", field.Parent)
}

func TestDiscoverWithRecovery(t *testing.T) {
	opts := DefaultDiscoverOptions()
	opts.RecoverColumns = []string{"Summary"}

	cfg, err := DiscoverFromCSV(jiraCSV, opts)
	require.NoError(t, err)

	assert.Contains(t, cfg.DimensionKeys(), "summary")
	for _, s := range cfg.SkippedColumns {
		assert.NotEqual(t, "Summary", s.Column)
	}
}

func TestDiscoverFromRowsErrors(t *testing.T) {
	_, err := DiscoverFromRows(nil, [][]string{{"1"}})
	assert.ErrorIs(t, err, ErrNoColumns)

	_, err = DiscoverFromRows([]string{"A"}, nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestDiscoverYearColumn(t *testing.T) {
	headers := []string{"Year", "Region", "Sales"}
	rows := [][]string{
		{"2023", "North", "100"},
		{"2023", "South", "120"},
		{"2024", "North", "130"},
		{"2024", "South", "90"},
		{"2025", "North", "150"},
	}
	cfg, err := DiscoverFromRows(headers, rows)
	require.NoError(t, err)

	year, ok := cfg.Dimension("year")
	require.True(t, ok)
	assert.True(t, year.IsTemporal)
	assert.Equal(t, "yyyy", year.TemporalFormat)

	sales, ok := cfg.Measure("sales")
	require.True(t, ok)
	assert.Equal(t, "currency", sales.Unit)
}

func TestDiscoverAllNullColumnSkipped(t *testing.T) {
	cfg, err := DiscoverFromRows([]string{"Name", "Notes"}, [][]string{{"a", ""}, {"b", "N/A"}})
	require.NoError(t, err)
	require.Len(t, cfg.SkippedColumns, 1)
	assert.Equal(t, "Notes", cfg.SkippedColumns[0].Column)
	assert.Equal(t, "notes", cfg.SkippedColumns[0].Key)
}

// ============================================================================
// HELPERS
// ============================================================================

func TestColumnKeys(t *testing.T) {
	got := ColumnKeys([]string{"Amount", "amount", "", " Unit Price", "Sub-Category"})
	assert.Equal(t, []string{"amount", "amount_2", "column_3", "unit_price", "sub_category"}, got)
}

func TestSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Issue Key", "issue_key"},
		{"Story Points", "story_points"},
		{"storyPoints", "story_points"},
		{"Sub-Category", "sub_category"},
		{"Time Spent (hours)", "time_spent_(hours)"},
		{"already_snake", "already_snake"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, toSnakeCase(tt.input), tt.input)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"story_points", "Story Points"},
		{"Issue Type", "Issue Type"},
		{"assignee", "Assignee"},
		{"élan", "Élan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, toDisplayName(tt.input), tt.input)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234.56", 1234.56, true},
		{"$12", 12, true},
		{"(40)", -40, true},
		{"12.5%", 12.5, true},
		{"-3", -3, true},
		{" 7 ", 7, true},
		{"abc", 0, false},
		{"", 0, false},
		{"$", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindNumber, DetectKind([]string{"1", "2", "3.5", ""}))
	assert.Equal(t, KindBool, DetectKind([]string{"true", "false", "yes"}))
	assert.Equal(t, KindDate, DetectKind([]string{"2026-01-02", "2026-02-03", "1/15/2026"}))
	assert.Equal(t, KindText, DetectKind([]string{"a", "b", "3"}))
	assert.Equal(t, KindText, DetectKind([]string{"", "N/A"}))
	assert.Equal(t, "number", KindNumber.String())
}

func TestDetectUnit(t *testing.T) {
	tests := []struct {
		header string
		values []string
		want   string
	}{
		{"Annual Salary", []string{"100"}, "currency"},
		{"Bonus Percent", []string{"15.0"}, "percent"},
		{"Discount", []string{"10%", "5%"}, "percent"},
		{"Total", []string{"$5", "$6"}, "currency"},
		{"Quantity", []string{"2"}, "units"},
		{"Widgets", []string{"5"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectUnit(tt.header, tt.values), tt.header)
	}
}

func TestCurrencyCodeDetection(t *testing.T) {
	tests := []struct {
		samples  []string
		expected bool
	}{
		{[]string{"SGD", "INR", "USD"}, true},
		{[]string{"Yes", "No", "Maybe"}, false},
		{[]string{"ABC", "DEF", "GHI"}, false},
		{[]string{"SGD", "NotCurrency"}, false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, detectCurrencyCodes(tt.samples), "%v", tt.samples)
	}
}

func TestTemporalDetection(t *testing.T) {
	tests := []struct {
		samples    []string
		isTemporal bool
	}{
		{[]string{"Jan-2026", "Feb-2026", "Mar-2026"}, true},
		{[]string{"2025-01", "2025-02", "2025-03"}, true},
		{[]string{"Q1-2026", "Q2-2026"}, true},
		{[]string{"2024", "2025", "2026"}, true},
		{[]string{"Sprint 15", "Sprint 16", "Sprint 17"}, false},
		{[]string{"Backend", "Frontend", "Mobile"}, false},
	}
	for _, tt := range tests {
		got, _ := detectTemporalPattern(tt.samples)
		assert.Equal(t, tt.isTemporal, got, "%v", tt.samples)
	}
}
