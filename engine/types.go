package engine

// ============================================================================
// ENGINE TYPES
// ============================================================================
// The engine computes every number shown to the user. It receives a QuerySpec
// from the translator (or from basic mode) and reads rows through RecordView.
// ============================================================================

// Intents.
const (
	IntentText  = "text"
	IntentTable = "table"
	IntentChart = "chart"
)

// Aggregations.
const (
	AggSum    = "sum"
	AggCount  = "count"
	AggAvg    = "avg"
	AggMedian = "median"
	AggMax    = "max"
	AggMin    = "min"
	AggList   = "list"
	AggGrowth = "growth"
	AggRatio  = "ratio"
	AggNone   = "none"
)

// Aggregations lists every aggregation the engine accepts.
func Aggregations() []string {
	return []string{AggSum, AggCount, AggAvg, AggMedian, AggMax, AggMin, AggList, AggGrowth, AggRatio, AggNone}
}

// Record is a single data row with string dimensions and numeric measures.
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// ============================================================================
// QUERYSPEC — contract between translator and engine
// ============================================================================

// QuerySpec defines what the engine should compute.
type QuerySpec struct {
	Intent         string   `json:"intent"`                   // "text", "table", "chart"
	Filters        Filters  `json:"filters"`                  // Which records to include
	CompareFilters *Filters `json:"compareFilters,omitempty"` // Ratio numerator
	Aggregation    string   `json:"aggregation"`              // see Agg* constants
	Measure        string   `json:"measure"`                  // empty → default measure
	GroupBy        []string `json:"groupBy"`                  // ["region"], ["category", "region"]
	SortBy         string   `json:"sortBy"`                   // "value_desc", "value_asc", "date_asc", "date_desc", "alpha_asc"
	Limit          int      `json:"limit"`                    // 0 = all
	Visualize      string   `json:"visualize"`                // "bar", "line", "pie", "stacked_bar", "area", "table", "text"
	Title          string   `json:"title"`
	Reply          string   `json:"reply"`      // "Total revenue was {total} across {count} rows."
	Confidence     float64  `json:"confidence"` // 0.0–1.0
}

// ============================================================================
// RESULT — render-ready output
// ============================================================================

// Result is the engine's render-ready output.
type Result struct {
	Success bool   `json:"success"`
	Type    string `json:"type"` // "chart", "table", "text"
	Reply   string `json:"reply"`
	Title   string `json:"title"`
	Summary string `json:"summary"`

	// Exactly one of these is populated based on Type.
	ChartConfig *ChartConfig `json:"chartConfig,omitempty"`
	TableData   *TableData   `json:"tableData,omitempty"`
	Data        *TextData    `json:"data,omitempty"`

	DisplayUnit   string   `json:"displayUnit,omitempty"`
	ShouldConvert bool     `json:"shouldConvert"`
	Errors        []string `json:"errors,omitempty"`

	QuerySpec      *QuerySpec      `json:"querySpec,omitempty"`
	Interpretation *Interpretation `json:"interpretation,omitempty"`
}

// Group is an intermediate grouped/aggregated result.
type Group struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Value     float64    `json:"value"`
	Count     int        `json:"count"`
	SubGroups []Group    `json:"subGroups,omitempty"`
	View      RecordView `json:"-"`
}

// ============================================================================
// CHART TYPES
// ============================================================================

// ChartConfig defines how to render a chart.
type ChartConfig struct {
	ChartType  string        `json:"chartType"`
	Title      string        `json:"title"`
	XAxis      string        `json:"xAxis,omitempty"`
	YAxis      string        `json:"yAxis,omitempty"`
	Series     []ChartSeries `json:"series"`
	Colors     []string      `json:"colors,omitempty"`
	ShowLegend bool          `json:"showLegend"`
	ShowGrid   bool          `json:"showGrid"`
}

// ChartSeries is a named data series.
type ChartSeries struct {
	Name  string       `json:"name"`
	Data  []ChartPoint `json:"data"`
	Color string       `json:"color,omitempty"`
}

// ChartPoint is a single labelled value.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number", "currency"
	Align string `json:"align"` // "left", "center", "right"
}

// Summary is a totals row for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}

// NumericColumns returns the indexes of number-typed columns.
func (t *TableData) NumericColumns() []int {
	if t == nil {
		return nil
	}
	var idx []int
	for i, c := range t.Columns {
		if c.Type == "number" || c.Type == "currency" {
			idx = append(idx, i)
		}
	}
	return idx
}

// ============================================================================
// TEXT TYPES
// ============================================================================

// TextData is the payload for type="text" answers.
type TextData struct {
	Value    string      `json:"value"`
	RawValue float64     `json:"rawValue"`
	Unit     string      `json:"unit"`
	Period   string      `json:"period"`
	Count    int         `json:"count"`
	Growth   *GrowthData `json:"growth,omitempty"`
	Ratio    *RatioData  `json:"ratio,omitempty"`
}

// GrowthData contains change-over-time metrics.
type GrowthData struct {
	EarliestValue  float64 `json:"earliestValue"`
	LatestValue    float64 `json:"latestValue"`
	EarliestPeriod string  `json:"earliestPeriod"`
	LatestPeriod   string  `json:"latestPeriod"`
	ChangeAmount   float64 `json:"changeAmount"`
	ChangePercent  float64 `json:"changePercent"`
	Direction      string  `json:"direction"` // "increased", "decreased", "unchanged", "insufficient data"
}

// RatioData contains a part-of-whole comparison.
type RatioData struct {
	NumeratorTotal   float64 `json:"numeratorTotal"`
	DenominatorTotal float64 `json:"denominatorTotal"`
	Percentage       float64 `json:"percentage"`
	NumeratorLabel   string  `json:"numeratorLabel"`
	DenominatorLabel string  `json:"denominatorLabel"`
}

// ============================================================================
// INTERPRETATION
// ============================================================================

// Interpretation describes what the model understood from the question.
type Interpretation struct {
	VisualType  string                `json:"visualType"`
	Summary     string                `json:"summary"`
	Details     []InterpretDetail     `json:"details"`
	Suggestions []InterpretSuggestion `json:"suggestions,omitempty"`
	Confidence  float64               `json:"confidence"`
}

// InterpretDetail is a label-value pair.
type InterpretDetail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// InterpretSuggestion is a refinement option.
type InterpretSuggestion struct {
	Label    string `json:"label"`
	Modifier string `json:"modifier"`
}
