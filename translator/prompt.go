package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// ============================================================================
// PROMPT BUILDER — schema-driven system prompt
// ============================================================================
// Sections, in order:
//
//   header         sheet name, source file, row count, today's date
//   DATA MODEL     dimensions (with available values) and measures
//   HIERARCHIES    parent/child dimensions
//   UNAVAILABLE    columns discovery left out, with the reason
//   CURRENCY       only when conversion is enabled
//   FORMAT         response skeleton generated from Go types
//   RULES          field-by-field QuerySpec rules
//   EXAMPLES       translations built from this sheet's own keys
//
// Only metadata and distinct values are sent, never rows.
// ============================================================================

// BuildPrompt generates the system prompt for the translator.
func BuildPrompt(sch schema.Config, summary *DataSummary) string {
	p := &promptWriter{}

	p.header(sch, summary)
	p.dataModel(sch, summary)
	p.hierarchies(sch)
	p.unavailable(sch)
	p.currency(sch)
	p.responseFormat(sch)
	p.rules(sch)
	p.examples(sch)

	p.WriteByte('\n')
	p.line("Remember: you are a TRANSLATOR. Output structured instructions for the engine. Do NOT compute values.")
	return p.String()
}

type promptWriter struct {
	strings.Builder
}

func (p *promptWriter) line(format string, args ...any) {
	fmt.Fprintf(p, format, args...)
	p.WriteByte('\n')
}

// text writes s verbatim as one line.
func (p *promptWriter) text(s string) {
	p.WriteString(s)
	p.WriteByte('\n')
}

func (p *promptWriter) section(title string) {
	p.WriteByte('\n')
	p.line("%s:", title)
}

func (p *promptWriter) header(sch schema.Config, summary *DataSummary) {
	p.line(`You are a query translator for "%s", a spreadsheet uploaded to a data analysis application.`, sch.Name)
	if sch.DiscoveredFrom != "" {
		p.line("SOURCE: %s", sch.DiscoveredFrom)
	}
	if summary != nil {
		p.line("ROWS: %d", summary.RecordCount)
	}
	p.line("CURRENT DATE: %s", time.Now().Format("2006-01-02"))
	p.WriteByte('\n')
	p.line("YOUR ROLE:")
	p.line("Translate the user's question into a structured QuerySpec that a computation engine executes locally.")
	p.line("You never see the rows and must not compute any values.")
}

// dataModel lists every column the engine can use. Dimension values come
// from the data summary when it covers the dimension, else from discovery samples.
func (p *promptWriter) dataModel(sch schema.Config, summary *DataSummary) {
	p.section("DATA MODEL")
	p.line("DIMENSIONS (text columns for grouping and filtering):")
	for _, d := range sch.Dimensions {
		var b strings.Builder
		fmt.Fprintf(&b, "- %q", d.Key)
		if d.DisplayName != "" && d.DisplayName != d.Key {
			fmt.Fprintf(&b, " (%s)", d.DisplayName)
		}
		if d.Description != "" {
			b.WriteString(": " + d.Description)
		}

		values, truncated := d.SampleValues, false
		if summary != nil {
			if vals, ok := summary.Dimensions[d.Key]; ok && len(vals) > 0 {
				values = vals
				truncated = contains(summary.Truncated, d.Key)
			}
		}
		if len(values) > 0 {
			fmt.Fprintf(&b, " — values: [%s]", quoteAll(values))
			if truncated {
				b.WriteString(" (more exist)")
			}
		}
		if d.IsTemporal {
			b.WriteString(" [TEMPORAL")
			if d.TemporalFormat != "" {
				b.WriteString(", format " + d.TemporalFormat)
			}
			b.WriteString(" — use for time-based queries]")
		}
		if d.IsCurrencyCode {
			b.WriteString(" [CURRENCY CODE]")
		}
		if d.SortHint != "" {
			b.WriteString(" [order: " + d.SortHint + "]")
		}
		p.text(b.String())
	}

	p.WriteByte('\n')
	p.line("MEASURES (numeric columns for aggregation):")
	for _, m := range sch.Measures {
		var b strings.Builder
		fmt.Fprintf(&b, "- %q", m.Key)
		if m.DisplayName != "" && m.DisplayName != m.Key {
			fmt.Fprintf(&b, " (%s)", m.DisplayName)
		}
		if m.Description != "" {
			b.WriteString(": " + m.Description)
		}
		if m.Unit != "" {
			b.WriteString(" [unit: " + m.Unit + "]")
		}
		aggs := m.Aggregations
		if len(aggs) == 0 {
			aggs = []string{engine.AggSum, engine.AggAvg, engine.AggMedian, engine.AggMin, engine.AggMax, engine.AggCount}
		}
		b.WriteString(" — aggregations: [" + strings.Join(aggs, ", ") + "]")
		if m.DefaultAggregation != "" {
			b.WriteString(", default: " + m.DefaultAggregation)
		}
		if m.IsSynthetic {
			b.WriteString(" [one per row]")
		}
		p.text(b.String())
	}
}

func (p *promptWriter) hierarchies(sch schema.Config) {
	first := true
	for _, d := range sch.Dimensions {
		if d.Parent == "" {
			continue
		}
		if first {
			p.section("DIMENSION HIERARCHIES")
			first = false
		}
		p.line("- %q is a child of %q (filter the parent, then group by the child for a breakdown)", d.Key, d.Parent)
	}
}

func (p *promptWriter) unavailable(sch schema.Config) {
	if len(sch.SkippedColumns) == 0 {
		return
	}
	p.section("UNAVAILABLE COLUMNS (not in the data model, never use them)")
	for _, c := range sch.SkippedColumns {
		p.line("- %q: %s", c.Column, c.Reason)
	}
}

func (p *promptWriter) currency(sch schema.Config) {
	c := sch.Currency
	if c == nil || !c.Enabled {
		return
	}
	p.section("CURRENCY")
	p.line("Base currency: %s", c.BaseCurrency)
	p.line("Currency codes are stored in the %q dimension.", c.CodeDimension)
	p.line("When the question concerns one group with a single currency, filter by that currency.")
	p.line("Questions across groups are normalised to %s by the engine.", c.BaseCurrency)
}

// Response skeleton. Field order follows the JSON the parser expects.
type (
	promptResponse struct {
		Interpretation promptInterpretation `json:"interpretation"`
		QuerySpec      promptSpec           `json:"querySpec"`
	}
	promptInterpretation struct {
		VisualType  string              `json:"visualType"`
		Summary     string              `json:"summary"`
		Details     []map[string]string `json:"details"`
		Suggestions []map[string]string `json:"suggestions"`
		Confidence  float64             `json:"confidence"`
	}
	promptSpec struct {
		Intent         string                         `json:"intent"`
		Filters        map[string]map[string][]string `json:"filters"`
		CompareFilters any                            `json:"compareFilters"`
		Aggregation    string                         `json:"aggregation"`
		Measure        string                         `json:"measure"`
		GroupBy        []string                       `json:"groupBy"`
		SortBy         string                         `json:"sortBy"`
		Limit          int                            `json:"limit"`
		Visualize      string                         `json:"visualize"`
		Title          string                         `json:"title"`
		Reply          string                         `json:"reply"`
		Confidence     float64                        `json:"confidence"`
	}
)

var replyPlaceholders = []string{
	"total", "count", "period", "top_category", "top_amount", "avg", "median", "max", "min",
	"growth_percent", "change_amount", "direction", "earliest_value", "latest_value",
	"ratio_percent", "numerator_total", "denominator_total",
}

func (p *promptWriter) responseFormat(sch schema.Config) {
	dims := make(map[string][]string, len(sch.Dimensions))
	for _, d := range sch.Dimensions {
		dims[d.Key] = []string{}
	}
	placeholders := make([]string, len(replyPlaceholders))
	for i, ph := range replyPlaceholders {
		placeholders[i] = "{" + ph + "}"
	}

	skeleton := promptResponse{
		Interpretation: promptInterpretation{
			VisualType: "bar|line|pie|area|stacked_bar|table|text",
			Summary:    "One line describing what will be shown",
			Details: []map[string]string{
				{"label": "Data", "value": "Which rows and columns are used"},
				{"label": "Time Period", "value": "Period covered"},
				{"label": "Display", "value": "Chart, table or text"},
			},
			Suggestions: []map[string]string{{"label": "refinement label", "modifier": "text appended to the question"}},
			Confidence:  0.9,
		},
		QuerySpec: promptSpec{
			Intent:      "text|table|chart",
			Filters:     map[string]map[string][]string{"dimensions": dims},
			Aggregation: strings.Join(engine.Aggregations(), "|"),
			Measure:     sch.DefaultMeasureKey(),
			GroupBy:     []string{},
			SortBy:      "value_desc|value_asc|date_asc|date_desc|alpha_asc",
			Visualize:   "bar|line|pie|stacked_bar|area|table|text",
			Title:       "Chart or table title",
			Reply:       "Answer template using " + strings.Join(placeholders, ", "),
			Confidence:  0.9,
		},
	}
	b, _ := json.MarshalIndent(skeleton, "", "  ")

	p.section("RESPONSE FORMAT (always valid JSON, no markdown)")
	p.text(string(b))
}

type promptRule struct {
	field string
	lines []string
}

func (p *promptWriter) rules(sch schema.Config) {
	dimKeys := quoteAll(sch.DimensionKeys())
	temporal := sch.TemporalDimension()

	groupBy := []string{
		"Dimensions to group by: " + dimKeys,
		"[] means a single overall result; several keys give a multi-level breakdown",
	}
	if temporal != "" {
		groupBy = append(groupBy, fmt.Sprintf("%q is the time dimension: use it for trends, periods and growth, sorted with \"date_asc\"", temporal))
	}

	rules := []promptRule{
		{"intent", []string{
			`"text" for a single number: totals, counts, averages ("how much?", "how many?")`,
			`"table" for lists of rows or summary tables ("show all", "list")`,
			`"chart" for breakdowns and comparisons ("by X", "compare", "over time")`,
		}},
		{"filters", []string{
			"Keys are dimension names: " + dimKeys,
			"An empty array keeps every value of that dimension",
			"Values must be copied exactly from the listed dimension values",
			"Dimensions combine with AND, values within one dimension with OR",
		}},
		{"aggregation", []string{
			`"sum" total, the default for "how much"`,
			`"count" number of rows ("how many")`,
			`"avg" mean, "median" middle value, "max" largest, "min" smallest`,
			`"list" individual rows without aggregation, always with intent "table"`,
			`"growth" change from the earliest to the latest period ("trend", "increased", "insights")`,
			`"ratio" share of one subset in another ("what % of X was Y")`,
			`"none" pass-through`,
		}},
		{"measure", []string{"The numeric column to aggregate, from MEASURES"}},
		{"groupBy", groupBy},
		{"sortBy", []string{
			`"value_desc" highest first (default), "value_asc" lowest first`,
			`"date_asc" chronological, "date_desc" newest first, "alpha_asc" alphabetical`,
		}},
		{"limit", []string{"Maximum groups or rows to return, 0 for all"}},
		{"visualize", []string{
			`intent "chart": "bar", "line", "pie", "stacked_bar" or "area"`,
			`intent "table": "table"; intent "text": "text"`,
		}},
		{"reply", []string{
			"A sentence template. The engine fills the {placeholders} with computed values",
			"Growth uses {growth_percent}, {change_amount}, {earliest_value}, {latest_value}, {direction}",
			"Ratio uses {ratio_percent}, {numerator_total}, {denominator_total}",
		}},
	}

	p.section("QUERYSPEC RULES")
	for i, r := range rules {
		p.line("%d. %q", i+1, r.field)
		for _, l := range r.lines {
			p.line("   - %s", l)
		}
	}

	p.WriteByte('\n')
	p.line("RATIO QUESTIONS:")
	p.line(`- aggregation "ratio", intent "text"`)
	p.line(`- "filters" select the DENOMINATOR (the whole), "compareFilters" the NUMERATOR (the part)`)
	p.WriteByte('\n')
	p.line("IMPORTANT:")
	p.line("- Charts need at least one groupBy dimension")
	p.line(`- max or min without groupBy → intent "text"`)
	p.line("- If the question cannot be answered from these columns, say so in interpretation.summary and set confidence below 0.3")
}

// examples builds sample translations from this sheet's own keys.
func (p *promptWriter) examples(sch schema.Config) {
	if len(sch.Dimensions) == 0 || len(sch.Measures) == 0 {
		return
	}
	measure := sch.DefaultMeasureKey()
	temporal := sch.TemporalDimension()
	var cats []string
	for _, d := range sch.Dimensions {
		if d.Key != temporal {
			cats = append(cats, d.Key)
		}
	}

	p.section("EXAMPLE QUERY TRANSLATIONS")
	p.line(`- "total %s" → intent:"text", aggregation:"sum", measure:%q`, measure, measure)
	p.line(`- "median %s" → intent:"text", aggregation:"median", measure:%q`, measure, measure)
	p.line(`- "show all records" → intent:"table", aggregation:"list"`)
	if len(cats) > 0 {
		p.line(`- "%s by %s" → groupBy:[%q], intent:"chart", aggregation:"sum", measure:%q`, measure, cats[0], cats[0], measure)
		p.line(`- "top 5 %s" → groupBy:[%q], sortBy:"value_desc", limit:5`, cats[0], cats[0])
	}
	if len(cats) > 1 {
		p.line(`- "%s by %s and %s" → groupBy:[%q, %q], intent:"chart", visualize:"stacked_bar"`, measure, cats[0], cats[1], cats[0], cats[1])
	}
	if temporal != "" {
		p.line(`- "trend over time" → groupBy:[%q], intent:"chart", visualize:"line", sortBy:"date_asc"`, temporal)
		p.line(`- "has it increased?" → intent:"text", aggregation:"growth"`)
	}
}

func quoteAll(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
