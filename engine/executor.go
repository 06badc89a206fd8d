package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ============================================================================
// EXECUTOR — dispatcher and placeholder resolution
// ============================================================================
// Pipeline:
//   1. Apply filters from QuerySpec
//   2. Convert to the base currency when several currencies are present
//   3. Group and aggregate
//   4. Dispatch to the chart / table / text builder
//   5. Resolve reply template placeholders
//
// Nothing here calls a language model. Every number is computed locally.
// ============================================================================

// Execute runs a QuerySpec against a RecordView and returns a render-ready Result.
func Execute(spec QuerySpec, view RecordView, opts ...Option) (*Result, error) {
	cfg := applyOptions(opts)
	log := cfg.Logger

	measure := spec.Measure
	if measure == "" {
		measure = cfg.DefaultMeasure
	}

	if view.Len() == 0 {
		return &Result{Success: true, Type: IntentText, Reply: "No data available to analyze."}, nil
	}

	log.Debug("executing query",
		zap.Int("records", view.Len()),
		zap.String("intent", spec.Intent),
		zap.String("visualize", spec.Visualize),
		zap.String("aggregation", spec.Aggregation),
		zap.String("measure", measure))

	if spec.Aggregation == AggRatio && spec.CompareFilters != nil {
		return executeRatio(spec, view, measure, cfg), nil
	}

	filtered := ApplyFilters(view, spec.Filters)
	if filtered.Len() == 0 {
		return &Result{
			Success:   true,
			Type:      IntentText,
			Reply:     "No records match your query filters. Try broadening your search.",
			QuerySpec: &spec,
		}, nil
	}
	log.Debug("filtered records", zap.Int("kept", filtered.Len()), zap.Int("total", view.Len()))

	displayUnit := cfg.BaseCurrency
	needsConversion := false
	if cfg.BaseCurrency != "" && cfg.CurrencyDimension != "" && len(cfg.ExchangeRates) > 0 {
		displayUnit, needsConversion = detectDisplayCurrency(filtered, cfg.CurrencyDimension, cfg.BaseCurrency)
		if needsConversion {
			log.Debug("normalising currencies", zap.String("base", cfg.BaseCurrency))
			filtered = newCurrencyView(filtered, measure, cfg.CurrencyDimension, cfg.BaseCurrency, cfg.ExchangeRates)
			displayUnit = cfg.BaseCurrency
		}
	}
	if displayUnit == "" {
		displayUnit = inferUnit(filtered, cfg.CurrencyDimension)
	}

	groups := GroupAndAggregate(filtered, GroupSpec{
		GroupBy:     spec.GroupBy,
		Measure:     measure,
		Aggregation: spec.Aggregation,
		SortBy:      spec.SortBy,
		Limit:       spec.Limit,
		Temporal:    cfg.TemporalDimension,
	})

	result := &Result{
		Success:       true,
		Title:         spec.Title,
		DisplayUnit:   displayUnit,
		ShouldConvert: needsConversion,
		QuerySpec:     &spec,
	}

	b := builder{spec: spec, view: filtered, measure: measure, unit: displayUnit, temporal: cfg.TemporalDimension}

	switch spec.Intent {
	case IntentChart:
		result.Type = IntentChart
		result.ChartConfig = BuildChart(spec, groups)
		if result.ChartConfig == nil {
			result.Type = IntentText
			result.Reply = "Not enough data to generate a chart."
			return result, nil
		}
	case IntentTable:
		result.Type = IntentTable
		result.TableData = BuildTable(spec, groups, filtered, measure, displayUnit)
	default:
		result.Type = IntentText
		result.Data = b.text()
		if g := result.Data.Growth; spec.Aggregation == AggGrowth && g != nil && g.Direction == "insufficient data" {
			result.Reply = fmt.Sprintf("Your data shows %s for %s. Need at least 2 periods of data to show trends.",
				result.Data.Value, result.Data.Period)
			return result, nil
		}
	}

	result.Reply = b.resolve(spec.Reply, groups)
	if result.Data != nil {
		result.Summary = result.Data.Value
	}
	return result, nil
}

// ============================================================================
// RATIO
// ============================================================================

func executeRatio(spec QuerySpec, view RecordView, measure string, cfg *config) *Result {
	denominator := ApplyFilters(view, spec.Filters)
	numerator := ApplyFilters(view, *spec.CompareFilters)

	denomSum := SumMeasure(denominator, measure)
	numSum := SumMeasure(numerator, measure)

	var pct float64
	if denomSum != 0 {
		pct = numSum / denomSum * 100
	}

	unit := cfg.BaseCurrency
	if unit == "" {
		unit = inferUnit(denominator, cfg.CurrencyDimension)
	}

	numLabel := buildFilterLabel(spec.CompareFilters)
	denomLabel := buildFilterLabel(&spec.Filters)
	display := fmt.Sprintf("%.1f%%", pct)
	period := DerivePeriod(newConcatView(denominator, numerator), cfg.TemporalDimension)

	reply := spec.Reply
	if reply == "" {
		reply = "{numerator_label} is {ratio_percent} of {denominator_label}."
	}
	reply = strings.NewReplacer(
		"{ratio_percent}", display,
		"{numerator_total}", FormatCurrency(numSum, unit),
		"{denominator_total}", FormatCurrency(denomSum, unit),
		"{numerator_label}", numLabel,
		"{denominator_label}", denomLabel,
		"{period}", period,
		"{total}", FormatCurrency(numSum, unit),
	).Replace(reply)

	cfg.Logger.Debug("ratio computed",
		zap.String("numerator", numLabel),
		zap.String("denominator", denomLabel),
		zap.Float64("percent", pct))

	return &Result{
		Success:     true,
		Type:        IntentText,
		Title:       spec.Title,
		Reply:       stripUnresolvedPlaceholders(reply),
		Summary:     display,
		DisplayUnit: unit,
		QuerySpec:   &spec,
		Data: &TextData{
			Value:    display,
			RawValue: pct,
			Unit:     unit,
			Period:   period,
			Count:    numerator.Len() + denominator.Len(),
			Ratio: &RatioData{
				NumeratorTotal:   numSum,
				DenominatorTotal: denomSum,
				Percentage:       pct,
				NumeratorLabel:   numLabel,
				DenominatorLabel: denomLabel,
			},
		},
	}
}

// ============================================================================
// PLACEHOLDER RESOLUTION
// ============================================================================

// builder carries what the text builder and placeholder resolver share.
type builder struct {
	spec     QuerySpec
	view     RecordView
	measure  string
	unit     string
	temporal string
}

func (b builder) resolve(template string, groups []Group) string {
	if template == "" {
		return b.defaultReply()
	}

	total := SumMeasure(b.view, b.measure)
	count := b.view.Len()

	replacements := []string{
		"{total}", FormatCurrency(total, b.unit),
		"{count}", strconv.Itoa(count),
		"{period}", DerivePeriod(b.view, b.temporal),
		"{currency}", b.unit,
		"{measure}", LabelForDimension(b.measure),
	}

	if len(groups) > 0 {
		top := groups[0]
		for _, g := range groups[1:] {
			if g.Value > top.Value {
				top = g
			}
		}
		replacements = append(replacements,
			"{top_category}", top.Label,
			"{top_amount}", FormatCurrency(top.Value, b.unit))
	}

	if count > 0 {
		replacements = append(replacements,
			"{avg}", FormatCurrency(total/float64(count), b.unit),
			"{median}", FormatCurrency(MedianMeasure(b.view, b.measure), b.unit),
			"{max}", FormatCurrency(MaxMeasure(b.view, b.measure), b.unit),
			"{min}", FormatCurrency(MinMeasure(b.view, b.measure), b.unit))
	}

	if g := b.growth().Growth; g != nil {
		replacements = append(replacements,
			"{growth_percent}", fmt.Sprintf("%.1f%%", g.ChangePercent),
			"{change_amount}", FormatCurrency(g.ChangeAmount, b.unit),
			"{earliest_value}", FormatCurrency(g.EarliestValue, b.unit),
			"{latest_value}", FormatCurrency(g.LatestValue, b.unit),
			"{earliest_period}", g.EarliestPeriod,
			"{latest_period}", g.LatestPeriod,
			"{direction}", g.Direction)
	}

	return stripUnresolvedPlaceholders(strings.NewReplacer(replacements...).Replace(template))
}

// ResolvePlaceholders substitutes computed values into a reply template.
func ResolvePlaceholders(template string, groups []Group, view RecordView, measure, unit, temporal string) string {
	b := builder{view: view, measure: measure, unit: unit, temporal: temporal}
	return b.resolve(template, groups)
}

func (b builder) defaultReply() string {
	if b.view.Len() == 0 {
		return "No matching records found."
	}
	if b.measure == RecordCountMeasure {
		return fmt.Sprintf("Found %s records.", FormatInt(b.view.Len()))
	}
	return fmt.Sprintf("Found %s records with a %s of %s.",
		FormatInt(b.view.Len()),
		strings.ToLower(LabelForAggregation(AggSum)+" "+LabelForDimension(b.measure)),
		FormatCurrency(SumMeasure(b.view, b.measure), b.unit))
}

var placeholderRegex = regexp.MustCompile(`\{[a-z_]+\}`)

func stripUnresolvedPlaceholders(text string) string {
	cleaned := placeholderRegex.ReplaceAllString(text, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimRight(cleaned, " —-–")
	if cleaned == "" {
		return text
	}
	return cleaned
}

// ============================================================================
// QUERYSPEC NORMALIZATION
// ============================================================================

// NormalizeQuerySpec applies deterministic fixes to a model-produced spec.
// When measures is non-empty, a measure outside it is cleared so Execute
// falls back to the default measure.
func NormalizeQuerySpec(spec QuerySpec, measures ...string) QuerySpec {
	spec.Intent = strings.ToLower(strings.TrimSpace(spec.Intent))
	spec.Aggregation = strings.ToLower(strings.TrimSpace(spec.Aggregation))
	if spec.Aggregation == "average" || spec.Aggregation == "mean" {
		spec.Aggregation = AggAvg
	}

	switch spec.Intent {
	case IntentText, IntentTable, IntentChart:
	default:
		spec.Intent = IntentText
	}

	if spec.Aggregation == AggList && spec.Intent != IntentTable {
		spec.Intent = IntentTable
		spec.Visualize = "table"
	}

	if spec.Intent == IntentChart && len(spec.GroupBy) == 0 {
		spec.Intent = IntentText
		spec.Visualize = "text"
	}

	if (spec.Aggregation == AggMax || spec.Aggregation == AggMin) && len(spec.GroupBy) == 0 {
		spec.Intent = IntentText
		spec.Visualize = "text"
	}

	if spec.Measure != "" && len(measures) > 0 && !hasKey(measures, spec.Measure) && spec.Measure != RecordCountMeasure {
		spec.Measure = ""
	}

	if spec.Limit < 0 {
		spec.Limit = 0
	}
	return spec
}

// ============================================================================
// CURRENCY HELPERS
// ============================================================================

func detectDisplayCurrency(view RecordView, currencyDimension, baseCurrency string) (string, bool) {
	currencies := make(map[string]bool)
	for i := 0; i < view.Len(); i++ {
		if c := view.Dimension(i, currencyDimension); c != "" {
			currencies[c] = true
		}
	}
	if len(currencies) == 1 {
		for c := range currencies {
			return c, false
		}
	}
	if len(currencies) == 0 {
		return baseCurrency, false
	}
	return baseCurrency, true
}

func inferUnit(view RecordView, currencyDimension string) string {
	if currencyDimension == "" || view.Len() == 0 {
		return ""
	}
	return view.Dimension(0, currencyDimension)
}

// buildFilterLabel turns Filters into "North, South — Electronics".
func buildFilterLabel(f *Filters) string {
	if f == nil || f.IsEmpty() {
		return "All records"
	}
	dims := make([]string, 0, len(f.Dimensions))
	for dim := range f.Dimensions {
		dims = append(dims, dim)
	}
	sort.Strings(dims)

	var parts []string
	for _, dim := range dims {
		if vals := f.Dimensions[dim]; len(vals) > 0 {
			parts = append(parts, strings.Join(vals, ", "))
		}
	}
	return strings.Join(parts, " — ")
}
