package engine

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// AGGREGATORS — grouping, aggregation and sorting over RecordView
// ============================================================================

// GroupSpec parameterises GroupAndAggregate.
type GroupSpec struct {
	GroupBy     []string
	Measure     string
	Aggregation string
	SortBy      string
	Limit       int
	Temporal    string // dimension backing the virtual "year" / "period" keys
}

// GroupAndAggregate runs group → aggregate → sort → limit.
func GroupAndAggregate(view RecordView, gs GroupSpec) []Group {
	if view.Len() == 0 {
		return nil
	}

	var groups []Group
	switch len(gs.GroupBy) {
	case 0:
		groups = []Group{{Key: "all", Label: "Total", View: view}}
	case 1:
		groups = groupBySingle(view, gs.GroupBy[0], gs.Temporal)
	default:
		groups = groupBySingle(view, gs.GroupBy[0], gs.Temporal)
		for i := range groups {
			groups[i].SubGroups = groupBySingle(groups[i].View, gs.GroupBy[1], gs.Temporal)
		}
	}

	for i := range groups {
		aggregateGroup(&groups[i], gs.Measure, gs.Aggregation)
		for j := range groups[i].SubGroups {
			aggregateGroup(&groups[i].SubGroups[j], gs.Measure, gs.Aggregation)
		}
	}

	SortGroups(groups, gs.SortBy)

	if gs.Limit > 0 && len(groups) > gs.Limit {
		groups = groups[:gs.Limit]
	}
	return groups
}

func groupBySingle(view RecordView, dimension, temporal string) []Group {
	grouped := make(map[string][]int)
	var order []string

	for i := 0; i < view.Len(); i++ {
		key := dimensionValue(view, i, dimension, temporal)
		if _, exists := grouped[key]; !exists {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		label := key
		if label == "" {
			label = "(blank)"
		}
		groups = append(groups, Group{
			Key:   key,
			Label: label,
			View:  newSubView(view, grouped[key]),
		})
	}
	return groups
}

// dimensionValue reads a dimension, resolving the virtual "year" and "period"
// keys from the temporal dimension when the dataset has no such column.
func dimensionValue(view RecordView, i int, dimension, temporal string) string {
	if temporal != "" && !hasKey(view.DimensionKeys(), dimension) {
		switch dimension {
		case "year":
			if p, ok := ParsePeriod(view.Dimension(i, temporal)); ok {
				return strconv.Itoa(p.Order / 100)
			}
		case "period":
			if p, ok := ParsePeriod(view.Dimension(i, temporal)); ok {
				return p.Label
			}
		}
	}
	return view.Dimension(i, dimension)
}

func hasKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// ============================================================================
// AGGREGATION
// ============================================================================

func aggregateGroup(group *Group, measure, aggregation string) {
	group.Count = group.View.Len()
	if group.Count == 0 {
		return
	}
	switch aggregation {
	case AggCount:
		group.Value = float64(group.Count)
	case AggAvg:
		group.Value = AvgMeasure(group.View, measure)
	case AggMedian:
		group.Value = MedianMeasure(group.View, measure)
	case AggMax:
		group.Value = MaxMeasure(group.View, measure)
	case AggMin:
		group.Value = MinMeasure(group.View, measure)
	case AggNone:
	default:
		group.Value = SumMeasure(group.View, measure)
	}
}

// Missing measure cells are NaN and every aggregate below skips them.

// SumMeasure sums the present values of a measure.
func SumMeasure(view RecordView, measure string) float64 {
	var total float64
	for i := 0; i < view.Len(); i++ {
		if v := view.Measure(i, measure); !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// AvgMeasure is the mean of the present values of a measure.
func AvgMeasure(view RecordView, measure string) float64 {
	vals := measureValues(view, measure)
	if len(vals) == 0 {
		return 0
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals))
}

// MedianMeasure is the median of the present values of a measure.
func MedianMeasure(view RecordView, measure string) float64 {
	vals := measureValues(view, measure)
	if len(vals) == 0 {
		return 0
	}
	sort.Float64s(vals)
	return quantileSorted(vals, 0.5)
}

// MaxMeasure returns the largest present value, or 0 when there is none.
func MaxMeasure(view RecordView, measure string) float64 {
	vals := measureValues(view, measure)
	if len(vals) == 0 {
		return 0
	}
	return slices.Max(vals)
}

// MinMeasure returns the smallest present value, or 0 when there is none.
func MinMeasure(view RecordView, measure string) float64 {
	vals := measureValues(view, measure)
	if len(vals) == 0 {
		return 0
	}
	return slices.Min(vals)
}

func measureValues(view RecordView, measure string) []float64 {
	vals := make([]float64, 0, view.Len())
	for i := 0; i < view.Len(); i++ {
		if v := view.Measure(i, measure); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// quantileSorted uses linear interpolation between closest ranks, like pandas.
func quantileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// ============================================================================
// SORTING
// ============================================================================

// SortGroups sorts groups in place.
func SortGroups(groups []Group, sortBy string) {
	switch sortBy {
	case "value_desc", "amount_desc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value > groups[j].Value })
	case "value_asc", "amount_asc":
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].Value < groups[j].Value })
	case "chronological", "date_asc":
		sort.SliceStable(groups, func(i, j int) bool { return ParseMonthOrder(groups[i].Key) < ParseMonthOrder(groups[j].Key) })
	case "reverse_chronological", "date_desc":
		sort.SliceStable(groups, func(i, j int) bool { return ParseMonthOrder(groups[i].Key) > ParseMonthOrder(groups[j].Key) })
	case "label_asc", "alpha_asc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) < strings.ToLower(groups[j].Key) })
	case "label_desc":
		sort.SliceStable(groups, func(i, j int) bool { return strings.ToLower(groups[i].Key) > strings.ToLower(groups[j].Key) })
	}
}

// ============================================================================
// FORMATTING
// ============================================================================

// FormatCurrency formats an amount with an optional unit prefix and thousands separators.
func FormatCurrency(amount float64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	cents := int64(math.Round(amount * 100))
	s := FormatInt64(cents/100) + fmt.Sprintf(".%02d", cents%100)
	if currency != "" {
		s = currency + " " + s
	}
	if negative {
		s = "-" + s
	}
	return s
}

// FormatNumber prints whole numbers without decimals and others with two.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	return FormatInt64(int64(n))
}

// FormatInt64 formats an integer with comma separators.
func FormatInt64(n int64) string {
	if n < 0 {
		return "-" + FormatInt64(-n)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%s,%03d", FormatInt64(n/1000), n%1000)
}

// RoundTo2 rounds to 2 decimal places.
func RoundTo2(v float64) float64 {
	return math.Round(v*100) / 100
}

// UniqueValues returns distinct non-empty values of a dimension in first-seen order.
func UniqueValues(view RecordView, dimension string) []string {
	seen := make(map[string]bool)
	var result []string
	for i := 0; i < view.Len(); i++ {
		val := view.Dimension(i, dimension)
		if val != "" && !seen[val] {
			seen[val] = true
			result = append(result, val)
		}
	}
	return result
}

// LabelForDimension turns a key into a display label: "unit_price" → "Unit price".
func LabelForDimension(dimension string) string {
	if dimension == "" {
		return ""
	}
	s := strings.ReplaceAll(dimension, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// LabelForAggregation returns a display label for an aggregation.
func LabelForAggregation(aggregation string) string {
	switch aggregation {
	case AggSum:
		return "Total"
	case AggCount:
		return "Count"
	case AggAvg:
		return "Average"
	case AggMedian:
		return "Median"
	case AggMax:
		return "Maximum"
	case AggMin:
		return "Minimum"
	default:
		return "Value"
	}
}
