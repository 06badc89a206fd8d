package engine

import (
	"fmt"
	"math"
	"sort"
)

// ============================================================================
// TEXT BUILDER — single-value answers
// ============================================================================

// BuildText produces the text payload for a filtered view.
func BuildText(spec QuerySpec, view RecordView, measure, unit, temporal string) *TextData {
	return builder{spec: spec, view: view, measure: measure, unit: unit, temporal: temporal}.text()
}

func (b builder) text() *TextData {
	if b.view.Len() == 0 {
		return &TextData{Value: "0", Unit: b.unit, Period: "No data"}
	}

	var value float64
	switch b.spec.Aggregation {
	case AggCount:
		value = float64(b.view.Len())
	case AggAvg:
		value = AvgMeasure(b.view, b.measure)
	case AggMedian:
		value = MedianMeasure(b.view, b.measure)
	case AggMax:
		value = MaxMeasure(b.view, b.measure)
	case AggMin:
		value = MinMeasure(b.view, b.measure)
	case AggGrowth:
		return b.growth()
	default:
		value = SumMeasure(b.view, b.measure)
	}

	formatted := FormatCurrency(value, b.unit)
	if b.spec.Aggregation == AggCount || b.measure == RecordCountMeasure {
		formatted = FormatInt(int(value))
	}

	return &TextData{
		Value:    formatted,
		RawValue: value,
		Unit:     b.unit,
		Period:   DerivePeriod(b.view, b.temporal),
		Count:    b.view.Len(),
	}
}

// ============================================================================
// GROWTH
// ============================================================================

type periodTotal struct {
	period Period
	total  float64
}

// periodTotals sums a measure per period of the temporal dimension, oldest first.
func periodTotals(view RecordView, measure, temporal string) []periodTotal {
	if temporal == "" {
		return nil
	}
	byLabel := make(map[string]*periodTotal)
	for i := 0; i < view.Len(); i++ {
		p, ok := ParsePeriod(view.Dimension(i, temporal))
		if !ok {
			continue
		}
		pt, exists := byLabel[p.Label]
		if !exists {
			pt = &periodTotal{period: p}
			byLabel[p.Label] = pt
		}
		if v := view.Measure(i, measure); !math.IsNaN(v) {
			pt.total += v
		}
	}

	out := make([]periodTotal, 0, len(byLabel))
	for _, pt := range byLabel {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].period.Order == out[j].period.Order {
			return out[i].period.Label < out[j].period.Label
		}
		return out[i].period.Order < out[j].period.Order
	})
	return out
}

func (b builder) growth() *TextData {
	if b.view.Len() == 0 {
		return &TextData{Value: "No data", Unit: b.unit, Period: "No data"}
	}

	totals := periodTotals(b.view, b.measure, b.temporal)
	if len(totals) < 2 {
		total := SumMeasure(b.view, b.measure)
		period := DerivePeriod(b.view, b.temporal)
		return &TextData{
			Value:    FormatCurrency(total, b.unit),
			RawValue: total,
			Unit:     b.unit,
			Period:   period,
			Count:    b.view.Len(),
			Growth: &GrowthData{
				EarliestValue:  total,
				LatestValue:    total,
				EarliestPeriod: period,
				LatestPeriod:   period,
				Direction:      "insufficient data",
			},
		}
	}

	earliest, latest := totals[0], totals[len(totals)-1]
	change := latest.total - earliest.total
	var pct float64
	if earliest.total != 0 {
		pct = change / math.Abs(earliest.total) * 100
	}

	direction := "unchanged"
	display := "→ No change"
	switch {
	case pct > 0.5:
		direction = "increased"
		display = fmt.Sprintf("↑ %.1f%%", pct)
	case pct < -0.5:
		direction = "decreased"
		display = fmt.Sprintf("↓ %.1f%%", -pct)
	}

	return &TextData{
		Value:    display,
		RawValue: pct,
		Unit:     b.unit,
		Period:   earliest.period.Label + " – " + latest.period.Label,
		Count:    b.view.Len(),
		Growth: &GrowthData{
			EarliestValue:  earliest.total,
			LatestValue:    latest.total,
			EarliestPeriod: earliest.period.Label,
			LatestPeriod:   latest.period.Label,
			ChangeAmount:   change,
			ChangePercent:  pct,
			Direction:      direction,
		},
	}
}

// ============================================================================
// PERIOD
// ============================================================================

// DerivePeriod describes the time span covered by a view: "Jan-2026 – Mar-2026".
func DerivePeriod(view RecordView, temporal string) string {
	if view.Len() == 0 {
		return "No data"
	}
	totals := periodTotals(view, RecordCountMeasure, temporal)
	switch len(totals) {
	case 0:
		return "All time"
	case 1:
		return totals[0].period.Label
	default:
		return totals[0].period.Label + " – " + totals[len(totals)-1].period.Label
	}
}
