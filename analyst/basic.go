package analyst

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/sheet"
)

// ============================================================================
// BASIC MODE — keyword rules evaluated in order, first match wins
// ============================================================================
//
//   average, mean        → mean of every numeric column
//   median               → median of every numeric column
//   sum                  → sum of every numeric column
//   count                → row count
//   describe             → count, mean, std, min, quartiles, max
//   unique + column name → distinct values of that column
//   correlation, corr    → Pearson matrix over complete rows
//   top, first + N       → first N rows (N in 1..20, default 5)
//   anything else        → first 5 rows
//
// Keywords match whole words, so "summary" does not trigger "sum".
// Missing cells are skipped by every statistic.
// ============================================================================

const (
	defaultHead = 5
	maxHead     = 20
)

func answerBasic(frame *sheet.Frame, question string) (*engine.Result, error) {
	lower := strings.ToLower(question)
	words := keywords(lower)
	has := func(keys ...string) bool {
		for _, k := range keys {
			if words[k] || words[k+"s"] {
				return true
			}
		}
		return false
	}

	switch {
	case has("average", "mean"):
		return columnStat(frame, "Mean", func(s engine.Stats, _ float64) float64 { return s.Mean }), nil
	case has("median"):
		return columnStat(frame, "Median", func(s engine.Stats, _ float64) float64 { return s.Median }), nil
	case has("sum"):
		return columnStat(frame, "Sum", func(_ engine.Stats, sum float64) float64 { return sum }), nil
	case has("count"):
		n := len(frame.Rows)
		return &engine.Result{
			Success: true,
			Type:    engine.IntentText,
			Title:   "Row count",
			Reply:   fmt.Sprintf("The dataset has %s rows.", engine.FormatInt(n)),
			Data:    &engine.TextData{Value: engine.FormatInt(n), RawValue: float64(n), Count: n},
		}, nil
	case has("describe"):
		var stats []engine.Stats
		for _, c := range numericColumns(frame) {
			s, _ := columnStats(frame, c)
			stats = append(stats, s)
		}
		table := engine.DescribeTable(stats, nil)
		return tableResult(table, fmt.Sprintf("Summary statistics for %d numeric columns.", len(stats))), nil
	case has("unique"):
		col := mentionedColumn(frame, lower)
		if col < 0 {
			return nil, ErrBasicQuery
		}
		return uniqueValues(frame, col), nil
	case has("correlation", "corr"):
		table := engine.Correlation(sheet.NumericView(frame))
		return tableResult(table, "Pearson correlation between numeric columns."), nil
	case has("top", "first"):
		n := headCount(lower)
		return tableResult(frame.HeadTable(n), fmt.Sprintf("First %d rows.", min(n, len(frame.Rows)))), nil
	default:
		return tableResult(frame.HeadTable(defaultHead), fmt.Sprintf("First %d rows.", min(defaultHead, len(frame.Rows)))), nil
	}
}

func keywords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	return words
}

// headCount reads the first whole number in s, clamped to 1..20.
func headCount(s string) int {
	for _, w := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) {
		n, err := strconv.Atoi(w)
		if err != nil {
			continue
		}
		return max(1, min(n, maxHead))
	}
	return defaultHead
}

// mentionedColumn returns the column whose header appears in s, preferring
// the longest header. It returns -1 when none does.
func mentionedColumn(frame *sheet.Frame, s string) int {
	best, bestLen := -1, 0
	for i, h := range frame.Headers {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || !strings.Contains(s, h) {
			continue
		}
		if len(h) > bestLen {
			best, bestLen = i, len(h)
		}
	}
	return best
}

func numericColumns(frame *sheet.Frame) []int {
	var cols []int
	for i, kind := range frame.ColumnKinds() {
		if kind == schema.KindNumber {
			cols = append(cols, i)
		}
	}
	return cols
}

// columnStats describes the present values of column c, keyed by its header.
func columnStats(frame *sheet.Frame, c int) (engine.Stats, float64) {
	var present []float64
	var sum float64
	for _, v := range frame.Floats(c) {
		if math.IsNaN(v) {
			continue
		}
		present = append(present, v)
		sum += v
	}
	view := engine.NewColumnView(len(present)).AddMeasure(frame.Headers[c], present)
	return engine.DescribeMeasure(view, frame.Headers[c]), sum
}

func columnStat(frame *sheet.Frame, label string, pick func(engine.Stats, float64) float64) *engine.Result {
	table := &engine.TableData{
		Title: label,
		Columns: []engine.Column{
			{Key: "column", Label: "Column", Type: "text", Align: "left"},
			{Key: "value", Label: label, Type: "number", Align: "right"},
		},
		Rows: [][]string{},
	}
	cols := numericColumns(frame)
	for _, c := range cols {
		s, sum := columnStats(frame, c)
		table.Rows = append(table.Rows, []string{frame.Headers[c], engine.FormatNumber(pick(s, sum))})
	}
	if len(cols) == 0 {
		return &engine.Result{Success: true, Type: engine.IntentText, Title: label, Reply: "The dataset has no numeric columns."}
	}
	return tableResult(table, fmt.Sprintf("%s of %d numeric columns.", label, len(cols)))
}

func uniqueValues(frame *sheet.Frame, c int) *engine.Result {
	header := frame.Headers[c]
	table := &engine.TableData{
		Title:   "Unique values of " + header,
		Columns: []engine.Column{{Key: "value", Label: header, Type: "text", Align: "left"}},
		Rows:    [][]string{},
	}
	seen := make(map[string]bool)
	for _, cell := range frame.Column(c) {
		if schema.IsNull(cell) || seen[cell] {
			continue
		}
		seen[cell] = true
		table.Rows = append(table.Rows, []string{cell})
	}
	return tableResult(table, fmt.Sprintf("%s has %d unique values.", header, len(table.Rows)))
}

func tableResult(table *engine.TableData, reply string) *engine.Result {
	return &engine.Result{
		Success:   true,
		Type:      engine.IntentTable,
		Title:     table.Title,
		Reply:     reply,
		TableData: table,
	}
}
