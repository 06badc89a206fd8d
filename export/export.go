// Package export writes answers and frames as CSV, Excel or PDF.
//
// Every format starts from Table, which flattens a result the same way:
// chart data first, then table data, then the text reply.
package export

import (
	"errors"
	"strings"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// ErrNothingToExport is returned for a nil result or table.
var ErrNothingToExport = errors.New("nothing to export")

// Formats lists the supported export formats with their content types.
var Formats = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pdf":  "application/pdf",
}

// Table flattens a result into rows.
//
// A single-series chart becomes label/value columns, a multi-series chart
// one column per series. A text result becomes a Summary/Value/Unit row.
func Table(result *engine.Result) *engine.TableData {
	if result == nil {
		return nil
	}
	if t := chartTable(result.ChartConfig); t != nil {
		return t
	}
	if t := result.TableData; t != nil && len(t.Columns) > 0 {
		return t
	}

	reply := result.Reply
	if reply == "" {
		reply = "No data"
	}
	value := ""
	if result.Data != nil {
		value = result.Data.Value
	}
	return &engine.TableData{
		Title: result.Title,
		Columns: []engine.Column{
			{Key: "summary", Label: "Summary", Type: "text", Align: "left"},
			{Key: "value", Label: "Value", Type: "text", Align: "right"},
			{Key: "unit", Label: "Unit", Type: "text", Align: "left"},
		},
		Rows: [][]string{{reply, value, result.DisplayUnit}},
	}
}

func chartTable(chart *engine.ChartConfig) *engine.TableData {
	if chart == nil || len(chart.Series) == 0 {
		return nil
	}
	xLabel, yLabel := chart.XAxis, chart.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	t := &engine.TableData{Title: chart.Title, Columns: []engine.Column{{Key: "label", Label: xLabel, Type: "text", Align: "left"}}}
	if len(chart.Series) == 1 {
		t.Columns = append(t.Columns, engine.Column{Key: "value", Label: yLabel, Type: "number", Align: "right"})
		for _, p := range chart.Series[0].Data {
			t.Rows = append(t.Rows, []string{p.Label, engine.FormatNumber(p.Value)})
		}
		return t
	}

	for i, s := range chart.Series {
		t.Columns = append(t.Columns, engine.Column{Key: "series_" + engine.FormatInt(i), Label: s.Name, Type: "number", Align: "right"})
	}
	for i, p := range chart.Series[0].Data {
		row := []string{p.Label}
		for _, s := range chart.Series {
			if i < len(s.Data) {
				row = append(row, engine.FormatNumber(s.Data[i].Value))
			} else {
				row = append(row, "")
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// headers returns column labels, falling back to keys.
func headers(t *engine.TableData) []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
		if out[i] == "" {
			out[i] = c.Key
		}
	}
	return out
}

// numberCell reads a formatted number such as "USD 1,200.50" or "12.5%".
func numberCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, " "); i >= 0 {
		s = s[i+1:]
	}
	return schema.ParseNumber(s)
}
