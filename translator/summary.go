package translator

import (
	"sort"
	"strings"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// MaxSummaryValues caps the distinct values listed per dimension.
const MaxSummaryValues = 50

// DataSummary provides lightweight metadata about available data.
// This is what the model sees, never raw records.
type DataSummary struct {
	RecordCount int                 `json:"recordCount"`
	Dimensions  map[string][]string `json:"dimensions"`          // dimension key → distinct values
	Truncated   []string            `json:"truncated,omitempty"` // dimensions with more values than listed
}

// BuildDataSummary collects distinct values for every schema dimension.
// Temporal dimensions are listed chronologically, the rest alphabetically.
func BuildDataSummary(view engine.RecordView, sch schema.Config) *DataSummary {
	summary := &DataSummary{Dimensions: make(map[string][]string)}
	if view == nil {
		return summary
	}
	summary.RecordCount = view.Len()

	for _, d := range sch.Dimensions {
		seen := make(map[string]bool)
		vals := []string{}
		for i := 0; i < view.Len(); i++ {
			v := view.Dimension(i, d.Key)
			if v == "" || seen[v] {
				continue
			}
			if len(vals) == MaxSummaryValues {
				summary.Truncated = append(summary.Truncated, d.Key)
				break
			}
			seen[v] = true
			vals = append(vals, v)
		}

		if d.IsTemporal {
			sort.SliceStable(vals, func(i, j int) bool {
				return engine.ParseMonthOrder(vals[i]) < engine.ParseMonthOrder(vals[j])
			})
		} else {
			sort.Slice(vals, func(i, j int) bool {
				return strings.ToLower(vals[i]) < strings.ToLower(vals[j])
			})
		}
		summary.Dimensions[d.Key] = vals
	}
	return summary
}
