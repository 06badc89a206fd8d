package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is a bucketed point in time derived from a temporal dimension value.
type Period struct {
	Label string
	Order int // yyyymm, sortable
}

var quarterPattern = regexp.MustCompile(`^Q([1-4])[\s-](\d{4})$`)

// day-level formats are bucketed to months
var dayFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var monthFormats = []string{
	"Jan-2006",
	"2006-01",
	"January 2006",
	"Jan 2006",
}

// ParsePeriod interprets a temporal dimension value.
// Day-level dates collapse to their month; quarters and years keep their own label.
func ParsePeriod(s string) (Period, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Period{}, false
	}
	for _, f := range monthFormats {
		if t, err := time.Parse(f, s); err == nil {
			return Period{Label: s, Order: t.Year()*100 + int(t.Month())}, true
		}
	}
	for _, f := range dayFormats {
		if t, err := time.Parse(f, s); err == nil {
			return Period{Label: t.Format("Jan-2006"), Order: t.Year()*100 + int(t.Month())}, true
		}
	}
	if m := quarterPattern.FindStringSubmatch(s); m != nil {
		q, _ := strconv.Atoi(m[1])
		y, _ := strconv.Atoi(m[2])
		return Period{Label: fmt.Sprintf("Q%d-%d", q, y), Order: y*100 + q*3}, true
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y > 1000 {
			return Period{Label: s, Order: y * 100}, true
		}
	}
	return Period{}, false
}

// ParseMonthOrder converts "Jan-2026" (or any period value) to a sortable int (202601).
func ParseMonthOrder(s string) int {
	p, ok := ParsePeriod(s)
	if !ok {
		return 0
	}
	return p.Order
}
