package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// ============================================================================
// AUTO-DISCOVERY — heuristic column classification
// ============================================================================
// Classification pipeline per column:
//   1. Sample values → detect kind (number, date, bool, text)
//   2. Header tokens → unit hints (currency, percent, hours, points, units)
//   3. Kind + cardinality + hints → role (dimension, measure, skip)
//   4. Pattern matching → temporal and currency-code dimensions
//   5. Synthetic record_count measure, hierarchies, currency config
// ============================================================================

var (
	// ErrNoColumns is returned when the header row is empty.
	ErrNoColumns = errors.New("dataset has no columns")
	// ErrNoRows is returned when there are no data rows under the header.
	ErrNoRows = errors.New("dataset has no data rows")
)

// DiscoverOptions controls discovery behavior.
type DiscoverOptions struct {
	SampleSize     int      // max rows to inspect (0 = all)
	RecoverColumns []string // force-include columns that were auto-skipped
	Name           string   // dataset name override
	Source         string   // recorded in DiscoveredFrom
}

// DefaultDiscoverOptions returns sensible defaults.
func DefaultDiscoverOptions() DiscoverOptions {
	return DiscoverOptions{SampleSize: 1000}
}

// DiscoverFromCSV reads CSV bytes and runs DiscoverFromRows on them.
func DiscoverFromCSV(data []byte, opts ...DiscoverOptions) (*Config, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Source == "" {
		opt.Source = "CSV"
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return DiscoverFromRows(headers, rows, opt)
}

// DiscoverFromRows generates a Config from a header row and data rows.
func DiscoverFromRows(headers []string, rows [][]string, opts ...DiscoverOptions) (*Config, error) {
	opt := DefaultDiscoverOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if len(headers) == 0 {
		return nil, ErrNoColumns
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	sample := rows
	if opt.SampleSize > 0 && len(sample) > opt.SampleSize {
		sample = sample[:opt.SampleSize]
	}

	keys := ColumnKeys(headers)
	columns := make([]columnAnalysis, len(headers))
	for i, header := range headers {
		columns[i] = analyzeColumn(header, keys[i], i, sample)
	}

	recoverSet := make(map[string]bool)
	for _, col := range opt.RecoverColumns {
		recoverSet[strings.ToLower(col)] = true
	}

	cfg := &Config{
		Name:           opt.Name,
		Version:        "1.0",
		RowCount:       len(rows),
		DiscoveredFrom: opt.Source,
		DiscoveredAt:   time.Now().Format(time.RFC3339),
	}
	if cfg.Name == "" {
		cfg.Name = "Auto-discovered Dataset"
	}

	for i := range columns {
		col := &columns[i]
		switch col.role {
		case roleDimension:
			cfg.Dimensions = append(cfg.Dimensions, col.toDimension())
		case roleMeasure:
			cfg.Measures = append(cfg.Measures, col.toMeasure())
		case roleSkipped:
			if recoverSet[strings.ToLower(col.header)] || recoverSet[col.key] {
				col.role = roleDimension
				cfg.Dimensions = append(cfg.Dimensions, col.toDimension())
				continue
			}
			cfg.SkippedColumns = append(cfg.SkippedColumns, SkippedColumn{
				Column:      col.header,
				Key:         col.key,
				Reason:      col.skipReason,
				Recoverable: col.recoverable,
			})
		}
	}

	cfg.Measures = append(cfg.Measures, MeasureMeta{
		Key:                RecordCountKey,
		DisplayName:        "Record Count",
		Description:        "Number of rows (auto-generated)",
		IsSynthetic:        true,
		Aggregations:       []string{"count"},
		DefaultAggregation: "count",
	})

	detectHierarchies(cfg.Dimensions, sample, columns)
	cfg.Currency = detectCurrencyConfig(cfg.Dimensions)
	return cfg, nil
}

// ColumnKeys converts headers to unique snake_case keys.
// Blank headers become column_N; repeats get a numeric suffix.
func ColumnKeys(headers []string) []string {
	keys := make([]string, len(headers))
	seen := make(map[string]int)
	for i, h := range headers {
		key := toSnakeCase(h)
		if key == "" {
			key = fmt.Sprintf("column_%d", i+1)
		}
		seen[key]++
		if n := seen[key]; n > 1 {
			key = fmt.Sprintf("%s_%d", key, n)
		}
		keys[i] = key
	}
	return keys
}

// ============================================================================
// COLUMN ANALYSIS
// ============================================================================

type columnRole int

const (
	roleDimension columnRole = iota
	roleMeasure
	roleSkipped
)

// Kind is the detected value type of a column.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "text"
	}
}

type columnAnalysis struct {
	header      string
	key         string
	index       int
	kind        Kind
	role        columnRole
	skipReason  string
	recoverable bool

	uniqueCount int
	totalCount  int
	nullCount   int
	sampleVals  []string

	isTemporal      bool
	temporalFormat  string
	isCurrencyCode  bool
	hasDecimals     bool
	unit            string
	cardinalityHint string
}

func analyzeColumn(header, key string, index int, rows [][]string) columnAnalysis {
	col := columnAnalysis{
		header:     header,
		key:        key,
		index:      index,
		totalCount: len(rows),
	}

	values := make([]string, 0, len(rows))
	uniqueSet := make(map[string]bool)
	for _, row := range rows {
		if index >= len(row) || IsNull(row[index]) {
			col.nullCount++
			continue
		}
		val := strings.TrimSpace(row[index])
		values = append(values, val)
		uniqueSet[val] = true
	}
	col.uniqueCount = len(uniqueSet)

	if len(values) == 0 {
		col.role = roleSkipped
		col.skipReason = "All values are empty/null"
		return col
	}

	col.sampleVals = collectSamples(uniqueSet, 10)
	col.kind = DetectKind(values)

	switch col.kind {
	case KindNumber:
		for _, v := range values {
			if strings.Contains(v, ".") {
				col.hasDecimals = true
				break
			}
		}
		col.unit = detectUnit(header, values)
		col.isTemporal = isYearColumn(header, values)
		if col.isTemporal {
			col.temporalFormat = "yyyy"
		}
	case KindText:
		col.isCurrencyCode = detectCurrencyCodes(col.sampleVals)
		col.isTemporal, col.temporalFormat = detectTemporalPattern(col.sampleVals)
	case KindDate:
		col.isTemporal = true
		col.temporalFormat = "date"
	}

	col.classifyRole(len(rows))

	switch {
	case col.uniqueCount <= 10:
		col.cardinalityHint = "low"
	case col.uniqueCount <= 100:
		col.cardinalityHint = "medium"
	default:
		col.cardinalityHint = "high"
	}
	return col
}

func (col *columnAnalysis) classifyRole(totalRows int) {
	tokens := headerTokens(col.header)

	switch col.kind {
	case KindNumber:
		if col.isTemporal {
			col.role = roleDimension
			return
		}
		if hasAnyToken(tokens, idTokens) {
			if col.uniqueCount == totalRows && totalRows > 10 {
				col.role = roleSkipped
				col.skipReason = "Unique per row — likely an ID column"
				return
			}
			col.role = roleDimension
			return
		}
		if col.unit != "" || col.hasDecimals {
			col.role = roleMeasure
			return
		}
		if col.uniqueCount == totalRows && totalRows > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an ID column"
			col.recoverable = true
			return
		}
		// few distinct integers relative to rows reads as a coded dimension (priority 1-5)
		ratio := float64(col.uniqueCount) / float64(totalRows)
		if col.uniqueCount < 20 && ratio < 0.3 {
			col.role = roleDimension
			return
		}
		col.role = roleMeasure

	case KindDate, KindBool:
		col.role = roleDimension

	default:
		if col.uniqueCount == totalRows && totalRows > 10 {
			col.role = roleSkipped
			col.skipReason = "Unique per row — likely an identifier"
			col.recoverable = true
			return
		}
		if col.uniqueCount > totalRows/2 && col.uniqueCount > 50 {
			col.role = roleSkipped
			col.skipReason = fmt.Sprintf("High cardinality (%d unique values) — not useful for grouping", col.uniqueCount)
			col.recoverable = true
			return
		}
		col.role = roleDimension
	}
}

// ============================================================================
// TYPE DETECTION
// ============================================================================

var nullTokens = map[string]bool{
	"": true, "null": true, "NULL": true, "N/A": true, "n/a": true, "NA": true, "NaN": true, "nan": true, "None": true, "-": true,
}

// IsNull reports whether a cell counts as missing.
func IsNull(s string) bool {
	return nullTokens[strings.TrimSpace(s)]
}

// DetectKind inspects non-null values; 80% must agree for number, date or bool.
func DetectKind(values []string) Kind {
	var n, numCount, dateCount, boolCount int
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		n++
		if _, ok := ParseNumber(v); ok {
			numCount++
		}
		if isDate(v) {
			dateCount++
		}
		if isBool(v) {
			boolCount++
		}
	}
	if n == 0 {
		return KindText
	}

	threshold := int(float64(n) * 0.8)
	if threshold == 0 {
		threshold = 1
	}
	switch {
	case boolCount >= threshold && boolCount > numCount-boolCount:
		return KindBool
	case dateCount >= threshold:
		return KindDate
	case numCount >= threshold:
		return KindNumber
	default:
		return KindText
	}
}

// ParseNumber reads spreadsheet-style numbers: "1,234.56", "$12", "(40)", "12.5%".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")
	for _, sym := range []string{"$", "€", "£", "¥", "₹"} {
		s = strings.TrimPrefix(s, sym)
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"Jan-2006",
	"January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

func isDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range dateFormats {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no", "1", "0":
		return true
	}
	return false
}

func isYearColumn(header string, values []string) bool {
	if !hasAnyToken(headerTokens(header), []string{"year", "fy"}) {
		return false
	}
	for _, v := range values {
		y, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || y < 1900 || y > 2100 {
			return false
		}
	}
	return true
}

// ============================================================================
// UNIT HINTS
// ============================================================================

var unitHints = []struct {
	unit   string
	tokens []string
}{
	{"percent", []string{"percent", "percentage", "pct", "ratio", "rate"}},
	{"hours", []string{"hour", "hours", "hrs", "hr"}},
	{"points", []string{"point", "points", "score", "rating"}},
	{"currency", []string{"price", "cost", "revenue", "salary", "amount", "sales", "income", "expense", "profit", "fee", "budget", "spend", "payment", "wage", "tax"}},
	{"units", []string{"quantity", "qty", "units", "unit", "count", "items"}},
}

var idTokens = []string{"id", "key", "code", "zip", "phone", "sku"}

func detectUnit(header string, values []string) string {
	var pct, money int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if strings.HasSuffix(v, "%") {
			pct++
		}
		if strings.ContainsAny(v, "$€£¥₹") {
			money++
		}
	}
	if pct*2 > len(values) {
		return "percent"
	}
	if money*2 > len(values) {
		return "currency"
	}

	tokens := headerTokens(header)
	for _, hint := range unitHints {
		if hasAnyToken(tokens, hint.tokens) {
			return hint.unit
		}
	}
	return ""
}

func headerTokens(header string) []string {
	return strings.FieldsFunc(strings.ToLower(header), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func hasAnyToken(tokens, want []string) bool {
	for _, t := range tokens {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// SPECIAL PATTERN DETECTION
// ============================================================================

// Known ISO 4217 currency codes (common subset).
var knownCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true,
	"INR": true, "SGD": true, "AUD": true, "CAD": true, "CHF": true,
	"HKD": true, "NZD": true, "SEK": true, "KRW": true, "NOK": true,
	"MXN": true, "BRL": true, "ZAR": true, "THB": true, "MYR": true,
	"IDR": true, "PHP": true, "VND": true, "TWD": true, "AED": true,
	"SAR": true, "QAR": true, "PLN": true, "CZK": true, "ILS": true,
	"DKK": true, "RUB": true, "TRY": true, "ARS": true, "CLP": true,
	"COP": true, "PEN": true, "EGP": true, "NGN": true, "KES": true,
	"PKR": true, "BDT": true, "LKR": true, "MMK": true, "NPR": true,
}

func detectCurrencyCodes(samples []string) bool {
	if len(samples) == 0 {
		return false
	}
	matches := 0
	for _, s := range samples {
		if knownCurrencies[strings.TrimSpace(s)] {
			matches++
		}
	}
	return matches > 0 && float64(matches)/float64(len(samples)) >= 0.8
}

var periodPatterns = []struct {
	re     *regexp.Regexp
	format string
}{
	{regexp.MustCompile(`^[A-Z][a-z]{2}-\d{4}$`), "MMM-yyyy"},
	{regexp.MustCompile(`^\d{4}-\d{2}$`), "yyyy-MM"},
	{regexp.MustCompile(`^Q[1-4]-\d{4}$`), "QN-yyyy"},
	{regexp.MustCompile(`^Q[1-4]\s+\d{4}$`), "QN yyyy"},
	{regexp.MustCompile(`^\d{4}$`), "yyyy"},
	{regexp.MustCompile(`^[A-Z][a-z]+ \d{4}$`), "MMMM yyyy"},
}

func detectTemporalPattern(samples []string) (bool, string) {
	if len(samples) == 0 {
		return false, ""
	}
	for _, p := range periodPatterns {
		matches := 0
		for _, s := range samples {
			if p.re.MatchString(strings.TrimSpace(s)) {
				matches++
			}
		}
		if float64(matches)/float64(len(samples)) >= 0.8 {
			return true, p.format
		}
	}
	return false, ""
}

// ============================================================================
// HIERARCHY DETECTION
// ============================================================================

// detectHierarchies marks A as parent of B when every B value maps to exactly
// one A value and A has fewer distinct values. The closest parent wins.
func detectHierarchies(dimensions []DimensionMeta, rows [][]string, columns []columnAnalysis) {
	index := make(map[string]int)
	uniques := make(map[string]int)
	for _, col := range columns {
		if col.role == roleDimension {
			index[col.key] = col.index
			uniques[col.key] = col.uniqueCount
		}
	}

	for i := range dimensions {
		child := dimensions[i].Key
		childIdx, ok := index[child]
		if !ok {
			continue
		}

		best, bestUniques := "", 0
		for j := range dimensions {
			parent := dimensions[j].Key
			parentIdx, ok := index[parent]
			if i == j || !ok || uniques[parent] >= uniques[child] {
				continue
			}
			if mapsToSingleParent(rows, childIdx, parentIdx) && uniques[parent] > bestUniques {
				best, bestUniques = parent, uniques[parent]
			}
		}
		if best != "" {
			dimensions[i].Parent = best
		}
	}
}

func mapsToSingleParent(rows [][]string, childIdx, parentIdx int) bool {
	seen := make(map[string]string)
	for _, row := range rows {
		if childIdx >= len(row) || parentIdx >= len(row) {
			continue
		}
		c, p := strings.TrimSpace(row[childIdx]), strings.TrimSpace(row[parentIdx])
		if c == "" || p == "" {
			continue
		}
		if existing, ok := seen[c]; ok && existing != p {
			return false
		}
		seen[c] = p
	}
	return len(seen) > 1
}

func detectCurrencyConfig(dimensions []DimensionMeta) *CurrencyConfig {
	for _, d := range dimensions {
		if !d.IsCurrencyCode {
			continue
		}
		base := ""
		if len(d.SampleValues) > 0 {
			base = d.SampleValues[0]
		}
		return &CurrencyConfig{
			Enabled:       true,
			CodeDimension: d.Key,
			BaseCurrency:  base,
			Rates:         map[string]float64{},
		}
	}
	return nil
}

// ============================================================================
// CONVERSION HELPERS
// ============================================================================

func (col *columnAnalysis) toDimension() DimensionMeta {
	d := DefaultDimension(col.key, toDisplayName(col.header), col.sampleVals)
	d.Column = col.header
	d.IsTemporal = col.isTemporal
	d.TemporalFormat = col.temporalFormat
	if col.isTemporal {
		d.TemporalOrder = "chronological"
	}
	d.IsCurrencyCode = col.isCurrencyCode
	d.CardinalityHint = col.cardinalityHint
	return d
}

func (col *columnAnalysis) toMeasure() MeasureMeta {
	m := DefaultMeasure(col.key, toDisplayName(col.header))
	m.Column = col.header
	m.Unit = col.unit
	m.IsCurrency = col.unit == "currency"
	switch col.unit {
	case "percent", "points":
		m.DefaultAggregation = "avg"
	}
	if col.unit == "percent" {
		m.Format = "0.0%"
	} else if col.hasDecimals || col.unit == "currency" {
		m.Format = "#,##0.00"
	}
	return m
}

// ============================================================================
// STRING UTILITIES
// ============================================================================

// toSnakeCase converts "Column Name" or "columnName" → "column_name".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteRune('_')
		}
		b.WriteRune(r)
	}

	out := strings.ToLower(b.String())
	out = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_").Replace(out)
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return strings.Trim(out, "_")
}

// toDisplayName cleans a header for display: "story_points" → "Story Points".
func toDisplayName(s string) string {
	if strings.Contains(s, " ") {
		return strings.TrimSpace(s)
	}
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// collectSamples returns up to max distinct values in sorted order.
func collectSamples(uniqueSet map[string]bool, max int) []string {
	samples := make([]string, 0, len(uniqueSet))
	for v := range uniqueSet {
		samples = append(samples, v)
	}
	sort.Strings(samples)
	if len(samples) > max {
		samples = samples[:max]
	}
	return samples
}
