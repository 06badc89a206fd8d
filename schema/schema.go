package schema

// ============================================================================
// SCHEMA — the shape of a spreadsheet for the engine and the query delegate
// ============================================================================
// Discovered from the uploaded sheet (DiscoverFromRows), optionally enriched
// by Refine, or loaded from a JSON/YAML override (LoadFile).
// The translator builds prompts from it; the sheet package builds the
// engine's column view from it.
// ============================================================================

// RecordCountKey is the synthetic measure that counts rows.
const RecordCountKey = "record_count"

// Config describes the complete shape of a dataset.
type Config struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	RowCount    int    `json:"rowCount,omitempty"`

	Dimensions []DimensionMeta `json:"dimensions"`
	Measures   []MeasureMeta   `json:"measures"`

	Currency *CurrencyConfig `json:"currency,omitempty"`

	DiscoveredFrom string `json:"discoveredFrom,omitempty"`
	DiscoveredAt   string `json:"discoveredAt,omitempty"`
	RefinedAt      string `json:"refinedAt,omitempty"`
	RefinedBy      string `json:"refinedBy,omitempty"`

	SkippedColumns []SkippedColumn `json:"skippedColumns,omitempty"`
}

// DimensionMeta describes a string field used for grouping and filtering.
type DimensionMeta struct {
	Key             string   `json:"key"`
	Column          string   `json:"column,omitempty"` // source header
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description,omitempty"`
	SampleValues    []string `json:"sampleValues"`
	Groupable       bool     `json:"groupable"`
	Filterable      bool     `json:"filterable"`
	Parent          string   `json:"parent,omitempty"`
	IsTemporal      bool     `json:"isTemporal,omitempty"`
	TemporalFormat  string   `json:"temporalFormat,omitempty"`
	TemporalOrder   string   `json:"temporalOrder,omitempty"` // "chronological" or "reverse"
	IsCurrencyCode  bool     `json:"isCurrencyCode,omitempty"`
	CardinalityHint string   `json:"cardinalityHint,omitempty"` // "low", "medium", "high"
	SortHint        string   `json:"sortHint,omitempty"`        // "P1 > P2 > P3"
}

// MeasureMeta describes a numeric field used for aggregation.
type MeasureMeta struct {
	Key                string   `json:"key"`
	Column             string   `json:"column,omitempty"`
	DisplayName        string   `json:"displayName"`
	Description        string   `json:"description,omitempty"`
	Unit               string   `json:"unit,omitempty"` // "currency", "units", "hours", "points", "percent"
	IsCurrency         bool     `json:"isCurrency,omitempty"`
	IsSynthetic        bool     `json:"isSynthetic,omitempty"`
	Aggregations       []string `json:"aggregations,omitempty"`
	DefaultAggregation string   `json:"defaultAggregation,omitempty"`
	Format             string   `json:"format,omitempty"`
}

// CurrencyConfig enables multi-currency normalisation.
type CurrencyConfig struct {
	Enabled       bool               `json:"enabled"`
	CodeDimension string             `json:"codeDimension"`
	BaseCurrency  string             `json:"baseCurrency"`
	Rates         map[string]float64 `json:"rates"` // foreign → base
}

// SkippedColumn records why a column was left out of the schema.
type SkippedColumn struct {
	Column      string `json:"column"`
	Key         string `json:"key,omitempty"`
	Reason      string `json:"reason"`
	Recoverable bool   `json:"recoverable"`
}

// DefaultDimension creates a DimensionMeta with sensible defaults.
func DefaultDimension(key, displayName string, samples []string) DimensionMeta {
	return DimensionMeta{
		Key:          key,
		DisplayName:  displayName,
		SampleValues: samples,
		Groupable:    true,
		Filterable:   true,
	}
}

// DefaultMeasure creates a MeasureMeta with sensible defaults.
func DefaultMeasure(key, displayName string) MeasureMeta {
	return MeasureMeta{
		Key:                key,
		DisplayName:        displayName,
		Aggregations:       []string{"sum", "avg", "median", "min", "max", "count"},
		DefaultAggregation: "sum",
	}
}

// DefaultMeasureKey returns the first real measure, or the record count.
func (c Config) DefaultMeasureKey() string {
	for _, m := range c.Measures {
		if !m.IsSynthetic {
			return m.Key
		}
	}
	return RecordCountKey
}

// DimensionKeys returns all dimension keys.
func (c Config) DimensionKeys() []string {
	keys := make([]string, len(c.Dimensions))
	for i, d := range c.Dimensions {
		keys[i] = d.Key
	}
	return keys
}

// MeasureKeys returns all measure keys.
func (c Config) MeasureKeys() []string {
	keys := make([]string, len(c.Measures))
	for i, m := range c.Measures {
		keys[i] = m.Key
	}
	return keys
}

// Measure looks up a measure by key.
func (c Config) Measure(key string) (MeasureMeta, bool) {
	for _, m := range c.Measures {
		if m.Key == key {
			return m, true
		}
	}
	return MeasureMeta{}, false
}

// Dimension looks up a dimension by key.
func (c Config) Dimension(key string) (DimensionMeta, bool) {
	for _, d := range c.Dimensions {
		if d.Key == key {
			return d, true
		}
	}
	return DimensionMeta{}, false
}

// TemporalDimension returns the first temporal dimension key, or "".
func (c Config) TemporalDimension() string {
	for _, d := range c.Dimensions {
		if d.IsTemporal {
			return d.Key
		}
	}
	return ""
}
