package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Smart refine asks a language model to name and describe a discovered
// schema. The model gets headers, roles, a handful of distinct dimension
// values and detection flags. Measure values and rows stay local, and the
// model can never change a key or a role.

// ErrRefineComplete is returned when RefineConfig has no Complete func.
var ErrRefineComplete = errors.New("a completion func is required for smart refine")

const maxRefineSamples = 5

// RefineConfig configures Refine.
type RefineConfig struct {
	// Complete sends the prompt through a model the caller already holds.
	Complete func(ctx context.Context, prompt string) (string, error)
	// Source is recorded in Config.RefinedBy.
	Source string
	Logger *zap.Logger
}

// Refine returns an enriched copy of draft and never mutates it.
// On a failed call or an unreadable reply it returns draft along with the error.
func Refine(ctx context.Context, draft *Config, cfg RefineConfig) (*Config, error) {
	if draft == nil {
		return nil, errors.New("draft schema is nil")
	}
	if cfg.Complete == nil {
		return nil, ErrRefineComplete
	}
	source := cfg.Source
	if source == "" {
		source = "delegate"
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	payload := buildRefinePayload(draft)
	prompt := buildRefinePrompt(payload)
	log.Info("smart refine",
		zap.String("source", source),
		zap.Int("columns", len(payload.Columns)),
		zap.Int("promptBytes", len(prompt)))

	reply, err := cfg.Complete(ctx, prompt)
	if err != nil {
		log.Warn("smart refine call failed, keeping draft", zap.Error(err))
		return draft, fmt.Errorf("smart refine AI call failed: %w", err)
	}
	enrichment, err := parseRefineResponse(reply)
	if err != nil {
		log.Warn("smart refine parse failed, keeping draft", zap.Error(err))
		return draft, fmt.Errorf("smart refine parse failed: %w", err)
	}

	refined := applyEnrichments(draft, enrichment)
	refined.RefinedBy = source
	log.Info("smart refine applied",
		zap.String("name", refined.Name),
		zap.Int("enrichments", len(enrichment.Enrichments)),
		zap.Int("hierarchies", len(enrichment.SuggestedHierarchies)))
	return refined, nil
}

// ============================================================================
// PAYLOAD
// ============================================================================

type refinePayload struct {
	Columns  []refineColumn `json:"columns"`
	RowCount int            `json:"rowCount"`
	Detected refineDetected `json:"detected"`
}

type refineColumn struct {
	Name           string   `json:"name"`
	Key            string   `json:"key"`
	Role           string   `json:"role"` // "dimension", "measure"
	Type           string   `json:"type"` // "string", "temporal", "numeric"
	Unit           string   `json:"unit,omitempty"`
	Samples        []string `json:"samples,omitempty"`
	Unique         int      `json:"unique,omitempty"`
	IsTemporal     bool     `json:"isTemporal,omitempty"`
	IsCurrencyCode bool     `json:"isCurrencyCode,omitempty"`
	Parent         string   `json:"parent,omitempty"`
}

type refineDetected struct {
	HasCurrency    bool     `json:"hasCurrency"`
	HasTemporal    bool     `json:"hasTemporal"`
	Hierarchies    []string `json:"hierarchies,omitempty"` // "child → parent"
	SkippedColumns []string `json:"skippedColumns,omitempty"`
}

func dimensionColumn(d DimensionMeta) refineColumn {
	typ := "string"
	if d.IsTemporal {
		typ = "temporal"
	}
	return refineColumn{
		Name:           d.DisplayName,
		Key:            d.Key,
		Role:           "dimension",
		Type:           typ,
		Samples:        limitSamples(d.SampleValues, maxRefineSamples),
		Unique:         estimateUnique(d.CardinalityHint),
		IsTemporal:     d.IsTemporal,
		IsCurrencyCode: d.IsCurrencyCode,
		Parent:         d.Parent,
	}
}

func buildRefinePayload(draft *Config) refinePayload {
	p := refinePayload{
		RowCount: draft.RowCount,
		Detected: refineDetected{HasCurrency: draft.Currency != nil && draft.Currency.Enabled},
	}
	for _, d := range draft.Dimensions {
		p.Columns = append(p.Columns, dimensionColumn(d))
		p.Detected.HasTemporal = p.Detected.HasTemporal || d.IsTemporal
		if d.Parent != "" {
			p.Detected.Hierarchies = append(p.Detected.Hierarchies, d.Key+" → "+d.Parent)
		}
	}
	for _, m := range draft.Measures {
		if !m.IsSynthetic {
			p.Columns = append(p.Columns, refineColumn{Name: m.DisplayName, Key: m.Key, Role: "measure", Type: "numeric", Unit: m.Unit})
		}
	}
	for _, s := range draft.SkippedColumns {
		p.Detected.SkippedColumns = append(p.Detected.SkippedColumns, s.Column)
	}
	return p
}

var refineInstructions = []string{
	"Name the dataset in 2-5 words and describe its contents in one line",
	`Give every column a displayName ("story_points" → "Story Points") and a description of what it means`,
	`For measures, set unit to one of "currency", "hours", "points", "percent", "units" or ""`,
	`For measures, set defaultAggregation to one of "sum", "avg", "median", "count", "max", "min"`,
	`For ordinal dimensions, set sortHint to the natural order ("P1 > P2 > P3")`,
	"Suggest parent/child hierarchies the detection missed, using existing keys only",
	"List skipped columns that should be brought back, with a reason",
}

func buildRefinePrompt(payload refinePayload) string {
	metadata, _ := json.MarshalIndent(payload, "", "  ")
	skeleton, _ := json.MarshalIndent(refineEnrichment{
		DatasetName:          "...",
		DatasetDescription:   "...",
		Enrichments:          []columnEnrichment{{Key: "column_key", DisplayName: "...", Description: "..."}},
		SuggestedHierarchies: []hierarchySuggestion{{Parent: "parent_key", Child: "child_key", Reason: "..."}},
		RecoverColumns:       []recoverSuggestion{{Column: "column name", Reason: "...", SuggestedRole: "dimension"}},
	}, "", "  ")

	var b strings.Builder
	b.WriteString("You are a data analyst looking at the columns of an uploaded spreadsheet. ")
	b.WriteString("Enrich the column metadata below with meaningful names and descriptions.\n\n")
	b.WriteString("COLUMN METADATA:\n")
	b.Write(metadata)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	for i, in := range refineInstructions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, in)
	}
	b.WriteString("\nRespond with ONLY valid JSON in this shape (no markdown):\n")
	b.Write(skeleton)
	b.WriteByte('\n')
	return b.String()
}

// ============================================================================
// RESPONSE
// ============================================================================

type refineEnrichment struct {
	DatasetName          string                `json:"datasetName"`
	DatasetDescription   string                `json:"datasetDescription"`
	Enrichments          []columnEnrichment    `json:"enrichments"`
	SuggestedHierarchies []hierarchySuggestion `json:"suggestedHierarchies"`
	RecoverColumns       []recoverSuggestion   `json:"recoverColumns"`
}

type columnEnrichment struct {
	Key                string `json:"key"`
	DisplayName        string `json:"displayName"`
	Description        string `json:"description"`
	Unit               string `json:"unit"`
	SortHint           string `json:"sortHint"`
	DefaultAggregation string `json:"defaultAggregation"`
}

type hierarchySuggestion struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
	Reason string `json:"reason"`
}

type recoverSuggestion struct {
	Column        string `json:"column"`
	Reason        string `json:"reason"`
	SuggestedRole string `json:"suggestedRole"`
}

// parseRefineResponse decodes the outermost JSON object in reply, which
// tolerates code fences and chatter around it.
func parseRefineResponse(reply string) (*refineEnrichment, error) {
	start, end := strings.IndexByte(reply, '{'), strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in refine response: %.300s", reply)
	}
	var e refineEnrichment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &e); err != nil {
		return nil, fmt.Errorf("failed to parse refine response: %w", err)
	}
	return &e, nil
}

func setNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnrichments merges suggestions into a deep copy of draft. Keys and
// roles are fixed. A suggested parent must be an existing dimension and
// only fills an empty Parent.
func applyEnrichments(draft *Config, e *refineEnrichment) *Config {
	out := deepCopyConfig(draft)
	setNonEmpty(&out.Name, e.DatasetName)
	setNonEmpty(&out.Description, e.DatasetDescription)

	byKey := make(map[string]columnEnrichment, len(e.Enrichments))
	for _, ce := range e.Enrichments {
		byKey[ce.Key] = ce
	}

	for i := range out.Dimensions {
		d := &out.Dimensions[i]
		if ce, ok := byKey[d.Key]; ok {
			setNonEmpty(&d.DisplayName, ce.DisplayName)
			setNonEmpty(&d.Description, ce.Description)
			setNonEmpty(&d.SortHint, ce.SortHint)
		}
	}
	for i := range out.Measures {
		m := &out.Measures[i]
		ce, ok := byKey[m.Key]
		if !ok {
			continue
		}
		setNonEmpty(&m.DisplayName, ce.DisplayName)
		setNonEmpty(&m.Description, ce.Description)
		if ce.Unit != "" {
			m.Unit, m.IsCurrency = ce.Unit, ce.Unit == "currency"
		}
		if isValidAggregation(ce.DefaultAggregation) {
			m.DefaultAggregation = ce.DefaultAggregation
		}
	}

	for _, h := range e.SuggestedHierarchies {
		if h.Parent == h.Child {
			continue
		}
		if _, ok := out.Dimension(h.Parent); !ok {
			continue
		}
		if i := slices.IndexFunc(out.Dimensions, func(d DimensionMeta) bool { return d.Key == h.Child }); i >= 0 && out.Dimensions[i].Parent == "" {
			out.Dimensions[i].Parent = h.Parent
		}
	}

	for _, rc := range e.RecoverColumns {
		for i := range out.SkippedColumns {
			if out.SkippedColumns[i].Column == rc.Column {
				out.SkippedColumns[i].Recoverable = true
			}
		}
	}

	out.RefinedAt = time.Now().Format(time.RFC3339)
	return out
}

// ============================================================================
// HELPERS
// ============================================================================

func deepCopyConfig(src *Config) *Config {
	dst := *src
	dst.Dimensions = slices.Clone(src.Dimensions)
	for i := range dst.Dimensions {
		dst.Dimensions[i].SampleValues = slices.Clone(dst.Dimensions[i].SampleValues)
	}
	dst.Measures = slices.Clone(src.Measures)
	for i := range dst.Measures {
		dst.Measures[i].Aggregations = slices.Clone(dst.Measures[i].Aggregations)
	}
	dst.SkippedColumns = slices.Clone(src.SkippedColumns)
	if src.Currency != nil {
		c := *src.Currency
		c.Rates = maps.Clone(src.Currency.Rates)
		dst.Currency = &c
	}
	return &dst
}

func limitSamples(vals []string, n int) []string {
	if len(vals) > n {
		return vals[:n]
	}
	return vals
}

func estimateUnique(hint string) int {
	switch hint {
	case "low":
		return 5
	case "medium":
		return 30
	case "high":
		return 200
	}
	return 10
}

func isValidAggregation(agg string) bool {
	switch agg {
	case "sum", "avg", "median", "count", "max", "min":
		return true
	}
	return false
}
