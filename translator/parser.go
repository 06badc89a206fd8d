package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spektr-org/askcel/engine"
)

// ============================================================================
// RESPONSE PARSER — Extracts QuerySpec from the model response
// ============================================================================

var errNoQuerySpec = errors.New("response has no querySpec")

type rawResponse struct {
	QuerySpec      *engine.QuerySpec     `json:"querySpec"`
	Interpretation engine.Interpretation `json:"interpretation"`
}

// parseResponse extracts a TranslateResult from the model's JSON. Measures
// outside measures are cleared so the engine uses the default measure.
func parseResponse(response string, measures ...string) (*TranslateResult, error) {
	text := cleanResponse(response)

	var raw rawResponse
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		if rerr := json.Unmarshal([]byte(repairJSON(text)), &raw); rerr != nil {
			return nil, fmt.Errorf("failed to parse translator response: %w (response: %.200s)", err, text)
		}
	}
	if raw.QuerySpec == nil {
		return nil, errNoQuerySpec
	}

	result := &TranslateResult{QuerySpec: *raw.QuerySpec, Interpretation: raw.Interpretation}
	spec := &result.QuerySpec

	// Defaults for missing fields
	if spec.Intent == "" {
		spec.Intent = engine.IntentText
	}
	if spec.Aggregation == "" {
		spec.Aggregation = engine.AggSum
	}
	if spec.Visualize == "" {
		spec.Visualize = spec.Intent
	}
	if spec.Confidence == 0 && result.Interpretation.Confidence > 0 {
		spec.Confidence = result.Interpretation.Confidence
	}
	if result.Interpretation.VisualType == "" {
		result.Interpretation.VisualType = spec.Visualize
	}

	result.QuerySpec = engine.NormalizeQuerySpec(result.QuerySpec, measures...)
	return result, nil
}

// parseFallbackInterpretation tries to extract just the Interpretation.
// Used when the full response parse fails.
func parseFallbackInterpretation(response string) *engine.Interpretation {
	text := cleanResponse(response)

	var wrapper struct {
		Interpretation engine.Interpretation `json:"interpretation"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Interpretation.Summary != "" {
		return &wrapper.Interpretation
	}

	var direct engine.Interpretation
	if err := json.Unmarshal([]byte(text), &direct); err == nil && direct.Summary != "" {
		return &direct
	}

	return &engine.Interpretation{
		VisualType: "table",
		Summary:    "I'll try to show results for your query",
		Details: []engine.InterpretDetail{
			{Label: "Display", Value: "Data table"},
		},
		Confidence: 0.5,
	}
}

// cleanResponse strips markdown fences and any prose around the outer object.
func cleanResponse(response string) string {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}
