package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// maxAttempts bounds how often a malformed response is re-requested.
const maxAttempts = 3

var ratioKeywords = []string{"percentage of", "% of", "how much of", "portion of", "fraction of", "what part of", "share of"}

// LLM implements Translator with a schema-driven prompt and a Completer.
type LLM struct {
	completer Completer
	logger    *zap.Logger
}

// NewLLM wraps a completer. A nil logger is replaced by a no-op logger.
func NewLLM(c Completer, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{completer: c, logger: logger}
}

// Translate asks the model for a QuerySpec. A response that cannot be parsed
// after maxAttempts yields a list-table fallback rather than an error; only
// a failed model call is returned as an error.
func (l *LLM) Translate(ctx context.Context, query string, sch schema.Config, summary *DataSummary) (*TranslateResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is empty")
	}

	system := BuildPrompt(sch, summary)
	prompt := buildUserPrompt(query)
	l.logger.Info("translating query",
		zap.String("query", truncate(query, 80)),
		zap.String("schema", sch.Name),
		zap.Int("promptBytes", len(system)+len(prompt)))

	var last string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		response, err := l.completer.Complete(ctx, system, prompt)
		if err != nil {
			l.logger.Warn("model call failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, fmt.Errorf("translate: %w", err)
		}
		result, err := parseResponse(response, sch.MeasureKeys()...)
		if err == nil {
			l.logger.Info("query translated",
				zap.String("intent", result.QuerySpec.Intent),
				zap.String("aggregation", result.QuerySpec.Aggregation),
				zap.String("visualize", result.QuerySpec.Visualize),
				zap.Float64("confidence", result.QuerySpec.Confidence))
			return result, nil
		}
		last = response
		l.logger.Warn("error parsing translator response",
			zap.Int("attempt", attempt),
			zap.String("response", truncate(response, 200)),
			zap.Error(err))
	}

	l.logger.Warn("falling back to record list", zap.String("query", truncate(query, 80)))
	return &TranslateResult{
		QuerySpec: engine.QuerySpec{
			Intent:      engine.IntentTable,
			Aggregation: engine.AggList,
			Visualize:   "table",
			Title:       "Query Results",
			Confidence:  0.5,
		},
		Interpretation: *parseFallbackInterpretation(last),
		Fallback:       true,
	}, nil
}

// Check sends a tiny prompt to confirm the key and model work.
func (l *LLM) Check(ctx context.Context) error {
	_, err := l.completer.Complete(ctx,
		`You are a health check. Reply with the JSON object {"ok": true}.`,
		`{"ping": true}`)
	if err != nil {
		return fmt.Errorf("translator check: %w", err)
	}
	return nil
}

// RefineFunc routes schema refinement prompts through the same model.
func (l *LLM) RefineFunc() func(ctx context.Context, prompt string) (string, error) {
	return func(ctx context.Context, prompt string) (string, error) {
		return l.completer.Complete(ctx, "", prompt)
	}
}

func buildUserPrompt(query string) string {
	var b strings.Builder
	b.WriteString("USER QUERY: ")
	b.WriteString(query)
	b.WriteString("\n")
	if isRatioQuery(query) {
		b.WriteString("HINT: This is a RATIO query. Use aggregation:\"ratio\" with BOTH \"filters\" (denominator) AND \"compareFilters\" (numerator).\n")
	}
	b.WriteString("\nRespond with valid JSON only:")
	return b.String()
}

func isRatioQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range ratioKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
