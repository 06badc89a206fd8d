package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// scriptedCompleter replays responses in order, repeating the last one.
type scriptedCompleter struct {
	responses []string
	err       error
	systems   []string
	prompts   []string
}

func (s *scriptedCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func salesSchema() schema.Config {
	return schema.Config{
		Name: "Sales",
		Dimensions: []schema.DimensionMeta{
			{Key: "month", DisplayName: "Month", IsTemporal: true, SampleValues: []string{"Jan-2026", "Feb-2026"}},
			{Key: "region", DisplayName: "Region", SampleValues: []string{"North", "South"}},
			{Key: "product", DisplayName: "Product", Parent: "region"},
		},
		Measures: []schema.MeasureMeta{
			{Key: "revenue", DisplayName: "Revenue", Unit: "currency", DefaultAggregation: "sum"},
			{Key: schema.RecordCountKey, DisplayName: "Record Count", IsSynthetic: true},
		},
	}
}

func TestTranslateParsesSpec(t *testing.T) {
	c := &scriptedCompleter{responses: []string{"```json\n" + `{
		"interpretation": {"summary": "Average revenue per region", "confidence": 0.8},
		"querySpec": {"intent": "chart", "aggregation": "average", "measure": "revenue", "groupBy": ["region"], "visualize": "bar"}
	}` + "\n```"}}
	llm := NewLLM(c, zaptest.NewLogger(t))

	result, err := llm.Translate(context.Background(), "  revenue by region ", salesSchema(), nil)
	require.NoError(t, err)
	require.Len(t, c.prompts, 1)

	assert.False(t, result.Fallback)
	assert.Equal(t, engine.IntentChart, result.QuerySpec.Intent)
	assert.Equal(t, engine.AggAvg, result.QuerySpec.Aggregation)
	assert.Equal(t, []string{"region"}, result.QuerySpec.GroupBy)
	assert.Equal(t, 0.8, result.QuerySpec.Confidence)
	assert.Equal(t, "Average revenue per region", result.Interpretation.Summary)

	assert.Contains(t, c.systems[0], "DATA MODEL")
	assert.Contains(t, c.prompts[0], "USER QUERY: revenue by region\n")
	assert.NotContains(t, c.prompts[0], "RATIO")
}

func TestTranslateRetriesMalformedResponse(t *testing.T) {
	c := &scriptedCompleter{responses: []string{
		"Sorry, I cannot help",
		`{"interpretation": {"summary": "x"}}`,
		`{"querySpec": {"intent": "text", "aggregation": "sum"}}`,
	}}
	result, err := NewLLM(c, zaptest.NewLogger(t)).Translate(context.Background(), "total revenue", salesSchema(), nil)
	require.NoError(t, err)
	assert.Len(t, c.prompts, 3)
	assert.False(t, result.Fallback)
	assert.Equal(t, engine.AggSum, result.QuerySpec.Aggregation)
}

func TestTranslateFallsBackAfterThreeAttempts(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{"interpretation": {"summary": "Listing rows", "visualType": "table"}}`}}
	result, err := NewLLM(c, nil).Translate(context.Background(), "anything", salesSchema(), nil)
	require.NoError(t, err)

	assert.Len(t, c.prompts, maxAttempts)
	assert.True(t, result.Fallback)
	assert.Equal(t, engine.IntentTable, result.QuerySpec.Intent)
	assert.Equal(t, engine.AggList, result.QuerySpec.Aggregation)
	assert.Equal(t, "Listing rows", result.Interpretation.Summary)
}

func TestTranslateModelError(t *testing.T) {
	boom := errors.New("401 unauthorized")
	c := &scriptedCompleter{err: boom}
	_, err := NewLLM(c, nil).Translate(context.Background(), "total", salesSchema(), nil)
	require.ErrorIs(t, err, boom)
	assert.Len(t, c.prompts, 1, "model errors are not retried")

	_, err = NewLLM(c, nil).Translate(context.Background(), "   ", salesSchema(), nil)
	assert.Error(t, err)
}

func TestTranslateClearsUnknownMeasure(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{"querySpec": {"intent": "text", "aggregation": "sum", "measure": "profit"}}`}}
	result, err := NewLLM(c, nil).Translate(context.Background(), "total profit", salesSchema(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.QuerySpec.Measure)
}

func TestTranslateRatioHint(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{"querySpec": {"intent": "text", "aggregation": "ratio"}}`}}
	_, err := NewLLM(c, nil).Translate(context.Background(), "What percentage of revenue came from North?", salesSchema(), nil)
	require.NoError(t, err)
	assert.Contains(t, c.prompts[0], "HINT: This is a RATIO query")
}

func TestCheck(t *testing.T) {
	ok := &scriptedCompleter{responses: []string{`{"ok": true}`}}
	assert.NoError(t, NewLLM(ok, nil).Check(context.Background()))

	bad := &scriptedCompleter{err: errors.New("invalid key")}
	assert.ErrorContains(t, NewLLM(bad, nil).Check(context.Background()), "invalid key")
}

func TestRefineFunc(t *testing.T) {
	c := &scriptedCompleter{responses: []string{`{"columns": []}`}}
	out, err := NewLLM(c, nil).RefineFunc()(context.Background(), "enrich")
	require.NoError(t, err)
	assert.Equal(t, `{"columns": []}`, out)
	assert.Equal(t, []string{""}, c.systems)
	assert.Equal(t, []string{"enrich"}, c.prompts)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(ctx, Config{Provider: ProviderGemini})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = New(ctx, Config{Provider: "claude", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	llm, err := New(ctx, Config{APIKey: "sk-test", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.NotNil(t, llm)

	assert.Equal(t, DefaultGeminiModel, DefaultModel(ProviderGemini))
	assert.Equal(t, DefaultOpenAIModel, DefaultModel(""))
}

func TestCompleterFunc(t *testing.T) {
	var c Completer = CompleterFunc(func(_ context.Context, system, prompt string) (string, error) {
		return system + "|" + prompt, nil
	})
	out, err := c.Complete(context.Background(), "s", "p")
	require.NoError(t, err)
	assert.Equal(t, "s|p", out)
}
