package analyst

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/sheet"
	"github.com/spektr-org/askcel/translator"
)

type fakeTranslator struct {
	result   *translator.TranslateResult
	err      error
	checkErr error
	calls    int
	summary  *translator.DataSummary
}

func (f *fakeTranslator) Translate(_ context.Context, _ string, _ schema.Config, summary *translator.DataSummary) (*translator.TranslateResult, error) {
	f.calls++
	f.summary = summary
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeTranslator) Check(context.Context) error { return f.checkErr }

func salesFrame() *sheet.Frame {
	return &sheet.Frame{
		Name:    "sales.xlsx",
		Sheet:   "Sales",
		Headers: []string{"Region", "Product", "Units", "Revenue"},
		Rows: [][]string{
			{"North", "Desk", "3", "300"},
			{"South", "Lamp", "1", "40"},
			{"North", "Chair", "5", "250"},
			{"East", "Desk", "", "200"},
		},
	}
}

func salesSchema() *schema.Config {
	return &schema.Config{
		Name: "Sales",
		Dimensions: []schema.DimensionMeta{
			{Key: "region", DisplayName: "Region", Column: "Region", Groupable: true},
			{Key: "product", DisplayName: "Product", Column: "Product", Groupable: true},
		},
		Measures: []schema.MeasureMeta{
			{Key: "revenue", DisplayName: "Revenue", Column: "Revenue", DefaultAggregation: "sum"},
			{Key: "units", DisplayName: "Units", Column: "Units", DefaultAggregation: "sum"},
			{Key: schema.RecordCountKey, DisplayName: "Record Count", IsSynthetic: true},
		},
	}
}

func loaded(t *testing.T, tr translator.Translator, opts ...Option) *Analyst {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithSchema(salesSchema())}, opts...)
	a := New(tr, opts...)
	require.NoError(t, a.Load(context.Background(), salesFrame()))
	return a
}

func TestAskWithoutData(t *testing.T) {
	a := New(nil)
	assert.Equal(t, ModeBasic, a.Mode())

	_, err := a.Ask(context.Background(), "average")
	assert.ErrorIs(t, err, ErrNoData)
	_, err = a.Summary()
	assert.ErrorIs(t, err, ErrNoData)
	assert.ErrorIs(t, a.Load(context.Background(), nil), ErrNoData)
}

func TestAskAI(t *testing.T) {
	tr := &fakeTranslator{result: &translator.TranslateResult{
		QuerySpec: engine.QuerySpec{
			Intent:      engine.IntentTable,
			Aggregation: engine.AggSum,
			Measure:     "revenue",
			GroupBy:     []string{"region"},
		},
		Interpretation: engine.Interpretation{Summary: "Revenue by region", Confidence: 0.9},
	}}
	a := loaded(t, tr)
	assert.Equal(t, ModeAI, a.Mode())

	answer, err := a.Ask(context.Background(), " revenue by region ")
	require.NoError(t, err)
	assert.Equal(t, "revenue by region", answer.Question)
	assert.Equal(t, ModeAI, answer.Mode)
	assert.False(t, answer.FellBack)
	require.NotNil(t, answer.QuerySpec)
	assert.Equal(t, "revenue", answer.QuerySpec.Measure)
	assert.Equal(t, "Revenue by region", answer.Interpretation.Summary)
	assert.Same(t, answer.Interpretation, answer.Result.Interpretation)

	require.NotNil(t, answer.Result.TableData)
	first := answer.Result.TableData.Rows[0]
	assert.Equal(t, "North", first[0])
	assert.Contains(t, first[1], "550")
	assert.NotNil(t, answer.Chart, "tables get a quick chart")

	require.NotNil(t, tr.summary)
	assert.Equal(t, 4, tr.summary.RecordCount)
	assert.Contains(t, tr.summary.Dimensions["region"], "East")
}

func TestAskFallsBackToBasic(t *testing.T) {
	tr := &fakeTranslator{err: errors.New("quota exceeded")}
	a := loaded(t, tr)

	answer, err := a.Ask(context.Background(), "show me the data")
	require.NoError(t, err)
	assert.True(t, answer.FellBack)
	assert.Equal(t, ModeBasic, answer.Mode)
	assert.Len(t, answer.Result.TableData.Rows, 4)
	assert.Equal(t, ModeBasic, a.Mode(), "fallback is permanent")

	answer, err = a.Ask(context.Background(), "what is the average")
	require.NoError(t, err)
	assert.False(t, answer.FellBack)
	assert.Equal(t, 1, tr.calls)
}

func TestAskUnparsedTranslationFallsBack(t *testing.T) {
	tr := &fakeTranslator{result: &translator.TranslateResult{
		QuerySpec: engine.QuerySpec{Intent: engine.IntentTable, Aggregation: engine.AggList},
		Fallback:  true,
	}}
	a := loaded(t, tr)

	answer, err := a.Ask(context.Background(), "count")
	require.NoError(t, err)
	assert.True(t, answer.FellBack)
	assert.Equal(t, "The dataset has 4 rows.", answer.Result.Reply)
}

func TestAskCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := loaded(t, &fakeTranslator{err: context.Canceled})

	_, err := a.Ask(ctx, "average")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ModeAI, a.Mode())
}

func TestConnect(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	err := a.Connect(ctx, &fakeTranslator{checkErr: errors.New("invalid key")})
	assert.ErrorContains(t, err, "invalid key")
	assert.Equal(t, ModeBasic, a.Mode())

	require.NoError(t, a.Connect(ctx, &fakeTranslator{}))
	assert.Equal(t, ModeAI, a.Mode())

	require.NoError(t, a.Connect(ctx, nil))
	assert.Equal(t, ModeBasic, a.Mode())
}

func TestLoadDiscoversSchema(t *testing.T) {
	a := New(nil, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, a.Load(context.Background(), salesFrame()))

	cfg := a.Schema()
	require.NotNil(t, cfg)
	assert.Equal(t, "sales.xlsx [Sales]", cfg.DiscoveredFrom)
	assert.Contains(t, cfg.MeasureKeys(), "revenue")

	s, err := a.Summary()
	require.NoError(t, err)
	assert.Equal(t, 4, s.Rows)
	assert.Equal(t, 1, s.MissingValues)
	assert.Same(t, a.Frame(), a.Frame())
}

func TestLoadUsesSchemaOverride(t *testing.T) {
	cfg := salesSchema()
	a := New(nil, WithSchema(cfg))
	require.NoError(t, a.Load(context.Background(), salesFrame()))
	assert.Same(t, cfg, a.Schema())
}

func TestBlankCellsAgreeAcrossModes(t *testing.T) {
	basic := loaded(t, nil)
	rowFor := func(question string) []string {
		answer, err := basic.Ask(context.Background(), question)
		require.NoError(t, err)
		for _, row := range answer.Result.TableData.Rows {
			if row[0] == "Units" {
				return row
			}
		}
		t.Fatalf("no Units row for %q", question)
		return nil
	}

	tests := []struct {
		agg   string
		basic string
		want  float64
	}{
		{engine.AggAvg, "average", 3},
		{engine.AggMedian, "median", 3},
		{engine.AggMin, "", 1},
		{engine.AggSum, "sum", 9},
	}
	for _, tt := range tests {
		t.Run(tt.agg, func(t *testing.T) {
			a := loaded(t, &fakeTranslator{result: &translator.TranslateResult{
				QuerySpec: engine.QuerySpec{Intent: engine.IntentText, Aggregation: tt.agg, Measure: "units"},
			}})
			answer, err := a.Ask(context.Background(), tt.agg+" units")
			require.NoError(t, err)
			require.Equal(t, ModeAI, answer.Mode)
			require.NotNil(t, answer.Result.Data)
			assert.InDelta(t, tt.want, answer.Result.Data.RawValue, 1e-9)

			if tt.basic != "" {
				assert.Equal(t, engine.FormatNumber(tt.want), rowFor(tt.basic)[1])
			}
		})
	}
}

type refiningTranslator struct {
	fakeTranslator
	prompts int
}

func (r *refiningTranslator) RefineFunc() func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) {
		r.prompts++
		return `{"datasetName": "Quarterly Sales", "enrichments": [{"key": "revenue", "unit": "USD"}]}`, nil
	}
}

func TestLoadRefinesDiscoveredSchema(t *testing.T) {
	tr := &refiningTranslator{}
	a := New(tr, WithLogger(zaptest.NewLogger(t)), WithRefine(true))
	require.NoError(t, a.Load(context.Background(), salesFrame()))
	assert.Equal(t, 1, tr.prompts)
	assert.Equal(t, "Quarterly Sales", a.Schema().Name)
	assert.Equal(t, "delegate", a.Schema().RefinedBy)

	tr = &refiningTranslator{}
	a = New(tr, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, a.Load(context.Background(), salesFrame()))
	assert.Zero(t, tr.prompts, "refine is off by default")
	assert.Empty(t, a.Schema().RefinedBy)

	tr = &refiningTranslator{}
	a = New(tr, WithRefine(true), WithSchema(salesSchema()))
	require.NoError(t, a.Load(context.Background(), salesFrame()))
	assert.Zero(t, tr.prompts, "a supplied schema is used as is")
}
