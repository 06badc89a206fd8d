// Package analyst answers questions about one loaded spreadsheet.
//
// In AI mode a question goes through the translator, is normalised and then
// executed locally by the engine. When the translator is missing, fails its
// probe or fails on a question, the analyst drops to basic mode for the rest
// of its life and answers with keyword rules instead.
package analyst

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/sheet"
	"github.com/spektr-org/askcel/translator"
	"github.com/spektr-org/askcel/visual"
)

// Mode selects how questions are answered.
type Mode string

const (
	ModeAI    Mode = "ai"
	ModeBasic Mode = "basic"
)

var (
	// ErrNoData is returned when a question arrives before a file is loaded.
	ErrNoData = errors.New("no data loaded, upload a file first")
	// ErrBasicQuery is returned when basic mode has no rule for a question.
	ErrBasicQuery = errors.New("could not process query in basic mode, try simpler queries like 'show average' or 'describe data'")
	// ErrEmptyQuestion is returned for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	errFallbackSpec = errors.New("model response could not be parsed")
)

// Answer is the outcome of one question.
type Answer struct {
	Question       string                 `json:"question"`
	Mode           Mode                   `json:"mode"`
	Result         *engine.Result         `json:"result"`
	Interpretation *engine.Interpretation `json:"interpretation,omitempty"`
	QuerySpec      *engine.QuerySpec      `json:"querySpec,omitempty"`
	FellBack       bool                   `json:"fellBack,omitempty"` // AI mode failed on this question
	Chart          *visual.Figure         `json:"-"`
}

// Option configures an Analyst.
type Option func(*Analyst)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyst) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithSchema uses cfg instead of discovering a schema on Load.
func WithSchema(cfg *schema.Config) Option {
	return func(a *Analyst) {
		a.override = cfg
	}
}

// WithRefine asks the translator's model to enrich discovered schemas.
func WithRefine(on bool) Option {
	return func(a *Analyst) {
		a.refine = on
	}
}

// refiner is implemented by translators that can run schema refinement.
type refiner interface {
	RefineFunc() func(ctx context.Context, prompt string) (string, error)
}

// Analyst holds one dataset and answers questions about it.
// It is safe for concurrent use.
type Analyst struct {
	mu         sync.RWMutex
	translator translator.Translator
	mode       Mode
	refine     bool
	override   *schema.Config
	logger     *zap.Logger

	frame   *sheet.Frame
	schema  *schema.Config
	view    *engine.ColumnView
	summary *translator.DataSummary
}

// New creates an analyst. A nil translator starts in basic mode.
func New(t translator.Translator, opts ...Option) *Analyst {
	a := &Analyst{translator: t, mode: ModeBasic, logger: zap.NewNop()}
	if t != nil {
		a.mode = ModeAI
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect swaps the translator and probes it when it supports Check.
// A nil translator or a failed probe leaves the analyst in basic mode;
// the probe error is returned so callers can show it.
func (a *Analyst) Connect(ctx context.Context, t translator.Translator) error {
	mode := ModeBasic
	var err error
	if t != nil {
		mode = ModeAI
		if c, ok := t.(translator.Checker); ok {
			if err = c.Check(ctx); err != nil {
				mode = ModeBasic
				err = fmt.Errorf("connect: %w", err)
				a.logger.Warn("translator probe failed, using basic mode", zap.Error(err))
			}
		}
	}

	a.mu.Lock()
	a.translator = t
	a.mode = mode
	a.mu.Unlock()
	return err
}

// Load replaces the dataset with frame.
func (a *Analyst) Load(ctx context.Context, frame *sheet.Frame) error {
	if frame == nil {
		return ErrNoData
	}

	a.mu.RLock()
	cfg, t, mode, refine := a.override, a.translator, a.mode, a.refine
	a.mu.RUnlock()

	if cfg == nil {
		discovered, err := sheet.Discover(frame)
		if err != nil {
			return fmt.Errorf("discover schema: %w", err)
		}
		cfg = discovered
		if r, ok := t.(refiner); ok && refine && mode == ModeAI {
			refined, err := schema.Refine(ctx, cfg, schema.RefineConfig{Complete: r.RefineFunc(), Logger: a.logger})
			if err != nil {
				a.logger.Warn("schema refine failed, keeping discovered schema", zap.Error(err))
			} else {
				cfg = refined
			}
		}
	}

	view := sheet.View(frame, cfg)
	summary := translator.BuildDataSummary(view, *cfg)

	a.mu.Lock()
	a.frame, a.schema, a.view, a.summary = frame, cfg, view, summary
	a.mu.Unlock()

	a.logger.Info("dataset loaded",
		zap.String("file", frame.Name),
		zap.String("sheet", frame.Sheet),
		zap.Int("rows", len(frame.Rows)),
		zap.Int("dimensions", len(cfg.Dimensions)),
		zap.Int("measures", len(cfg.Measures)))
	return nil
}

// Summary describes the loaded dataset.
func (a *Analyst) Summary() (sheet.Summary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.frame == nil {
		return sheet.Summary{}, ErrNoData
	}
	return a.frame.Summary(), nil
}

func (a *Analyst) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Frame returns the loaded frame, or nil.
func (a *Analyst) Frame() *sheet.Frame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frame
}

// Schema returns the schema in use, or nil before Load.
func (a *Analyst) Schema() *schema.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.schema
}

// Ask answers a question about the loaded dataset.
func (a *Analyst) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	a.mu.RLock()
	frame, cfg, view, summary := a.frame, a.schema, a.view, a.summary
	t, mode := a.translator, a.mode
	a.mu.RUnlock()
	if frame == nil {
		return nil, ErrNoData
	}

	fellBack := false
	if mode == ModeAI && t != nil {
		answer, err := a.askAI(ctx, t, question, cfg, view, summary)
		if err == nil {
			a.attachChart(answer)
			return answer, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("advanced query failed, falling back to basic mode",
			zap.String("question", question), zap.Error(err))
		a.mu.Lock()
		a.mode = ModeBasic
		a.mu.Unlock()
		fellBack = true
	}

	result, err := answerBasic(frame, question)
	if err != nil {
		return nil, err
	}
	answer := &Answer{Question: question, Mode: ModeBasic, Result: result, FellBack: fellBack}
	a.attachChart(answer)
	return answer, nil
}

func (a *Analyst) askAI(ctx context.Context, t translator.Translator, question string, cfg *schema.Config, view engine.RecordView, summary *translator.DataSummary) (*Answer, error) {
	tr, err := t.Translate(ctx, question, *cfg, summary)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	if tr.Fallback {
		return nil, errFallbackSpec
	}

	spec := engine.NormalizeQuerySpec(tr.QuerySpec, cfg.MeasureKeys()...)
	result, err := engine.Execute(spec, view, engineOptions(cfg, a.logger)...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	interp := tr.Interpretation
	result.Interpretation = &interp

	a.logger.Debug("question answered",
		zap.String("question", question),
		zap.String("intent", spec.Intent),
		zap.String("aggregation", spec.Aggregation),
		zap.String("measure", spec.Measure))
	return &Answer{
		Question:       question,
		Mode:           ModeAI,
		Result:         result,
		Interpretation: &interp,
		QuerySpec:      &spec,
	}, nil
}

func engineOptions(cfg *schema.Config, logger *zap.Logger) []engine.Option {
	opts := []engine.Option{engine.WithLogger(logger)}
	if m := cfg.DefaultMeasureKey(); m != "" {
		opts = append(opts, engine.WithDefaultMeasure(m))
	}
	if d := cfg.TemporalDimension(); d != "" {
		opts = append(opts, engine.WithTemporalDimension(d))
	}
	if c := cfg.Currency; c != nil && c.Enabled {
		opts = append(opts, engine.WithCurrency(c.BaseCurrency, c.CodeDimension, c.Rates))
	}
	return opts
}

// attachChart renders the result's chart, or a bar chart of the first
// numeric column when a table came back without one.
func (a *Analyst) attachChart(answer *Answer) {
	result := answer.Result
	if result == nil {
		return
	}
	cfg := result.ChartConfig
	if cfg == nil && result.Type == engine.IntentTable {
		for _, col := range result.TableData.NumericColumns() {
			if col > 0 {
				cfg = engine.ChartFromTable(result.TableData, col)
				break
			}
		}
	}
	if cfg == nil {
		return
	}
	fig, err := visual.Render(cfg, "")
	if err != nil {
		a.logger.Debug("no chart for answer", zap.Error(err))
		return
	}
	answer.Chart = fig
}
