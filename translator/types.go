package translator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/schema"
)

// ============================================================================
// TRANSLATOR — AI boundary for natural language → QuerySpec
// ============================================================================
// The translator is the only component that talks to a language model.
// It receives schema metadata, a data summary and the user question, and
// returns a QuerySpec. It never sees raw rows.
// ============================================================================

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.5-flash-lite"
)

var (
	// ErrNoAPIKey is returned when a provider is configured without a key.
	ErrNoAPIKey = errors.New("API key is required")
	// ErrUnknownProvider is returned for providers other than openai and gemini.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Translator translates natural language questions into QuerySpecs.
type Translator interface {
	// Translate converts a question into a QuerySpec plus an interpretation
	// the user can read. summary may be nil.
	Translate(ctx context.Context, query string, sch schema.Config, summary *DataSummary) (*TranslateResult, error)
}

// Checker is implemented by translators that can probe their backend.
type Checker interface {
	Check(ctx context.Context) error
}

// Completer sends one system + user prompt pair to a model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// TranslateResult contains both the QuerySpec and the Interpretation.
type TranslateResult struct {
	QuerySpec      engine.QuerySpec      `json:"querySpec"`
	Interpretation engine.Interpretation `json:"interpretation"`
	Fallback       bool                  `json:"fallback,omitempty"` // response could not be parsed
}

// Config holds translator configuration.
type Config struct {
	Provider string // "openai" (default) or "gemini"
	APIKey   string
	Model    string // empty = provider default
	BaseURL  string // OpenAI-compatible endpoint override
	Logger   *zap.Logger
}

// DefaultModel returns the model used for provider when none is set.
func DefaultModel(provider string) string {
	if provider == ProviderGemini {
		return DefaultGeminiModel
	}
	return DefaultOpenAIModel
}

// New builds an LLM translator for cfg.Provider.
func New(ctx context.Context, cfg Config) (*LLM, error) {
	var (
		c   Completer
		err error
	)
	switch cfg.Provider {
	case "", ProviderOpenAI:
		c, err = NewOpenAI(cfg)
	case ProviderGemini:
		c, err = NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewLLM(c, cfg.Logger), nil
}
