package engine

import "go.uber.org/zap"

// Option configures Execute.
type Option func(*config)

type config struct {
	BaseCurrency      string
	CurrencyDimension string             // dimension holding currency codes
	ExchangeRates     map[string]float64 // foreign → base rate
	DefaultMeasure    string
	TemporalDimension string // dimension used for growth and period labels
	Logger            *zap.Logger
}

// WithCurrency enables multi-currency normalisation.
// rates maps a foreign currency to baseCurrency, e.g. {"INR": 0.016, "USD": 1.35}.
func WithCurrency(baseCurrency, dimension string, rates map[string]float64) Option {
	return func(c *config) {
		c.BaseCurrency = baseCurrency
		c.CurrencyDimension = dimension
		c.ExchangeRates = rates
	}
}

// WithDefaultMeasure sets the measure used when QuerySpec.Measure is empty.
func WithDefaultMeasure(measure string) Option {
	return func(c *config) {
		c.DefaultMeasure = measure
	}
}

// WithTemporalDimension names the dimension that orders records in time.
func WithTemporalDimension(dimension string) Option {
	return func(c *config) {
		c.TemporalDimension = dimension
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func applyOptions(opts []Option) *config {
	cfg := &config{
		DefaultMeasure: RecordCountMeasure,
		Logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
