// Package config loads askcel settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/spektr-org/askcel/translator"
)

// Config holds server and delegate settings.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	Provider   string // "openai" (default) or "gemini"

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string // OpenAI-compatible endpoint (optional)
	GeminiKey     string
	GeminiModel   string

	// Refine asks the model to name and describe discovered schemas.
	Refine bool

	DataDir     string        // badger directory; empty = in-memory sessions
	SessionTTL  time.Duration // default 2h
	MaxUploadMB int64         // default 20

	RateLimitRPS   float64 // sustained requests per second per client (default 5)
	RateLimitBurst int     // burst capacity (default 20)

	LogLevel string // debug, info, warn, error (default "info")
	Env      string // "development" (default) or "production"

	// Warnings collects non-fatal problems found while loading.
	// They are logged once the logger exists.
	Warnings []string
}

// LoadFromEnv reads the ASKCEL_* and provider variables, applying defaults.
// Unparsable numbers and durations are kept as warnings and replaced by defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:    os.Getenv("ASKCEL_LISTEN_ADDR"),
		Provider:      strings.ToLower(strings.TrimSpace(os.Getenv("ASKCEL_PROVIDER"))),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),
		DataDir:       os.Getenv("ASKCEL_DATA_DIR"),
		LogLevel:      os.Getenv("ASKCEL_LOG_LEVEL"),
		Env:           os.Getenv("ASKCEL_ENV"),
	}

	if v := os.Getenv("ASKCEL_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SessionTTL = d
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ASKCEL_SESSION_TTL %q is not a duration, using default", v))
		}
	}
	if v := os.Getenv("ASKCEL_REFINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Refine = b
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ASKCEL_REFINE %q is not a boolean, smart refine stays off", v))
		}
	}
	if v := os.Getenv("ASKCEL_MAX_UPLOAD_MB"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadMB = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ASKCEL_MAX_UPLOAD_MB %q is not a number, using default", v))
		}
	}
	if v := os.Getenv("ASKCEL_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ASKCEL_RATE_LIMIT_RPS %q is not a number, using default", v))
		}
	}
	if v := os.Getenv("ASKCEL_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ASKCEL_RATE_LIMIT_BURST %q is not a number, using default", v))
		}
	}

	cfg.applyDefaults()
	if cfg.APIKey() == "" {
		cfg.Warnings = append(cfg.Warnings, "no API key for provider "+cfg.Provider+", questions use basic mode until one is entered")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Provider == "" {
		c.Provider = translator.ProviderOpenAI
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = translator.DefaultOpenAIModel
	}
	if c.GeminiModel == "" {
		c.GeminiModel = translator.DefaultGeminiModel
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 2 * time.Hour
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 20
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 5
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Env == "" {
		c.Env = "development"
	}
}

// Validate rejects unknown providers and non-positive limits.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider {
	case translator.ProviderOpenAI, translator.ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("ASKCEL_PROVIDER %q: %w", c.Provider, translator.ErrUnknownProvider))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("ASKCEL_SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("ASKCEL_MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB))
	}
	if c.RateLimitRPS <= 0 {
		errs = append(errs, fmt.Errorf("ASKCEL_RATE_LIMIT_RPS must be positive, got %g", c.RateLimitRPS))
	}
	if c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("ASKCEL_RATE_LIMIT_BURST must be positive, got %d", c.RateLimitBurst))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("ASKCEL_LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// APIKey returns the key of the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == translator.ProviderGemini {
		return c.GeminiKey
	}
	return c.OpenAIKey
}

// Translator returns the translator settings for the selected provider.
func (c *Config) Translator() translator.Config {
	if c.Provider == translator.ProviderGemini {
		return translator.Config{Provider: c.Provider, APIKey: c.GeminiKey, Model: c.GeminiModel}
	}
	return translator.Config{Provider: c.Provider, APIKey: c.OpenAIKey, Model: c.OpenAIModel, BaseURL: c.OpenAIBaseURL}
}

// Level maps LogLevel to a zap level, defaulting to info.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// IsProduction reports whether ASKCEL_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// MaxUploadBytes is MaxUploadMB in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
