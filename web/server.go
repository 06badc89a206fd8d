// Package web serves the browser UI: upload a spreadsheet, ask questions
// in plain language, draw charts and download the answers.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/config"
	"github.com/spektr-org/askcel/store"
	"github.com/spektr-org/askcel/translator"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 3 * time.Minute // model calls and PDF rendering
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

// TranslatorFactory builds a translator from the settings a user entered.
type TranslatorFactory func(ctx context.Context, cfg translator.Config) (translator.Translator, error)

// Option configures a Server.
type Option func(*Server)

// WithTranslatorFactory replaces the provider clients, mostly for tests.
func WithTranslatorFactory(f TranslatorFactory) Option {
	return func(s *Server) {
		s.newTranslator = f
	}
}

// WithDefaultTranslator sets the translator new sessions start with.
func WithDefaultTranslator(t translator.Translator) Option {
	return func(s *Server) {
		s.defaultTranslator = t
	}
}

// Server holds the live sessions and the HTTP handlers.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	sessions          *sessions
	limiter           *rateLimiter
	newTranslator     TranslatorFactory
	defaultTranslator translator.Translator
}

// New creates a server. A nil store keeps sessions in this process only.
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:           cfg,
		logger:        logger.Named("web"),
		limiter:       newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		newTranslator: newTranslator,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions = newSessions(st, cfg.SessionTTL, s.logger, func() *analyst.Analyst {
		return analyst.New(s.defaultTranslator, analyst.WithLogger(logger.Named("analyst")), analyst.WithRefine(cfg.Refine))
	})
	return s
}

// newTranslator wraps translator.New so a failed build never yields a typed nil.
func newTranslator(ctx context.Context, cfg translator.Config) (translator.Translator, error) {
	llm, err := translator.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// Handler returns the router with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RequestLogger(zapFormatter{s.logger}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware)
		r.Use(withSession(s.cfg.IsProduction()))
		r.Use(ensureCSRF(s.cfg.IsProduction()))
		r.Use(s.requireCSRF)
		r.Get("/", s.index)
		r.Post("/settings", s.settings)
		r.Post("/upload", s.upload)
		r.Post("/ask", s.ask)
		r.Get("/visualize", s.visualize)
		r.Post("/export/data", s.exportData)
		r.Post("/export/{format}", s.exportAnswer)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("listening", zap.String("addr", s.cfg.ListenAddr), zap.String("env", s.cfg.Env))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
