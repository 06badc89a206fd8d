package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spektr-org/askcel/config"
	"github.com/spektr-org/askcel/translator"
)

// ============================================================================
// ASKCEL CLI — ask questions about spreadsheets
// ============================================================================

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.3.0"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "askcel",
		Short: "Ask questions about spreadsheets in plain language",
		Long: `askcel loads an Excel or CSV file, detects its columns and answers
questions about it. A language model turns each question into a query;
every number is computed locally and the model never sees raw rows.

Without OPENAI_API_KEY or GEMINI_API_KEY questions are answered in basic
mode, which understands keywords such as "average", "describe" or "top 10".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log at debug level")
	root.AddCommand(newServeCmd(a), newDiscoverCmd(a), newQueryCmd(a), newVersionCmd())
	return root
}

// init reads the environment and builds the logger. Logs go to stderr so
// stdout stays clean for results.
func (a *app) init() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	zc := zap.NewProductionConfig()
	if !cfg.IsProduction() {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level())
	if a.debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	a.cfg, a.logger = cfg, logger
	return nil
}

// llm builds the configured translator, or returns nil without an API key.
func (a *app) llm(ctx context.Context) (*translator.LLM, error) {
	if a.cfg.APIKey() == "" {
		return nil, nil
	}
	tc := a.cfg.Translator()
	tc.Logger = a.logger.Named("translator")
	llm, err := translator.New(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}
	return llm, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "askcel %s\n", version)
			return err
		},
	}
}
