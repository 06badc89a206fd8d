package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/sheet"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var (
		file, sheetName, format, out string
		refine                       bool
	)
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the detected schema of a file",
		Example: `  askcel discover --file sales.xlsx --format pretty
  askcel discover --file sales.xlsx --sheet Q2 --refine --format yaml --out schema.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "json", "pretty", "yaml"); err != nil {
				return err
			}
			frame, err := loadFrame(file, sheetName)
			if err != nil {
				return err
			}
			cfg, err := sheet.Discover(frame)
			if err != nil {
				return fmt.Errorf("auto-detect failed: %w", err)
			}
			a.logger.Info("auto-detect",
				zap.String("schema", cfg.Name),
				zap.Int("dimensions", len(cfg.Dimensions)),
				zap.Int("measures", len(cfg.Measures)),
				zap.Int("skipped", len(cfg.SkippedColumns)))

			if refine {
				if cfg, err = a.refine(cmd.Context(), cfg); err != nil {
					return err
				}
			}

			return withOutput(cmd, out, func(w io.Writer) error {
				return writeSchema(w, cfg, format)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Excel or CSV file (required)")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to load (default: first)")
	cmd.Flags().BoolVar(&refine, "refine", false, "Enrich the schema with the language model")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, pretty, yaml")
	cmd.Flags().StringVar(&out, "out", "", "Write output to a file instead of stdout")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// refine enriches cfg. A failed model call keeps the detected schema.
func (a *app) refine(ctx context.Context, cfg *schema.Config) (*schema.Config, error) {
	llm, err := a.llm(ctx)
	if err != nil {
		return nil, err
	}
	if llm == nil {
		return nil, errors.New("--refine needs OPENAI_API_KEY or GEMINI_API_KEY")
	}
	refined, err := schema.Refine(ctx, cfg, schema.RefineConfig{Complete: llm.RefineFunc(), Logger: a.logger.Named("refine")})
	if err != nil {
		a.logger.Warn("smart refine failed, using auto-detect", zap.Error(err))
		return cfg, nil
	}
	a.logger.Info("smart refine", zap.String("schema", refined.Name))
	return refined, nil
}

func loadFrame(path, sheetName string) (*sheet.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()
	return sheet.Load(f, path, sheet.LoadOptions{Sheet: sheetName})
}

func writeSchema(w io.Writer, cfg *schema.Config, format string) error {
	var (
		b   []byte
		err error
	)
	switch format {
	case "yaml":
		b, err = schema.Marshal(cfg, "yaml")
	case "pretty":
		b, err = schema.Marshal(cfg, "json")
		b = append(b, '\n')
	default:
		b, err = json.Marshal(cfg)
		b = append(b, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}
	_, err = w.Write(b)
	return err
}
