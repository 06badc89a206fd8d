package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/schema"
	"github.com/spektr-org/askcel/translator"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		file, sheetName, schemaPath, format, out string
		questions                                []string
		concurrency                              int
		refine                                   bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Answer one or more questions about a file",
		Example: `  askcel query --file sales.xlsx -q "revenue by region" --format csv --out results.csv
  askcel query --file jira.csv -q "total story points" -q "bugs by priority" --format text
  askcel query --file sales.xlsx --refine -q "revenue by region"
  askcel query --file sales.xlsx --schema schema.yaml -q "monthly revenue" --format pdf --out report.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "json", "pretty", "text", "csv", "xlsx", "pdf"); err != nil {
				return err
			}
			if len(questions) == 0 {
				return errors.New("at least one -q question is required")
			}
			if (format == "xlsx" || format == "pdf") && len(questions) > 1 {
				return fmt.Errorf("--format %s takes a single question", format)
			}
			ctx := cmd.Context()

			frame, err := loadFrame(file, sheetName)
			if err != nil {
				return err
			}
			opts := []analyst.Option{analyst.WithLogger(a.logger.Named("analyst"))}
			if schemaPath != "" {
				cfg, err := schema.LoadFile(schemaPath)
				if err != nil {
					return err
				}
				a.logger.Info("loaded schema",
					zap.String("schema", cfg.Name),
					zap.Int("dimensions", len(cfg.Dimensions)),
					zap.Int("measures", len(cfg.Measures)))
				opts = append(opts, analyst.WithSchema(cfg))
			}

			llm, err := a.llm(ctx)
			if err != nil {
				return err
			}
			if refine && llm == nil && cmd.Flags().Changed("refine") {
				return errors.New("--refine needs OPENAI_API_KEY or GEMINI_API_KEY")
			}
			if !cmd.Flags().Changed("refine") {
				refine = a.cfg.Refine
			}
			opts = append(opts, analyst.WithRefine(refine))
			var t translator.Translator
			if llm != nil {
				t = llm
			}
			an := analyst.New(t, opts...)
			if err := an.Load(ctx, frame); err != nil {
				return err
			}

			answers := make([]*analyst.Answer, len(questions))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(concurrency, 1))
			for i, q := range questions {
				g.Go(func() error {
					answer, err := an.Ask(gctx, q)
					if err != nil {
						return fmt.Errorf("question %q: %w", q, err)
					}
					a.logger.Debug("answered", zap.String("question", q), zap.String("mode", string(answer.Mode)))
					answers[i] = answer
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			return withOutput(cmd, out, func(w io.Writer) error {
				return writeAnswers(w, answers, format)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Excel or CSV file (required)")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "Sheet to load (default: first)")
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to answer (repeatable)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema file in JSON or YAML (skips auto-detect)")
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, pretty, text, csv, xlsx, pdf")
	cmd.Flags().StringVar(&out, "out", "", "Write output to a file instead of stdout")
	cmd.Flags().BoolVar(&refine, "refine", false, "Let the model name and describe the detected schema (default $ASKCEL_REFINE)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Questions answered at the same time")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
