package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spektr-org/askcel/analyst"
	"github.com/spektr-org/askcel/engine"
	"github.com/spektr-org/askcel/export"
)

// ============================================================================
// OUTPUT
// ============================================================================

type cliOutput struct {
	Query          string                 `json:"query"`
	Mode           analyst.Mode           `json:"mode"`
	Interpretation *engine.Interpretation `json:"interpretation,omitempty"`
	QuerySpec      *engine.QuerySpec      `json:"querySpec,omitempty"`
	Result         *engine.Result         `json:"result"`
}

func checkFormat(format string, allowed ...string) error {
	if !slices.Contains(allowed, format) {
		return fmt.Errorf("unknown format %q (want %s)", format, strings.Join(allowed, ", "))
	}
	return nil
}

// withOutput runs write against --out, or stdout when it is empty.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Written to %s\n", path)
	return nil
}

func writeAnswers(w io.Writer, answers []*analyst.Answer, format string) error {
	switch format {
	case "csv":
		for i, a := range answers {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := export.CSV(w, a.Result); err != nil {
				return err
			}
		}
		return nil
	case "xlsx":
		table := export.Table(answers[0].Result)
		return export.Excel(w, table)
	case "pdf":
		return export.PDF(w, export.ReportFor(answers[0].Question, answers[0].Result))
	case "text":
		return writeText(w, answers)
	}

	outs := make([]cliOutput, len(answers))
	for i, a := range answers {
		outs[i] = cliOutput{Query: a.Question, Mode: a.Mode, Interpretation: a.Interpretation, QuerySpec: a.QuerySpec, Result: a.Result}
	}
	if len(outs) == 1 {
		return writeJSON(w, outs[0], format)
	}
	return writeJSON(w, outs, format)
}

// writeText prints the interpretation and reply of every answer. With more
// than one question each block is headed by its question.
func writeText(w io.Writer, answers []*analyst.Answer) error {
	var b strings.Builder
	for i, a := range answers {
		if len(answers) > 1 {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "Q: %s\n", a.Question)
		}
		var lines []string
		if a.Interpretation != nil && a.Interpretation.Summary != "" {
			lines = append(lines, a.Interpretation.Summary)
		}
		if a.Result != nil && a.Result.Reply != "" {
			lines = append(lines, a.Result.Reply)
		}
		if len(lines) == 0 {
			lines = []string{"No result."}
		}
		b.WriteString(strings.Join(lines, "\n") + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v any, format string) error {
	var (
		out []byte
		err error
	)
	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
