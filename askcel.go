// Package askcel answers plain-language questions about spreadsheets.
//
// A workbook or CSV file is loaded into a frame (package sheet), its columns
// are classified into dimensions and measures (schema), and each question is
// translated into a QuerySpec by a language model (translator). The engine
// executes the QuerySpec locally and returns chart, table or text output.
// The model only ever sees column metadata and distinct values.
//
//	frame, _ := sheet.Load(f, "sales.xlsx", sheet.LoadOptions{})
//	a := analyst.New(llm)
//	_ = a.Load(ctx, frame)
//	answer, _ := a.Ask(ctx, "revenue by region")
//
// Without a model, or when it fails, questions are answered in basic mode
// by keyword rules. The web package serves the browser UI and cmd/askcel
// the command line.
package askcel
